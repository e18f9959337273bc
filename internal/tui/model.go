package tui

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/codebeauty/agentcy/internal/progression"
	"github.com/codebeauty/agentcy/internal/runner"
)

// RunConfig holds the inputs needed to drive the TUI run flow.
type RunConfig struct {
	Pipelines     []PipelineOption
	PrePipeline   string   // pipeline from the command line or config
	SkipPipeline  bool     // pipeline given as an argument
	Platforms     []string // every platform that can be picked
	PrePlatforms  []string // checked when the platform list opens
	SkipPlatforms bool     // --publish given
	SkipConfirm   bool     // start as soon as the program runs
	Dwell         time.Duration
	AutoApprove   bool
}

// Selection is what the user confirmed.
type Selection struct {
	Pipeline  PipelineOption
	Platforms []string
}

// Controller is the part of a running run the UI may steer.
type Controller interface {
	Approve() error
	Stop()
	Cancel()
}

// DispatchFunc is called when the user confirms. It starts the run in the
// background, reports progress via program.Send and returns the run's
// controller.
type DispatchFunc func(ctx context.Context, sel Selection) (Controller, error)

// Model is the top-level BubbleTea model for `agentcy run`.
type Model struct {
	phase    Phase
	width    int
	height   int
	Err      error
	quitting bool

	// Phase models
	pipelineModel PipelineModel
	platformModel PlatformModel
	confirmModel  ConfirmModel
	progressModel ProgressModel
	publishModel  PublishModel
	summaryModel  SummaryModel

	// Config
	cfg        RunConfig
	dispatch   DispatchFunc
	cancel     context.CancelFunc
	controller Controller

	// Selected state
	selectedPipeline  PipelineOption
	selectedPlatforms []string
}

// NewModel creates the TUI model. The dispatch function is called when the
// run starts.
func NewModel(cfg RunConfig, dispatch DispatchFunc) Model {
	m := Model{
		cfg:               cfg,
		dispatch:          dispatch,
		pipelineModel:     NewPipelineModel(cfg.Pipelines, cfg.PrePipeline),
		platformModel:     NewPlatformModel(cfg.Platforms, cfg.PrePlatforms),
		publishModel:      NewPublishModel(),
		selectedPlatforms: cfg.PrePlatforms,
	}
	m.selectedPipeline, _ = m.pipelineModel.Selected()

	switch {
	case !cfg.SkipPipeline:
		m.phase = PhasePipeline
	case !cfg.SkipPlatforms:
		m.phase = PhasePlatforms
	case cfg.SkipConfirm:
		m.phase = PhaseProgress
		m.progressModel = NewProgressModel(m.selectedPipeline.Phases)
	default:
		m.phase = PhaseConfirm
		m.confirmModel = m.newConfirm()
	}
	return m
}

func (m Model) Init() tea.Cmd {
	if m.phase == PhaseProgress {
		return tea.Batch(func() tea.Msg { return doDispatchMsg{} }, m.progressModel.Spinner.Tick)
	}
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, Keys.Quit) {
			m.quitting = true
			if m.controller != nil {
				m.controller.Cancel()
			}
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}

	case ErrorMsg:
		m.Err = msg.Err
		m.quitting = true
		if m.cancel != nil {
			m.cancel()
		}
		return m, tea.Quit

	case doDispatchMsg:
		cmd := m.startDispatch()
		return m, cmd

	case DispatchedMsg:
		m.controller = msg.Controller
		return m, nil

	case RunEventMsg:
		return m.applyRunEvent(msg.Event), nil

	case PublishUpdateMsg:
		if m.phase != PhaseSummary {
			m.phase = PhasePublishing
			m.publishModel.Update = msg.Update
		}
		return m, nil

	case RunFinishedMsg:
		m.summaryModel = NewSummaryModel(msg.Result, msg.Publish, msg.RunDir)
		m.phase = PhaseSummary
		return m, nil

	case spinner.TickMsg:
		if m.phase == PhaseProgress || m.phase == PhaseApproval {
			var cmd tea.Cmd
			m.progressModel.Spinner, cmd = m.progressModel.Spinner.Update(msg)
			return m, cmd
		}
		return m, nil
	}

	switch m.phase {
	case PhasePipeline:
		return m.updatePipeline(msg)
	case PhasePlatforms:
		return m.updatePlatforms(msg)
	case PhaseConfirm:
		return m.updateConfirm(msg)
	case PhaseProgress:
		return m.updateProgress(msg)
	case PhaseApproval:
		return m.updateApproval(msg)
	case PhasePublishing:
		return m, nil // driven by messages
	case PhaseSummary:
		return m.updateSummary(msg)
	}

	return m, nil
}

func (m Model) View() string {
	if m.Err != nil {
		return StyleError.Render("  Error: "+m.Err.Error()) + "\n"
	}

	switch m.phase {
	case PhasePipeline:
		return m.pipelineModel.View()
	case PhasePlatforms:
		return m.platformModel.View()
	case PhaseConfirm:
		return m.confirmModel.View()
	case PhaseProgress:
		return m.progressModel.View()
	case PhaseApproval:
		return ApprovalModel{Run: m.progressModel.Run}.View()
	case PhasePublishing:
		return m.publishModel.View()
	case PhaseSummary:
		return m.summaryModel.View()
	}

	return ""
}

// applyRunEvent folds the event into the progress view and moves between the
// progress, approval and publishing screens.
func (m Model) applyRunEvent(ev runner.Event) Model {
	m.progressModel.Run = m.progressModel.Run.Apply(ev)
	if m.phase == PhaseSummary {
		return m
	}
	switch ev.Kind {
	case runner.EventAwaitingApproval:
		if !m.cfg.AutoApprove {
			m.phase = PhaseApproval
		}
	case runner.EventApproved, runner.EventStopped, runner.EventCancelled:
		m.phase = PhaseProgress
	case runner.EventComplete:
		if len(m.selectedPlatforms) > 0 {
			m.phase = PhasePublishing
		}
	}
	return m
}

func (m Model) updatePipeline(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && key.Matches(msg, Keys.Confirm) {
		sel, ok := m.pipelineModel.Selected()
		if !ok {
			return m, nil
		}
		m.selectedPipeline = sel
		if m.cfg.SkipPlatforms {
			m.confirmModel = m.newConfirm()
			m.phase = PhaseConfirm
		} else {
			m.phase = PhasePlatforms
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.pipelineModel, cmd = m.pipelineModel.Update(msg)
	return m, cmd
}

func (m Model) updatePlatforms(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, Keys.Confirm):
			// An empty selection skips publishing.
			m.selectedPlatforms = m.platformModel.SelectedNames()
			m.confirmModel = m.newConfirm()
			m.phase = PhaseConfirm
			return m, nil
		case key.Matches(msg, Keys.Back):
			if !m.cfg.SkipPipeline {
				m.phase = PhasePipeline
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.platformModel, cmd = m.platformModel.Update(msg)
	return m, cmd
}

func (m Model) updateConfirm(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, Keys.Confirm):
			m.progressModel = NewProgressModel(m.selectedPipeline.Phases)
			m.phase = PhaseProgress
			cmd := m.startDispatch()
			return m, tea.Batch(cmd, m.progressModel.Spinner.Tick)
		case key.Matches(msg, Keys.Back):
			if !m.cfg.SkipPlatforms {
				m.phase = PhasePlatforms
			} else if !m.cfg.SkipPipeline {
				m.phase = PhasePipeline
			}
			return m, nil
		}
	}
	return m, nil
}

func (m Model) updateProgress(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && key.Matches(msg, Keys.Stop) && m.controller != nil {
		c := m.controller
		return m, func() tea.Msg { c.Stop(); return nil }
	}
	return m, nil
}

func (m Model) updateApproval(msg tea.Msg) (tea.Model, tea.Cmd) {
	km, ok := msg.(tea.KeyMsg)
	if !ok || m.controller == nil {
		return m, nil
	}
	c := m.controller
	switch {
	case key.Matches(km, Keys.Confirm):
		return m, func() tea.Msg {
			if err := c.Approve(); err != nil && !errors.Is(err, progression.ErrInvalidTransition) {
				return ErrorMsg{Err: err}
			}
			return nil
		}
	case key.Matches(km, Keys.Reject):
		return m, func() tea.Msg { c.Cancel(); return nil }
	case key.Matches(km, Keys.Stop):
		return m, func() tea.Msg { c.Stop(); return nil }
	}
	return m, nil
}

func (m Model) updateSummary(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && key.Matches(msg, Keys.QuitSummary) {
		m.quitting = true
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) newConfirm() ConfirmModel {
	return ConfirmModel{
		Pipeline:    m.selectedPipeline,
		Platforms:   m.selectedPlatforms,
		Dwell:       m.cfg.Dwell,
		AutoApprove: m.cfg.AutoApprove,
		CanGoBack:   !m.cfg.SkipPipeline || !m.cfg.SkipPlatforms,
	}
}

// startDispatch must be called from Update on a value that Update returns, so
// the cancel func lands on the live model.
func (m *Model) startDispatch() tea.Cmd {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	sel := Selection{Pipeline: m.selectedPipeline, Platforms: m.selectedPlatforms}
	dispatch := m.dispatch
	return func() tea.Msg {
		c, err := dispatch(ctx, sel)
		if err != nil {
			return ErrorMsg{Err: err}
		}
		return DispatchedMsg{Controller: c}
	}
}
