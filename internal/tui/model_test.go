package tui

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codebeauty/agentcy/internal/progression"
	"github.com/codebeauty/agentcy/internal/publish"
	"github.com/codebeauty/agentcy/internal/runner"
)

type fakeController struct {
	approveErr error
	approves   int
	stops      int
	cancels    int
}

func (f *fakeController) Approve() error { f.approves++; return f.approveErr }
func (f *fakeController) Stop()          { f.stops++ }
func (f *fakeController) Cancel()        { f.cancels++ }

func testPhases() []progression.Phase {
	return []progression.Phase{
		{Label: "Strategy", Agents: []progression.Agent{
			{ID: "research", Name: "Research Agent", Tasks: []string{"Scanning trends", "Sizing market"}},
		}},
		{Label: "Execution", Agents: []progression.Agent{
			{ID: "legal", Name: "Legal Agent", Tasks: []string{"Reviewing claims"}},
		}},
	}
}

func testConfig() RunConfig {
	return RunConfig{
		Pipelines: []PipelineOption{
			{ID: "campaign", Title: "Campaign", Builtin: true, Phases: testPhases()},
			{ID: "processing", Title: "Processing", Builtin: true, Phases: testPhases()[:1]},
		},
		PrePipeline:  "campaign",
		Platforms:    []string{"YouTube", "Instagram", "TikTok"},
		PrePlatforms: []string{"Instagram", "YouTube"},
		Dwell:        800 * time.Millisecond,
	}
}

func noopDispatch(_ context.Context, _ Selection) (Controller, error) {
	return &fakeController{}, nil
}

func press(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	result, cmd := m.Update(msg)
	return result.(Model), cmd
}

func enter() tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyEnter} }
func esc() tea.KeyMsg   { return tea.KeyMsg{Type: tea.KeyEscape} }
func runes(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func event(kind runner.EventKind, phase string, st progression.State) RunEventMsg {
	return RunEventMsg{Event: runner.Event{Kind: kind, Phase: phase, State: st}}
}

func TestNewModel_StartPhase(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RunConfig)
		want   Phase
	}{
		{"nothing given", func(*RunConfig) {}, PhasePipeline},
		{"pipeline given", func(c *RunConfig) { c.SkipPipeline = true }, PhasePlatforms},
		{"pipeline and platforms given", func(c *RunConfig) {
			c.SkipPipeline = true
			c.SkipPlatforms = true
		}, PhaseConfirm},
		{"nothing to ask", func(c *RunConfig) {
			c.SkipPipeline = true
			c.SkipPlatforms = true
			c.SkipConfirm = true
		}, PhaseProgress},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			m := NewModel(cfg, noopDispatch)
			assert.Equal(t, tt.want, m.phase)
			assert.Equal(t, "campaign", m.selectedPipeline.ID)
		})
	}
}

func TestInit_DispatchesOnlyWhenStartingInProgress(t *testing.T) {
	m := NewModel(testConfig(), noopDispatch)
	assert.Nil(t, m.Init())

	cfg := testConfig()
	cfg.SkipPipeline, cfg.SkipPlatforms, cfg.SkipConfirm = true, true, true
	m = NewModel(cfg, noopDispatch)
	assert.NotNil(t, m.Init())
}

func TestPipelineToConfirmFlow(t *testing.T) {
	m := NewModel(testConfig(), noopDispatch)
	require.Equal(t, PhasePipeline, m.phase)

	m, _ = press(t, m, runes('j'))
	m, _ = press(t, m, enter())
	assert.Equal(t, PhasePlatforms, m.phase)
	assert.Equal(t, "processing", m.selectedPipeline.ID)

	// uncheck YouTube (first row)
	m, _ = press(t, m, runes(' '))
	m, _ = press(t, m, enter())
	assert.Equal(t, PhaseConfirm, m.phase)
	assert.Equal(t, []string{"Instagram"}, m.selectedPlatforms)
	assert.Equal(t, "processing", m.confirmModel.Pipeline.ID)
	assert.True(t, m.confirmModel.CanGoBack)
}

func TestPlatformsNoneSkipsPublishing(t *testing.T) {
	cfg := testConfig()
	cfg.SkipPipeline = true
	m := NewModel(cfg, noopDispatch)

	m, _ = press(t, m, runes('n'))
	m, _ = press(t, m, enter())
	assert.Equal(t, PhaseConfirm, m.phase)
	assert.Empty(t, m.selectedPlatforms)
	assert.Contains(t, m.View(), "none")
}

func TestBackNavigation(t *testing.T) {
	m := NewModel(testConfig(), noopDispatch)
	m, _ = press(t, m, enter())
	m, _ = press(t, m, enter())
	require.Equal(t, PhaseConfirm, m.phase)

	m, _ = press(t, m, esc())
	assert.Equal(t, PhasePlatforms, m.phase)
	m, _ = press(t, m, esc())
	assert.Equal(t, PhasePipeline, m.phase)
}

func TestBackNavigation_ConfirmStuck_WhenBothSkipped(t *testing.T) {
	cfg := testConfig()
	cfg.SkipPipeline, cfg.SkipPlatforms = true, true
	m := NewModel(cfg, noopDispatch)
	assert.False(t, m.confirmModel.CanGoBack)

	m, _ = press(t, m, esc())
	assert.Equal(t, PhaseConfirm, m.phase)
}

func TestQuitOnlyCtrlC_InPipelinePhase(t *testing.T) {
	m := NewModel(testConfig(), noopDispatch)
	m, cmd := press(t, m, runes('q'))
	assert.False(t, m.quitting)
	assert.Nil(t, cmd)
}

func TestConfirmToProgress_SetsCancel(t *testing.T) {
	cfg := testConfig()
	cfg.SkipPipeline, cfg.SkipPlatforms = true, true
	m := NewModel(cfg, noopDispatch)

	m, cmd := press(t, m, enter())
	assert.Equal(t, PhaseProgress, m.phase)
	assert.NotNil(t, m.cancel, "cancel should be set in Update, not in Cmd")
	assert.NotNil(t, cmd)
	m.cancel()
}

func TestDispatch_PassesSelectionAndStoresController(t *testing.T) {
	var got Selection
	ctrl := &fakeController{}
	dispatch := func(_ context.Context, sel Selection) (Controller, error) {
		got = sel
		return ctrl, nil
	}
	cfg := testConfig()
	cfg.SkipPipeline, cfg.SkipPlatforms, cfg.SkipConfirm = true, true, true
	m := NewModel(cfg, dispatch)

	m, cmd := press(t, m, doDispatchMsg{})
	require.NotNil(t, cmd)
	msg := cmd()
	assert.Equal(t, DispatchedMsg{Controller: ctrl}, msg)
	assert.Equal(t, "campaign", got.Pipeline.ID)
	assert.Equal(t, []string{"Instagram", "YouTube"}, got.Platforms)

	m, _ = press(t, m, msg)
	assert.Same(t, ctrl, m.controller)
}

func TestDispatch_ErrorEndsProgram(t *testing.T) {
	dispatch := func(context.Context, Selection) (Controller, error) {
		return nil, errors.New("no run dir")
	}
	cfg := testConfig()
	cfg.SkipPipeline, cfg.SkipPlatforms, cfg.SkipConfirm = true, true, true
	m := NewModel(cfg, dispatch)

	m, cmd := press(t, m, doDispatchMsg{})
	msg := cmd()
	m, cmd = press(t, m, msg)
	assert.True(t, m.quitting)
	assert.NotNil(t, cmd)
	assert.Contains(t, m.View(), "no run dir")
}

// running returns a model in the progress phase holding ctrl.
func running(t *testing.T, mutate func(*RunConfig)) (Model, *fakeController) {
	t.Helper()
	cfg := testConfig()
	cfg.SkipPipeline, cfg.SkipPlatforms, cfg.SkipConfirm = true, true, true
	if mutate != nil {
		mutate(&cfg)
	}
	ctrl := &fakeController{}
	m := NewModel(cfg, func(context.Context, Selection) (Controller, error) { return ctrl, nil })
	m, _ = press(t, m, DispatchedMsg{Controller: ctrl})
	return m, ctrl
}

func gateState() progression.State {
	return progression.State{
		Status:           progression.StatusAwaitingApproval,
		Completed:        []string{"research"},
		Progress:         100,
		AwaitingApproval: true,
	}
}

func TestRunEvents_GateOpensApproval(t *testing.T) {
	m, ctrl := running(t, nil)

	m, _ = press(t, m, event(runner.EventStarted, "Strategy", progression.State{Status: progression.StatusRunning}))
	assert.Equal(t, PhaseProgress, m.phase)
	assert.Contains(t, m.View(), "Scanning trends (1/2)")

	m, _ = press(t, m, event(runner.EventAwaitingApproval, "Strategy", gateState()))
	assert.Equal(t, PhaseApproval, m.phase)
	view := m.View()
	assert.Contains(t, view, "Approval Required")
	assert.Contains(t, view, "Next: Execution")

	m, cmd := press(t, m, enter())
	require.NotNil(t, cmd)
	assert.Nil(t, cmd())
	assert.Equal(t, 1, ctrl.approves)

	next := progression.State{Status: progression.StatusRunning, PhaseIndex: 1}
	m, _ = press(t, m, event(runner.EventApproved, "Strategy", next))
	assert.Equal(t, PhaseProgress, m.phase)
	assert.Equal(t, []string{"Strategy"}, m.progressModel.Run.Approved)
}

func TestApproval_RejectKeysCancel(t *testing.T) {
	for _, k := range []tea.KeyMsg{esc(), runes('c')} {
		m, ctrl := running(t, nil)
		m, _ = press(t, m, event(runner.EventAwaitingApproval, "Strategy", gateState()))

		_, cmd := press(t, m, k)
		require.NotNil(t, cmd)
		cmd()
		assert.Equal(t, 1, ctrl.cancels)
		assert.Zero(t, ctrl.approves)
	}
}

func TestApproval_KeyActions(t *testing.T) {
	tests := []struct {
		name                     string
		key                      tea.KeyMsg
		approves, cancels, stops int
	}{
		{"enter approves", enter(), 1, 0, 0},
		{"esc cancels", esc(), 0, 1, 0},
		{"c cancels", runes('c'), 0, 1, 0},
		{"s stops", runes('s'), 0, 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ctrl := running(t, nil)
			m, _ = press(t, m, event(runner.EventAwaitingApproval, "Strategy", gateState()))
			require.Equal(t, PhaseApproval, m.phase)

			_, cmd := press(t, m, tt.key)
			require.NotNil(t, cmd)
			assert.Nil(t, cmd())
			assert.Equal(t, tt.approves, ctrl.approves)
			assert.Equal(t, tt.cancels, ctrl.cancels)
			assert.Equal(t, tt.stops, ctrl.stops)
		})
	}
}

func TestApproval_IgnoresOtherMessages(t *testing.T) {
	m, ctrl := running(t, nil)
	m, _ = press(t, m, event(runner.EventAwaitingApproval, "Strategy", gateState()))

	_, cmd := press(t, m, runes('x'))
	assert.Nil(t, cmd)
	assert.Zero(t, ctrl.approves+ctrl.cancels+ctrl.stops)
}

func TestApproval_IgnoresLateInvalidTransition(t *testing.T) {
	m, ctrl := running(t, nil)
	ctrl.approveErr = progression.ErrInvalidTransition
	m, _ = press(t, m, event(runner.EventAwaitingApproval, "Strategy", gateState()))

	_, cmd := press(t, m, enter())
	assert.Nil(t, cmd())

	ctrl.approveErr = errors.New("boom")
	_, cmd = press(t, m, enter())
	assert.Equal(t, ErrorMsg{Err: ctrl.approveErr}, cmd())
}

func TestAutoApprove_StaysInProgress(t *testing.T) {
	m, _ := running(t, func(c *RunConfig) { c.AutoApprove = true })
	m, _ = press(t, m, event(runner.EventAwaitingApproval, "Strategy", gateState()))
	assert.Equal(t, PhaseProgress, m.phase)
}

func TestStopKey(t *testing.T) {
	m, ctrl := running(t, nil)
	_, cmd := press(t, m, runes('s'))
	require.NotNil(t, cmd)
	cmd()
	assert.Equal(t, 1, ctrl.stops)
}

func TestCtrlC_CancelsRun(t *testing.T) {
	m, ctrl := running(t, nil)
	m, _ = press(t, m, doDispatchMsg{})
	require.NotNil(t, m.cancel)

	m, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})
	assert.True(t, m.quitting)
	assert.NotNil(t, cmd)
	assert.Equal(t, 1, ctrl.cancels)
}

func TestCompleteThenPublishThenSummary(t *testing.T) {
	m, _ := running(t, nil)
	done := progression.State{Status: progression.StatusComplete, PhaseIndex: 1, Complete: true, Progress: 100}
	m, _ = press(t, m, event(runner.EventComplete, "Execution", done))
	assert.Equal(t, PhasePublishing, m.phase)

	update := publish.Update{
		Stage: publish.StageUploading,
		Platforms: []publish.PlatformState{
			{Platform: publish.Platform{ID: "youtube", Name: "YouTube"}, Status: publish.StatusUploading, Progress: 30},
		},
		Overall: 58,
	}
	m, _ = press(t, m, PublishUpdateMsg{Update: update})
	assert.Contains(t, m.View(), "YouTube")
	assert.Contains(t, m.View(), "58%")

	res := runner.Result{
		Outcome: runner.OutcomeComplete,
		Phases: []runner.PhaseResult{
			{Label: "Strategy", Approved: true, Agents: []runner.AgentResult{{ID: "research", Completed: true}}},
		},
	}
	pub := &publish.Result{Stage: publish.StageCompleted, Platforms: update.Platforms, Overall: 100}
	m, _ = press(t, m, RunFinishedMsg{Result: res, Publish: pub, RunDir: "/tmp/run"})
	assert.Equal(t, PhaseSummary, m.phase)

	// late updates don't leave the summary
	m, _ = press(t, m, PublishUpdateMsg{Update: update})
	assert.Equal(t, PhaseSummary, m.phase)

	m, cmd := press(t, m, runes('q'))
	assert.True(t, m.quitting)
	assert.NotNil(t, cmd)
}

func TestCompleteWithoutPlatformsWaitsForSummary(t *testing.T) {
	m, _ := running(t, func(c *RunConfig) { c.PrePlatforms = nil })
	done := progression.State{Status: progression.StatusComplete, PhaseIndex: 1, Complete: true}
	m, _ = press(t, m, event(runner.EventComplete, "Execution", done))
	assert.Equal(t, PhaseProgress, m.phase)
}

func TestRunView_Apply(t *testing.T) {
	v := RunView{Phases: testPhases()}

	v = v.Apply(runner.Event{Kind: runner.EventStarted, State: progression.State{Status: progression.StatusRunning}})
	assert.Equal(t, []string{"Research Agent: Scanning trends"}, v.Activity)

	v = v.Apply(runner.Event{Kind: runner.EventTask, State: progression.State{Status: progression.StatusRunning, TaskIndex: 1}})
	v = v.Apply(runner.Event{Kind: runner.EventAgentCompleted, AgentID: "research", State: gateState()})
	assert.Equal(t, []string{
		"Research Agent: Scanning trends",
		"Research Agent: Sizing market",
		"done: Research Agent",
	}, v.Activity)
	assert.Equal(t, runner.EventAgentCompleted, v.Last)

	v = v.Apply(runner.Event{Kind: runner.EventApproved, Phase: "Strategy", RunProgress: 50,
		State: progression.State{Status: progression.StatusRunning, PhaseIndex: 1}})
	assert.Equal(t, []string{"Strategy"}, v.Approved)
	assert.Empty(t, v.Activity)
	assert.Equal(t, 50.0, v.RunProgress)

	ph, ok := v.CurrentPhase()
	require.True(t, ok)
	assert.Equal(t, "Execution", ph.Label)
	_, ok = v.NextPhase()
	assert.False(t, ok)

	v = v.Apply(runner.Event{Kind: runner.EventCancelled, State: progression.State{Status: progression.StatusStopped, Stopped: true, Cancelled: true}})
	_, ok = v.CurrentPhase()
	assert.False(t, ok)
}

func TestRunView_ActivityIsBounded(t *testing.T) {
	v := RunView{Phases: testPhases()}
	st := progression.State{Status: progression.StatusRunning}
	for i := 0; i < activityKeep+4; i++ {
		v = v.Apply(runner.Event{Kind: runner.EventTask, State: st})
	}
	assert.Len(t, v.Activity, activityKeep)
}

func TestRunView_ApplyDoesNotShareSlices(t *testing.T) {
	base := RunView{Phases: testPhases(), Approved: []string{"a"}}
	a := base.Apply(runner.Event{Kind: runner.EventApproved, Phase: "b"})
	assert.Equal(t, []string{"a"}, base.Approved)
	assert.Equal(t, []string{"a", "b"}, a.Approved)
}

func TestApprovalView_LastPhase(t *testing.T) {
	st := gateState()
	st.PhaseIndex = 1
	st.Completed = []string{"legal"}
	view := ApprovalModel{Run: RunView{Phases: testPhases(), State: st}}.View()
	assert.Contains(t, view, "Phase 2/2 complete: Execution")
	assert.Contains(t, view, "Approving finishes the run.")
}

func TestSummaryModel_View(t *testing.T) {
	res := runner.Result{
		Outcome:  runner.OutcomeStopped,
		Duration: 2 * time.Second,
		Phases: []runner.PhaseResult{
			{Label: "Strategy", Approved: true, Agents: []runner.AgentResult{{ID: "a", Completed: true}}},
			{Label: "Execution", Agents: []runner.AgentResult{{ID: "b", Completed: true}, {ID: "c"}}},
			{Label: "Content", Agents: []runner.AgentResult{{ID: "d"}}},
		},
	}
	view := NewSummaryModel(res, nil, "/tmp/run").View()
	assert.Contains(t, view, "Run Stopped")
	assert.Contains(t, view, "approved")
	assert.Contains(t, view, "partial")
	assert.Contains(t, view, "1/2")
	assert.Contains(t, view, "pending")
	assert.Contains(t, view, "/tmp/run")
	assert.NotContains(t, view, "PLATFORM")
}

func TestSummaryModel_EmptyResult(t *testing.T) {
	view := NewSummaryModel(runner.Result{}, nil, "").View()
	assert.Contains(t, view, "no phases")
	assert.NotContains(t, view, "Output:")
}

func TestPipelineModel_Preselect(t *testing.T) {
	m := NewPipelineModel(testConfig().Pipelines, "processing")
	sel, ok := m.Selected()
	require.True(t, ok)
	assert.Equal(t, "processing", sel.ID)

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	sel, _ = m.Selected()
	assert.Equal(t, "processing", sel.ID, "cursor stays on the last row")

	_, ok = NewPipelineModel(nil, "").Selected()
	assert.False(t, ok)
	assert.Contains(t, NewPipelineModel(nil, "").View(), "no pipelines found")
}

func TestPlatformModel_AllNone(t *testing.T) {
	m := NewPlatformModel([]string{"YouTube", "Instagram", "TikTok"}, []string{"tiktok"})
	assert.Equal(t, []string{"TikTok"}, m.SelectedNames())

	m, _ = m.Update(runes('a'))
	assert.Equal(t, []string{"YouTube", "Instagram", "TikTok"}, m.SelectedNames())
	m, _ = m.Update(runes('n'))
	assert.Empty(t, m.SelectedNames())
	assert.Contains(t, m.View(), "0/3")
}
