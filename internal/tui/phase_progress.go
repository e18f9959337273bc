package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/lipgloss"

	"github.com/codebeauty/agentcy/internal/progression"
	"github.com/codebeauty/agentcy/internal/runner"
)

const (
	barWidth     = 40
	activityKeep = 6
)

// RunView is the run as the UI knows it, rebuilt only from runner events.
type RunView struct {
	Phases      []progression.Phase
	State       progression.State
	RunProgress float64
	Approved    []string
	Activity    []string
	Last        runner.EventKind
}

// Apply folds one runner event into the view.
func (v RunView) Apply(ev runner.Event) RunView {
	v.State = ev.State
	v.RunProgress = ev.RunProgress
	v.Last = ev.Kind

	switch ev.Kind {
	case runner.EventStarted, runner.EventTask:
		if line, ok := v.currentTask(); ok {
			v.Activity = appendActivity(v.Activity, line)
		}
	case runner.EventAgentCompleted:
		v.Activity = appendActivity(v.Activity, "done: "+v.agentName(ev.AgentID))
		if !ev.State.AwaitingApproval {
			if line, ok := v.currentTask(); ok {
				v.Activity = appendActivity(v.Activity, line)
			}
		}
	case runner.EventApproved:
		v.Approved = append(append([]string(nil), v.Approved...), ev.Phase)
		v.Activity = nil
	case runner.EventCancelled:
		v.Activity = nil
	}
	return v
}

// CurrentPhase is false once the run was cancelled or has no phases.
func (v RunView) CurrentPhase() (progression.Phase, bool) {
	if v.State.Cancelled || v.State.PhaseIndex >= len(v.Phases) {
		return progression.Phase{}, false
	}
	return v.Phases[v.State.PhaseIndex], true
}

// NextPhase is the phase that follows the current gate, if any.
func (v RunView) NextPhase() (progression.Phase, bool) {
	i := v.State.PhaseIndex + 1
	if v.State.Cancelled || i >= len(v.Phases) {
		return progression.Phase{}, false
	}
	return v.Phases[i], true
}

func (v RunView) currentTask() (string, bool) {
	ph, ok := v.CurrentPhase()
	if !ok || v.State.AgentIndex >= len(ph.Agents) {
		return "", false
	}
	a := ph.Agents[v.State.AgentIndex]
	if v.State.TaskIndex >= len(a.Tasks) {
		return "", false
	}
	return fmt.Sprintf("%s: %s", agentName(a.Name, a.ID), a.Tasks[v.State.TaskIndex]), true
}

func (v RunView) agentName(id string) string {
	if ph, ok := v.CurrentPhase(); ok {
		for _, a := range ph.Agents {
			if a.ID == id {
				return agentName(a.Name, a.ID)
			}
		}
	}
	return id
}

func appendActivity(lines []string, line string) []string {
	out := append(append([]string(nil), lines...), line)
	if len(out) > activityKeep {
		out = out[len(out)-activityKeep:]
	}
	return out
}

type ProgressModel struct {
	Run     RunView
	Spinner spinner.Model
	Start   time.Time
	phase   progress.Model
	overall progress.Model
}

func NewProgressModel(phases []progression.Phase) ProgressModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = StylePrimary

	return ProgressModel{
		Run:     RunView{Phases: phases},
		Spinner: s,
		Start:   time.Now(),
		phase:   progress.New(progress.WithDefaultGradient(), progress.WithWidth(barWidth)),
		overall: progress.New(progress.WithSolidFill(string(ColorSuccess.Dark)), progress.WithWidth(barWidth)),
	}
}

func (m ProgressModel) View() string {
	var b strings.Builder

	title := StyleTitle.Render("Running")
	elapsed := time.Since(m.Start).Round(time.Second)
	b.WriteString(fmt.Sprintf("  %s  %s\n\n", title, StyleMuted.Render(elapsed.String())))

	st := m.Run.State
	ph, ok := m.Run.CurrentPhase()
	if !ok {
		b.WriteString(fmt.Sprintf("  %s\n", StyleMuted.Render("waiting for the run to start")))
		return b.String()
	}

	header := fmt.Sprintf("Phase %d/%d · %s", st.PhaseIndex+1, len(m.Run.Phases), ph.Label)
	b.WriteString(fmt.Sprintf("  %s\n", StyleBold.Render(header)))
	b.WriteString(fmt.Sprintf("  %s\n\n", m.phase.ViewAs(st.Progress/100)))

	nameWidth := 0
	for _, a := range ph.Agents {
		nameWidth = max(nameWidth, lipgloss.Width(agentName(a.Name, a.ID)))
	}
	for i, a := range ph.Agents {
		name := agentName(a.Name, a.ID)
		name += strings.Repeat(" ", nameWidth-lipgloss.Width(name))
		switch {
		case st.IsCompleted(a.ID):
			b.WriteString(fmt.Sprintf("  %s %s  %s\n", IconSuccess, name, StyleSuccess.Render("done")))
		case i == st.AgentIndex && st.Status == progression.StatusRunning:
			task := fmt.Sprintf("%s (%d/%d)", a.Tasks[st.TaskIndex], st.TaskIndex+1, len(a.Tasks))
			b.WriteString(fmt.Sprintf("  %s %s  %s\n", m.Spinner.View(), StyleBold.Render(name), task))
		default:
			b.WriteString(fmt.Sprintf("  %s %s  %s\n", IconPending, name, StyleMuted.Render("waiting")))
		}
	}

	b.WriteString(fmt.Sprintf("\n  %s\n  %s\n", StyleBold.Render("Overall"), m.overall.ViewAs(m.Run.RunProgress/100)))

	if len(m.Run.Activity) > 0 {
		b.WriteString("\n")
		for _, line := range m.Run.Activity {
			b.WriteString(fmt.Sprintf("  %s\n", StyleMuted.Render(line)))
		}
	}

	b.WriteString(fmt.Sprintf("\n  %s\n", StyleMuted.Render("s:stop  ctrl+c:cancel")))
	return b.String()
}
