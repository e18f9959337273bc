package tui

import (
	"fmt"
	"strings"
)

// ApprovalModel renders the gate between two phases.
type ApprovalModel struct {
	Run RunView
}

func (m ApprovalModel) View() string {
	ph, ok := m.Run.CurrentPhase()
	if !ok {
		return ""
	}

	var body strings.Builder
	body.WriteString(fmt.Sprintf("%s %s\n\n", IconWarning,
		StyleBold.Render(fmt.Sprintf("Phase %d/%d complete: %s", m.Run.State.PhaseIndex+1, len(m.Run.Phases), ph.Label))))
	for _, a := range ph.Agents {
		body.WriteString(fmt.Sprintf("%s %s  %s\n", AgentIcon(m.Run.State.IsCompleted(a.ID)),
			agentName(a.Name, a.ID), StyleMuted.Render(fmt.Sprintf("%d tasks", len(a.Tasks)))))
	}
	if next, ok := m.Run.NextPhase(); ok {
		body.WriteString(fmt.Sprintf("\nNext: %s", next.Label))
	} else {
		body.WriteString("\nApproving finishes the run.")
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("  %s\n\n", StyleTitle.Render("Approval Required")))
	for _, line := range strings.Split(StyleGate.Render(body.String()), "\n") {
		b.WriteString("  " + line + "\n")
	}
	b.WriteString(fmt.Sprintf("\n  %s\n", StyleMuted.Render("enter:approve  esc/c:cancel run  s:stop")))
	return b.String()
}
