package tui

import (
	"fmt"
	"strings"
	"time"
)

type ConfirmModel struct {
	Pipeline    PipelineOption
	Platforms   []string
	Dwell       time.Duration
	AutoApprove bool
	CanGoBack   bool
}

func (m ConfirmModel) View() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("  %s\n\n", StyleTitle.Render("Confirm Run")))

	title := m.Pipeline.ID
	if m.Pipeline.Title != "" {
		title += "  " + StyleMuted.Render(m.Pipeline.Title)
	}
	b.WriteString(fmt.Sprintf("  %s  %s\n", StyleBold.Render("Pipeline:"), title))

	for i, ph := range m.Pipeline.Phases {
		var names []string
		for _, a := range ph.Agents {
			names = append(names, agentName(a.Name, a.ID))
		}
		b.WriteString(fmt.Sprintf("    %d. %s  %s\n", i+1, ph.Label, StyleMuted.Render(strings.Join(names, ", "))))
	}

	b.WriteString(fmt.Sprintf("  %s     %s per task\n", StyleBold.Render("Dwell:"), m.Dwell))
	gates := "manual approval"
	if m.AutoApprove {
		gates = "auto-approve"
	}
	b.WriteString(fmt.Sprintf("  %s     %s\n", StyleBold.Render("Gates:"), gates))

	publishTo := StyleMuted.Render("none")
	if len(m.Platforms) > 0 {
		publishTo = strings.Join(m.Platforms, ", ")
	}
	b.WriteString(fmt.Sprintf("  %s   %s\n", StyleBold.Render("Publish:"), publishTo))

	hints := "enter:start"
	if m.CanGoBack {
		hints += "  esc:back"
	}
	hints += "  ctrl+c:quit"
	b.WriteString(fmt.Sprintf("\n  %s\n", StyleMuted.Render(hints)))

	return b.String()
}

func agentName(name, id string) string {
	if name != "" {
		return name
	}
	return id
}
