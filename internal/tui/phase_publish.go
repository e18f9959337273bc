package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"

	"github.com/codebeauty/agentcy/internal/publish"
)

type PublishModel struct {
	Update publish.Update
	bar    progress.Model
}

func NewPublishModel() PublishModel {
	return PublishModel{
		Update: publish.Update{Stage: publish.StageAuthenticating},
		bar:    progress.New(progress.WithDefaultGradient(), progress.WithWidth(barWidth/2)),
	}
}

func (m PublishModel) View() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("  %s  %s\n\n", StyleTitle.Render("Publishing"), StyleMuted.Render(string(m.Update.Stage))))

	nameWidth := 0
	for _, s := range m.Update.Platforms {
		nameWidth = max(nameWidth, lipgloss.Width(s.Name))
	}
	for _, s := range m.Update.Platforms {
		name := s.Name + strings.Repeat(" ", nameWidth-lipgloss.Width(s.Name))
		status := fmt.Sprintf("%-10s", s.Status)
		b.WriteString(fmt.Sprintf("  %s %s  %s %s\n", PlatformIcon(s.Status), name, StyleMuted.Render(status),
			m.bar.ViewAs(float64(s.Progress)/100)))
	}

	b.WriteString(fmt.Sprintf("\n  %s %d%%\n", StyleBold.Render("Overall"), m.Update.Overall))
	b.WriteString(fmt.Sprintf("\n  %s\n", StyleMuted.Render("ctrl+c:cancel")))
	return b.String()
}
