package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/codebeauty/agentcy/internal/progression"
)

// PipelineOption is one pipeline the user can pick.
type PipelineOption struct {
	ID      string
	Title   string
	Next    string
	Builtin bool
	Phases  []progression.Phase
}

func (p PipelineOption) agentCount() int {
	n := 0
	for _, ph := range p.Phases {
		n += len(ph.Agents)
	}
	return n
}

type PipelineModel struct {
	items  []PipelineOption
	cursor int
}

// NewPipelineModel places the cursor on preselect when it is one of the items.
func NewPipelineModel(items []PipelineOption, preselect string) PipelineModel {
	m := PipelineModel{items: items}
	for i, it := range items {
		if it.ID == preselect {
			m.cursor = i
		}
	}
	return m
}

func (m PipelineModel) Selected() (PipelineOption, bool) {
	if len(m.items) == 0 {
		return PipelineOption{}, false
	}
	return m.items[m.cursor], true
}

func (m PipelineModel) Update(msg tea.Msg) (PipelineModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, Keys.Up):
			if m.cursor > 0 {
				m.cursor--
			}
		case key.Matches(msg, Keys.Down):
			if m.cursor < len(m.items)-1 {
				m.cursor++
			}
		}
	}
	return m, nil
}

func (m PipelineModel) View() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("  %s\n\n", StyleTitle.Render("Select Pipeline")))

	if len(m.items) == 0 {
		b.WriteString(fmt.Sprintf("  %s\n", StyleMuted.Render("no pipelines found")))
	}
	for i, it := range m.items {
		cursor := "  "
		radio := "( )"
		name := it.ID
		if i == m.cursor {
			cursor = StylePrimary.Render("> ")
			radio = StyleSuccess.Render("(•)")
			name = StyleBold.Render(it.ID)
		}
		detail := fmt.Sprintf("%d phases, %d agents", len(it.Phases), it.agentCount())
		line := fmt.Sprintf("  %s%s %s  %s", cursor, radio, name, StyleMuted.Render(detail))
		if it.Builtin {
			line += " " + Badge("built-in")
		}
		b.WriteString(line + "\n")
		if i == m.cursor && it.Title != "" {
			b.WriteString(fmt.Sprintf("        %s\n", StyleMuted.Render(it.Title)))
		}
	}

	b.WriteString(fmt.Sprintf("\n  %s\n", StyleMuted.Render("↑/↓:move  enter:select  ctrl+c:quit")))
	return b.String()
}
