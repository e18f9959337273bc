package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// PlatformModel is a checkbox list of publish targets.
type PlatformModel struct {
	items    []string
	selected map[int]bool
	cursor   int
}

func NewPlatformModel(names, preselected []string) PlatformModel {
	sel := make(map[int]bool, len(names))
	for i, n := range names {
		for _, p := range preselected {
			if strings.EqualFold(n, p) {
				sel[i] = true
			}
		}
	}
	return PlatformModel{items: names, selected: sel}
}

// SelectedNames returns the checked platforms in list order.
func (m PlatformModel) SelectedNames() []string {
	var names []string
	for i, n := range m.items {
		if m.selected[i] {
			names = append(names, n)
		}
	}
	return names
}

func (m PlatformModel) Update(msg tea.Msg) (PlatformModel, tea.Cmd) {
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
		case key.Matches(msg, Keys.Toggle):
			m.selected[m.cursor] = !m.selected[m.cursor]
		case key.Matches(msg, Keys.All):
			for i := range m.items {
				m.selected[i] = true
			}
		case key.Matches(msg, Keys.None):
			for i := range m.items {
				m.selected[i] = false
			}
		}
	}
	return m, nil
}

func (m PlatformModel) View() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("  %s\n\n", StyleTitle.Render("Publish To")))

	for i, name := range m.items {
		cursor := "  "
		if i == m.cursor {
			cursor = StylePrimary.Render("> ")
			name = StyleBold.Render(name)
		}
		check := "[ ]"
		if m.selected[i] {
			check = StyleSuccess.Render("[✓]")
		}
		b.WriteString(fmt.Sprintf("  %s%s %s\n", cursor, check, name))
	}

	count := len(m.SelectedNames())
	b.WriteString(fmt.Sprintf("\n  %s selected", StyleMuted.Render(fmt.Sprintf("%d/%d", count, len(m.items)))))
	b.WriteString(fmt.Sprintf("  %s\n", StyleMuted.Render("space:toggle  a:all  n:none  enter:confirm  esc:back")))
	return b.String()
}
