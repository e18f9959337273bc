package output

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/codebeauty/agentcy/internal/config"
	"github.com/codebeauty/agentcy/internal/runner"
)

const SummaryFile = "summary.md"

// BuildSummary renders a markdown report of a run from its manifest.
func BuildSummary(m *Manifest) string {
	var b strings.Builder

	b.WriteString("# Run Summary\n\n")
	title := m.Pipeline
	if m.Title != "" {
		title = fmt.Sprintf("%s (%s)", m.Title, m.Pipeline)
	}
	fmt.Fprintf(&b, "**Pipeline:** %s\n", title)
	fmt.Fprintf(&b, "**Outcome:** %s %s\n", outcomeIcon(m.Outcome), m.Outcome)
	fmt.Fprintf(&b, "**Duration:** %s\n", m.Duration)
	fmt.Fprintf(&b, "**Approved:** %d/%d phases\n", m.PhasesApproved, len(m.Phases))
	if m.Outcome == string(runner.OutcomeComplete) && m.Next != "" {
		fmt.Fprintf(&b, "**Next:** %s\n", m.Next)
	}

	b.WriteString("\n## Phases\n")
	for i, p := range m.Phases {
		done := 0
		for _, a := range p.Agents {
			if a.Completed {
				done++
			}
		}
		icon := "○"
		if p.Approved {
			icon = "✓"
		}
		fmt.Fprintf(&b, "\n### %s %d. %s\n", icon, i+1, p.Label)
		fmt.Fprintf(&b, "- Agents: %d/%d completed\n", done, len(p.Agents))
		for _, a := range p.Agents {
			mark := " "
			if a.Completed {
				mark = "x"
			}
			name := a.Name
			if name == "" {
				name = a.ID
			}
			fmt.Fprintf(&b, "  - [%s] %s (%d tasks)\n", mark, name, a.Tasks)
		}
	}

	if m.Publish != nil && len(m.Publish.Platforms) > 0 {
		b.WriteString("\n## Publishing\n")
		b.WriteString("| Platform | Status | Progress |\n")
		b.WriteString("|----------|--------|----------|\n")
		for _, p := range m.Publish.Platforms {
			fmt.Fprintf(&b, "| %s | %s | %d%% |\n", p.Name, p.Status, p.Progress)
		}
	}

	return b.String()
}

// WriteSummary writes summary.md atomically to the given directory.
func WriteSummary(dir, content string) error {
	return config.AtomicWrite(filepath.Join(dir, SummaryFile), []byte(content), 0o600)
}

func outcomeIcon(outcome string) string {
	switch runner.Outcome(outcome) {
	case runner.OutcomeComplete:
		return "✓"
	case runner.OutcomeStopped:
		return "■"
	default:
		return "✗"
	}
}
