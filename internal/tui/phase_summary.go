package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/codebeauty/agentcy/internal/publish"
	"github.com/codebeauty/agentcy/internal/runner"
)

type SummaryModel struct {
	Result  runner.Result
	Publish *publish.Result
	RunDir  string
}

func NewSummaryModel(res runner.Result, pub *publish.Result, runDir string) SummaryModel {
	return SummaryModel{Result: res, Publish: pub, RunDir: runDir}
}

func (m SummaryModel) View() string {
	var b strings.Builder

	title := "Run"
	if o := string(m.Result.Outcome); o != "" {
		title += " " + strings.ToUpper(o[:1]) + o[1:]
	}
	b.WriteString(fmt.Sprintf("  %s %s  %s\n\n", OutcomeIcon(m.Result.Outcome), StyleTitle.Render(title),
		StyleMuted.Render(m.Result.Duration.Round(time.Millisecond).String())))

	var rows [][]string
	for _, ph := range m.Result.Phases {
		done := 0
		for _, a := range ph.Agents {
			if a.Completed {
				done++
			}
		}
		status := StyleMuted.Render("pending")
		switch {
		case ph.Approved:
			status = StyleSuccess.Render("approved")
		case done > 0:
			status = StyleWarning.Render("partial")
		}
		rows = append(rows, []string{
			AgentIcon(ph.Approved),
			ph.Label,
			fmt.Sprintf("%d/%d", done, len(ph.Agents)),
			status,
		})
	}
	if len(rows) == 0 {
		b.WriteString(fmt.Sprintf("  %s\n", StyleMuted.Render("no phases")))
	} else {
		b.WriteString(Table{Headers: []string{"", "PHASE", "AGENTS", "STATUS"}, Rows: rows}.Render())
	}

	if m.Publish != nil && len(m.Publish.Platforms) > 0 {
		b.WriteString("\n" + Separator("Publish") + "\n\n")
		var prow [][]string
		for _, s := range m.Publish.Platforms {
			prow = append(prow, []string{
				PlatformIcon(s.Status),
				s.Name,
				string(s.Status),
				StyleMuted.Render(fmt.Sprintf("%d%%", s.Progress)),
			})
		}
		b.WriteString(Table{Headers: []string{"", "PLATFORM", "STATUS", "PROGRESS"}, Rows: prow}.Render())
	}

	if m.RunDir != "" {
		b.WriteString(fmt.Sprintf("\n  %s %s\n", StyleBold.Render("Output:"), m.RunDir))
	}
	b.WriteString(fmt.Sprintf("  %s\n", StyleMuted.Render("q:quit")))

	return b.String()
}
