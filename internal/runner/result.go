package runner

import (
	"time"

	"github.com/codebeauty/agentcy/internal/progression"
)

type Outcome string

const (
	OutcomeComplete  Outcome = "complete"
	OutcomeStopped   Outcome = "stopped"
	OutcomeCancelled Outcome = "cancelled"
)

type AgentResult struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Tasks     int    `json:"tasks"`
	Completed bool   `json:"completed"`
}

type PhaseResult struct {
	Label    string        `json:"label"`
	Approved bool          `json:"approved"`
	Agents   []AgentResult `json:"agents"`
}

// Result is what Run reports once the run reaches a terminal state.
type Result struct {
	RunID          string        `json:"runId"`
	Pipeline       string        `json:"pipeline"`
	Outcome        Outcome       `json:"outcome"`
	StartedAt      time.Time     `json:"startedAt"`
	Duration       time.Duration `json:"duration"`
	PhasesApproved int           `json:"phasesApproved"`
	Phases         []PhaseResult `json:"phases"`
}

// buildPhaseResults marks every approved phase as fully done and, for the
// phase the run stopped in, the agents it had already completed.
func buildPhaseResults(phases []progression.Phase, approved int, state progression.State) []PhaseResult {
	out := make([]PhaseResult, len(phases))
	for i, p := range phases {
		pr := PhaseResult{Label: p.Label, Approved: i < approved}
		for _, a := range p.Agents {
			done := pr.Approved
			if !done && i == state.PhaseIndex && !state.Cancelled {
				done = state.IsCompleted(a.ID)
			}
			pr.Agents = append(pr.Agents, AgentResult{
				ID:        a.ID,
				Name:      a.Name,
				Tasks:     len(a.Tasks),
				Completed: done,
			})
		}
		out[i] = pr
	}
	return out
}
