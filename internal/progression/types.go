package progression

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition is returned when an operation is not valid in the
	// engine's current status.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrEmptyConfiguration is returned by Start when the phase definitions
	// cannot drive a run.
	ErrEmptyConfiguration = errors.New("empty configuration")
)

// Agent is a named unit of simulated work inside a phase.
type Agent struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Tasks       []string `json:"tasks" yaml:"tasks"`
}

// Phase is an approval-gated stage made of agents that run in order.
type Phase struct {
	Label  string  `json:"label" yaml:"label"`
	Agents []Agent `json:"agents" yaml:"agents"`
}

// Status is the engine's position in the run lifecycle.
type Status string

const (
	StatusIdle             Status = "idle"
	StatusRunning          Status = "running"
	StatusAwaitingApproval Status = "awaiting-approval"
	StatusComplete         Status = "complete"
	StatusStopped          Status = "stopped"
)

// State is a point-in-time copy of the run state.
type State struct {
	Status           Status   `json:"status"`
	PhaseIndex       int      `json:"phaseIndex"`
	AgentIndex       int      `json:"agentIndex"`
	TaskIndex        int      `json:"taskIndex"`
	Completed        []string `json:"completed"`
	Progress         float64  `json:"progress"`
	Stopped          bool     `json:"stopped"`
	AwaitingApproval bool     `json:"awaitingApproval"`
	Complete         bool     `json:"complete"`
	Cancelled        bool     `json:"cancelled,omitempty"`
}

// IsCompleted reports whether the agent finished in the current phase.
func (s State) IsCompleted(agentID string) bool {
	for _, id := range s.Completed {
		if id == agentID {
			return true
		}
	}
	return false
}

// EventKind names the transition produced by a tick.
type EventKind string

const (
	EventNone           EventKind = ""
	EventTaskAdvanced   EventKind = "task-advanced"
	EventAgentCompleted EventKind = "agent-completed"
)

// Event describes what a single Tick did. AwaitingApproval is set on the tick
// that completed the last agent of the phase.
type Event struct {
	Kind             EventKind
	PhaseIndex       int
	AgentIndex       int
	TaskIndex        int
	AgentID          string
	AwaitingApproval bool
}

// Validate rejects definitions that would leave the progress formula
// undefined or the completed set ambiguous.
func Validate(phases []Phase) error {
	if len(phases) == 0 {
		return fmt.Errorf("%w: no phases defined", ErrEmptyConfiguration)
	}
	for i, p := range phases {
		if len(p.Agents) == 0 {
			return fmt.Errorf("%w: phase %d (%q) has no agents", ErrEmptyConfiguration, i+1, p.Label)
		}
		seen := make(map[string]bool, len(p.Agents))
		for _, a := range p.Agents {
			if a.ID == "" {
				return fmt.Errorf("%w: phase %q has an agent without an id", ErrEmptyConfiguration, p.Label)
			}
			if seen[a.ID] {
				return fmt.Errorf("%w: phase %q lists agent %q twice", ErrEmptyConfiguration, p.Label, a.ID)
			}
			seen[a.ID] = true
			if len(a.Tasks) == 0 {
				return fmt.Errorf("%w: agent %q in phase %q has no tasks", ErrEmptyConfiguration, a.ID, p.Label)
			}
		}
	}
	return nil
}

func clonePhases(phases []Phase) []Phase {
	out := make([]Phase, len(phases))
	for i, p := range phases {
		agents := make([]Agent, len(p.Agents))
		for j, a := range p.Agents {
			a.Tasks = append([]string(nil), a.Tasks...)
			agents[j] = a
		}
		out[i] = Phase{Label: p.Label, Agents: agents}
	}
	return out
}
