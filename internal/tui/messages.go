package tui

import (
	"github.com/codebeauty/agentcy/internal/publish"
	"github.com/codebeauty/agentcy/internal/runner"
)

// Phase represents the current TUI phase.
type Phase int

const (
	PhasePipeline   Phase = iota // pipeline picker
	PhasePlatforms               // publish target multi-select
	PhaseConfirm                 // review & start
	PhaseProgress                // agents working
	PhaseApproval                // waiting at a phase gate
	PhasePublishing              // simulated uploads
	PhaseSummary                 // results
)

// Messages sent from the run goroutine to BubbleTea.
type RunEventMsg struct {
	Event runner.Event
}

type PublishUpdateMsg struct {
	Update publish.Update
}

// RunFinishedMsg arrives once the run and any publishing are over and the
// run directory has been written.
type RunFinishedMsg struct {
	Result  runner.Result
	Publish *publish.Result
	RunDir  string
}

// DispatchedMsg hands the model the controller of the run it just started.
type DispatchedMsg struct {
	Controller Controller
}

type ErrorMsg struct {
	Err error
}

// doDispatchMsg is sent from Init to trigger dispatch via Update,
// ensuring context/cancel are set on the model without data races.
type doDispatchMsg struct{}
