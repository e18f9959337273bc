// Package progression steps a run through phases, agents and tasks one tick
// at a time and holds it at an approval gate between phases.
package progression

import "fmt"

// Engine owns the run state for a single run. It is not safe for concurrent
// use; the runner serialises access to it.
type Engine struct {
	phases []Phase
	status Status

	phase, agent, task int
	completed          []string
	cancelled          bool
}

// New returns an idle engine.
func New() *Engine {
	return &Engine{status: StatusIdle}
}

// Start validates the definitions and positions the run at the first task of
// the first agent of the first phase.
func (e *Engine) Start(phases []Phase) error {
	if e.status != StatusIdle {
		return fmt.Errorf("%w: start while %s", ErrInvalidTransition, e.status)
	}
	if err := Validate(phases); err != nil {
		return err
	}
	e.phases = clonePhases(phases)
	e.phase, e.agent, e.task = 0, 0, 0
	e.completed = nil
	e.status = StatusRunning
	return nil
}

// Tick advances the run by one task step. It is a no-op while the run waits
// for approval.
func (e *Engine) Tick() (Event, error) {
	switch e.status {
	case StatusAwaitingApproval:
		return Event{}, nil
	case StatusRunning:
	default:
		return Event{}, fmt.Errorf("%w: tick while %s", ErrInvalidTransition, e.status)
	}

	phase := e.phases[e.phase]
	agent := phase.Agents[e.agent]
	ev := Event{PhaseIndex: e.phase, AgentIndex: e.agent, AgentID: agent.ID}

	if e.task < len(agent.Tasks)-1 {
		e.task++
		ev.Kind = EventTaskAdvanced
		ev.TaskIndex = e.task
		return ev, nil
	}

	e.completed = append(e.completed, agent.ID)
	e.agent++
	e.task = 0
	ev.Kind = EventAgentCompleted
	ev.TaskIndex = len(agent.Tasks) - 1

	if e.agent >= len(phase.Agents) {
		e.status = StatusAwaitingApproval
		ev.AwaitingApproval = true
	}
	return ev, nil
}

// Approve commits the finished phase. It reports true when the approved phase
// was the last one and the run is complete.
func (e *Engine) Approve() (bool, error) {
	if e.status != StatusAwaitingApproval {
		return false, fmt.Errorf("%w: approve while %s", ErrInvalidTransition, e.status)
	}
	if e.phase == len(e.phases)-1 {
		e.status = StatusComplete
		return true, nil
	}
	e.phase++
	e.agent, e.task = 0, 0
	e.completed = nil
	e.status = StatusRunning
	return false, nil
}

// Stop freezes the run. It is idempotent and leaves a completed run complete.
func (e *Engine) Stop() {
	if e.status == StatusComplete {
		return
	}
	e.status = StatusStopped
}

// Cancel stops the run and discards its progress.
func (e *Engine) Cancel() {
	if e.status == StatusComplete {
		return
	}
	e.status = StatusStopped
	e.cancelled = true
	e.phase, e.agent, e.task = 0, 0, 0
	e.completed = nil
}

// Status returns the current lifecycle status.
func (e *Engine) Status() Status { return e.status }

// Phases returns the definitions the engine was started with.
func (e *Engine) Phases() []Phase { return e.phases }

// CurrentPhase returns the active phase, or false before Start or after Cancel.
func (e *Engine) CurrentPhase() (Phase, bool) {
	if len(e.phases) == 0 || e.cancelled {
		return Phase{}, false
	}
	return e.phases[e.phase], true
}

// CurrentAgent returns the agent being worked on. There is none while the
// phase waits for approval.
func (e *Engine) CurrentAgent() (Agent, bool) {
	p, ok := e.CurrentPhase()
	if !ok || e.agent >= len(p.Agents) {
		return Agent{}, false
	}
	return p.Agents[e.agent], true
}

// Progress returns the percentage of the current phase that is done.
func (e *Engine) Progress() float64 {
	switch {
	case e.status == StatusComplete:
		return 100
	case len(e.phases) == 0 || e.cancelled:
		return 0
	}
	agents := e.phases[e.phase].Agents
	total := float64(len(agents))
	pct := float64(e.agent) / total
	if e.agent < len(agents) {
		pct += float64(e.task) / float64(len(agents[e.agent].Tasks)) / total
	}
	return clamp(pct * 100)
}

// RunProgress returns the percentage of the whole pipeline that is done.
func (e *Engine) RunProgress() float64 {
	switch {
	case e.status == StatusComplete:
		return 100
	case len(e.phases) == 0 || e.cancelled:
		return 0
	}
	return clamp((float64(e.phase) + e.Progress()/100) / float64(len(e.phases)) * 100)
}

// Snapshot copies the run state.
func (e *Engine) Snapshot() State {
	return State{
		Status:           e.status,
		PhaseIndex:       e.phase,
		AgentIndex:       e.agent,
		TaskIndex:        e.task,
		Completed:        append([]string(nil), e.completed...),
		Progress:         e.Progress(),
		Stopped:          e.status == StatusStopped,
		AwaitingApproval: e.status == StatusAwaitingApproval,
		Complete:         e.status == StatusComplete,
		Cancelled:        e.cancelled,
	}
}

func clamp(pct float64) float64 {
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}
