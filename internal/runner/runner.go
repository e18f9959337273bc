// Package runner owns a single run: it drives a progression engine from one
// repeating ticker, pauses at approval gates and reports every transition
// through a progress callback.
package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/codebeauty/agentcy/internal/clock"
	"github.com/codebeauty/agentcy/internal/logging"
	"github.com/codebeauty/agentcy/internal/progression"
)

// DefaultDwell is how long each task stays on screen.
const DefaultDwell = 800 * time.Millisecond

// ErrAlreadyRunning is returned when Run is called a second time.
var ErrAlreadyRunning = errors.New("runner: run already started")

// EventKind names the transition an Event reports.
type EventKind string

const (
	EventStarted          EventKind = "started"
	EventTask             EventKind = "task"
	EventAgentCompleted   EventKind = "agent-completed"
	EventAwaitingApproval EventKind = "awaiting-approval"
	EventApproved         EventKind = "approved"
	EventComplete         EventKind = "complete"
	EventStopped          EventKind = "stopped"
	EventCancelled        EventKind = "cancelled"
)

// Event is one transition as seen by renderers. State is a copy and may be
// kept by the receiver.
type Event struct {
	Kind        EventKind
	RunID       string
	Phase       string
	AgentID     string
	State       progression.State
	RunProgress float64
	At          time.Time
}

// ProgressFunc receives every event. It is called from the run goroutine and
// from whichever goroutine calls Approve, Stop or Cancel.
type ProgressFunc func(Event)

// Option configures a Runner.
type Option func(*Runner)

// WithClock replaces the wall clock, mostly for tests.
func WithClock(c clock.Clock) Option { return func(r *Runner) { r.clock = c } }

// WithDwell sets how long each task stays active. It must be positive.
func WithDwell(d time.Duration) Option { return func(r *Runner) { r.dwell = d } }

// WithLogger sets the run logger. The default discards everything.
func WithLogger(l *logging.Logger) Option { return func(r *Runner) { r.log = l } }

// WithAutoApprove approves every gate as soon as it is reached.
func WithAutoApprove(on bool) Option { return func(r *Runner) { r.autoApprove = on } }

type Runner struct {
	runID       string
	pipeline    string
	clock       clock.Clock
	dwell       time.Duration
	log         *logging.Logger
	autoApprove bool
	onProgress  ProgressFunc

	mu       sync.Mutex
	engine   *progression.Engine
	ticker   clock.Ticker
	approved int
	started  bool
	startAt  time.Time

	approveCh chan struct{}
	done      chan struct{}
	doneOnce  sync.Once
}

// New validates the phases and returns a runner positioned at the first task.
// Configuration errors surface here, before anything is scheduled.
func New(pipelineID string, phases []progression.Phase, opts ...Option) (*Runner, error) {
	r := &Runner{
		runID:     uuid.NewString(),
		pipeline:  pipelineID,
		clock:     clock.Real(),
		dwell:     DefaultDwell,
		log:       logging.Nop(),
		engine:    progression.New(),
		approveCh: make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.dwell <= 0 {
		return nil, fmt.Errorf("runner: dwell must be positive, got %s", r.dwell)
	}
	if err := r.engine.Start(phases); err != nil {
		return nil, err
	}
	r.log = r.log.WithRun(r.runID).With("pipeline", pipelineID)
	return r, nil
}

func (r *Runner) SetProgressFunc(fn ProgressFunc) {
	r.onProgress = fn
}

func (r *Runner) RunID() string { return r.runID }

func (r *Runner) Pipeline() string { return r.pipeline }

func (r *Runner) Phases() []progression.Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.engine.Phases()
}

func (r *Runner) Snapshot() progression.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.engine.Snapshot()
}

// Run ticks the engine until the run completes, is stopped or cancelled, or
// ctx is done. A cancelled context stops the run and is not an error.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return Result{}, ErrAlreadyRunning
	}
	r.started = true
	r.startAt = r.clock.Now()
	ev := r.eventLocked(EventStarted, "")
	r.mu.Unlock()

	r.log.Info("run started", "phases", len(r.engine.Phases()), "dwell", r.dwell.String())
	r.emit(ev)

	for {
		if !r.runPhase(ctx) {
			return r.result(), nil
		}
		if r.autoApprove {
			if err := r.Approve(); err != nil && !errors.Is(err, progression.ErrInvalidTransition) {
				return r.result(), err
			}
		}
		select {
		case <-ctx.Done():
			r.Stop()
			return r.result(), nil
		case <-r.done:
			return r.result(), nil
		case <-r.approveCh:
		}
		if r.Snapshot().Complete {
			r.finish()
			return r.result(), nil
		}
	}
}

// runPhase ticks until the current phase reaches its gate. It reports false
// when the run ended instead.
func (r *Runner) runPhase(ctx context.Context) bool {
	r.mu.Lock()
	if r.engine.Status() != progression.StatusRunning {
		r.mu.Unlock()
		return false
	}
	ticker := r.clock.NewTicker(r.dwell)
	r.ticker = ticker
	r.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			r.Stop()
			return false
		case <-r.done:
			return false
		case <-ticker.C():
			gate, ok := r.tick()
			if !ok {
				return false
			}
			if gate {
				return true
			}
		}
	}
}

// tick applies one engine step. At the gate the ticker is stopped under the
// same lock so no step can land after it.
func (r *Runner) tick() (gate, ok bool) {
	r.mu.Lock()
	tev, err := r.engine.Tick()
	if err != nil {
		r.mu.Unlock()
		return false, false
	}
	var events []Event
	switch tev.Kind {
	case progression.EventTaskAdvanced:
		events = append(events, r.eventLocked(EventTask, tev.AgentID))
	case progression.EventAgentCompleted:
		events = append(events, r.eventLocked(EventAgentCompleted, tev.AgentID))
	}
	if tev.AwaitingApproval {
		r.stopTickerLocked()
		events = append(events, r.eventLocked(EventAwaitingApproval, ""))
	}
	r.mu.Unlock()

	for _, ev := range events {
		switch ev.Kind {
		case EventTask:
			r.log.Debug("task advanced", "agent", ev.AgentID, "task", ev.State.TaskIndex)
		case EventAgentCompleted:
			r.log.Info("agent completed", "agent", ev.AgentID, "phase", ev.Phase)
		case EventAwaitingApproval:
			r.log.Info("awaiting approval", "phase", ev.Phase)
		}
		r.emit(ev)
	}
	return tev.AwaitingApproval, true
}

// Approve passes the current gate. It fails with
// progression.ErrInvalidTransition unless the run is waiting for approval.
func (r *Runner) Approve() error {
	r.mu.Lock()
	phase := r.phaseLabelLocked()
	last, err := r.engine.Approve()
	if err != nil {
		r.mu.Unlock()
		return err
	}
	r.approved++
	events := []Event{r.eventLocked(EventApproved, "")}
	events[0].Phase = phase
	if last {
		events = append(events, r.eventLocked(EventComplete, ""))
	}
	r.mu.Unlock()

	r.log.Info("phase approved", "phase", phase, "approved", r.approved)
	for _, ev := range events {
		r.emit(ev)
	}
	select {
	case r.approveCh <- struct{}{}:
	default:
	}
	return nil
}

// Stop freezes the run where it is. It halts the ticker first and is safe to
// call more than once or after the run completed.
func (r *Runner) Stop() {
	r.mu.Lock()
	r.stopTickerLocked()
	switch r.engine.Status() {
	case progression.StatusComplete, progression.StatusStopped:
		r.mu.Unlock()
		r.finish()
		return
	}
	r.engine.Stop()
	ev := r.eventLocked(EventStopped, "")
	r.mu.Unlock()

	r.log.Info("run stopped", "phase", ev.Phase, "agent_index", ev.State.AgentIndex, "task_index", ev.State.TaskIndex)
	r.emit(ev)
	r.finish()
}

// Cancel stops the run and discards its progress. It is the exit for a user
// who rejects a gate.
func (r *Runner) Cancel() {
	r.mu.Lock()
	r.stopTickerLocked()
	if r.engine.Status() == progression.StatusComplete || r.engine.Snapshot().Cancelled {
		r.mu.Unlock()
		r.finish()
		return
	}
	phase := r.phaseLabelLocked()
	r.engine.Cancel()
	ev := r.eventLocked(EventCancelled, "")
	ev.Phase = phase
	r.mu.Unlock()

	r.log.Info("run cancelled", "phase", phase)
	r.emit(ev)
	r.finish()
}

// Done is closed once the run reaches a terminal state.
func (r *Runner) Done() <-chan struct{} { return r.done }

func (r *Runner) finish() {
	r.doneOnce.Do(func() {
		r.mu.Lock()
		r.stopTickerLocked()
		r.mu.Unlock()
		close(r.done)
	})
}

func (r *Runner) stopTickerLocked() {
	if r.ticker != nil {
		r.ticker.Stop()
		r.ticker = nil
	}
}

func (r *Runner) phaseLabelLocked() string {
	if p, ok := r.engine.CurrentPhase(); ok {
		return p.Label
	}
	return ""
}

func (r *Runner) eventLocked(kind EventKind, agentID string) Event {
	return Event{
		Kind:        kind,
		RunID:       r.runID,
		Phase:       r.phaseLabelLocked(),
		AgentID:     agentID,
		State:       r.engine.Snapshot(),
		RunProgress: r.engine.RunProgress(),
		At:          r.clock.Now(),
	}
}

func (r *Runner) emit(ev Event) {
	if r.onProgress != nil {
		r.onProgress(ev)
	}
}

func (r *Runner) result() Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	state := r.engine.Snapshot()
	outcome := OutcomeStopped
	switch {
	case state.Complete:
		outcome = OutcomeComplete
	case state.Cancelled:
		outcome = OutcomeCancelled
	}
	r.log.Info("run finished", "outcome", string(outcome), "approved", r.approved)
	return Result{
		RunID:          r.runID,
		Pipeline:       r.pipeline,
		Outcome:        outcome,
		StartedAt:      r.startAt,
		Duration:       r.clock.Now().Sub(r.startAt),
		PhasesApproved: r.approved,
		Phases:         buildPhaseResults(r.engine.Phases(), r.approved, state),
	}
}
