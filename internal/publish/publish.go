// Package publish simulates pushing finished campaign content to social
// platforms: a sequential login pass followed by staggered parallel uploads.
package publish

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/codebeauty/agentcy/internal/clock"
	"github.com/codebeauty/agentcy/internal/logging"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusLoggingIn Status = "logging-in"
	StatusUploading Status = "uploading"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

type Stage string

const (
	StageAuthenticating Stage = "authenticating"
	StageUploading      Stage = "uploading"
	StageCompleted      Stage = "completed"
	StageCancelled      Stage = "cancelled"
)

// Share of the overall bar taken by the login pass.
const authShare = 40

const (
	uploadIncrement = 10
	uploadMax       = 100
)

type Timing struct {
	AuthDelay  time.Duration // before a platform starts logging in
	LoginDelay time.Duration // logging in, before upload may start
	Stagger    time.Duration // multiplied by the platform's position
	UploadStep time.Duration // per 10% of upload progress
}

func DefaultTiming() Timing {
	return Timing{
		AuthDelay:  400 * time.Millisecond,
		LoginDelay: 600 * time.Millisecond,
		Stagger:    200 * time.Millisecond,
		UploadStep: 150 * time.Millisecond,
	}
}

type PlatformState struct {
	Platform
	Status   Status `json:"status"`
	Progress int    `json:"progress"`
}

// Update is a snapshot sent after every state change.
type Update struct {
	Stage     Stage
	Platforms []PlatformState
	Overall   int
}

type Result struct {
	Stage     Stage           `json:"stage"`
	Platforms []PlatformState `json:"platforms"`
	Overall   int             `json:"overall"`
	Duration  time.Duration   `json:"duration"`
}

type Option func(*Publisher)

func WithClock(c clock.Clock) Option { return func(p *Publisher) { p.clock = c } }

func WithTiming(t Timing) Option { return func(p *Publisher) { p.timing = t } }

func WithLogger(l *logging.Logger) Option { return func(p *Publisher) { p.log = l } }

// WithMaxParallel bounds concurrent uploads. Values below 1 mean 4.
func WithMaxParallel(n int) Option {
	return func(p *Publisher) {
		if n < 1 {
			n = 4
		}
		p.maxParallel = int64(n)
	}
}

type Publisher struct {
	clock       clock.Clock
	timing      Timing
	maxParallel int64
	log         *logging.Logger
	onUpdate    func(Update)

	mu      sync.Mutex
	stage   Stage
	states  []PlatformState
	overall int
}

func New(opts ...Option) *Publisher {
	p := &Publisher{
		clock:       clock.Real(),
		timing:      DefaultTiming(),
		maxParallel: 4,
		log:         logging.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SetUpdateFunc registers fn for every state change. During uploads fn is
// called from several goroutines at once.
func (p *Publisher) SetUpdateFunc(fn func(Update)) {
	p.onUpdate = fn
}

// Publish runs the login pass and then the uploads. Cancelling ctx marks
// every unfinished platform cancelled and returns the partial result with
// ctx's error.
func (p *Publisher) Publish(ctx context.Context, platforms []Platform) (Result, error) {
	start := p.clock.Now()
	p.mu.Lock()
	p.stage = StageAuthenticating
	p.overall = 0
	p.states = make([]PlatformState, len(platforms))
	for i, pl := range platforms {
		p.states[i] = PlatformState{Platform: pl, Status: StatusPending}
	}
	p.mu.Unlock()

	if len(platforms) == 0 {
		p.setStage(StageCompleted, uploadMax)
		return p.result(start), nil
	}

	if err := p.authenticate(ctx); err != nil {
		p.cancelRemaining()
		return p.result(start), err
	}
	p.setStage(StageUploading, authShare)

	if err := p.upload(ctx); err != nil {
		p.cancelRemaining()
		return p.result(start), err
	}
	p.setStage(StageCompleted, uploadMax)
	p.log.Info("publish complete", "platforms", len(platforms))
	return p.result(start), nil
}

func (p *Publisher) authenticate(ctx context.Context) error {
	n := len(p.states)
	for i := 0; i < n; i++ {
		if err := p.wait(ctx, p.timing.AuthDelay); err != nil {
			return err
		}
		p.update(func() {
			p.states[i].Status = StatusLoggingIn
			p.overall = (i + 1) * authShare / n
		})
		p.log.Debug("logging in", "platform", p.states[i].ID)

		if err := p.wait(ctx, p.timing.LoginDelay); err != nil {
			return err
		}
		p.update(func() {
			p.states[i].Status = StatusUploading
			p.states[i].Progress = 0
		})
	}
	return nil
}

func (p *Publisher) upload(ctx context.Context) error {
	sem := semaphore.NewWeighted(p.maxParallel)
	g, gctx := errgroup.WithContext(ctx)

	for i := range p.states {
		i := i
		g.Go(func() error {
			if err := p.wait(gctx, time.Duration(i)*p.timing.Stagger); err != nil {
				return err
			}
			if err := sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)

			for progress := 0; progress <= uploadMax; progress += uploadIncrement {
				if err := p.wait(gctx, p.timing.UploadStep); err != nil {
					return err
				}
				p.update(func() {
					p.states[i].Progress = progress
					p.overall = p.uploadOverallLocked()
				})
			}
			p.update(func() {
				p.states[i].Status = StatusCompleted
				p.states[i].Progress = uploadMax
			})
			p.log.Debug("upload complete", "platform", p.states[i].ID)
			return nil
		})
	}
	return g.Wait()
}

// uploadOverallLocked maps the average upload progress onto the part of the
// bar left after the login pass.
func (p *Publisher) uploadOverallLocked() int {
	total := 0
	for _, s := range p.states {
		total += s.Progress
	}
	avg := float64(total) / float64(len(p.states))
	return authShare + int(avg/uploadMax*(uploadMax-authShare))
}

func (p *Publisher) wait(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.clock.After(d):
		return nil
	}
}

func (p *Publisher) cancelRemaining() {
	p.update(func() {
		p.stage = StageCancelled
		for i := range p.states {
			if p.states[i].Status != StatusCompleted {
				p.states[i].Status = StatusCancelled
			}
		}
	})
	p.log.Warn("publish cancelled")
}

func (p *Publisher) setStage(stage Stage, overall int) {
	p.update(func() {
		p.stage = stage
		p.overall = overall
	})
}

// update applies fn under the lock and sends the resulting snapshot.
func (p *Publisher) update(fn func()) {
	p.mu.Lock()
	fn()
	u := Update{Stage: p.stage, Platforms: p.snapshotLocked(), Overall: p.overall}
	p.mu.Unlock()
	if p.onUpdate != nil {
		p.onUpdate(u)
	}
}

func (p *Publisher) snapshotLocked() []PlatformState {
	return append([]PlatformState(nil), p.states...)
}

func (p *Publisher) result(start time.Time) Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Result{
		Stage:     p.stage,
		Platforms: p.snapshotLocked(),
		Overall:   p.overall,
		Duration:  p.clock.Now().Sub(start),
	}
}
