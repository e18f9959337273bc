// Package clock abstracts the timers that drive a run so tests can replace
// wall-clock delays with a manually advanced clock.
package clock

import (
	"sort"
	"sync"
	"time"
)

// Clock is the subset of package time the runner and publisher need.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
	After(d time.Duration) <-chan time.Time
}

// Ticker delivers ticks on C until stopped.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type realClock struct{}

// Real returns a Clock backed by package time.
func Real() Clock { return realClock{} }

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

func (realClock) NewTicker(d time.Duration) Ticker {
	return realTicker{t: time.NewTicker(d)}
}

type realTicker struct{ t *time.Ticker }

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

// Manual is a Clock that only moves when Advance is called. Like
// time.Ticker, a manual ticker holds at most one pending tick and drops the
// rest.
type Manual struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*manualTicker
	waiters []waiter
}

type waiter struct {
	at time.Time
	ch chan time.Time
}

// NewManual returns a manual clock set to start.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Manual) NewTicker(d time.Duration) Ticker {
	if d <= 0 {
		panic("clock: non-positive interval for NewTicker")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &manualTicker{
		clock:  m,
		period: d,
		next:   m.now.Add(d),
		ch:     make(chan time.Time, 1),
	}
	m.tickers = append(m.tickers, t)
	return t
}

func (m *Manual) After(d time.Duration) <-chan time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan time.Time, 1)
	if d <= 0 {
		ch <- m.now
		return ch
	}
	m.waiters = append(m.waiters, waiter{at: m.now.Add(d), ch: ch})
	return ch
}

// Advance moves the clock forward and fires every ticker and waiter that
// became due, in time order.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	target := m.now.Add(d)

	for {
		at, fire := m.nextDue(target)
		if fire == nil {
			break
		}
		m.now = at
		fire()
	}
	m.now = target
}

// nextDue finds the earliest timer due at or before target and returns a
// func that fires it. Callers hold m.mu.
func (m *Manual) nextDue(target time.Time) (time.Time, func()) {
	var (
		best time.Time
		fire func()
	)
	for _, t := range m.tickers {
		t := t
		if t.stopped || t.next.After(target) {
			continue
		}
		if fire == nil || t.next.Before(best) {
			best = t.next
			fire = func() {
				select {
				case t.ch <- t.next:
				default:
				}
				t.next = t.next.Add(t.period)
			}
		}
	}
	sort.SliceStable(m.waiters, func(i, j int) bool { return m.waiters[i].at.Before(m.waiters[j].at) })
	if len(m.waiters) > 0 {
		w := m.waiters[0]
		if !w.at.After(target) && (fire == nil || w.at.Before(best)) {
			best = w.at
			fire = func() {
				w.ch <- w.at
				m.waiters = m.waiters[1:]
			}
		}
	}
	return best, fire
}

// Waiters reports how many active tickers and pending After calls exist.
func (m *Manual) Waiters() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.waiters)
	for _, t := range m.tickers {
		if !t.stopped {
			n++
		}
	}
	return n
}

type manualTicker struct {
	clock   *Manual
	period  time.Duration
	next    time.Time
	ch      chan time.Time
	stopped bool
}

func (t *manualTicker) C() <-chan time.Time { return t.ch }

func (t *manualTicker) Stop() {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	t.stopped = true
	for i, other := range t.clock.tickers {
		if other == t {
			t.clock.tickers = append(t.clock.tickers[:i], t.clock.tickers[i+1:]...)
			break
		}
	}
}
