package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"

	"github.com/codebeauty/agentcy/internal/progression"
	"github.com/codebeauty/agentcy/internal/publish"
	"github.com/codebeauty/agentcy/internal/runner"
)

var spinnerFrames = []string{"◐", "◓", "◑", "◒"}

const barWidth = 20

// Progress prints a run for terminals without the full-screen UI. On a TTY it
// redraws a block of status lines; otherwise it logs one line per transition.
type Progress struct {
	w      io.Writer
	phases []progression.Phase
	isTTY  bool

	mu          sync.Mutex
	state       progression.State
	runProgress float64
	lastTask    string
	platforms   map[string]publish.Status
	lines       int
	paused      bool
	frame       int

	done     chan struct{}
	stopOnce sync.Once
}

// NewProgress writes to stderr and detects whether it is a terminal.
func NewProgress(phases []progression.Phase) *Progress {
	return NewProgressWriter(os.Stderr, phases, term.IsTerminal(int(os.Stderr.Fd())))
}

func NewProgressWriter(w io.Writer, phases []progression.Phase, isTTY bool) *Progress {
	return &Progress{
		w:         w,
		phases:    phases,
		isTTY:     isTTY,
		platforms: make(map[string]publish.Status),
		done:      make(chan struct{}),
	}
}

func (p *Progress) IsTTY() bool { return p.isTTY }

func (p *Progress) Start() {
	if !p.isTTY {
		fmt.Fprintf(p.w, "Running %d phase(s)...\n", len(p.phases))
		return
	}
	go p.animate()
}

// Stop ends the animation and leaves the last frame on screen. Later
// publish updates draw below it.
func (p *Progress) Stop() {
	p.stopOnce.Do(func() { close(p.done) })
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.isTTY && !p.paused {
		p.render()
	}
	p.lines = 0
	p.paused = false
}

// Suspend clears the status block so the caller can prompt on the terminal.
func (p *Progress) Suspend() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clear()
	p.paused = true
}

func (p *Progress) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paused = false
}

// HandleEvent folds a runner event into the display.
func (p *Progress) HandleEvent(ev runner.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = ev.State
	p.runProgress = ev.RunProgress
	if p.isTTY {
		return
	}

	switch ev.Kind {
	case runner.EventStarted:
		p.printPhaseHeader()
		p.printTask()
	case runner.EventTask:
		p.printTask()
	case runner.EventAgentCompleted:
		fmt.Fprintf(p.w, "  done: %s\n", p.agentName(ev.AgentID))
		if !ev.State.AwaitingApproval {
			p.printTask()
		}
	case runner.EventAwaitingApproval:
		fmt.Fprintf(p.w, "Phase %q complete, awaiting approval\n", ev.Phase)
	case runner.EventApproved:
		fmt.Fprintf(p.w, "Approved %q\n", ev.Phase)
		if !ev.State.Complete {
			p.printPhaseHeader()
			p.printTask()
		}
	case runner.EventComplete:
		fmt.Fprintln(p.w, "All phases approved.")
	case runner.EventStopped:
		fmt.Fprintf(p.w, "Stopped in %q\n", ev.Phase)
	case runner.EventCancelled:
		fmt.Fprintln(p.w, "Cancelled, progress discarded.")
	}
}

// HandlePublish reports platform status changes.
func (p *Progress) HandlePublish(u publish.Update) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.isTTY {
		if !p.paused {
			p.clear()
			for _, s := range u.Platforms {
				fmt.Fprintf(p.w, " %s %-10s %-11s %s\n", platformIcon(s.Status), s.Name, s.Status, bar(float64(s.Progress)))
				p.lines++
			}
		}
		return
	}
	for _, s := range u.Platforms {
		if p.platforms[s.ID] == s.Status {
			continue
		}
		p.platforms[s.ID] = s.Status
		fmt.Fprintf(p.w, "  %s: %s (overall %d%%)\n", s.Name, s.Status, u.Overall)
	}
}

func (p *Progress) printPhaseHeader() {
	if ph, ok := p.phase(); ok {
		fmt.Fprintf(p.w, "Phase %d/%d: %s\n", p.state.PhaseIndex+1, len(p.phases), ph.Label)
	}
}

func (p *Progress) printTask() {
	ph, ok := p.phase()
	if !ok || p.state.AgentIndex >= len(ph.Agents) {
		return
	}
	a := ph.Agents[p.state.AgentIndex]
	key := fmt.Sprintf("%d/%d/%d", p.state.PhaseIndex, p.state.AgentIndex, p.state.TaskIndex)
	if key == p.lastTask {
		return
	}
	p.lastTask = key
	fmt.Fprintf(p.w, "  %s: %s (%d/%d)\n", displayName(a), a.Tasks[p.state.TaskIndex], p.state.TaskIndex+1, len(a.Tasks))
}

func (p *Progress) animate() {
	tick := time.NewTicker(200 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case <-p.done:
			return
		case <-tick.C:
			p.mu.Lock()
			if !p.paused {
				p.render()
				p.frame++
			}
			p.mu.Unlock()
		}
	}
}

// render redraws the block in place. Callers hold p.mu.
func (p *Progress) render() {
	p.clear()
	for _, line := range p.frameLines(spinnerFrames[p.frame%len(spinnerFrames)]) {
		fmt.Fprintln(p.w, line)
		p.lines++
	}
}

func (p *Progress) clear() {
	for ; p.lines > 0; p.lines-- {
		fmt.Fprint(p.w, "\033[A\033[2K")
	}
}

func (p *Progress) frameLines(spinner string) []string {
	ph, ok := p.phase()
	if !ok {
		return nil
	}
	lines := []string{fmt.Sprintf("Phase %d/%d · %s  %s",
		p.state.PhaseIndex+1, len(p.phases), ph.Label, bar(p.state.Progress))}
	for i, a := range ph.Agents {
		switch {
		case p.state.IsCompleted(a.ID):
			lines = append(lines, fmt.Sprintf(" + %-20s done", displayName(a)))
		case i == p.state.AgentIndex && p.state.Status == progression.StatusRunning:
			lines = append(lines, fmt.Sprintf(" %s %-20s %s (%d/%d)", spinner, displayName(a),
				a.Tasks[p.state.TaskIndex], p.state.TaskIndex+1, len(a.Tasks)))
		default:
			lines = append(lines, fmt.Sprintf(" · %-20s waiting", displayName(a)))
		}
	}
	lines = append(lines, fmt.Sprintf("Overall %s", bar(p.runProgress)))
	return lines
}

func (p *Progress) phase() (progression.Phase, bool) {
	if len(p.phases) == 0 || p.state.Cancelled || p.state.PhaseIndex >= len(p.phases) {
		return progression.Phase{}, false
	}
	return p.phases[p.state.PhaseIndex], true
}

func (p *Progress) agentName(id string) string {
	if ph, ok := p.phase(); ok {
		for _, a := range ph.Agents {
			if a.ID == id {
				return displayName(a)
			}
		}
	}
	return id
}

func displayName(a progression.Agent) string {
	if a.Name != "" {
		return a.Name
	}
	return a.ID
}

func bar(pct float64) string {
	filled := int(pct / 100 * barWidth)
	if filled > barWidth {
		filled = barWidth
	}
	if filled < 0 {
		filled = 0
	}
	return fmt.Sprintf("[%s%s] %3.0f%%", strings.Repeat("#", filled), strings.Repeat("-", barWidth-filled), pct)
}

func platformIcon(s publish.Status) string {
	switch s {
	case publish.StatusCompleted:
		return "+"
	case publish.StatusCancelled:
		return "x"
	case publish.StatusPending:
		return "·"
	default:
		return "~"
	}
}
