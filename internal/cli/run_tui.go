package cli

import (
	"context"
	"fmt"
	"os"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/codebeauty/agentcy/internal/catalog"
	"github.com/codebeauty/agentcy/internal/config"
	"github.com/codebeauty/agentcy/internal/publish"
	"github.com/codebeauty/agentcy/internal/runner"
	"github.com/codebeauty/agentcy/internal/tui"
)

// runTUI launches the BubbleTea TUI for `agentcy run`.
func runTUI(cfg *config.Config, pipelineID string, pipelineGiven bool, platforms []string, platformsGiven, autoApprove, yes bool) error {
	options, pipelines, err := loadPipelineOptions(pipelineID, pipelineGiven)
	if err != nil {
		return err
	}

	tuiCfg := tui.RunConfig{
		Pipelines:     options,
		PrePipeline:   pipelineID,
		SkipPipeline:  pipelineGiven,
		Platforms:     publish.Names(),
		PrePlatforms:  platforms,
		SkipPlatforms: platformsGiven,
		SkipConfirm:   yes && pipelineGiven && platformsGiven,
		Dwell:         cfg.Dwell(),
		AutoApprove:   autoApprove,
	}

	var (
		program *tea.Program
		wg      sync.WaitGroup
		mu      sync.Mutex
		runDir  string
	)

	dispatch := func(ctx context.Context, sel tui.Selection) (tui.Controller, error) {
		p, ok := pipelines[sel.Pipeline.ID]
		if !ok {
			return nil, fmt.Errorf("%w: %q", catalog.ErrNotFound, sel.Pipeline.ID)
		}
		s, err := newRunSession(cfg, p, sel.Platforms, autoApprove)
		if err != nil {
			return nil, err
		}
		mu.Lock()
		runDir = s.runDir
		mu.Unlock()

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer s.close()
			executeTUIRun(ctx, program, s)
		}()
		return s.runner, nil
	}

	model := tui.NewModel(tuiCfg, dispatch)
	program = tea.NewProgram(model, tea.WithAltScreen())

	finalModel, err := program.Run()
	// Artifacts are written after the run ends, even when the user quit early.
	wg.Wait()
	if err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	if m, ok := finalModel.(tui.Model); ok && m.Err != nil {
		return m.Err
	}
	mu.Lock()
	defer mu.Unlock()
	if runDir != "" {
		fmt.Fprintf(os.Stderr, "Output: %s\n", runDir)
	}
	return nil
}

// executeTUIRun drives one session, bridging its progress to BubbleTea.
func executeTUIRun(ctx context.Context, program *tea.Program, s *runSession) {
	res, err := s.run(ctx, func(ev runner.Event) {
		program.Send(tui.RunEventMsg{Event: ev})
	})
	if err != nil {
		program.Send(tui.ErrorMsg{Err: err})
		return
	}

	pub := s.publish(ctx, res, func(u publish.Update) {
		program.Send(tui.PublishUpdateMsg{Update: u})
	})
	if _, errs := s.finish(res, pub); len(errs) > 0 {
		program.Send(tui.ErrorMsg{Err: errs[0]})
		return
	}
	program.Send(tui.RunFinishedMsg{Result: res, Publish: pub, RunDir: s.runDir})
}

// loadPipelineOptions loads every pipeline the picker can offer. Broken user
// files are skipped unless the user asked for that pipeline by name.
func loadPipelineOptions(pipelineID string, pipelineGiven bool) ([]tui.PipelineOption, map[string]*catalog.Pipeline, error) {
	dir := catalog.Dir()
	ids, err := catalog.List(dir)
	if err != nil {
		return nil, nil, err
	}
	if pipelineGiven {
		ids = []string{pipelineID}
	}

	builtin := make(map[string]bool)
	for _, id := range catalog.BuiltinIDs() {
		builtin[id] = true
	}

	var options []tui.PipelineOption
	pipelines := make(map[string]*catalog.Pipeline, len(ids))
	for _, id := range ids {
		p, err := catalog.Load(id, dir)
		if err != nil {
			if pipelineGiven {
				return nil, nil, err
			}
			fmt.Fprintf(os.Stderr, "warning: skipping pipeline %s: %v\n", id, err)
			continue
		}
		pipelines[id] = p
		options = append(options, tui.PipelineOption{
			ID:      p.ID,
			Title:   p.Title,
			Next:    p.Next,
			Builtin: builtin[id],
			Phases:  p.Phases,
		})
	}
	if len(options) == 0 {
		return nil, nil, fmt.Errorf("no pipelines found in %s", dir)
	}
	return options, pipelines, nil
}

// shouldUseTUI returns true when the TUI should be used for `agentcy run`.
func shouldUseTUI(opts runOptions) bool {
	if opts.jsonOutput || opts.plain {
		return false
	}
	return tui.IsTTY() && isStdinTerminal(os.Stdin)
}
