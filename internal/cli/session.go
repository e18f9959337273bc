package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/codebeauty/agentcy/internal/catalog"
	"github.com/codebeauty/agentcy/internal/config"
	"github.com/codebeauty/agentcy/internal/logging"
	"github.com/codebeauty/agentcy/internal/output"
	"github.com/codebeauty/agentcy/internal/publish"
	"github.com/codebeauty/agentcy/internal/runner"
)

// runSession owns everything one run writes: its directory, debug log,
// runner and, once the pipeline completes, the publisher.
type runSession struct {
	cfg         *config.Config
	pipeline    *catalog.Pipeline
	platforms   []publish.Platform
	autoApprove bool
	runDir      string
	log         *logging.Logger
	runner      *runner.Runner
	publishOpts []publish.Option
}

func newRunSession(cfg *config.Config, p *catalog.Pipeline, platformNames []string, autoApprove bool) (*runSession, error) {
	platforms, err := publish.Lookup(platformNames)
	if err != nil {
		return nil, err
	}
	runDir, err := output.RunDir(cfg.Defaults.OutputDir, p.ID, time.Now())
	if err != nil {
		return nil, err
	}
	log, err := logging.New(runDir, cfg.Defaults.LogLevel)
	if err != nil {
		return nil, err
	}
	if err := output.WritePipeline(runDir, p); err != nil {
		log.Close()
		return nil, fmt.Errorf("writing pipeline: %w", err)
	}

	r, err := runner.New(p.ID, p.Phases,
		runner.WithDwell(cfg.Dwell()),
		runner.WithLogger(log),
		runner.WithAutoApprove(autoApprove),
	)
	if err != nil {
		log.Close()
		return nil, err
	}

	return &runSession{
		cfg:         cfg,
		pipeline:    p,
		platforms:   platforms,
		autoApprove: autoApprove,
		runDir:      runDir,
		log:         log.WithRun(r.RunID()),
		runner:      r,
		publishOpts: []publish.Option{publish.WithMaxParallel(cfg.Defaults.MaxParallel)},
	}, nil
}

func (s *runSession) run(ctx context.Context, onEvent runner.ProgressFunc) (runner.Result, error) {
	s.runner.SetProgressFunc(onEvent)
	return s.runner.Run(ctx)
}

// publish uploads to the selected platforms when the run completed. It
// returns nil when nothing was published.
func (s *runSession) publish(ctx context.Context, res runner.Result, onUpdate func(publish.Update)) *publish.Result {
	if res.Outcome != runner.OutcomeComplete || len(s.platforms) == 0 || ctx.Err() != nil {
		return nil
	}
	opts := append([]publish.Option{publish.WithLogger(s.log.With("component", "publish"))}, s.publishOpts...)
	p := publish.New(opts...)
	p.SetUpdateFunc(onUpdate)
	pub, err := p.Publish(ctx, s.platforms)
	if err != nil && !errors.Is(err, context.Canceled) {
		s.log.Error("publish failed", "error", err)
	}
	return &pub
}

// finish writes run.json and summary.md. Write failures are logged and
// reported but do not fail the run.
func (s *runSession) finish(res runner.Result, pub *publish.Result) (*output.Manifest, []error) {
	m := output.BuildManifest(
		output.RunInfo{Title: s.pipeline.Title, Next: s.pipeline.Next},
		res, pub,
		output.ManifestConfig{
			DwellMs:     s.cfg.Defaults.DwellMs,
			AutoApprove: s.autoApprove,
			MaxParallel: s.cfg.Defaults.MaxParallel,
		},
	)

	var errs []error
	if err := output.WriteManifest(s.runDir, m); err != nil {
		errs = append(errs, fmt.Errorf("failed to write manifest: %w", err))
	}
	if err := output.WriteSummary(s.runDir, output.BuildSummary(m)); err != nil {
		errs = append(errs, fmt.Errorf("failed to write summary: %w", err))
	}
	for _, err := range errs {
		s.log.Warn("artifact write failed", "error", err)
	}
	s.log.Info("run finished", "outcome", m.Outcome, "duration", m.Duration)
	return m, errs
}

func (s *runSession) close() {
	s.log.Close()
}
