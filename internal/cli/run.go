package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/codebeauty/agentcy/internal/catalog"
	"github.com/codebeauty/agentcy/internal/config"
	"github.com/codebeauty/agentcy/internal/output"
	"github.com/codebeauty/agentcy/internal/publish"
	"github.com/codebeauty/agentcy/internal/runner"
	"github.com/codebeauty/agentcy/internal/ui"
)

type runOptions struct {
	dwellMs     int
	yes         bool
	publishFlag string
	jsonOutput  bool
	plain       bool
	outputDir   string
	maxParallel int
}

func newRunCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run [pipeline]",
		Short: "Run a pipeline of simulated agents",
		Long: "Runs each phase of a pipeline agent by agent, pausing for approval between phases, " +
			"then publishes the result to the selected platforms.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadMerged(mustGetwd())
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if err := opts.apply(cfg); err != nil {
				return err
			}
			autoApprove := opts.yes || cfg.Defaults.AutoApprove

			pipelineID := cfg.Defaults.Pipeline
			if len(args) > 0 {
				pipelineID = args[0]
			}
			platforms, platformsGiven := resolvePlatforms(cfg, opts.publishFlag)
			if _, err := publish.Lookup(platforms); err != nil {
				return err
			}

			if shouldUseTUI(opts) {
				return runTUI(cfg, pipelineID, len(args) > 0, platforms, platformsGiven, autoApprove, opts.yes)
			}

			p, err := catalog.Load(pipelineID, catalog.Dir())
			if err != nil {
				return err
			}
			if !autoApprove && !isStdinTerminal(cmd.InOrStdin()) {
				return fmt.Errorf("refusing to wait for approval in non-interactive mode; pass --yes to approve every phase")
			}
			return runPlain(cmd, cfg, p, platforms, autoApprove, opts.jsonOutput)
		},
	}

	cmd.Flags().IntVar(&opts.dwellMs, "dwell", 0, "Milliseconds each task stays active")
	cmd.Flags().BoolVarP(&opts.yes, "yes", "y", false, "Approve every phase automatically")
	cmd.Flags().StringVar(&opts.publishFlag, "publish", "", "Comma-separated platforms to publish to, or \"none\"")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Print the run manifest as JSON")
	cmd.Flags().BoolVar(&opts.plain, "plain", false, "Line-oriented progress instead of the full-screen UI")
	cmd.Flags().StringVarP(&opts.outputDir, "output", "o", "", "Output directory override")
	cmd.Flags().IntVar(&opts.maxParallel, "max-parallel", 0, "Maximum concurrent uploads")

	return cmd
}

// apply layers flag overrides on the loaded config.
func (o runOptions) apply(cfg *config.Config) error {
	if o.outputDir != "" {
		cfg.Defaults.OutputDir = o.outputDir
	}
	if o.dwellMs != 0 {
		cfg.Defaults.DwellMs = o.dwellMs
	}
	if o.maxParallel != 0 {
		cfg.Defaults.MaxParallel = o.maxParallel
	}
	return cfg.Validate()
}

// resolvePlatforms returns the platforms to publish to and whether the user
// chose them on the command line.
func resolvePlatforms(cfg *config.Config, flag string) ([]string, bool) {
	flag = strings.TrimSpace(flag)
	switch {
	case flag == "":
		return cfg.Platforms, false
	case strings.EqualFold(flag, "none"):
		return nil, true
	}
	return strings.Split(flag, ","), true
}

func runPlain(cmd *cobra.Command, cfg *config.Config, p *catalog.Pipeline, platforms []string, autoApprove, jsonOutput bool) error {
	stderr := cmd.ErrOrStderr()

	s, err := newRunSession(cfg, p, platforms, autoApprove)
	if err != nil {
		return err
	}
	defer s.close()

	fmt.Fprintf(stderr, "Pipeline %s: %d phase(s), %d agent(s)\n", p.ID, len(p.Phases), p.AgentCount())
	fmt.Fprintf(stderr, "Output: %s\n", s.runDir)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	prog := ui.NewProgressWriter(stderr, p.Phases, isTerminalWriter(stderr))
	gates := make(chan runner.Event, 1)
	onEvent := func(ev runner.Event) {
		prog.HandleEvent(ev)
		if ev.Kind == runner.EventAwaitingApproval && !autoApprove {
			select {
			case gates <- ev:
			default:
			}
		}
	}
	if !autoApprove {
		go approvalLoop(ctx, gates, bufio.NewReader(cmd.InOrStdin()), stderr, prog, s.runner)
	}

	prog.Start()
	res, err := s.run(ctx, onEvent)
	prog.Stop()
	if err != nil {
		return err
	}

	pub := s.publish(ctx, res, prog.HandlePublish)
	m, errs := s.finish(res, pub)
	for _, err := range errs {
		fmt.Fprintf(stderr, "warning: %v\n", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(m)
	}
	printSummary(stderr, m, s.runDir)
	return nil
}

// gate is the part of a runner the approval prompt drives.
type gate interface {
	Approve() error
	Cancel()
}

// suspender hides live progress while the prompt owns the terminal.
type suspender interface {
	Suspend()
	Resume()
}

// approvalLoop asks on in for every gate. Anything but y/yes cancels the run,
// as does end of input.
func approvalLoop(ctx context.Context, gates <-chan runner.Event, in *bufio.Reader, out io.Writer, prog suspender, g gate) {
	for {
		var ev runner.Event
		select {
		case <-ctx.Done():
			return
		case ev = <-gates:
		}

		prog.Suspend()
		fmt.Fprintf(out, "Approve %q and continue? [y/N] ", ev.Phase)
		answer, err := in.ReadString('\n')
		prog.Resume()

		switch strings.ToLower(strings.TrimSpace(answer)) {
		case "y", "yes":
			if err := g.Approve(); err != nil {
				fmt.Fprintf(out, "warning: %v\n", err)
			}
		default:
			if err != nil && err != io.EOF {
				fmt.Fprintf(out, "warning: reading answer: %v\n", err)
			}
			g.Cancel()
			return
		}
	}
}

func printSummary(w io.Writer, m *output.Manifest, runDir string) {
	fmt.Fprintf(w, "\n--- %s: %s ---\n", m.Pipeline, m.Outcome)
	for _, ph := range m.Phases {
		done := 0
		for _, a := range ph.Agents {
			if a.Completed {
				done++
			}
		}
		icon := "·"
		switch {
		case ph.Approved:
			icon = "+"
		case done > 0:
			icon = "~"
		}
		fmt.Fprintf(w, " %s %-28s %d/%d agents\n", icon, ph.Label, done, len(ph.Agents))
	}
	if m.Publish != nil {
		for _, pl := range m.Publish.Platforms {
			fmt.Fprintf(w, "   %-12s %s\n", pl.Name, pl.Status)
		}
	}
	fmt.Fprintf(w, "Duration: %s\n", m.Duration)
	if m.Next != "" && m.Outcome == string(runner.OutcomeComplete) {
		fmt.Fprintf(w, "Next: %s\n", m.Next)
	}
	fmt.Fprintf(w, "\nOutput: %s\n", runDir)
}

func mustGetwd() string {
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}

// resolveOutputDir returns the flag value if non-empty, otherwise loads the
// merged config and returns the configured output directory.
func resolveOutputDir(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	cfg, err := config.LoadMerged(mustGetwd())
	if err != nil {
		return "", fmt.Errorf("loading config: %w", err)
	}
	return cfg.Defaults.OutputDir, nil
}

func isTerminalWriter(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func isStdinTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
