package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codebeauty/agentcy/internal/config"
	"github.com/codebeauty/agentcy/internal/logging"
	"github.com/codebeauty/agentcy/internal/output"
	"github.com/codebeauty/agentcy/internal/runner"
)

// isolateConfig points the global config and pipeline dir at a temp HOME.
func isolateConfig(t *testing.T) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, "xdg"))
}

func execRoot(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := newRootCmd()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetIn(strings.NewReader(stdin))
	root.SilenceErrors = true
	root.SilenceUsage = true
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func TestRunPlainAutoApprove(t *testing.T) {
	isolateConfig(t)
	base := t.TempDir()

	stdout, stderr, err := execRoot(t, "", "run", "processing", "--plain", "--yes", "--dwell", "1",
		"--publish", "none", "-o", base, "--json")
	require.NoError(t, err)

	var m output.Manifest
	require.NoError(t, json.Unmarshal([]byte(stdout), &m))
	assert.Equal(t, "processing", m.Pipeline)
	assert.Equal(t, string(runner.OutcomeComplete), m.Outcome)
	assert.Equal(t, len(m.Phases), m.PhasesApproved)
	assert.Equal(t, 1, m.Config.DwellMs)
	assert.True(t, m.Config.AutoApprove)
	assert.Nil(t, m.Publish)

	assert.Contains(t, stderr, "All phases approved.")

	runs, err := output.ScanRuns(base)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	for _, name := range []string{output.ManifestFile, output.SummaryFile, output.PipelineFile, logging.FileName} {
		assert.FileExists(t, filepath.Join(runs[0].Path, name))
	}
}

func TestRunPlainPrintsSummary(t *testing.T) {
	isolateConfig(t)
	base := t.TempDir()

	_, stderr, err := execRoot(t, "", "run", "processing", "--plain", "--yes", "--dwell", "1",
		"--publish", "none", "-o", base)
	require.NoError(t, err)
	assert.Contains(t, stderr, "--- processing: complete ---")
	assert.Contains(t, stderr, "Next: campaign-strategy")
	assert.Contains(t, stderr, "Output: "+base)
}

func TestRunRefusesApprovalWithoutTerminal(t *testing.T) {
	isolateConfig(t)
	_, _, err := execRoot(t, "y\n", "run", "processing", "--plain", "--dwell", "1", "-o", t.TempDir())
	assert.ErrorContains(t, err, "--yes")
}

func TestRunRejectsBadFlags(t *testing.T) {
	isolateConfig(t)
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown pipeline", []string{"run", "nope", "--plain", "--yes"}, "pipeline not found"},
		{"unknown platform", []string{"run", "--plain", "--yes", "--publish", "myspace"}, "myspace"},
		{"negative dwell", []string{"run", "--plain", "--yes", "--dwell=-5"}, "dwellMs"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execRoot(t, "", append(tt.args, "-o", t.TempDir())...)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestResolvePlatforms(t *testing.T) {
	cfg := config.NewDefaults()

	got, given := resolvePlatforms(cfg, "")
	assert.Equal(t, []string{"Instagram", "YouTube"}, got)
	assert.False(t, given)

	got, given = resolvePlatforms(cfg, "None")
	assert.Empty(t, got)
	assert.True(t, given)

	got, given = resolvePlatforms(cfg, "tiktok,reddit")
	assert.Equal(t, []string{"tiktok", "reddit"}, got)
	assert.True(t, given)
}

type fakeGate struct {
	approves, cancels int
}

func (f *fakeGate) Approve() error { f.approves++; return nil }
func (f *fakeGate) Cancel()        { f.cancels++ }

type fakeSuspender struct{ suspends, resumes int }

func (f *fakeSuspender) Suspend() { f.suspends++ }
func (f *fakeSuspender) Resume()  { f.resumes++ }

func TestApprovalLoop(t *testing.T) {
	gates := make(chan runner.Event, 2)
	gates <- runner.Event{Kind: runner.EventAwaitingApproval, Phase: "Strategy"}
	gates <- runner.Event{Kind: runner.EventAwaitingApproval, Phase: "Execution"}

	var out bytes.Buffer
	g := &fakeGate{}
	s := &fakeSuspender{}
	approvalLoop(context.Background(), gates, bufio.NewReader(strings.NewReader("Y\nno\n")), &out, s, g)

	assert.Equal(t, 1, g.approves)
	assert.Equal(t, 1, g.cancels)
	assert.Equal(t, 2, s.suspends)
	assert.Equal(t, 2, s.resumes)
	assert.Contains(t, out.String(), `Approve "Strategy" and continue? [y/N]`)
	assert.Contains(t, out.String(), `Approve "Execution"`)
}

func TestApprovalLoopEOFCancels(t *testing.T) {
	gates := make(chan runner.Event, 1)
	gates <- runner.Event{Kind: runner.EventAwaitingApproval, Phase: "Strategy"}

	g := &fakeGate{}
	approvalLoop(context.Background(), gates, bufio.NewReader(strings.NewReader("")), &bytes.Buffer{}, &fakeSuspender{}, g)
	assert.Zero(t, g.approves)
	assert.Equal(t, 1, g.cancels)
}

func TestApprovalLoopStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	g := &fakeGate{}
	approvalLoop(ctx, make(chan runner.Event), bufio.NewReader(strings.NewReader("y\n")), &bytes.Buffer{}, &fakeSuspender{}, g)
	assert.Zero(t, g.approves+g.cancels)
}

func TestIsStdinTerminal(t *testing.T) {
	assert.False(t, isStdinTerminal(strings.NewReader("")))
	assert.False(t, isTerminalWriter(&bytes.Buffer{}))

	f, err := os.CreateTemp(t.TempDir(), "stdin")
	require.NoError(t, err)
	defer f.Close()
	assert.False(t, isStdinTerminal(f))
}
