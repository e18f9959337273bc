package output

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/codebeauty/agentcy/internal/catalog"
	"github.com/codebeauty/agentcy/internal/config"
)

const PipelineFile = "pipeline.yaml"

var nonAlphaNum = regexp.MustCompile(`[^a-z0-9]+`)

// Slug lowercases s and collapses everything else to single dashes.
func Slug(s string) string {
	s = strings.Trim(nonAlphaNum.ReplaceAllString(strings.ToLower(s), "-"), "-")
	if len(s) > 40 {
		s = strings.TrimRight(s[:40], "-")
	}
	if s == "" {
		return "run"
	}
	return s
}

// RunDir creates <base>/<slug>-<unix seconds>.
func RunDir(baseDir, pipelineID string, now time.Time) (string, error) {
	path := filepath.Join(baseDir, fmt.Sprintf("%s-%d", Slug(pipelineID), now.Unix()))
	if err := os.MkdirAll(path, 0o700); err != nil {
		return "", fmt.Errorf("creating output dir: %w", err)
	}
	return path, nil
}

// WritePipeline snapshots the definition a run used so it can be replayed.
func WritePipeline(dir string, p *catalog.Pipeline) error {
	data, err := catalog.Marshal(p)
	if err != nil {
		return err
	}
	return config.AtomicWrite(filepath.Join(dir, PipelineFile), data, 0o600)
}
