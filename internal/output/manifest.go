package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/codebeauty/agentcy/internal/config"
	"github.com/codebeauty/agentcy/internal/publish"
	"github.com/codebeauty/agentcy/internal/runner"
)

const ManifestFile = "run.json"

type Manifest struct {
	Version        int                  `json:"version"`
	RunID          string               `json:"runId"`
	Pipeline       string               `json:"pipeline"`
	Title          string               `json:"title,omitempty"`
	Next           string               `json:"next,omitempty"`
	Outcome        string               `json:"outcome"`
	StartedAt      time.Time            `json:"startedAt"`
	CompletedAt    time.Time            `json:"completedAt"`
	Duration       string               `json:"duration"`
	Platform       string               `json:"platform"`
	Config         ManifestConfig       `json:"config"`
	PhasesApproved int                  `json:"phasesApproved"`
	Phases         []runner.PhaseResult `json:"phases"`
	Publish        *publish.Result      `json:"publish,omitempty"`
}

type ManifestConfig struct {
	DwellMs     int  `json:"dwellMs"`
	AutoApprove bool `json:"autoApprove"`
	MaxParallel int  `json:"maxParallel"`
}

// RunInfo is the pipeline metadata recorded alongside a result.
type RunInfo struct {
	Title string
	Next  string
}

func ReadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", ManifestFile, err)
	}
	return &m, nil
}

func WriteManifest(dir string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return config.AtomicWrite(filepath.Join(dir, ManifestFile), data, 0o600)
}

// BuildManifest records a finished run. pub is nil when nothing was
// published.
func BuildManifest(info RunInfo, res runner.Result, pub *publish.Result, cfg ManifestConfig) *Manifest {
	completedAt := res.StartedAt.Add(res.Duration)
	if pub != nil {
		completedAt = completedAt.Add(pub.Duration)
	}
	return &Manifest{
		Version:        1,
		RunID:          res.RunID,
		Pipeline:       res.Pipeline,
		Title:          info.Title,
		Next:           info.Next,
		Outcome:        string(res.Outcome),
		StartedAt:      res.StartedAt,
		CompletedAt:    completedAt,
		Duration:       completedAt.Sub(res.StartedAt).Round(time.Millisecond).String(),
		Platform:       runtime.GOOS + "/" + runtime.GOARCH,
		Config:         cfg,
		PhasesApproved: res.PhasesApproved,
		Phases:         res.Phases,
		Publish:        pub,
	}
}
