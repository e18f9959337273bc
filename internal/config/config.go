package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/codebeauty/agentcy/internal/logging"
	"github.com/codebeauty/agentcy/internal/publish"
)

const (
	appName         = "agentcy"
	ProjectFileName = ".agentcy.json"
)

type Config struct {
	Version   int            `json:"version"`
	Defaults  DefaultsConfig `json:"defaults"`
	Platforms []string       `json:"platforms"`
}

type DefaultsConfig struct {
	DwellMs     int    `json:"dwellMs"`
	OutputDir   string `json:"outputDir"`
	AutoApprove bool   `json:"autoApprove"`
	MaxParallel int    `json:"maxParallel"`
	LogLevel    string `json:"logLevel"`
	Pipeline    string `json:"pipeline"`
}

func NewDefaults() *Config {
	return &Config{
		Version: 1,
		Defaults: DefaultsConfig{
			DwellMs:     800,
			OutputDir:   "./agents/agentcy",
			MaxParallel: 4,
			LogLevel:    logging.LevelInfo,
			Pipeline:    "campaign",
		},
		Platforms: append([]string(nil), publish.DefaultSelection...),
	}
}

// Dwell is the per-task delay as a duration.
func (c *Config) Dwell() time.Duration {
	return time.Duration(c.Defaults.DwellMs) * time.Millisecond
}

// Validate rejects values that would make a run impossible.
func (c *Config) Validate() error {
	var errs []error
	if c.Defaults.DwellMs <= 0 {
		errs = append(errs, fmt.Errorf("defaults.dwellMs must be positive, got %d", c.Defaults.DwellMs))
	}
	if c.Defaults.MaxParallel < 1 {
		errs = append(errs, fmt.Errorf("defaults.maxParallel must be at least 1, got %d", c.Defaults.MaxParallel))
	}
	if !logging.ValidLevel(c.Defaults.LogLevel) {
		errs = append(errs, fmt.Errorf("defaults.logLevel %q must be DEBUG, INFO, WARN or ERROR", c.Defaults.LogLevel))
	}
	if c.Defaults.OutputDir == "" {
		errs = append(errs, errors.New("defaults.outputDir must not be empty"))
	}
	if _, err := publish.Lookup(c.Platforms); err != nil {
		errs = append(errs, fmt.Errorf("platforms: %w", err))
	}
	return errors.Join(errs...)
}

// GlobalConfigDir prefers the macOS application support directory when it
// already exists, then XDG_CONFIG_HOME.
func GlobalConfigDir() string {
	home := os.Getenv("HOME")
	macOSPath := filepath.Join(home, "Library", "Application Support", appName)
	if _, err := os.Stat(macOSPath); err == nil {
		return macOSPath
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appName)
	}
	return filepath.Join(home, ".config", appName)
}

func GlobalConfigPath() string {
	return filepath.Join(GlobalConfigDir(), "config.json")
}

func LoadFromFile(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	// Security: refuse to load config writable by group/others
	if info.Mode().Perm()&0o022 != 0 {
		return nil, fmt.Errorf("config %s has unsafe permissions %o (writable by group/others)", path, info.Mode().Perm())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := NewDefaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}

// ProjectDefaults holds per-project overrides loaded from .agentcy.json.
type ProjectDefaults struct {
	DwellMs     *int    `json:"dwellMs,omitempty"`
	OutputDir   *string `json:"outputDir,omitempty"`
	AutoApprove *bool   `json:"autoApprove,omitempty"`
	MaxParallel *int    `json:"maxParallel,omitempty"`
	LogLevel    *string `json:"logLevel,omitempty"`
	Pipeline    *string `json:"pipeline,omitempty"`
}

type ProjectConfig struct {
	Defaults  *ProjectDefaults `json:"defaults,omitempty"`
	Platforms []string         `json:"platforms,omitempty"`
}

// LoadProjectConfig reads .agentcy.json from dir. Returns nil if not found.
func LoadProjectConfig(dir string) (*ProjectConfig, error) {
	path := filepath.Join(dir, ProjectFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading project config: %w", err)
	}
	var pc ProjectConfig
	if err := json.Unmarshal(data, &pc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &pc, nil
}

// MergeWithProject applies project-level overrides to the global config.
// A non-empty platform list replaces the global one.
func MergeWithProject(cfg *Config, pc *ProjectConfig) {
	if pc == nil {
		return
	}
	if len(pc.Platforms) > 0 {
		cfg.Platforms = append([]string(nil), pc.Platforms...)
	}
	d := pc.Defaults
	if d == nil {
		return
	}
	if d.DwellMs != nil {
		cfg.Defaults.DwellMs = *d.DwellMs
	}
	if d.OutputDir != nil {
		cfg.Defaults.OutputDir = *d.OutputDir
	}
	if d.AutoApprove != nil {
		cfg.Defaults.AutoApprove = *d.AutoApprove
	}
	if d.MaxParallel != nil {
		cfg.Defaults.MaxParallel = *d.MaxParallel
	}
	if d.LogLevel != nil {
		cfg.Defaults.LogLevel = *d.LogLevel
	}
	if d.Pipeline != nil {
		cfg.Defaults.Pipeline = *d.Pipeline
	}
}

func Load() (*Config, error) {
	path := GlobalConfigPath()
	cfg, err := LoadFromFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewDefaults(), nil
		}
		return nil, fmt.Errorf("global config: %w", err)
	}
	return cfg, nil
}

// LoadMerged loads global config, merges project-level overrides from the
// .agentcy.json in projectDir and validates the result.
func LoadMerged(projectDir string) (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}
	pc, err := LoadProjectConfig(projectDir)
	if err != nil {
		return nil, fmt.Errorf("project config: %w", err)
	}
	MergeWithProject(cfg, pc)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func Save(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return AtomicWrite(path, data, 0o600)
}

// AtomicWrite writes data to a temp file in the target directory and renames
// it into place.
func AtomicWrite(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+appName+"-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), perm); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
