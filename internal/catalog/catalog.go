// Package catalog stores pipeline definitions as YAML: the built-in presets
// shipped with the binary and user files under the config directory.
package catalog

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/codebeauty/agentcy/internal/config"
	"github.com/codebeauty/agentcy/internal/progression"
)

const fileExt = ".yaml"

var validID = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

// ErrNotFound is returned by Load when neither a user file nor a built-in
// pipeline has the requested ID.
var ErrNotFound = errors.New("pipeline not found")

//go:embed builtin/*.yaml
var builtinFS embed.FS

// Pipeline is a named, ordered list of approval-gated phases.
type Pipeline struct {
	ID          string              `yaml:"id" json:"id"`
	Title       string              `yaml:"title" json:"title"`
	Description string              `yaml:"description,omitempty" json:"description,omitempty"`
	Next        string              `yaml:"next,omitempty" json:"next,omitempty"`
	Phases      []progression.Phase `yaml:"phases" json:"phases"`
}

// Validate checks the ID and that the phases can drive a run.
func (p *Pipeline) Validate() error {
	if err := ValidateID(p.ID); err != nil {
		return err
	}
	if err := progression.Validate(p.Phases); err != nil {
		return fmt.Errorf("pipeline %q: %w", p.ID, err)
	}
	return nil
}

// AgentCount sums the agents across all phases.
func (p *Pipeline) AgentCount() int {
	n := 0
	for _, ph := range p.Phases {
		n += len(ph.Agents)
	}
	return n
}

// TaskCount sums the tasks across all agents.
func (p *Pipeline) TaskCount() int {
	n := 0
	for _, ph := range p.Phases {
		for _, a := range ph.Agents {
			n += len(a.Tasks)
		}
	}
	return n
}

// ValidateID checks that a pipeline ID is safe for use as a filename.
func ValidateID(id string) error {
	if !validID.MatchString(id) {
		return fmt.Errorf("invalid pipeline ID %q: must match [a-zA-Z0-9._-]+", id)
	}
	return nil
}

// Dir returns the directory holding user pipeline files.
func Dir() string {
	return filepath.Join(config.GlobalConfigDir(), "pipelines")
}

// Parse decodes and validates a YAML pipeline. Unknown fields are rejected
// so typos in hand-written files surface early.
func Parse(data []byte) (*Pipeline, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var p Pipeline
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("parsing pipeline: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Marshal encodes a pipeline with two-space indentation.
func Marshal(p *Pipeline) ([]byte, error) {
	var b bytes.Buffer
	enc := yaml.NewEncoder(&b)
	enc.SetIndent(2)
	if err := enc.Encode(p); err != nil {
		return nil, fmt.Errorf("encoding pipeline %q: %w", p.ID, err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

// BuiltinIDs returns the sorted IDs of the shipped pipelines.
func BuiltinIDs() []string {
	entries, err := builtinFS.ReadDir("builtin")
	if err != nil {
		return nil
	}
	var ids []string
	for _, e := range entries {
		ids = append(ids, strings.TrimSuffix(e.Name(), fileExt))
	}
	sort.Strings(ids)
	return ids
}

// BuiltinSource returns the raw YAML of a shipped pipeline.
func BuiltinSource(id string) ([]byte, bool) {
	if ValidateID(id) != nil {
		return nil, false
	}
	data, err := builtinFS.ReadFile("builtin/" + id + fileExt)
	if err != nil {
		return nil, false
	}
	return data, true
}

// Builtin parses a shipped pipeline.
func Builtin(id string) (*Pipeline, error) {
	data, ok := BuiltinSource(id)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return Parse(data)
}

// Load reads {dir}/{id}.yaml, falling back to the built-in pipeline of the
// same ID. A user file shadows the built-in.
func Load(id, dir string) (*Pipeline, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, id+fileExt))
	switch {
	case err == nil:
		p, perr := Parse(data)
		if perr != nil {
			return nil, fmt.Errorf("loading %s: %w", filepath.Join(dir, id+fileExt), perr)
		}
		if p.ID != id {
			return nil, fmt.Errorf("loading %s: file declares id %q", filepath.Join(dir, id+fileExt), p.ID)
		}
		return p, nil
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("loading pipeline %q: %w", id, err)
	}
	return Builtin(id)
}

// List returns the sorted union of user pipeline files in dir and the
// built-in IDs. A missing dir is not an error.
func List(dir string) ([]string, error) {
	seen := make(map[string]bool)
	for _, id := range BuiltinIDs() {
		seen[id] = true
	}
	entries, err := os.ReadDir(dir)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), fileExt) {
			continue
		}
		id := strings.TrimSuffix(e.Name(), fileExt)
		if ValidateID(id) == nil && !strings.HasSuffix(id, ".backup") {
			seen[id] = true
		}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// SyncAction tells SyncBuiltins what to do with a user file that differs from
// the shipped version.
type SyncAction int

const (
	SyncSkip SyncAction = iota
	SyncOverwrite
	SyncBackup
)

// DiffFunc is consulted for each built-in whose user copy was edited.
type DiffFunc func(id, existing, builtin string) SyncAction

// SyncBuiltins writes the shipped pipelines into dir. Identical files are left
// alone; edited ones are skipped unless onDiff says otherwise. It returns the
// number of files written.
func SyncBuiltins(dir string, onDiff DiffFunc) (int, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return 0, fmt.Errorf("creating pipeline dir: %w", err)
	}
	written := 0
	for _, id := range BuiltinIDs() {
		builtin, _ := BuiltinSource(id)
		path := filepath.Join(dir, id+fileExt)

		existing, err := os.ReadFile(path)
		if err == nil {
			if bytes.Equal(existing, builtin) {
				continue
			}
			action := SyncSkip
			if onDiff != nil {
				action = onDiff(id, string(existing), string(builtin))
			}
			switch action {
			case SyncSkip:
				continue
			case SyncBackup:
				backup := filepath.Join(dir, id+".backup"+fileExt)
				if err := config.AtomicWrite(backup, existing, 0o600); err != nil {
					return written, fmt.Errorf("backing up %s: %w", id, err)
				}
			}
		} else if !os.IsNotExist(err) {
			return written, err
		}

		if err := config.AtomicWrite(path, builtin, 0o600); err != nil {
			return written, fmt.Errorf("writing %s: %w", id, err)
		}
		written++
	}
	return written, nil
}

// Save validates p and writes it to {dir}/{id}.yaml.
func Save(p *Pipeline, dir string) error {
	if err := p.Validate(); err != nil {
		return err
	}
	data, err := Marshal(p)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	return config.AtomicWrite(filepath.Join(dir, p.ID+fileExt), data, 0o600)
}
