package catalog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codebeauty/agentcy/internal/config"
	"github.com/codebeauty/agentcy/internal/progression"
)

func TestBuiltinIDs(t *testing.T) {
	assert.Equal(t, []string{"campaign", "processing"}, BuiltinIDs())
}

func TestBuiltinsAreValid(t *testing.T) {
	for _, id := range BuiltinIDs() {
		t.Run(id, func(t *testing.T) {
			p, err := Builtin(id)
			require.NoError(t, err)
			assert.Equal(t, id, p.ID)
			assert.NotEmpty(t, p.Title)
			assert.Equal(t, "campaign-strategy", p.Next)
		})
	}
}

func TestProcessingPipelineShape(t *testing.T) {
	p, err := Builtin("processing")
	require.NoError(t, err)
	require.Len(t, p.Phases, 1)

	var ids []string
	for _, a := range p.Phases[0].Agents {
		ids = append(ids, a.ID)
		assert.Len(t, a.Tasks, 5, a.ID)
	}
	assert.Equal(t, []string{"extractor", "master", "marketing", "legal", "creative", "distribution"}, ids)
	assert.Equal(t, "Processing image data...", p.Phases[0].Agents[0].Tasks[0])
	assert.Equal(t, 30, p.TaskCount())
}

func TestCampaignPipelineShape(t *testing.T) {
	p, err := Builtin("campaign")
	require.NoError(t, err)

	var labels []string
	for _, ph := range p.Phases {
		labels = append(labels, ph.Label)
	}
	assert.Equal(t, []string{"Strategy & Planning", "Marketing Execution", "Content Creation"}, labels)
	assert.Equal(t, 10, p.AgentCount())
}

func TestValidateID(t *testing.T) {
	tests := []struct {
		id    string
		valid bool
	}{
		{"campaign", true},
		{"my-pipeline", true},
		{"launch_v2", true},
		{"launch.v2", true},
		{"../escape", false},
		{"path/traversal", false},
		{"has space", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			err := ValidateID(tt.id)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestDirMatchesConfigDir(t *testing.T) {
	assert.Equal(t, filepath.Join(config.GlobalConfigDir(), "pipelines"), Dir())
}

const customYAML = `id: launch
title: Launch
phases:
  - label: Only
    agents:
      - id: solo
        name: Solo Agent
        tasks: [one, two]
`

func TestParse(t *testing.T) {
	p, err := Parse([]byte(customYAML))
	require.NoError(t, err)
	assert.Equal(t, "launch", p.ID)
	assert.Equal(t, []string{"one", "two"}, p.Phases[0].Agents[0].Tasks)
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown field", customYAML + "colour: red\n"},
		{"no phases", "id: x\ntitle: X\n"},
		{"agent without tasks", "id: x\nphases:\n  - label: P\n    agents:\n      - id: a\n"},
		{"bad id", "id: ../x\nphases: []\n"},
		{"not yaml", ":::"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestParseEmptyAgentsWrapsSentinel(t *testing.T) {
	_, err := Parse([]byte("id: x\nphases:\n  - label: P\n"))
	assert.ErrorIs(t, err, progression.ErrEmptyConfiguration)
}

func TestMarshalParse(t *testing.T) {
	p, err := Builtin("campaign")
	require.NoError(t, err)
	data, err := Marshal(p)
	require.NoError(t, err)
	back, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, p, back)
}

func TestLoadPrefersUserFile(t *testing.T) {
	dir := t.TempDir()
	override := strings.Replace(customYAML, "id: launch", "id: campaign", 1)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "campaign.yaml"), []byte(override), 0o600))

	p, err := Load("campaign", dir)
	require.NoError(t, err)
	assert.Len(t, p.Phases, 1)
}

func TestLoadFallsBackToBuiltin(t *testing.T) {
	p, err := Load("processing", t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "Agent Processing", p.Phases[0].Label)
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load("nonexistent", dir)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = Load("../escape", dir)
	assert.ErrorContains(t, err, "invalid pipeline ID")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "mismatch.yaml"), []byte(customYAML), 0o600))
	_, err = Load("mismatch", dir)
	assert.ErrorContains(t, err, `declares id "launch"`)
}

func TestList(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "launch.yaml"), []byte(customYAML), 0o600)
	os.WriteFile(filepath.Join(dir, "campaign.backup.yaml"), []byte("x"), 0o600)
	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600)

	ids, err := List(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"campaign", "launch", "processing"}, ids)
}

func TestListMissingDir(t *testing.T) {
	ids, err := List(filepath.Join(t.TempDir(), "missing"))
	require.NoError(t, err)
	assert.Equal(t, BuiltinIDs(), ids)
}

func TestSyncBuiltins(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "pipelines")
	written, err := SyncBuiltins(dir, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, written)

	info, err := os.Stat(filepath.Join(dir, "campaign.yaml"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	written, err = SyncBuiltins(dir, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, written, "identical files are left alone")
}

func TestSyncBuiltinsDiffActions(t *testing.T) {
	tests := []struct {
		action  SyncAction
		written int
		kept    bool
		backup  bool
	}{
		{SyncSkip, 1, true, false},
		{SyncOverwrite, 2, false, false},
		{SyncBackup, 2, false, true},
	}
	for _, tt := range tests {
		t.Run("", func(t *testing.T) {
			dir := t.TempDir()
			os.WriteFile(filepath.Join(dir, "campaign.yaml"), []byte("edited"), 0o600)

			var seen []string
			written, err := SyncBuiltins(dir, func(id, existing, builtin string) SyncAction {
				seen = append(seen, id)
				assert.Equal(t, "edited", existing)
				return tt.action
			})
			require.NoError(t, err)
			assert.Equal(t, []string{"campaign"}, seen)
			assert.Equal(t, tt.written, written)

			data, _ := os.ReadFile(filepath.Join(dir, "campaign.yaml"))
			assert.Equal(t, tt.kept, string(data) == "edited")

			_, err = os.Stat(filepath.Join(dir, "campaign.backup.yaml"))
			assert.Equal(t, tt.backup, err == nil)
		})
	}
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	p, err := Parse([]byte(customYAML))
	require.NoError(t, err)
	require.NoError(t, Save(p, dir))

	loaded, err := Load("launch", dir)
	require.NoError(t, err)
	assert.Equal(t, p, loaded)

	assert.Error(t, Save(&Pipeline{ID: "empty"}, dir))
}
