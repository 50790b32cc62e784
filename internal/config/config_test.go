package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
style: house
mood: chill
bpm: 124
min_clip_ms: 3000
idle_return_delay_ms: 250
library_path: custom/library.json
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "house", cfg.Style)
	assert.Equal(t, "chill", cfg.Mood)
	assert.Equal(t, 124.0, cfg.BPM)
	assert.Equal(t, 3000, cfg.MinClipMs)
	assert.Equal(t, 250, cfg.IdleReturnDelayMs)
	assert.Equal(t, "custom/library.json", cfg.LibraryPath)

	// Untouched fields keep their defaults.
	assert.Equal(t, 10000, cfg.MaxClipMs)
	assert.Equal(t, "medium", cfg.Intensity)
	assert.True(t, cfg.AllowTransitions)
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
	assert.Equal(t, Default(), cfg, "defaults come back even on failure")
}

func TestLoadMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("style: [unclosed"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}
