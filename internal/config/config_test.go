package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, Validate(cfg))
	assert.Equal(t, "gutmann", cfg.Wipe.Method)
	assert.Equal(t, 0, cfg.Wipe.Passes)
	assert.True(t, cfg.Exclusion.LiveScan)
	assert.Contains(t, cfg.Exclusion.ForbiddenMounts, "/proc")
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverridesOnlyGivenFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrm.yaml")
	data := []byte("wipe:\n  method: dod\n  passes: 4\nlogging:\n  level: DEBUG\n")
	require.NoError(t, os.WriteFile(path, data, 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "dod", cfg.Wipe.Method)
	assert.Equal(t, 4, cfg.Wipe.Passes)
	assert.Equal(t, "DEBUG", cfg.Logging.Level)
	assert.Equal(t, int64(1024*1024), cfg.Wipe.BufferSize)
	assert.Equal(t, "SECRM_FILEBAN", cfg.Ban.FileEnv)
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("wipe:\n  method: rot13\n"), 0600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid wipe method")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative passes", func(c *Config) { c.Wipe.Passes = -1 }},
		{"too many passes", func(c *Config) { c.Wipe.Passes = 101 }},
		{"zero buffer", func(c *Config) { c.Wipe.BufferSize = 0 }},
		{"relative mount", func(c *Config) { c.Exclusion.ForbiddenMounts = []string{"proc"} }},
		{"root mount", func(c *Config) { c.Exclusion.ForbiddenMounts = []string{"/"} }},
		{"empty valuable name", func(c *Config) { c.Exclusion.ValuableNames = []string{""} }},
		{"bad level", func(c *Config) { c.Logging.Level = "TRACE" }},
		{"bad report format", func(c *Config) { c.Reporting.Enabled = true; c.Reporting.Format = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, Validate(cfg))
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "secrm.yaml")
	cfg := Default()
	cfg.Wipe.Method = "schneier"
	cfg.Wipe.ZeroPass = true
	require.NoError(t, Save(cfg, path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestApplyProfile(t *testing.T) {
	for _, name := range ListProfiles() {
		cfg := Default()
		require.NoError(t, ApplyProfile(cfg, name), name)
		assert.NoError(t, Validate(cfg), name)
	}

	cfg := Default()
	require.NoError(t, ApplyProfile(cfg, "fast"))
	assert.Equal(t, "random", cfg.Wipe.Method)
	assert.Equal(t, 1, cfg.Wipe.Passes)

	assert.Error(t, ApplyProfile(Default(), "turbo"))
}

func TestIterationsFromEnv(t *testing.T) {
	cfg := Default()

	t.Setenv("SECRM_ITERATIONS", "")
	_, ok := cfg.IterationsFromEnv()
	assert.False(t, ok)

	t.Setenv("SECRM_ITERATIONS", "many")
	_, ok = cfg.IterationsFromEnv()
	assert.False(t, ok)

	t.Setenv("SECRM_ITERATIONS", "-3")
	_, ok = cfg.IterationsFromEnv()
	assert.False(t, ok)

	t.Setenv("SECRM_ITERATIONS", " 35 ")
	n, ok := cfg.IterationsFromEnv()
	assert.True(t, ok)
	assert.Equal(t, uint64(35), n)
}
