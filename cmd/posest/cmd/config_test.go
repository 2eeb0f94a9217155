package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/MeKo-Tech/posest/internal/config"
)

func TestConfigInitWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")

	stdout, _, err := execute(t, "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Wrote "+path)

	cfg, err := config.NewLoader().LoadWithFile(path)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig().Solver, cfg.Solver)

	_, _, err = execute(t, "config", "init", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, _, err = execute(t, "config", "init", path, "--force")
	require.NoError(t, err)
}

func TestConfigShowReflectsFileAndFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "posest.yaml")
	require.NoError(t, os.WriteFile(path, []byte("solver:\n  seed: 17\npairs:\n  window: 2\n"), 0o600))

	stdout, stderr, err := execute(t, "--config", path, "--log-level", "warn", "config", "show")
	require.NoError(t, err)
	assert.Contains(t, stderr, "Configuration file used: "+path)

	var shown config.Config
	require.NoError(t, yaml.Unmarshal([]byte(stdout), &shown))
	assert.Equal(t, uint64(17), shown.Solver.Seed)
	assert.Equal(t, 2, shown.Pairs.Window)
	assert.Equal(t, "warn", shown.LogLevel)
}
