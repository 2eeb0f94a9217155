package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs a fresh command tree in an isolated home and working
// directory and returns what it wrote to stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", home)
	t.Chdir(t.TempDir())

	var stdout, stderr bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	assert.Equal(t, "posest", cmd.Use)
	assert.NotEmpty(t, cmd.Short)
	assert.NotEmpty(t, cmd.Long)
}

func TestRootCommandHelp(t *testing.T) {
	stdout, _, err := execute(t, "--help")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Map-relative camera pose estimation")
	assert.Contains(t, stdout, "Available Commands:")
	assert.Contains(t, stdout, "Usage:")
}

func TestRootCommandVersion(t *testing.T) {
	stdout, _, err := execute(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, stdout, "posest version dev")
	assert.Contains(t, stdout, "Commit: unknown")
	assert.Contains(t, stdout, "Date: unknown")
}

func TestRootCommandSubcommands(t *testing.T) {
	cmd := NewRootCommand()
	names := make([]string, 0, len(cmd.Commands()))
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	for _, expected := range []string{"estimate", "evaluate", "pairs", "bench"} {
		assert.Contains(t, names, expected, "Expected subcommand '%s' not found", expected)
	}
}

func TestRootCommandInvalidFlag(t *testing.T) {
	_, stderr, err := execute(t, "--invalid-flag")
	require.Error(t, err)
	assert.Contains(t, stderr, "unknown flag")
}

func TestRootCommandIndependentTrees(t *testing.T) {
	first := NewRootCommand()
	second := NewRootCommand()
	require.NoError(t, first.PersistentFlags().Set("log-level", "debug"))

	level, err := second.PersistentFlags().GetString("log-level")
	require.NoError(t, err)
	assert.Equal(t, "info", level)
}

func TestRootCommandConfigErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, _, err := execute(t, "--config", "/nonexistent/posest.yaml", "pairs", ".")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "error loading configuration")
	})

	t.Run("invalid log level", func(t *testing.T) {
		_, _, err := execute(t, "--log-level", "loud", "pairs", ".")
		require.Error(t, err)
	})
}
