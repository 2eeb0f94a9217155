package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/posest/internal/posefile"
	"github.com/MeKo-Tech/posest/internal/testutil"
)

func datasetArgs(ds testutil.Dataset, extra ...string) []string {
	args := []string{
		"estimate", ds.MatchesDir,
		"--ground-truth", ds.GroundTruthDir,
		"--intrinsics", ds.IntrinsicsFile,
		"--workers", "2",
	}
	return append(args, extra...)
}

func TestEstimateCommandFlags(t *testing.T) {
	cmd, _, err := NewRootCommand().Find([]string{"estimate"})
	require.NoError(t, err)

	for _, name := range []string{
		"intrinsics", "intrinsics-node", "fx", "fy", "cx", "cy", "ground-truth", "pose-template",
		"min-correspondences", "depth-prior", "depth", "reprojection-error", "confidence",
		"max-iterations", "refine-iterations", "seed", "format", "output", "metrics-file",
		"workers", "recursive", "include", "exclude", "progress", "quiet", "stats", "progress-interval",
	} {
		assert.NotNil(t, cmd.Flags().Lookup(name), "flag %s", name)
	}
	assert.Equal(t, "g", cmd.Flags().Lookup("ground-truth").Shorthand)
	assert.Equal(t, "poses", cmd.Flags().Lookup("format").DefValue)
}

func TestEstimateCommandRequiresArgs(t *testing.T) {
	_, _, err := execute(t, "estimate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires at least 1 arg")
}

func TestEstimateCommandWritesPoses(t *testing.T) {
	ds := testutil.WriteDataset(t, t.TempDir(), []int{2, 5}, testutil.DatasetOptions{Seed: 41, Unmatched: 4})

	stdout, stderr, err := execute(t, datasetArgs(ds)...)
	require.NoError(t, err, stderr)

	records, skipped, err := posefile.Decode(strings.NewReader(stdout))
	require.NoError(t, err)
	assert.Empty(t, skipped)
	require.Len(t, records, 2)
	assert.Equal(t, "frame-000002", records[0].Name)
	assert.Equal(t, "frame-000005", records[1].Name)
	assert.Contains(t, stderr, "Pose estimation completed")
}

func TestEstimateCommandOutputFile(t *testing.T) {
	ds := testutil.WriteDataset(t, t.TempDir(), []int{1}, testutil.DatasetOptions{Seed: 42})
	out := filepath.Join(ds.Root, "estimated_poses.txt")

	stdout, _, err := execute(t, datasetArgs(ds, "--output", out)...)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Results written to "+out)

	records, _, err := posefile.ReadFile(out)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 1, records[0].Frame)
}

func TestEstimateCommandJSONAndStats(t *testing.T) {
	ds := testutil.WriteDataset(t, t.TempDir(), []int{3, 4}, testutil.DatasetOptions{Seed: 43})

	stdout, stderr, err := execute(t, datasetArgs(ds, "--format", "json", "--output", filepath.Join(ds.Root, "poses.json"), "--stats")...)
	require.NoError(t, err)
	assert.Contains(t, stderr, "Processing Statistics:")
	assert.Contains(t, stderr, "Solved")
	assert.NotContains(t, stdout, "Processing Statistics:")

	data, err := os.ReadFile(filepath.Join(ds.Root, "poses.json"))
	require.NoError(t, err)
	assert.True(t, json.Valid(data))
}

func TestEstimateCommandStatsKeepStdoutParseable(t *testing.T) {
	ds := testutil.WriteDataset(t, t.TempDir(), []int{1, 2}, testutil.DatasetOptions{Seed: 45})

	stdout, stderr, err := execute(t, datasetArgs(ds, "--stats")...)
	require.NoError(t, err, stderr)
	assert.Contains(t, stderr, "Processing Statistics:")

	records, skipped, err := posefile.Decode(strings.NewReader(stdout))
	require.NoError(t, err)
	assert.Empty(t, skipped)
	assert.Len(t, records, 2)
}

func TestEstimateCommandExplicitIntrinsics(t *testing.T) {
	ds := testutil.WriteDataset(t, t.TempDir(), []int{6}, testutil.DatasetOptions{Seed: 44})
	k := testutil.DefaultIntrinsics

	stdout, _, err := execute(t,
		"estimate", ds.MatchesDir,
		"-g", ds.GroundTruthDir,
		"--fx", ftoa(k.Fx), "--fy", ftoa(k.Fy), "--cx", ftoa(k.Cx), "--cy", ftoa(k.Cy),
	)
	require.NoError(t, err)
	assert.Contains(t, stdout, "frame-000006:")
}

func TestEstimateCommandMetricsFile(t *testing.T) {
	ds := testutil.WriteDataset(t, t.TempDir(), []int{1, 2}, testutil.DatasetOptions{Seed: 45})
	path := filepath.Join(ds.Root, "estimate.prom")

	_, _, err := execute(t, datasetArgs(ds, "--metrics-file", path)...)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "posest_frames_total")
	assert.Contains(t, string(data), `outcome="solved"`)
}

func TestEstimateCommandErrors(t *testing.T) {
	ds := testutil.WriteDataset(t, t.TempDir(), []int{1}, testutil.DatasetOptions{Seed: 46})

	t.Run("no intrinsics", func(t *testing.T) {
		_, _, err := execute(t, "estimate", ds.MatchesDir, "-g", ds.GroundTruthDir)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no intrinsics")
	})

	t.Run("unknown format", func(t *testing.T) {
		_, _, err := execute(t, datasetArgs(ds, "--format", "xml")...)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to save results")
	})

	t.Run("no files", func(t *testing.T) {
		_, _, err := execute(t, "estimate", t.TempDir(), "--intrinsics", ds.IntrinsicsFile)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no correspondence files found")
	})
}
