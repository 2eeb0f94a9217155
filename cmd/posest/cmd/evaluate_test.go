package cmd

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/posest/internal/testutil"
)

func ftoa(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

func TestEvaluateCommandRequiresGroundTruth(t *testing.T) {
	path := filepath.Join(t.TempDir(), "poses.txt")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	_, _, err := execute(t, "evaluate", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no ground truth directory")
}

func TestEvaluateCommandEmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "poses.txt")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	stdout, _, err := execute(t, "evaluate", path, "--ground-truth", dir)
	require.NoError(t, err)
	assert.Equal(t, "Evaluated 0 poses\nMean Rotation Error: 0.00\nMean Translation Error: 0.00\n", stdout)
}

func TestEvaluateCommandMissingFile(t *testing.T) {
	_, _, err := execute(t, "evaluate", "/nonexistent/poses.txt", "-g", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open pose file")
}

func TestEstimateThenEvaluate(t *testing.T) {
	ds := testutil.WriteDataset(t, t.TempDir(), []int{1, 2, 3}, testutil.DatasetOptions{Seed: 51})
	poses := filepath.Join(ds.Root, "estimated_poses.txt")

	_, _, err := execute(t, datasetArgs(ds, "-o", poses)...)
	require.NoError(t, err)

	// Query ground truth: frame 3 is left out and must be skipped.
	queryGT := filepath.Join(ds.Root, "query")
	require.NoError(t, testutil.EnsureDir(queryGT))
	for _, f := range ds.Frames[:2] {
		testutil.WriteGroundTruth(t, queryGT, f.Index, f.QueryPose)
	}

	metricsPath := filepath.Join(ds.Root, "eval.prom")
	stdout, stderr, err := execute(t, "evaluate", poses, "-g", queryGT, "--metrics-file", metricsPath)
	require.NoError(t, err)
	assert.Equal(t, "Evaluated 2 poses\nMean Rotation Error: 0.00\nMean Translation Error: 0.00\n", stdout)
	assert.Contains(t, stderr, "ground truth pose not found")

	data, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "posest_poses_evaluated 2")
	assert.Contains(t, string(data), "posest_poses_missing_ground_truth 1")
}

func TestEvaluateCommandSkipsMalformedRecords(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteGroundTruth(t, dir, 7, testutil.RandomPose(testutil.NewRNG(1), 0.3, 1))

	path := filepath.Join(dir, "poses.txt")
	content := "frame-000007:\n1 0 0\n0 1 0 0\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	stdout, stderr, err := execute(t, "evaluate", path, "-g", dir)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Evaluated 0 poses")
	assert.Contains(t, stderr, "Skipping malformed pose record")
}
