package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/posest/internal/testutil"
)

func TestBenchCommand(t *testing.T) {
	ds := testutil.WriteDataset(t, t.TempDir(), []int{1, 2}, testutil.DatasetOptions{Seed: 71, Points: 20})

	stdout, _, err := execute(t,
		"bench", ds.MatchesDir,
		"-g", ds.GroundTruthDir,
		"--intrinsics", ds.IntrinsicsFile,
		"--worker-counts", "1,2",
		"--iterations", "1",
	)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Worker Scaling:")
	assert.Contains(t, stdout, "1.00x")
}

func TestBenchCommandInvalidWorkers(t *testing.T) {
	ds := testutil.WriteDataset(t, t.TempDir(), []int{1}, testutil.DatasetOptions{Seed: 72})

	_, _, err := execute(t, "bench", ds.MatchesDir, "--intrinsics", ds.IntrinsicsFile, "--worker-counts", "0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid worker count")
}
