package batch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/posest/internal/geometry"
	"github.com/MeKo-Tech/posest/internal/pipeline"
	"github.com/MeKo-Tech/posest/internal/pnp"
	"github.com/MeKo-Tech/posest/internal/testutil"
)

func TestResolveIntrinsics(t *testing.T) {
	explicit := geometry.Intrinsics{Fx: 500, Fy: 510, Cx: 320, Cy: 240}
	k, err := resolveIntrinsics(&Config{Intrinsics: explicit, IntrinsicsFile: "/does/not/matter.yml"})
	require.NoError(t, err)
	assert.Equal(t, explicit, k)

	path := filepath.Join(t.TempDir(), "intrinsics.yml")
	require.NoError(t, os.WriteFile(path, []byte(testutil.IntrinsicsYAML(testutil.DefaultIntrinsics)), 0o600))
	k, err = resolveIntrinsics(&Config{IntrinsicsFile: path})
	require.NoError(t, err)
	assert.Equal(t, testutil.DefaultIntrinsics, k)

	_, err = resolveIntrinsics(&Config{IntrinsicsFile: path, IntrinsicsNode: "camera_matrix"})
	require.Error(t, err)

	_, err = resolveIntrinsics(&Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no intrinsics")
}

func TestBuildPipeline_BasicConfig(t *testing.T) {
	config := &Config{
		Intrinsics:     testutil.DefaultIntrinsics,
		GroundTruthDir: t.TempDir(),
		Workers:        3,
	}

	pl, err := buildPipeline(config, nil)
	require.NoError(t, err)
	require.NotNil(t, pl)

	cfg := pl.Config()
	assert.Equal(t, 3, cfg.Parallel.MaxWorkers)
	assert.Equal(t, pnp.DefaultConfig(), cfg.Solver)
	assert.Equal(t, pipeline.DepthPriorUnit, cfg.DepthPrior)
}

func TestBuildPipeline_SolverOverrides(t *testing.T) {
	config := &Config{
		Intrinsics:         testutil.DefaultIntrinsics,
		GroundTruthDir:     t.TempDir(),
		MinCorrespondences: 12,
		DepthPrior:         pipeline.DepthPriorConstant,
		Depth:              2,
		Solver: pnp.Config{
			ReprojectionError: 3,
			MaxIterations:     200,
			Seed:              99,
		},
	}

	pl, err := buildPipeline(config, nil)
	require.NoError(t, err)

	cfg := pl.Config()
	assert.InDelta(t, 3.0, cfg.Solver.ReprojectionError, 0)
	assert.Equal(t, 200, cfg.Solver.MaxIterations)
	assert.InDelta(t, pnp.DefaultConfidence, cfg.Solver.Confidence, 0)
	assert.Equal(t, pnp.DefaultRefineIterations, cfg.Solver.RefineIterations)
	assert.Equal(t, uint64(99), cfg.Solver.Seed)
	assert.Equal(t, 12, pl.Aligner.MinCorrespondences)
	assert.Equal(t, pipeline.DepthPriorConstant, cfg.DepthPrior)
}

func TestBuildPipeline_InvalidConfig(t *testing.T) {
	_, err := buildPipeline(&Config{Intrinsics: testutil.DefaultIntrinsics}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ground truth directory is required")

	_, err = buildPipeline(&Config{GroundTruthDir: t.TempDir()}, nil)
	require.Error(t, err)
}
