package batch

import (
	"errors"

	"github.com/MeKo-Tech/posest/internal/calib"
	"github.com/MeKo-Tech/posest/internal/geometry"
	"github.com/MeKo-Tech/posest/internal/pipeline"
)

// resolveIntrinsics returns the explicit intrinsics when set, otherwise
// loads them from the calibration file.
func resolveIntrinsics(config *Config) (geometry.Intrinsics, error) {
	if config.Intrinsics.Fx != 0 || config.Intrinsics.Fy != 0 {
		return config.Intrinsics, nil
	}
	if config.IntrinsicsFile == "" {
		return geometry.Intrinsics{}, errors.New("no intrinsics: set fx/fy/cx/cy or an intrinsics file")
	}
	node := config.IntrinsicsNode
	if node == "" {
		node = calib.DefaultNode
	}
	return calib.LoadIntrinsics(config.IntrinsicsFile, node)
}

// buildPipeline creates an estimation pipeline from the batch configuration.
func buildPipeline(config *Config, progressCallback pipeline.ProgressCallback) (*pipeline.Pipeline, error) {
	k, err := resolveIntrinsics(config)
	if err != nil {
		return nil, err
	}

	b := pipeline.NewBuilder().
		WithIntrinsics(k).
		WithGroundTruthDir(config.GroundTruthDir, config.PoseTemplate).
		WithMinCorrespondences(config.MinCorrespondences).
		WithDepthPrior(config.DepthPrior, config.Depth).
		WithParallelWorkers(config.Workers).
		WithProgressCallback(progressCallback)

	b = configureSolver(b, config)
	if config.Logger != nil {
		b = b.WithLogger(config.Logger)
	}
	if config.Observer != nil {
		b = b.WithObserver(config.Observer)
	}

	return b.Build()
}

// configureSolver overrides the solver defaults with the non-zero fields of
// the batch configuration.
func configureSolver(b *pipeline.Builder, config *Config) *pipeline.Builder {
	solver := b.Config().Solver
	if config.Solver.ReprojectionError > 0 {
		solver.ReprojectionError = config.Solver.ReprojectionError
	}
	if config.Solver.Confidence > 0 {
		solver.Confidence = config.Solver.Confidence
	}
	if config.Solver.MaxIterations > 0 {
		solver.MaxIterations = config.Solver.MaxIterations
	}
	if config.Solver.RefineIterations > 0 {
		solver.RefineIterations = config.Solver.RefineIterations
	}
	solver.Seed = config.Solver.Seed
	return b.WithSolver(solver)
}
