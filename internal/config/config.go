package config

import (
	"errors"
	"fmt"
	"runtime"
	"slices"
	"strings"

	"github.com/MeKo-Tech/posest/internal/batch"
	"github.com/MeKo-Tech/posest/internal/calib"
	"github.com/MeKo-Tech/posest/internal/correspondence"
	"github.com/MeKo-Tech/posest/internal/geometry"
	"github.com/MeKo-Tech/posest/internal/groundtruth"
	"github.com/MeKo-Tech/posest/internal/pairs"
	"github.com/MeKo-Tech/posest/internal/pipeline"
	"github.com/MeKo-Tech/posest/internal/pnp"
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	solver := pnp.DefaultConfig()
	return Config{
		LogLevel: "info",
		Verbose:  false,
		Camera: CameraConfig{
			IntrinsicsNode: calib.DefaultNode,
		},
		GroundTruth: GroundTruthConfig{
			Template: groundtruth.DefaultTemplate,
		},
		Alignment: AlignmentConfig{
			MinCorrespondences: correspondence.DefaultMinCorrespondences,
			DepthPrior:         pipeline.DepthPriorUnit,
			Depth:              geometry.UnitDepth,
		},
		Solver: SolverConfig{
			ReprojectionError: solver.ReprojectionError,
			Confidence:        solver.Confidence,
			MaxIterations:     solver.MaxIterations,
			RefineIterations:  solver.RefineIterations,
		},
		Parallel: ParallelConfig{
			MaxWorkers: runtime.NumCPU(),
		},
		Output: OutputConfig{
			Format: batch.FormatPoses,
		},
		Pairs: PairsConfig{
			Window:    pairs.DefaultWindow,
			Suffix:    pairs.DefaultSuffix,
			Sequences: []string{"seq-01", "seq-02"},
		},
	}
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	validFormats := []string{batch.FormatPoses, batch.FormatJSON, batch.FormatCSV}
	if c.Output.Format != "" && !slices.Contains(validFormats, c.Output.Format) {
		return fmt.Errorf("invalid output format: %s (must be one of: %s)", c.Output.Format, strings.Join(validFormats, ", "))
	}

	validPriors := []string{pipeline.DepthPriorUnit, pipeline.DepthPriorConstant}
	if !slices.Contains(validPriors, c.Alignment.DepthPrior) {
		return fmt.Errorf("invalid depth prior: %s (must be one of: %s)", c.Alignment.DepthPrior, strings.Join(validPriors, ", "))
	}
	if c.Alignment.Depth <= 0 {
		return fmt.Errorf("invalid alignment depth: %g (must be positive)", c.Alignment.Depth)
	}
	if c.Alignment.MinCorrespondences < pnp.MinPlanarPoints {
		return fmt.Errorf("invalid min correspondences: %d (must be at least %d)", c.Alignment.MinCorrespondences, pnp.MinPlanarPoints)
	}

	if err := c.ToSolverConfig().Validate(); err != nil {
		return fmt.Errorf("invalid solver config: %w", err)
	}

	if c.Camera.Fx != 0 || c.Camera.Fy != 0 {
		if err := c.Intrinsics().Validate(); err != nil {
			return fmt.Errorf("invalid camera config: %w", err)
		}
	}

	if c.Parallel.MaxWorkers <= 0 {
		return fmt.Errorf("invalid parallel max workers: %d (must be positive)", c.Parallel.MaxWorkers)
	}
	if c.Pairs.Window <= 0 {
		return fmt.Errorf("invalid pairs window: %d (must be positive)", c.Pairs.Window)
	}
	if c.Pairs.Suffix == "" {
		return errors.New("invalid pairs suffix: must not be empty")
	}

	return nil
}

// Intrinsics returns the explicitly configured intrinsics. The zero value
// means they are read from the calibration file.
func (c *Config) Intrinsics() geometry.Intrinsics {
	return geometry.Intrinsics{Fx: c.Camera.Fx, Fy: c.Camera.Fy, Cx: c.Camera.Cx, Cy: c.Camera.Cy}
}

// ToSolverConfig converts to pnp.Config.
func (c *Config) ToSolverConfig() pnp.Config {
	return pnp.Config{
		ReprojectionError: c.Solver.ReprojectionError,
		Confidence:        c.Solver.Confidence,
		MaxIterations:     c.Solver.MaxIterations,
		RefineIterations:  c.Solver.RefineIterations,
		Seed:              c.Solver.Seed,
	}
}

// ToBatchConfig converts the config to a batch run configuration.
func (c *Config) ToBatchConfig() batch.Config {
	return batch.Config{
		Intrinsics:         c.Intrinsics(),
		IntrinsicsFile:     c.Camera.IntrinsicsFile,
		IntrinsicsNode:     c.Camera.IntrinsicsNode,
		GroundTruthDir:     c.GroundTruth.Dir,
		PoseTemplate:       c.GroundTruth.Template,
		MinCorrespondences: c.Alignment.MinCorrespondences,
		DepthPrior:         c.Alignment.DepthPrior,
		Depth:              c.Alignment.Depth,
		Solver:             c.ToSolverConfig(),
		Format:             c.Output.Format,
		OutputFile:         c.Output.File,
		Workers:            c.Parallel.MaxWorkers,
	}
}

// ToPairsGenerator converts to a pairs.Generator.
func (c *Config) ToPairsGenerator() *pairs.Generator {
	return &pairs.Generator{Window: c.Pairs.Window, Suffix: c.Pairs.Suffix}
}
