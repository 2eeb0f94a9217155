// Package pipeline estimates query camera poses frame by frame: load the
// correspondences, lift the map keypoints with the map frame's reference
// pose, and solve RANSAC PnP.
package pipeline

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/MeKo-Tech/posest/internal/correspondence"
	"github.com/MeKo-Tech/posest/internal/geometry"
	"github.com/MeKo-Tech/posest/internal/groundtruth"
	"github.com/MeKo-Tech/posest/internal/pnp"
)

// Depth prior names accepted by Config.DepthPrior.
const (
	DepthPriorUnit     = "unit"
	DepthPriorConstant = "constant"
)

// Config holds configuration for the estimation pipeline.
type Config struct {
	Intrinsics geometry.Intrinsics

	GroundTruthDir string
	PoseTemplate   string

	MinCorrespondences int
	DepthPrior         string
	Depth              float64 // used by the constant prior

	Solver   pnp.Config
	Parallel ParallelConfig
}

// DefaultConfig returns a default pipeline config with component defaults.
func DefaultConfig() Config {
	return Config{
		PoseTemplate:       groundtruth.DefaultTemplate,
		MinCorrespondences: correspondence.DefaultMinCorrespondences,
		DepthPrior:         DepthPriorUnit,
		Depth:              geometry.UnitDepth,
		Solver:             pnp.DefaultConfig(),
		Parallel:           DefaultParallelConfig(),
	}
}

// Observer receives every frame result as it completes.
type Observer interface {
	ObserveFrame(res *FrameResult)
}

// Builder constructs a Pipeline with fluent configuration.
type Builder struct {
	cfg      Config
	store    groundtruth.Store
	logger   *slog.Logger
	observer Observer
}

// NewBuilder creates a new pipeline builder with defaults.
func NewBuilder() *Builder { return &Builder{cfg: DefaultConfig()} }

// WithIntrinsics sets the camera intrinsics shared by map and query frames.
func (b *Builder) WithIntrinsics(k geometry.Intrinsics) *Builder {
	b.cfg.Intrinsics = k
	return b
}

// WithGroundTruthDir reads map frame poses from dir using template.
func (b *Builder) WithGroundTruthDir(dir, template string) *Builder {
	b.cfg.GroundTruthDir = dir
	if template != "" {
		b.cfg.PoseTemplate = template
	}
	return b
}

// WithGroundTruth uses store instead of a ground-truth directory.
func (b *Builder) WithGroundTruth(store groundtruth.Store) *Builder {
	b.store = store
	return b
}

// WithMinCorrespondences sets the smallest set handed to the solver.
func (b *Builder) WithMinCorrespondences(n int) *Builder {
	if n > 0 {
		b.cfg.MinCorrespondences = n
	}
	return b
}

// WithDepthPrior selects how map keypoints are lifted to 3D.
func (b *Builder) WithDepthPrior(name string, depth float64) *Builder {
	if name != "" {
		b.cfg.DepthPrior = name
	}
	if depth > 0 {
		b.cfg.Depth = depth
	}
	return b
}

// WithSolver sets the RANSAC PnP parameters.
func (b *Builder) WithSolver(cfg pnp.Config) *Builder {
	b.cfg.Solver = cfg
	return b
}

// WithSeed sets the base seed of every frame's sampling stream.
func (b *Builder) WithSeed(seed uint64) *Builder {
	b.cfg.Solver.Seed = seed
	return b
}

// WithParallelWorkers sets the number of parallel workers.
func (b *Builder) WithParallelWorkers(workers int) *Builder {
	if workers > 0 {
		b.cfg.Parallel.MaxWorkers = workers
	}
	return b
}

// WithProgressCallback sets a progress callback for parallel processing.
func (b *Builder) WithProgressCallback(callback ProgressCallback) *Builder {
	b.cfg.Parallel.ProgressCallback = callback
	return b
}

// WithLogger sets the logger used for per-frame messages.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithObserver registers a frame result observer.
func (b *Builder) WithObserver(o Observer) *Builder {
	b.observer = o
	return b
}

// Config returns the current builder config.
func (b *Builder) Config() Config { return b.cfg }

// Validate checks the configuration.
func (b *Builder) Validate() error {
	if err := b.cfg.Intrinsics.Validate(); err != nil {
		return err
	}
	if b.store == nil && b.cfg.GroundTruthDir == "" {
		return errors.New("ground truth directory is required")
	}
	switch b.cfg.DepthPrior {
	case DepthPriorUnit:
	case DepthPriorConstant:
		if b.cfg.Depth <= 0 {
			return fmt.Errorf("constant depth must be positive, got %g", b.cfg.Depth)
		}
	default:
		return fmt.Errorf("unknown depth prior %q", b.cfg.DepthPrior)
	}
	if err := b.cfg.Solver.Validate(); err != nil {
		return fmt.Errorf("solver: %w", err)
	}
	return nil
}

// Pipeline wires the aligner and solver for a dataset. It is safe for
// concurrent use.
type Pipeline struct {
	cfg         Config
	GroundTruth groundtruth.Store
	Aligner     *correspondence.Aligner
	Profiler    *Profiler
	logger      *slog.Logger
	observer    Observer
}

// Build validates the configuration and creates the pipeline.
func (b *Builder) Build() (*Pipeline, error) {
	if err := b.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline config: %w", err)
	}
	store := b.store
	if store == nil {
		store = groundtruth.NewDirStore(b.cfg.GroundTruthDir, b.cfg.PoseTemplate)
	}
	var prior correspondence.DepthPrior = correspondence.UnitDepth{}
	if b.cfg.DepthPrior == DepthPriorConstant {
		prior = correspondence.ConstantDepth(b.cfg.Depth)
	}
	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		cfg:         b.cfg,
		GroundTruth: store,
		Aligner: &correspondence.Aligner{
			Intrinsics:         b.cfg.Intrinsics,
			Depth:              prior,
			MinCorrespondences: b.cfg.MinCorrespondences,
		},
		Profiler: &Profiler{},
		logger:   logger,
		observer: b.observer,
	}, nil
}

// Config returns the pipeline configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// Info returns a summary of the pipeline configuration for logging.
func (p *Pipeline) Info() map[string]interface{} {
	return map[string]interface{}{
		"intrinsics":          p.cfg.Intrinsics,
		"ground_truth_dir":    p.cfg.GroundTruthDir,
		"min_correspondences": p.cfg.MinCorrespondences,
		"depth_prior":         p.cfg.DepthPrior,
		"reprojection_error":  p.cfg.Solver.ReprojectionError,
		"confidence":          p.cfg.Solver.Confidence,
		"max_iterations":      p.cfg.Solver.MaxIterations,
		"seed":                p.cfg.Solver.Seed,
		"workers":             p.cfg.Parallel.MaxWorkers,
	}
}
