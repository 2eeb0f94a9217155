// Package batch runs pose estimation over a set of correspondence files.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/MeKo-Tech/posest/internal/pipeline"
)

// ProcessBatch estimates a pose for every correspondence file found under
// paths.
func ProcessBatch(ctx context.Context, paths []string, config *Config) (*Result, error) {
	files, err := discoverMatchFiles(paths, config.Recursive, config.IncludePatterns, config.ExcludePatterns)
	if err != nil {
		return nil, fmt.Errorf("failed to discover correspondence files: %w", err)
	}

	if len(files) == 0 {
		return nil, errors.New("no correspondence files found")
	}

	var console, log pipeline.ProgressCallback
	if config.ShowProgress && !config.Quiet {
		out := config.Progress
		if out == nil {
			out = os.Stderr
		}
		console = pipeline.NewConsoleProgressCallback(out, "Estimating: ").
			WithUpdateInterval(config.ProgressInterval)
	}
	if config.Logger != nil {
		log = pipeline.NewLogProgressCallback(config.Logger, slog.LevelDebug)
	}
	progressCallback := pipeline.NewMultiProgressCallback(console, log)

	pl, err := buildPipeline(config, progressCallback)
	if err != nil {
		return nil, fmt.Errorf("failed to build pipeline: %w", err)
	}

	if config.Logger != nil {
		config.Logger.Debug("Pipeline ready", "frames", len(files), "pipeline", pl.Info())
	}

	parallel := pl.Config().Parallel
	startTime := time.Now()
	results, err := pl.ProcessFramesParallelContext(ctx, pipeline.NewFrameJobs(files), parallel)
	duration := time.Since(startTime)

	if err != nil {
		return nil, fmt.Errorf("batch processing failed: %w", err)
	}
	if config.Logger != nil {
		config.Logger.Debug("Frame timings", "profile", pl.Profiler.Snapshot())
	}

	return &Result{
		Results:     results,
		Paths:       files,
		Duration:    duration,
		WorkerCount: min(parallel.MaxWorkers, len(files)),
	}, nil
}
