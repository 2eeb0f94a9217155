package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"
)

// ParallelConfig holds configuration for parallel processing.
type ParallelConfig struct {
	MaxWorkers       int                               // Number of parallel workers (0 = runtime.NumCPU())
	ProgressCallback ProgressCallback                  // Optional progress reporting
	ErrorHandler     func(int, FrameJob, *FrameResult) // Optional per-frame skip handler
}

// DefaultParallelConfig returns sensible defaults for parallel processing.
func DefaultParallelConfig() ParallelConfig {
	return ParallelConfig{
		MaxWorkers: runtime.NumCPU(),
	}
}

// ProcessFramesParallel processes frames using a worker pool.
// Returns results in the same order as jobs.
func (p *Pipeline) ProcessFramesParallel(jobs []FrameJob, config ParallelConfig) ([]*FrameResult, error) {
	return p.ProcessFramesParallelContext(context.Background(), jobs, config)
}

// ProcessFramesParallelContext fans jobs out to config.MaxWorkers workers.
// Skipped frames are results, not errors; the first hard error cancels the
// remaining work and is returned.
func (p *Pipeline) ProcessFramesParallelContext(ctx context.Context, jobs []FrameJob, config ParallelConfig) ([]*FrameResult, error) {
	if len(jobs) == 0 {
		return nil, errors.New("no frames provided")
	}
	if p == nil || p.Aligner == nil || p.GroundTruth == nil {
		return nil, errors.New("pipeline not initialized")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	workers := config.MaxWorkers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	workers = min(workers, len(jobs))

	progress := config.ProgressCallback
	if progress != nil {
		progress.OnStart(len(jobs))
		defer progress.OnComplete()
	}

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	var (
		next    = make(chan int)
		ordered = make([]*FrameResult, len(jobs))
		mu      sync.Mutex
		done    int
		wg      sync.WaitGroup
	)

	finish := func(i int, res *FrameResult) {
		mu.Lock()
		defer mu.Unlock()
		ordered[i] = res
		done++
		if progress != nil {
			progress.OnFrame(done, len(jobs), res)
		}
	}

	wg.Add(workers)
	for range workers {
		go func() {
			defer wg.Done()
			for i := range next {
				res, err := p.ProcessFrameContext(runCtx, jobs[i])
				if err != nil {
					cancel(fmt.Errorf("frame %d: %w", i, err))
					continue
				}
				finish(i, res)
			}
		}()
	}

feed:
	for i := range jobs {
		select {
		case next <- i:
		case <-runCtx.Done():
			break feed
		}
	}
	close(next)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := context.Cause(runCtx); err != nil {
		return nil, err
	}

	if config.ErrorHandler != nil {
		for i, res := range ordered {
			if res.Skip != SkipNone {
				config.ErrorHandler(i, jobs[i], res)
			}
		}
	}
	return ordered, nil
}

// ParallelStats holds statistics about parallel processing performance.
type ParallelStats struct {
	TotalFrames      int                `json:"total_frames"`
	SolvedFrames     int                `json:"solved_frames"`
	SkippedFrames    int                `json:"skipped_frames"`
	SkipReasons      map[SkipReason]int `json:"skip_reasons"`
	WorkerCount      int                `json:"worker_count"`
	TotalDuration    time.Duration      `json:"total_duration_ns"`
	AveragePerFrame  time.Duration      `json:"average_per_frame_ns"`
	ThroughputPerSec float64            `json:"throughput_per_sec"`
}

// CalculateParallelStats calculates performance statistics for a run.
func CalculateParallelStats(results []*FrameResult, duration time.Duration, workerCount int) ParallelStats {
	stats := ParallelStats{
		TotalFrames:   len(results),
		SkipReasons:   make(map[SkipReason]int),
		WorkerCount:   workerCount,
		TotalDuration: duration,
	}
	for _, r := range results {
		switch {
		case r == nil:
			stats.SkippedFrames++
		case r.Solved:
			stats.SolvedFrames++
		default:
			stats.SkippedFrames++
			stats.SkipReasons[r.Skip]++
		}
	}
	if stats.TotalFrames > 0 && duration > 0 {
		stats.AveragePerFrame = duration / time.Duration(stats.TotalFrames)
		stats.ThroughputPerSec = float64(stats.TotalFrames) / duration.Seconds()
	}
	return stats
}
