// Package benchmark measures pose estimation throughput.
package benchmark

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"time"

	"github.com/MeKo-Tech/posest/internal/batch"
)

// MemoryStats is a snapshot of the runtime allocator.
type MemoryStats struct {
	AllocBytes      uint64
	TotalAllocBytes uint64
	NumGC           uint32
}

// ReadMemoryStats samples the runtime allocator.
func ReadMemoryStats() MemoryStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return MemoryStats{AllocBytes: m.Alloc, TotalAllocBytes: m.TotalAlloc, NumGC: m.NumGC}
}

// Result is the outcome of repeating one measured function.
type Result struct {
	Name         string
	Duration     time.Duration
	MemoryBefore MemoryStats
	MemoryAfter  MemoryStats
	// Iterations counts completed calls, at least 1.
	Iterations int
	Error      error
}

// Average is Duration per iteration.
func (r Result) Average() time.Duration {
	if r.Iterations <= 0 {
		return 0
	}
	return r.Duration / time.Duration(r.Iterations)
}

// AllocatedKB is the cumulative allocation during the run.
func (r Result) AllocatedKB() uint64 {
	return (r.MemoryAfter.TotalAllocBytes - r.MemoryBefore.TotalAllocBytes) / 1024
}

// GCRuns is the number of collections during the run.
func (r Result) GCRuns() uint32 {
	return r.MemoryAfter.NumGC - r.MemoryBefore.NumGC
}

func (r Result) String() string {
	if r.Error != nil {
		return fmt.Sprintf("%s: ERROR - %v", r.Name, r.Error)
	}
	return fmt.Sprintf("%s: %d iterations, avg: %v, total: %v, alloc: %d KB",
		r.Name, r.Iterations, r.Average(), r.Duration, r.AllocatedKB())
}

// measure calls fn up to iterations times after a forced GC and stops at
// the first error.
func measure(name string, iterations int, fn func() error) Result {
	runtime.GC()
	res := Result{Name: name, MemoryBefore: ReadMemoryStats()}

	start := time.Now()
	done := 0
	for done < iterations {
		if err := fn(); err != nil {
			res.Error = err
			break
		}
		done++
	}
	res.Duration = time.Since(start)
	res.MemoryAfter = ReadMemoryStats()
	res.Iterations = max(done, 1)
	return res
}

// ScalingResult is the throughput of one worker count.
type ScalingResult struct {
	Result
	Workers int
	Frames  int
	Solved  int
	// FramesPerSec is measured over all iterations.
	FramesPerSec float64
	// Speedup is relative to the first worker count.
	Speedup float64
}

// WorkerScaling runs a batch estimation once per worker count and compares
// the throughput.
type WorkerScaling struct {
	Config  batch.Config
	Paths   []string
	Workers []int
}

// ErrNoWorkerCounts is returned when WorkerScaling has nothing to measure.
var ErrNoWorkerCounts = errors.New("no worker counts to benchmark")

// Run measures every worker count with the given number of iterations.
// Progress output and statistics of the underlying batch runs are disabled.
func (ws *WorkerScaling) Run(ctx context.Context, iterations int) ([]ScalingResult, error) {
	if len(ws.Workers) == 0 {
		return nil, ErrNoWorkerCounts
	}
	if iterations <= 0 {
		iterations = 1
	}

	results := make([]ScalingResult, 0, len(ws.Workers))
	for _, workers := range ws.Workers {
		if workers <= 0 {
			return nil, fmt.Errorf("invalid worker count: %d", workers)
		}
		cfg := ws.Config
		cfg.Workers = workers
		cfg.ShowProgress = false
		cfg.ShowStats = false
		cfg.Quiet = true

		var last *batch.Result
		res := measure(fmt.Sprintf("workers=%d", workers), iterations, func() error {
			r, err := batch.ProcessBatch(ctx, ws.Paths, &cfg)
			if err != nil {
				return err
			}
			last = r
			return nil
		})
		if res.Error != nil {
			return nil, res.Error
		}

		sr := ScalingResult{Result: res, Workers: workers}
		if last != nil {
			sr.Frames = len(last.Results)
			sr.Solved = last.Solved()
		}
		if res.Duration > 0 {
			sr.FramesPerSec = float64(sr.Frames*res.Iterations) / res.Duration.Seconds()
		}
		results = append(results, sr)
	}

	if base := results[0].FramesPerSec; base > 0 {
		for i := range results {
			results[i].Speedup = results[i].FramesPerSec / base
		}
	}
	return results, nil
}

// PrintScaling writes a table of scaling results.
func PrintScaling(w io.Writer, results []ScalingResult) {
	_, _ = fmt.Fprintln(w, "\nWorker Scaling:")
	_, _ = fmt.Fprintln(w, "===============")
	_, _ = fmt.Fprintf(w, "%-8s %-8s %-8s %-12s %-12s %-8s %s\n",
		"Workers", "Frames", "Solved", "Avg run", "Frames/sec", "Speedup", "Alloc KB")
	for _, r := range results {
		_, _ = fmt.Fprintf(w, "%-8d %-8d %-8d %-12v %-12.1f %-8s %d\n",
			r.Workers, r.Frames, r.Solved, r.Average().Round(time.Microsecond), r.FramesPerSec,
			fmt.Sprintf("%.2fx", r.Speedup), r.AllocatedKB())
	}
	_, _ = fmt.Fprintln(w)
}
