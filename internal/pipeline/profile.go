package pipeline

import (
	"sync/atomic"
)

// Profiler aggregates counters and timers across frames.
type Profiler struct {
	AlignTimeNs     atomic.Int64
	SolveTimeNs     atomic.Int64
	FramesProcessed atomic.Int64
	FramesSolved    atomic.Int64
	InliersTotal    atomic.Int64
}

// Record adds one frame result.
func (p *Profiler) Record(res *FrameResult) {
	if p == nil || res == nil {
		return
	}
	p.AlignTimeNs.Add(res.Processing.AlignNs)
	p.SolveTimeNs.Add(res.Processing.SolveNs)
	p.FramesProcessed.Add(1)
	if res.Solved {
		p.FramesSolved.Add(1)
		p.InliersTotal.Add(int64(res.Inliers))
	}
}

// Snapshot returns cumulative metrics in milliseconds for readability.
func (p *Profiler) Snapshot() map[string]any {
	frames := p.FramesProcessed.Load()
	solved := p.FramesSolved.Load()
	align := p.AlignTimeNs.Load()
	solve := p.SolveTimeNs.Load()
	out := map[string]any{
		"frames":         frames,
		"solved":         solved,
		"align_ms_total": align / 1_000_000,
		"solve_ms_total": solve / 1_000_000,
	}
	if frames > 0 {
		out["align_ms_per_frame"] = float64(align) / 1_000_000.0 / float64(frames)
		out["solve_ms_per_frame"] = float64(solve) / 1_000_000.0 / float64(frames)
	}
	if solved > 0 {
		out["inliers_per_solved_frame"] = float64(p.InliersTotal.Load()) / float64(solved)
	}
	return out
}
