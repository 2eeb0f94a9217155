package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MeKo-Tech/posest/internal/correspondence"
	"github.com/MeKo-Tech/posest/internal/groundtruth"
	"github.com/MeKo-Tech/posest/internal/pnp"
	"github.com/MeKo-Tech/posest/internal/posefile"
)

// ErrInvalidFrameName is returned for correspondence files whose name does
// not carry a frame index.
var ErrInvalidFrameName = errors.New("invalid frame name")

// NewFrameJob derives the frame label and index from a correspondence path.
func NewFrameJob(path string) (FrameJob, error) {
	name, ok := correspondence.FrameName(path)
	if !ok {
		return FrameJob{Path: path}, fmt.Errorf("%w: %s is not a correspondence file", ErrInvalidFrameName, path)
	}
	idx, err := posefile.FrameIndex(name)
	if err != nil {
		return FrameJob{Path: path, Name: name}, fmt.Errorf("%w: %w", ErrInvalidFrameName, err)
	}
	return FrameJob{Path: path, Name: name, Frame: idx}, nil
}

// NewFrameJobs builds jobs for paths, keeping their order. Paths without a
// frame index still yield a job; processing re-derives it and reports the
// frame as skipped.
func NewFrameJobs(paths []string) []FrameJob {
	jobs := make([]FrameJob, len(paths))
	for i, p := range paths {
		jobs[i], _ = NewFrameJob(p)
	}
	return jobs
}

// classify maps a frame error to its skip reason.
func classify(err error) SkipReason {
	switch {
	case errors.Is(err, ErrInvalidFrameName):
		return SkipInvalidName
	case errors.Is(err, groundtruth.ErrNotFound):
		return SkipMissingGroundTruth
	case errors.Is(err, groundtruth.ErrMalformed):
		return SkipInvalidGroundTruth
	case errors.Is(err, correspondence.ErrInsufficientCorrespondences),
		errors.Is(err, pnp.ErrInsufficientPoints):
		return SkipInsufficientCorrespondences
	case errors.Is(err, pnp.ErrNoHypothesis), errors.Is(err, pnp.ErrMismatchedInput):
		return SkipSolverFailure
	default:
		return SkipMissingCorrespondences
	}
}

// ProcessFrame estimates the pose of a single frame.
func (p *Pipeline) ProcessFrame(job FrameJob) (*FrameResult, error) {
	return p.ProcessFrameContext(context.Background(), job)
}

// ProcessFrameContext estimates the pose of a single frame. Data problems
// are reported through the result's skip reason; the returned error is only
// set when ctx is done.
func (p *Pipeline) ProcessFrameContext(ctx context.Context, job FrameJob) (*FrameResult, error) {
	if p == nil || p.Aligner == nil || p.GroundTruth == nil {
		return nil, errors.New("pipeline not initialized")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	res := &FrameResult{Name: job.Name, Frame: job.Frame, Path: job.Path}
	err := p.estimate(ctx, job, res)
	res.Processing.TotalNs = time.Since(start).Nanoseconds()

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return nil, ctxErr
		}
		res.Skip = classify(err)
		res.Error = err.Error()
		p.logger.Warn("frame skipped",
			"frame", job.Name,
			"path", job.Path,
			"reason", string(res.Skip),
			"error", err,
		)
	} else {
		p.logger.Debug("frame solved",
			"frame", job.Name,
			"inliers", res.Inliers,
			"correspondences", res.Correspondences,
			"rmse", res.ReprojectionRMSE,
		)
	}

	p.Profiler.Record(res)
	if p.observer != nil {
		p.observer.ObserveFrame(res)
	}
	return res, nil
}

func (p *Pipeline) estimate(ctx context.Context, job FrameJob, res *FrameResult) error {
	// A job whose label carries no index would be aligned against frame 0.
	if _, err := posefile.FrameIndex(job.Name); job.Name == "" || err != nil {
		derived, err := NewFrameJob(job.Path)
		if err != nil {
			return err
		}
		job = derived
		res.Name, res.Frame = job.Name, job.Frame
	}

	t0 := time.Now()
	file, err := correspondence.Load(job.Path)
	if err != nil {
		return err
	}
	set, err := file.Set()
	if err != nil {
		return err
	}
	res.Correspondences = set.Len()
	res.Processing.LoadNs = time.Since(t0).Nanoseconds()

	// Too few matches is decided before any ground truth or geometry work.
	if set.Len() < p.Aligner.MinCorrespondences {
		return fmt.Errorf("%w: %d < %d", correspondence.ErrInsufficientCorrespondences, set.Len(), p.Aligner.MinCorrespondences)
	}

	t1 := time.Now()
	mapPose, err := p.GroundTruth.Pose(job.Frame)
	if err != nil {
		return err
	}
	aligned, err := p.Aligner.Align(set, mapPose)
	if err != nil {
		return err
	}
	res.Processing.AlignNs = time.Since(t1).Nanoseconds()

	t2 := time.Now()
	solver := pnp.NewSolver(p.cfg.Solver.WithStream(uint64(job.Frame))) //nolint:gosec // G115: frame indices are non-negative
	sol, err := solver.Solve(ctx, aligned.Points3D, aligned.Points2D, p.cfg.Intrinsics)
	res.Processing.SolveNs = time.Since(t2).Nanoseconds()
	if err != nil {
		return err
	}

	res.Solved = true
	res.Pose = sol.Pose()
	res.Inliers = len(sol.Inliers)
	res.Iterations = sol.Iterations
	res.ReprojectionRMSE = sol.ReprojectionRMSE
	m := res.Pose.Matrix4()
	for i := range 4 {
		for j := range 4 {
			res.Matrix[i][j] = m.At(i, j)
		}
	}
	return nil
}

// ProcessFrames estimates every job sequentially.
func (p *Pipeline) ProcessFrames(jobs []FrameJob) ([]*FrameResult, error) {
	return p.ProcessFramesContext(context.Background(), jobs)
}

// ProcessFramesContext estimates every job sequentially, in order.
func (p *Pipeline) ProcessFramesContext(ctx context.Context, jobs []FrameJob) ([]*FrameResult, error) {
	results := make([]*FrameResult, 0, len(jobs))
	for _, job := range jobs {
		res, err := p.ProcessFrameContext(ctx, job)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, nil
}
