package pnp

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"github.com/MeKo-Tech/posest/internal/geometry"
)

// Result is a solved pose together with its RANSAC consensus.
type Result struct {
	RotationVector r3.Vector
	Translation    r3.Vector
	// Inliers holds ascending indices of correspondences within the
	// reprojection threshold.
	Inliers    []int
	Iterations int
	// ReprojectionRMSE is the RMS pixel error over the inliers.
	ReprojectionRMSE float64
}

// Rotation returns the rotation matrix of the result.
func (r *Result) Rotation() *mat.Dense {
	return geometry.RotationVectorToMatrix(r.RotationVector)
}

// Pose returns the result as a world-to-camera transform.
func (r *Result) Pose() geometry.Pose {
	return geometry.Pose{R: r.Rotation(), T: r.Translation}
}

// Solver runs RANSAC over minimal samples, initialising each with a
// closed-form estimate refined by Levenberg-Marquardt.
type Solver struct {
	config Config
}

// NewSolver creates a solver. Invalid fields are replaced by defaults.
func NewSolver(cfg Config) *Solver {
	def := DefaultConfig()
	if cfg.ReprojectionError <= 0 {
		cfg.ReprojectionError = def.ReprojectionError
	}
	if cfg.Confidence <= 0 || cfg.Confidence >= 1 {
		cfg.Confidence = def.Confidence
	}
	if cfg.MaxIterations < 1 {
		cfg.MaxIterations = def.MaxIterations
	}
	if cfg.RefineIterations < 0 {
		cfg.RefineIterations = def.RefineIterations
	}
	return &Solver{config: cfg}
}

// Config returns the effective configuration.
func (s *Solver) Config() Config { return s.config }

type hypothesis struct {
	pose    geometry.Pose
	inliers []int
	errSum  float64
}

func (h hypothesis) betterThan(o hypothesis) bool {
	if len(h.inliers) != len(o.inliers) {
		return len(h.inliers) > len(o.inliers)
	}
	return h.errSum < o.errSum
}

// Solve estimates the world-to-camera pose that projects points3D onto
// points2D through k.
func (s *Solver) Solve(ctx context.Context, points3D []r3.Vector, points2D []r2.Point, k geometry.Intrinsics) (*Result, error) {
	if len(points3D) != len(points2D) {
		return nil, fmt.Errorf("%w: %d vs %d", ErrMismatchedInput, len(points3D), len(points2D))
	}
	if len(points3D) < MinPlanarPoints {
		return nil, fmt.Errorf("%w: have %d, need %d", ErrInsufficientPoints, len(points3D), MinPlanarPoints)
	}
	if err := k.Validate(); err != nil {
		return nil, err
	}

	shape, ok := analyseCloud(points3D)
	if !ok {
		return nil, fmt.Errorf("%w: degenerate point cloud", ErrNoHypothesis)
	}
	n := len(points3D)
	sampleSize := shape.minimalSample()
	if n < sampleSize {
		return nil, fmt.Errorf("%w: have %d non-planar points, need %d", ErrInsufficientPoints, n, sampleSize)
	}

	normalized := make([]r2.Point, n)
	for i, p := range points2D {
		normalized[i] = k.Normalize(p)
	}

	rng := rand.New(rand.NewPCG(s.config.Seed, s.config.Stream)) //nolint:gosec // G404: deterministic sampling
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	sample3 := make([]r3.Vector, sampleSize)
	sampleNorm := make([]r2.Point, sampleSize)
	samplePx := make([]r2.Point, sampleSize)

	var best hypothesis
	maxIter := s.config.MaxIterations
	iter := 0
	for ; iter < maxIter; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// Partial Fisher-Yates: the first sampleSize entries form the sample.
		for i := range sampleSize {
			j := i + rng.IntN(n-i)
			perm[i], perm[j] = perm[j], perm[i]
			idx := perm[i]
			sample3[i] = points3D[idx]
			sampleNorm[i] = normalized[idx]
			samplePx[i] = points2D[idx]
		}

		pose, ok := shape.initialPose(sample3, sampleNorm)
		if !ok {
			continue
		}
		pose = refine(pose, sample3, samplePx, k, s.config.RefineIterations)
		h := s.score(pose, points3D, points2D, k)
		if len(h.inliers) < sampleSize || !h.betterThan(best) {
			continue
		}
		best = h
		if next := requiredIterations(s.config.Confidence, float64(len(h.inliers))/float64(n), sampleSize); next < maxIter {
			maxIter = next
		}
	}
	if len(best.inliers) < sampleSize {
		return nil, fmt.Errorf("%w after %d iterations", ErrNoHypothesis, iter)
	}

	// Polish on the full consensus set; keep it only if no inliers are lost.
	in3 := make([]r3.Vector, len(best.inliers))
	in2 := make([]r2.Point, len(best.inliers))
	for i, idx := range best.inliers {
		in3[i] = points3D[idx]
		in2[i] = points2D[idx]
	}
	polished := refine(best.pose, in3, in2, k, s.config.RefineIterations)
	if h := s.score(polished, points3D, points2D, k); len(h.inliers) >= len(best.inliers) {
		best = h
	}

	rot, ok := geometry.Orthonormalize(best.pose.R)
	if !ok {
		return nil, fmt.Errorf("%w: rotation is not recoverable", ErrNoHypothesis)
	}
	var sq float64
	errs := reprojectionErrors(best.pose, points3D, points2D, k)
	for _, idx := range best.inliers {
		sq += errs[idx] * errs[idx]
	}

	return &Result{
		RotationVector:   geometry.RotationMatrixToVector(rot),
		Translation:      best.pose.T,
		Inliers:          best.inliers,
		Iterations:       iter,
		ReprojectionRMSE: math.Sqrt(sq / float64(len(best.inliers))),
	}, nil
}

func (s *Solver) score(pose geometry.Pose, pts []r3.Vector, px []r2.Point, k geometry.Intrinsics) hypothesis {
	h := hypothesis{pose: pose}
	for i, e := range reprojectionErrors(pose, pts, px, k) {
		if e <= s.config.ReprojectionError {
			h.inliers = append(h.inliers, i)
			h.errSum += e
		}
	}
	return h
}

// requiredIterations returns the number of samples needed to draw an
// all-inlier sample of size m with probability p at inlier ratio w.
func requiredIterations(p, w float64, m int) int {
	if w >= 1 {
		return 1
	}
	den := math.Log(1 - math.Pow(w, float64(m)))
	if den >= 0 || math.IsNaN(den) {
		return math.MaxInt32
	}
	n := math.Ceil(math.Log(1-p) / den)
	if n >= math.MaxInt32 {
		return math.MaxInt32
	}
	return max(int(n), 1)
}
