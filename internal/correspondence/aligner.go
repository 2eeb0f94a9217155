package correspondence

import (
	"fmt"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"

	"github.com/MeKo-Tech/posest/internal/geometry"
)

// DefaultMinCorrespondences is the smallest set the solver is handed.
const DefaultMinCorrespondences = 5

// DepthPrior assigns a depth to a map keypoint before it is lifted to 3D.
type DepthPrior interface {
	Depth(p r2.Point) float64
}

// UnitDepth places every keypoint at geometry.UnitDepth. The resulting cloud
// is planar and is only an approximation of the scene.
type UnitDepth struct{}

// Depth implements DepthPrior.
func (UnitDepth) Depth(r2.Point) float64 { return geometry.UnitDepth }

// ConstantDepth places every keypoint at the same fixed depth.
type ConstantDepth float64

// Depth implements DepthPrior.
func (d ConstantDepth) Depth(r2.Point) float64 { return float64(d) }

// Aligned holds equal-length 3D points in the shared frame and their query
// pixels.
type Aligned struct {
	Points3D []r3.Vector
	Points2D []r2.Point
}

// Aligner lifts map keypoints into the shared frame using the map frame's
// reference pose.
type Aligner struct {
	Intrinsics         geometry.Intrinsics
	Depth              DepthPrior
	MinCorrespondences int
}

// NewAligner returns an aligner with the unit-depth prior.
func NewAligner(k geometry.Intrinsics) *Aligner {
	return &Aligner{Intrinsics: k, Depth: UnitDepth{}, MinCorrespondences: DefaultMinCorrespondences}
}

// Align unprojects each map keypoint with the depth prior and carries it into
// the shared frame by mapPose. Query pixels pass through unchanged.
func (a *Aligner) Align(set Set, mapPose geometry.Pose) (Aligned, error) {
	minN := a.MinCorrespondences
	if minN <= 0 {
		minN = DefaultMinCorrespondences
	}
	if set.Len() < minN {
		return Aligned{}, fmt.Errorf("%w: %d < %d", ErrInsufficientCorrespondences, set.Len(), minN)
	}
	depth := a.Depth
	if depth == nil {
		depth = UnitDepth{}
	}

	out := Aligned{
		Points3D: make([]r3.Vector, set.Len()),
		Points2D: make([]r2.Point, set.Len()),
	}
	for i, p := range set.Map {
		local := geometry.Unproject(p, a.Intrinsics, depth.Depth(p))
		out.Points3D[i] = mapPose.Apply(local)
		out.Points2D[i] = set.Query[i]
	}
	return out, nil
}
