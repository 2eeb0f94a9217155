// Package testutil provides synthetic scenes and on-disk fixtures for tests.
package testutil

import (
	"math/rand/v2"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"

	"github.com/MeKo-Tech/posest/internal/geometry"
)

// DefaultIntrinsics are the 7-Scenes Kinect intrinsics.
var DefaultIntrinsics = geometry.Intrinsics{Fx: 525, Fy: 525, Cx: 319.5, Cy: 239.5}

// Image bounds used when sampling synthetic keypoints.
const (
	ImageWidth  = 640
	ImageHeight = 480
	imageMargin = 40
)

// Scene is a set of exact 3D-2D correspondences observed by a camera with a
// known world-to-camera pose.
type Scene struct {
	Intrinsics geometry.Intrinsics
	Pose       geometry.Pose
	Points3D   []r3.Vector
	Points2D   []r2.Point
}

// NewRNG returns a deterministic generator for test data.
func NewRNG(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) //nolint:gosec // G404: test data
}

// RandomPose draws a pose with rotation angle up to maxAngle radians and
// translation components within ±maxTranslation.
func RandomPose(rng *rand.Rand, maxAngle, maxTranslation float64) geometry.Pose {
	axis := r3.Vector{X: rng.NormFloat64(), Y: rng.NormFloat64(), Z: rng.NormFloat64()}.Normalize()
	angle := rng.Float64() * maxAngle
	t := r3.Vector{
		X: (2*rng.Float64() - 1) * maxTranslation,
		Y: (2*rng.Float64() - 1) * maxTranslation,
		Z: (2*rng.Float64() - 1) * maxTranslation,
	}
	return geometry.NewPose(axis.Mul(angle), t)
}

// RandomPixel draws a pixel inside the image margins.
func RandomPixel(rng *rand.Rand) r2.Point {
	return r2.Point{
		X: imageMargin + rng.Float64()*(ImageWidth-2*imageMargin),
		Y: imageMargin + rng.Float64()*(ImageHeight-2*imageMargin),
	}
}

// GeneralScene places n points at depths between 4 and 8 in front of the
// camera.
func GeneralScene(rng *rand.Rand, n int, pose geometry.Pose) Scene {
	return buildScene(rng, n, pose, func(r2.Point) float64 { return 4 + 4*rng.Float64() })
}

// PlanarScene places n points on a plane tilted against the image plane.
func PlanarScene(rng *rand.Rand, n int, pose geometry.Pose) Scene {
	k := DefaultIntrinsics
	return buildScene(rng, n, pose, func(px r2.Point) float64 {
		ray := k.Normalize(px)
		return 5 / (1 - 0.2*ray.X - 0.1*ray.Y)
	})
}

func buildScene(rng *rand.Rand, n int, pose geometry.Pose, depth func(r2.Point) float64) Scene {
	s := Scene{
		Intrinsics: DefaultIntrinsics,
		Pose:       pose,
		Points3D:   make([]r3.Vector, n),
		Points2D:   make([]r2.Point, n),
	}
	toWorld := pose.Inverse()
	for i := range n {
		px := RandomPixel(rng)
		cam := geometry.Unproject(px, s.Intrinsics, depth(px))
		s.Points3D[i] = toWorld.Apply(cam)
		s.Points2D[i] = px
	}
	return s
}

// AddOutliers moves count distinct observations by at least minOffset
// pixels and returns their indices in ascending order.
func (s *Scene) AddOutliers(rng *rand.Rand, count int, minOffset float64) []int {
	picked := rng.Perm(len(s.Points2D))[:count]
	marks := make([]bool, len(s.Points2D))
	for _, i := range picked {
		marks[i] = true
		dir := r2.Point{X: rng.NormFloat64(), Y: rng.NormFloat64()}.Normalize()
		s.Points2D[i] = s.Points2D[i].Add(dir.Mul(minOffset * (1 + rng.Float64())))
	}
	out := make([]int, 0, count)
	for i, m := range marks {
		if m {
			out = append(out, i)
		}
	}
	return out
}

// Prealigned mirrors a map/query image pair: map keypoints lifted to unit
// depth and carried into the shared frame by MapPose (camera-to-world), and
// their projections into a query camera with world-to-camera QueryPose.
type Prealigned struct {
	MapPose        geometry.Pose
	QueryPose      geometry.Pose
	MapKeypoints   []r2.Point
	QueryKeypoints []r2.Point
}

// PrealignedPair draws n map keypoints and a query camera close to the map
// camera so that every lifted point stays in front of it.
func PrealignedPair(rng *rand.Rand, n int) Prealigned {
	k := DefaultIntrinsics
	mapPose := RandomPose(rng, 3, 2)
	delta := RandomPose(rng, 0.1, 0.05)
	p := Prealigned{
		MapPose:        mapPose,
		QueryPose:      mapPose.Inverse().Then(delta),
		MapKeypoints:   make([]r2.Point, n),
		QueryKeypoints: make([]r2.Point, n),
	}
	for i := range n {
		kp := RandomPixel(rng)
		world := mapPose.Apply(geometry.Unproject(kp, k, geometry.UnitDepth))
		q, _ := geometry.Project(p.QueryPose.Apply(world), k)
		p.MapKeypoints[i] = kp
		p.QueryKeypoints[i] = q
	}
	return p
}
