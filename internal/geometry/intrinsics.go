// Package geometry provides the pinhole camera model and rigid-transform
// primitives shared by the alignment, solving and evaluation stages.
package geometry

import (
	"errors"
	"fmt"
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// UnitDepth is the depth assigned to map keypoints when no depth is known.
const UnitDepth = 1.0

// ErrInvalidIntrinsics is returned when focal lengths are zero or not finite.
var ErrInvalidIntrinsics = errors.New("invalid camera intrinsics")

// Intrinsics holds the pinhole parameters of a camera in pixels.
type Intrinsics struct {
	Fx float64 `mapstructure:"fx" yaml:"fx" json:"fx"`
	Fy float64 `mapstructure:"fy" yaml:"fy" json:"fy"`
	Cx float64 `mapstructure:"cx" yaml:"cx" json:"cx"`
	Cy float64 `mapstructure:"cy" yaml:"cy" json:"cy"`
}

// IntrinsicsFromMatrix reads fx, fy, cx and cy out of a 3x3 camera matrix.
func IntrinsicsFromMatrix(k mat.Matrix) (Intrinsics, error) {
	r, c := k.Dims()
	if r != 3 || c != 3 {
		return Intrinsics{}, fmt.Errorf("%w: camera matrix is %dx%d, want 3x3", ErrInvalidIntrinsics, r, c)
	}
	in := Intrinsics{Fx: k.At(0, 0), Fy: k.At(1, 1), Cx: k.At(0, 2), Cy: k.At(1, 2)}
	if err := in.Validate(); err != nil {
		return Intrinsics{}, err
	}
	return in, nil
}

// Validate reports whether the intrinsics can be used for (un)projection.
func (k Intrinsics) Validate() error {
	for _, v := range []float64{k.Fx, k.Fy, k.Cx, k.Cy} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite value in %+v", ErrInvalidIntrinsics, k)
		}
	}
	if k.Fx == 0 || k.Fy == 0 {
		return fmt.Errorf("%w: zero focal length (fx=%g, fy=%g)", ErrInvalidIntrinsics, k.Fx, k.Fy)
	}
	return nil
}

// Matrix returns the 3x3 camera matrix K.
func (k Intrinsics) Matrix() *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		k.Fx, 0, k.Cx,
		0, k.Fy, k.Cy,
		0, 0, 1,
	})
}

// Normalize maps a pixel to normalized image coordinates (K^-1 applied).
func (k Intrinsics) Normalize(p r2.Point) r2.Point {
	return r2.Point{X: (p.X - k.Cx) / k.Fx, Y: (p.Y - k.Cy) / k.Fy}
}

// Unproject lifts a pixel to the 3D point at the given depth along its ray.
func Unproject(p r2.Point, k Intrinsics, depth float64) r3.Vector {
	return r3.Vector{
		X: (p.X - k.Cx) * depth / k.Fx,
		Y: (p.Y - k.Cy) * depth / k.Fy,
		Z: depth,
	}
}

// Project maps a camera-frame point to pixel coordinates. The second return
// is false when the point does not lie in front of the camera.
func Project(p r3.Vector, k Intrinsics) (r2.Point, bool) {
	if p.Z <= 0 {
		return r2.Point{}, false
	}
	return r2.Point{
		X: k.Fx*p.X/p.Z + k.Cx,
		Y: k.Fy*p.Y/p.Z + k.Cy,
	}, true
}
