package geometry

import (
	"errors"
	"fmt"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// RotationTolerance bounds how far R·Rᵀ may drift from identity.
const RotationTolerance = 1e-6

// ErrNotRotation is returned when a matrix is not a proper rotation.
var ErrNotRotation = errors.New("matrix is not a proper rotation")

// Pose is a rigid transform p' = R·p + T.
type Pose struct {
	R *mat.Dense
	T r3.Vector
}

// Identity returns the identity transform.
func Identity() Pose {
	return Pose{R: identity3()}
}

// NewPose builds a pose from a rotation vector and a translation.
func NewPose(rvec, t r3.Vector) Pose {
	return Pose{R: RotationVectorToMatrix(rvec), T: t}
}

// Compose returns R·p + t.
func Compose(r mat.Matrix, t, p r3.Vector) r3.Vector {
	return r3.Vector{
		X: r.At(0, 0)*p.X + r.At(0, 1)*p.Y + r.At(0, 2)*p.Z + t.X,
		Y: r.At(1, 0)*p.X + r.At(1, 1)*p.Y + r.At(1, 2)*p.Z + t.Y,
		Z: r.At(2, 0)*p.X + r.At(2, 1)*p.Y + r.At(2, 2)*p.Z + t.Z,
	}
}

// Apply transforms p by the pose.
func (p Pose) Apply(x r3.Vector) r3.Vector {
	return Compose(p.R, p.T, x)
}

// Then returns the pose equivalent to applying p first and q second.
func (p Pose) Then(q Pose) Pose {
	var r mat.Dense
	r.Mul(q.R, p.R)
	return Pose{R: &r, T: q.Apply(p.T)}
}

// Inverse returns the pose mapping back through p.
func (p Pose) Inverse() Pose {
	rt := mat.DenseCopyOf(p.R.T())
	neg := Compose(rt, r3.Vector{}, p.T)
	return Pose{R: rt, T: neg.Mul(-1)}
}

// RotationVector returns the axis-angle form of R.
func (p Pose) RotationVector() r3.Vector {
	return RotationMatrixToVector(p.R)
}

// Matrix4 returns the homogeneous 4x4 form [R T; 0 0 0 1].
func (p Pose) Matrix4() *mat.Dense {
	m := mat.NewDense(4, 4, nil)
	for i := range 3 {
		for j := range 3 {
			m.Set(i, j, p.R.At(i, j))
		}
	}
	m.Set(0, 3, p.T.X)
	m.Set(1, 3, p.T.Y)
	m.Set(2, 3, p.T.Z)
	m.Set(3, 3, 1)
	return m
}

// PoseFromMatrix4 splits a 4x4 (or 3x4) matrix into R (top-left 3x3) and
// T (last column, rows 0-2). The bottom row, when present, is ignored.
func PoseFromMatrix4(m mat.Matrix) (Pose, error) {
	r, c := m.Dims()
	if (r != 4 && r != 3) || c != 4 {
		return Pose{}, fmt.Errorf("pose matrix is %dx%d, want 4x4", r, c)
	}
	rot := mat.NewDense(3, 3, nil)
	for i := range 3 {
		for j := range 3 {
			rot.Set(i, j, m.At(i, j))
		}
	}
	return Pose{R: rot, T: r3.Vector{X: m.At(0, 3), Y: m.At(1, 3), Z: m.At(2, 3)}}, nil
}

func identity3() *mat.Dense {
	return mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
}
