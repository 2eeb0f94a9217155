package geometry

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// nearPi is the sin(θ) below which the axis is recovered from the
// symmetric part of R instead of the skew part.
const nearPi = 1e-4

// RotationVectorToMatrix converts an axis-angle vector (Rodrigues form) to a
// rotation matrix.
func RotationVectorToMatrix(v r3.Vector) *mat.Dense {
	theta := v.Norm()
	if theta < 1e-12 {
		// First-order expansion keeps tiny rotations exact to machine precision.
		return mat.NewDense(3, 3, []float64{
			1, -v.Z, v.Y,
			v.Z, 1, -v.X,
			-v.Y, v.X, 1,
		})
	}
	a := v.Mul(1 / theta)
	c, s := math.Cos(theta), math.Sin(theta)
	t := 1 - c
	return mat.NewDense(3, 3, []float64{
		c + t*a.X*a.X, t*a.X*a.Y - s*a.Z, t*a.X*a.Z + s*a.Y,
		t*a.Y*a.X + s*a.Z, c + t*a.Y*a.Y, t*a.Y*a.Z - s*a.X,
		t*a.Z*a.X - s*a.Y, t*a.Z*a.Y + s*a.X, c + t*a.Z*a.Z,
	})
}

// RotationMatrixToVector converts a rotation matrix to its axis-angle vector
// with angle in [0, π].
func RotationMatrixToVector(r mat.Matrix) r3.Vector {
	cosTheta := clamp((trace3(r)-1)/2, -1, 1)
	theta := math.Acos(cosTheta)

	// Twice the skew-symmetric part: 2·sin(θ)·axis.
	w := r3.Vector{
		X: r.At(2, 1) - r.At(1, 2),
		Y: r.At(0, 2) - r.At(2, 0),
		Z: r.At(1, 0) - r.At(0, 1),
	}
	sinTheta := w.Norm() / 2

	switch {
	case theta < 1e-12:
		return w.Mul(0.5)
	case sinTheta > nearPi || cosTheta > 0:
		return w.Mul(theta / (2 * math.Sin(theta)))
	}

	// θ close to π: (R+Rᵀ)/2 = cosθ·I + (1-cosθ)·a·aᵀ.
	oneMinus := 1 - cosTheta
	var aa [3][3]float64
	for i := range 3 {
		for j := range 3 {
			s := (r.At(i, j) + r.At(j, i)) / 2
			if i == j {
				s -= cosTheta
			}
			aa[i][j] = s / oneMinus
		}
	}
	k := 0
	for i := 1; i < 3; i++ {
		if aa[i][i] > aa[k][k] {
			k = i
		}
	}
	ak := math.Sqrt(math.Max(aa[k][k], 0))
	axis := [3]float64{}
	axis[k] = ak
	for i := range 3 {
		if i != k {
			axis[i] = aa[k][i] / ak
		}
	}
	a := r3.Vector{X: axis[0], Y: axis[1], Z: axis[2]}.Normalize()
	if a.Dot(w) < 0 {
		a = a.Mul(-1)
	}
	return a.Mul(theta)
}

// IsRotation reports whether r is orthonormal with determinant +1 within tol.
func IsRotation(r mat.Matrix, tol float64) bool {
	rows, cols := r.Dims()
	if rows != 3 || cols != 3 {
		return false
	}
	var rrt mat.Dense
	rrt.Mul(r, r.T())
	for i := range 3 {
		for j := range 3 {
			want := 0.0
			if i == j {
				want = 1
			}
			if math.Abs(rrt.At(i, j)-want) > tol {
				return false
			}
		}
	}
	return math.Abs(mat.Det(r)-1) <= tol
}

// Orthonormalize returns the rotation closest to r in the Frobenius norm.
func Orthonormalize(r mat.Matrix) (*mat.Dense, bool) {
	var svd mat.SVD
	if !svd.Factorize(r, mat.SVDFull) {
		return nil, false
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	var out mat.Dense
	out.Mul(&u, v.T())
	if mat.Det(&out) < 0 {
		// Flip the axis of the smallest singular value.
		for i := range 3 {
			u.Set(i, 2, -u.At(i, 2))
		}
		out.Mul(&u, v.T())
	}
	return &out, true
}

func trace3(r mat.Matrix) float64 {
	return r.At(0, 0) + r.At(1, 1) + r.At(2, 2)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
