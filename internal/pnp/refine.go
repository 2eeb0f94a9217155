package pnp

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/MeKo-Tech/posest/internal/geometry"
)

const (
	lmInitialDamping = 1e-3
	lmMaxDamping     = 1e12
	lmTolerance      = 1e-12
	// minDepth keeps residuals finite for points on the camera plane.
	minDepth = 1e-9
)

// residuals writes the pixel reprojection residuals of pose into dst, two
// per point.
func residuals(dst []float64, pose geometry.Pose, pts []r3.Vector, px []r2.Point, k geometry.Intrinsics) {
	for i, p := range pts {
		c := pose.Apply(p)
		z := c.Z
		if math.Abs(z) < minDepth {
			z = math.Copysign(minDepth, z)
		}
		dst[2*i] = k.Fx*c.X/z + k.Cx - px[i].X
		dst[2*i+1] = k.Fy*c.Y/z + k.Cy - px[i].Y
	}
}

// refine minimises the squared pixel reprojection error with
// Levenberg-Marquardt. Rotation updates are applied as small rotation
// vectors on the left of the current estimate.
func refine(pose geometry.Pose, pts []r3.Vector, px []r2.Point, k geometry.Intrinsics, iterations int) geometry.Pose {
	if iterations <= 0 || len(pts) == 0 {
		return pose
	}
	m := 2 * len(pts)

	// perturb returns the pose moved by x = [δrot, t].
	perturb := func(base geometry.Pose, x []float64) geometry.Pose {
		dr := geometry.RotationVectorToMatrix(r3.Vector{X: x[0], Y: x[1], Z: x[2]})
		var r mat.Dense
		r.Mul(dr, base.R)
		return geometry.Pose{R: &r, T: r3.Vector{X: x[3], Y: x[4], Z: x[5]}}
	}

	res := make([]float64, m)
	residuals(res, pose, pts, px, k)
	cost := floats.Dot(res, res)

	jac := mat.NewDense(m, 6, nil)
	settings := &fd.JacobianSettings{Formula: fd.Central}
	lambda := lmInitialDamping
	trial := make([]float64, m)

	for range iterations {
		base := pose
		f := func(y, x []float64) {
			residuals(y, perturb(base, x), pts, px, k)
		}
		x0 := []float64{0, 0, 0, base.T.X, base.T.Y, base.T.Z}
		fd.Jacobian(jac, f, x0, settings)

		var jtj mat.Dense
		jtj.Mul(jac.T(), jac)
		var g mat.VecDense
		g.MulVec(jac.T(), mat.NewVecDense(m, res))

		improved := false
		for lambda < lmMaxDamping {
			a := mat.DenseCopyOf(&jtj)
			for i := range 6 {
				d := jtj.At(i, i)
				a.Set(i, i, d+lambda*math.Max(d, 1e-9))
			}
			var step mat.VecDense
			if err := step.SolveVec(a, &g); err != nil {
				lambda *= 10
				continue
			}
			x := make([]float64, 6)
			for i := range x {
				x[i] = x0[i] - step.AtVec(i)
			}
			cand := perturb(base, x)
			residuals(trial, cand, pts, px, k)
			trialCost := floats.Dot(trial, trial)
			if trialCost < cost {
				converged := cost-trialCost <= lmTolerance*(1+cost) || mat.Norm(&step, 2) <= lmTolerance
				pose = cand
				cost = trialCost
				copy(res, trial)
				lambda = math.Max(lambda/10, 1e-12)
				improved = true
				if converged {
					return pose
				}
				break
			}
			lambda *= 10
		}
		if !improved {
			break
		}
	}
	return pose
}

// reprojectionErrors returns the pixel distance of each point's projection
// from its observation. Points behind the camera get +Inf.
func reprojectionErrors(pose geometry.Pose, pts []r3.Vector, px []r2.Point, k geometry.Intrinsics) []float64 {
	errs := make([]float64, len(pts))
	for i, p := range pts {
		proj, ok := geometry.Project(pose.Apply(p), k)
		if !ok {
			errs[i] = math.Inf(1)
			continue
		}
		errs[i] = proj.Sub(px[i]).Norm()
	}
	return errs
}
