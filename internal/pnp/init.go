package pnp

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/MeKo-Tech/posest/internal/geometry"
)

// A cloud whose smallest covariance eigenvalue is below this fraction of the
// largest is treated as planar.
const planarityRatio = 1e-8

// cloudShape describes the spread of a 3D point cloud.
type cloudShape struct {
	planar bool
	// toPlane rotates centred points so that the third axis is the plane
	// normal (rows: major axis, minor axis, normal).
	toPlane  *mat.Dense
	centroid r3.Vector
}

// analyseCloud classifies pts as planar or general. ok is false for clouds
// that collapse to a line or a point.
func analyseCloud(pts []r3.Vector) (cloudShape, bool) {
	var c r3.Vector
	for _, p := range pts {
		c = c.Add(p)
	}
	c = c.Mul(1 / float64(len(pts)))

	cov := mat.NewSymDense(3, nil)
	for _, p := range pts {
		d := [3]float64{p.X - c.X, p.Y - c.Y, p.Z - c.Z}
		for i := range 3 {
			for j := i; j < 3; j++ {
				cov.SetSym(i, j, cov.At(i, j)+d[i]*d[j])
			}
		}
	}

	var eig mat.EigenSym
	if !eig.Factorize(cov, true) {
		return cloudShape{}, false
	}
	vals := eig.Values(nil)
	vecs := mat.NewDense(3, 3, nil)
	eig.VectorsTo(vecs)

	// Values are ascending.
	if vals[2] <= 0 || vals[1] <= planarityRatio*vals[2] {
		return cloudShape{}, false
	}
	major := column(vecs, 2)
	minor := column(vecs, 1)
	normal := major.Cross(minor).Normalize()

	return cloudShape{
		planar: vals[0] <= planarityRatio*vals[2],
		toPlane: mat.NewDense(3, 3, []float64{
			major.X, major.Y, major.Z,
			minor.X, minor.Y, minor.Z,
			normal.X, normal.Y, normal.Z,
		}),
		centroid: c,
	}, true
}

// minimalSample returns the sample size the shape needs.
func (s cloudShape) minimalSample() int {
	if s.planar {
		return MinPlanarPoints
	}
	return MinGeneralPoints
}

// initialPose computes a closed-form pose from a small set of
// correspondences given in normalized image coordinates.
func (s cloudShape) initialPose(pts []r3.Vector, img []r2.Point) (geometry.Pose, bool) {
	if s.planar {
		return s.planarPose(pts, img)
	}
	return dltPose(pts, img)
}

// planarPose decomposes the plane-to-image homography into a pose.
func (s cloudShape) planarPose(pts []r3.Vector, img []r2.Point) (geometry.Pose, bool) {
	plane := make([]r2.Point, len(pts))
	for i, p := range pts {
		q := geometry.Compose(s.toPlane, r3.Vector{}, p.Sub(s.centroid))
		plane[i] = r2.Point{X: q.X, Y: q.Y}
	}
	h, ok := homography(plane, img)
	if !ok {
		return geometry.Pose{}, false
	}

	h1 := column(h, 0)
	h2 := column(h, 1)
	h3 := column(h, 2)
	norm := (h1.Norm() + h2.Norm()) / 2
	if norm == 0 {
		return geometry.Pose{}, false
	}
	scale := 1 / norm
	// The plane centroid must lie in front of the camera.
	if h3.Z < 0 {
		scale = -scale
	}
	r1 := h1.Mul(scale)
	r2v := h2.Mul(scale)
	r3v := r1.Cross(r2v)
	rh, ok := geometry.Orthonormalize(mat.NewDense(3, 3, []float64{
		r1.X, r2v.X, r3v.X,
		r1.Y, r2v.Y, r3v.Y,
		r1.Z, r2v.Z, r3v.Z,
	}))
	if !ok {
		return geometry.Pose{}, false
	}
	th := h3.Mul(scale)

	var r mat.Dense
	r.Mul(rh, s.toPlane)
	t := th.Sub(geometry.Compose(&r, r3.Vector{}, s.centroid))
	return geometry.Pose{R: &r, T: t}, finitePose(&r, t)
}

// homography estimates H with dst ~ H·src by the normalized DLT.
func homography(src, dst []r2.Point) (*mat.Dense, bool) {
	if len(src) < 4 {
		return nil, false
	}
	ts, ns, ok := normalize2D(src)
	if !ok {
		return nil, false
	}
	td, nd, ok := normalize2D(dst)
	if !ok {
		return nil, false
	}

	a := mat.NewDense(2*len(src), 9, nil)
	for i := range ns {
		x, y := ns[i].X, ns[i].Y
		u, v := nd[i].X, nd[i].Y
		a.SetRow(2*i, []float64{-x, -y, -1, 0, 0, 0, u * x, u * y, u})
		a.SetRow(2*i+1, []float64{0, 0, 0, -x, -y, -1, v * x, v * y, v})
	}
	hn, ok := nullVector(a)
	if !ok {
		return nil, false
	}

	// H = Td^-1 · Hn · Ts
	var tdInv mat.Dense
	if err := tdInv.Inverse(td); err != nil {
		return nil, false
	}
	var h mat.Dense
	h.Product(&tdInv, mat.NewDense(3, 3, hn), ts)
	return &h, true
}

// dltPose estimates the projection matrix [R|t] up to scale from six or
// more general-position points.
func dltPose(pts []r3.Vector, img []r2.Point) (geometry.Pose, bool) {
	if len(pts) < MinGeneralPoints {
		return geometry.Pose{}, false
	}
	t3, np, ok := normalize3D(pts)
	if !ok {
		return geometry.Pose{}, false
	}

	a := mat.NewDense(2*len(pts), 12, nil)
	for i, p := range np {
		u, v := img[i].X, img[i].Y
		a.SetRow(2*i, []float64{p.X, p.Y, p.Z, 1, 0, 0, 0, 0, -u * p.X, -u * p.Y, -u * p.Z, -u})
		a.SetRow(2*i+1, []float64{0, 0, 0, 0, p.X, p.Y, p.Z, 1, -v * p.X, -v * p.Y, -v * p.Z, -v})
	}
	pv, ok := nullVector(a)
	if !ok {
		return geometry.Pose{}, false
	}
	var pm mat.Dense
	pm.Mul(mat.NewDense(3, 4, pv), t3)

	m := mat.DenseCopyOf(pm.Slice(0, 3, 0, 3))
	p4 := r3.Vector{X: pm.At(0, 3), Y: pm.At(1, 3), Z: pm.At(2, 3)}
	if mat.Det(m) < 0 {
		m.Scale(-1, m)
		p4 = p4.Mul(-1)
	}

	var svd mat.SVD
	if !svd.Factorize(m, mat.SVDFull) {
		return geometry.Pose{}, false
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	sv := svd.Values(nil)
	scale := stat.Mean(sv, nil)
	if scale == 0 {
		return geometry.Pose{}, false
	}
	var r mat.Dense
	r.Mul(&u, v.T())
	t := p4.Mul(1 / scale)
	return geometry.Pose{R: &r, T: t}, finitePose(&r, t)
}

// nullVector returns the right singular vector of a for its smallest
// singular value.
func nullVector(a *mat.Dense) ([]float64, bool) {
	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDFull) {
		return nil, false
	}
	var v mat.Dense
	svd.VTo(&v)
	_, c := v.Dims()
	return mat.Col(nil, c-1, &v), true
}

// normalize2D translates points to their centroid and scales them to a mean
// distance of sqrt(2). It returns the 3x3 similarity and the moved points.
func normalize2D(pts []r2.Point) (*mat.Dense, []r2.Point, bool) {
	xs := make([]float64, len(pts))
	ys := make([]float64, len(pts))
	for i, p := range pts {
		xs[i], ys[i] = p.X, p.Y
	}
	c := r2.Point{X: stat.Mean(xs, nil), Y: stat.Mean(ys, nil)}
	dist := make([]float64, len(pts))
	for i, p := range pts {
		dist[i] = p.Sub(c).Norm()
	}
	mean := stat.Mean(dist, nil)
	if mean == 0 {
		return nil, nil, false
	}
	s := math.Sqrt2 / mean
	out := make([]r2.Point, len(pts))
	for i, p := range pts {
		out[i] = p.Sub(c).Mul(s)
	}
	return mat.NewDense(3, 3, []float64{
		s, 0, -s * c.X,
		0, s, -s * c.Y,
		0, 0, 1,
	}), out, true
}

// normalize3D is the 3D counterpart of normalize2D with a mean distance of
// sqrt(3).
func normalize3D(pts []r3.Vector) (*mat.Dense, []r3.Vector, bool) {
	var c r3.Vector
	for _, p := range pts {
		c = c.Add(p)
	}
	c = c.Mul(1 / float64(len(pts)))
	dist := make([]float64, len(pts))
	for i, p := range pts {
		dist[i] = p.Sub(c).Norm()
	}
	mean := stat.Mean(dist, nil)
	if mean == 0 {
		return nil, nil, false
	}
	s := math.Sqrt(3) / mean
	out := make([]r3.Vector, len(pts))
	for i, p := range pts {
		out[i] = p.Sub(c).Mul(s)
	}
	return mat.NewDense(4, 4, []float64{
		s, 0, 0, -s * c.X,
		0, s, 0, -s * c.Y,
		0, 0, s, -s * c.Z,
		0, 0, 0, 1,
	}), out, true
}

func column(m mat.Matrix, j int) r3.Vector {
	return r3.Vector{X: m.At(0, j), Y: m.At(1, j), Z: m.At(2, j)}
}

func finitePose(r mat.Matrix, t r3.Vector) bool {
	for i := range 3 {
		for j := range 3 {
			v := r.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	for _, v := range []float64{t.X, t.Y, t.Z} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
