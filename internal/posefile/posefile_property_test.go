package posefile

import (
	"bytes"
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/MeKo-Tech/posest/internal/geometry"
)

// genPose generates a pose with an arbitrary rotation and a translation
// within ±100.
func genPose() gopter.Gen {
	return gopter.CombineGens(
		gen.Float64Range(-1, 1),
		gen.Float64Range(-1, 1),
		gen.Float64Range(-1, 1),
		gen.Float64Range(0, math.Pi),
		gen.Float64Range(-100, 100),
		gen.Float64Range(-100, 100),
		gen.Float64Range(-100, 100),
	).Map(func(vals []interface{}) geometry.Pose {
		f := func(i int) float64 {
			v, ok := vals[i].(float64)
			if !ok {
				panic("expected float64")
			}
			return v
		}
		axis := r3.Vector{X: f(0), Y: f(1), Z: f(2)}
		if axis.Norm() < 1e-3 {
			axis = r3.Vector{Z: 1}
		}
		return geometry.NewPose(axis.Normalize().Mul(f(3)), r3.Vector{X: f(4), Y: f(5), Z: f(6)})
	})
}

// TestRoundTrip verifies encoded poses decode to the same matrix within the
// six-decimal rounding of the format.
func TestRoundTrip(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("decode(encode(pose)) matches pose within six-decimal rounding", prop.ForAll(
		func(pose geometry.Pose, frame uint16) bool {
			var buf bytes.Buffer
			rec := Record{Name: "frame-" + padded(int(frame)), Pose: pose}
			if err := Encode(&buf, rec); err != nil {
				return false
			}
			recs, skipped, err := Decode(&buf)
			if err != nil || len(skipped) != 0 || len(recs) != 1 {
				return false
			}
			got := recs[0]
			if got.Frame != int(frame) || got.Name != rec.Name {
				return false
			}
			want := pose.Matrix4()
			have := got.Pose.Matrix4()
			for i := range 4 {
				for j := range 4 {
					if math.Abs(want.At(i, j)-have.At(i, j)) > 5.1e-7 {
						return false
					}
				}
			}
			return true
		},
		genPose(),
		gen.UInt16(),
	))

	properties.TestingRun(t)
}

func padded(n int) string {
	s := []byte("000000")
	for i := len(s) - 1; i >= 0 && n > 0; i-- {
		s[i] = byte('0' + n%10)
		n /= 10
	}
	return string(s)
}
