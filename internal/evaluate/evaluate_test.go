package evaluate

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"math"
	"os"
	"strings"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/MeKo-Tech/posest/internal/geometry"
	"github.com/MeKo-Tech/posest/internal/groundtruth"
	"github.com/MeKo-Tech/posest/internal/posefile"
	"github.com/MeKo-Tech/posest/internal/testutil"
)

func quietEvaluator(store groundtruth.Store) *Evaluator {
	return &Evaluator{GroundTruth: store, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func TestRotationError(t *testing.T) {
	r := geometry.RotationVectorToMatrix(r3.Vector{X: 0.3, Y: -0.2, Z: 1.1})
	assert.InDelta(t, 0.0, RotationError(r, r), 1e-5)

	for _, axis := range []r3.Vector{{X: 1}, {Y: 1}, {Z: 1}, r3.Vector{X: 1, Y: 2, Z: -1}.Normalize()} {
		flip := geometry.RotationVectorToMatrix(axis.Mul(math.Pi))
		assert.InDelta(t, 180.0, RotationError(flip, geometry.Identity().R), 1e-4)
	}

	gt := geometry.RotationVectorToMatrix(r3.Vector{X: -0.7, Y: 0.4, Z: 2.1})
	for _, axis := range []r3.Vector{{X: 1}, r3.Vector{X: -2, Y: 1, Z: 3}.Normalize()} {
		var flipped mat.Dense
		flipped.Mul(gt, geometry.RotationVectorToMatrix(axis.Mul(math.Pi)))
		assert.InDelta(t, 180.0, RotationError(gt, &flipped), 1e-4)
		assert.InDelta(t, 180.0, RotationError(&flipped, gt), 1e-4)
	}

	small := geometry.RotationVectorToMatrix(r3.Vector{Z: 10 * math.Pi / 180})
	assert.InDelta(t, 10.0, RotationError(small, geometry.Identity().R), 1e-9)
	assert.InDelta(t, 10.0, RotationError(geometry.Identity().R, small), 1e-9)
}

func TestTranslationError(t *testing.T) {
	a := r3.Vector{X: 1, Y: 2, Z: 3}
	b := r3.Vector{X: 4, Y: 6, Z: 3}
	assert.InDelta(t, 0.0, TranslationError(a, a), 0)
	assert.InDelta(t, 5.0, TranslationError(a, b), 1e-12)
	assert.InDelta(t, TranslationError(b, a), TranslationError(a, b), 0)
}

func TestEvaluate(t *testing.T) {
	gt := groundtruth.MapStore{
		1: geometry.Identity(),
		2: geometry.NewPose(r3.Vector{Z: math.Pi / 2}, r3.Vector{X: 1}),
	}
	recs := []posefile.Record{
		{Name: "frame-000001", Frame: 1, Pose: geometry.NewPose(r3.Vector{Z: math.Pi / 18}, r3.Vector{Y: 3})},
		{Name: "frame-000002", Frame: 2, Pose: geometry.NewPose(r3.Vector{Z: math.Pi / 2}, r3.Vector{X: 2})},
		{Name: "frame-000009", Frame: 9, Pose: geometry.Identity()},
	}

	report, err := quietEvaluator(gt).Evaluate(recs)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Evaluated())
	assert.Equal(t, 1, report.Missing)
	assert.InDelta(t, 10.0, report.Samples[0].RotationDeg, 1e-9)
	assert.InDelta(t, 0.0, report.Samples[1].RotationDeg, 1e-5)
	assert.InDelta(t, 5.0, report.MeanRotation, 1e-5)
	assert.InDelta(t, 2.0, report.MeanTranslation, 1e-12)
}

func TestEvaluate_SkipsMalformedGroundTruth(t *testing.T) {
	dir := t.TempDir()
	store := groundtruth.NewDirStore(dir, "")
	require.NoError(t, os.WriteFile(store.Path(1), []byte(testutil.PoseText(geometry.Identity())), 0o600))
	require.NoError(t, os.WriteFile(store.Path(2), []byte("garbage\n"), 0o600))

	var logs bytes.Buffer
	e := &Evaluator{GroundTruth: store, Logger: slog.New(slog.NewTextHandler(&logs, nil))}
	report, err := e.Evaluate([]posefile.Record{
		{Name: "frame-000001", Frame: 1, Pose: geometry.NewPose(r3.Vector{}, r3.Vector{Z: 2})},
		{Name: "frame-000002", Frame: 2, Pose: geometry.Identity()},
		{Name: "frame-000003", Frame: 3, Pose: geometry.Identity()},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Evaluated())
	assert.Equal(t, 1, report.Invalid)
	assert.Equal(t, 1, report.Missing)
	assert.InDelta(t, 2.0, report.MeanTranslation, 1e-12)
	assert.Contains(t, logs.String(), "ground truth pose unusable")
}

type failingStore struct{}

func (failingStore) Pose(int) (geometry.Pose, error) { return geometry.Pose{}, errors.New("disk on fire") }

func TestEvaluate_StoreFailure(t *testing.T) {
	_, err := quietEvaluator(failingStore{}).Evaluate([]posefile.Record{{Name: "frame-1", Frame: 1}})
	assert.Error(t, err)
}

func TestEvaluate_EmptyFile(t *testing.T) {
	recs, _, err := posefile.Decode(strings.NewReader(""))
	require.NoError(t, err)

	report, err := quietEvaluator(groundtruth.MapStore{}).Evaluate(recs)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, report.Print(&buf))
	assert.Equal(t, "Evaluated 0 poses\nMean Rotation Error: 0.00\nMean Translation Error: 0.00\n", buf.String())
}
