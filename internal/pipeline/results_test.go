package pipeline

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/posest/internal/geometry"
)

func sampleResults() []*FrameResult {
	solved := &FrameResult{
		Name:            "frame-000010",
		Frame:           10,
		Solved:          true,
		Pose:            geometry.Pose{R: geometry.Identity().R, T: r3.Vector{X: 1, Y: 2, Z: 3}},
		Correspondences: 30,
		Inliers:         28,
		Iterations:      12,
	}
	solved.Matrix = [4][4]float64{{1, 0, 0, 1}, {0, 1, 0, 2}, {0, 0, 1, 3}, {0, 0, 0, 1}}
	skipped := &FrameResult{
		Name:  "frame-000011",
		Frame: 11,
		Skip:  SkipMissingGroundTruth,
		Error: "ground truth pose not found: frame 11",
	}
	return []*FrameResult{solved, skipped}
}

func TestToJSONFrames(t *testing.T) {
	out, err := ToJSONFrames(sampleResults())
	require.NoError(t, err)

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, "frame-000010", decoded[0]["name"])
	assert.Contains(t, decoded[0], "pose")
	assert.NotContains(t, decoded[0], "skip_reason")
	assert.Equal(t, "missing_ground_truth", decoded[1]["skip_reason"])
	assert.NotContains(t, decoded[1], "pose")
}

func TestToCSVFrames(t *testing.T) {
	out, err := ToCSVFrames(sampleResults())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "name,frame,solved,skip_reason"))
	assert.True(t, strings.HasSuffix(lines[0], "m22,m23"))
	assert.True(t, strings.HasPrefix(lines[1], "frame-000010,10,true,,30,28,12,0.0000,1.000000"))
	assert.True(t, strings.HasSuffix(lines[1], "1.000000,3.000000"))
	assert.True(t, strings.HasPrefix(lines[2], "frame-000011,11,false,missing_ground_truth"))
}

func TestToPoseText(t *testing.T) {
	out, err := ToPoseText(sampleResults())
	require.NoError(t, err)

	want := "frame-000010:\n" +
		"1.000000 0.000000 0.000000 1.000000\n" +
		"0.000000 1.000000 0.000000 2.000000\n" +
		"0.000000 0.000000 1.000000 3.000000\n" +
		"0.000000 0.000000 0.000000 1.000000\n\n"
	assert.Equal(t, want, out)
}

func TestProfiler(t *testing.T) {
	var nilProfiler *Profiler
	nilProfiler.Record(&FrameResult{})

	p := &Profiler{}
	for _, r := range sampleResults() {
		r.Processing.AlignNs = 2_000_000
		r.Processing.SolveNs = 4_000_000
		p.Record(r)
	}
	snap := p.Snapshot()
	assert.Equal(t, int64(2), snap["frames"])
	assert.Equal(t, int64(1), snap["solved"])
	assert.Equal(t, int64(8), snap["solve_ms_total"])
	assert.InDelta(t, 2.0, snap["align_ms_per_frame"], 1e-9)
	assert.InDelta(t, 28.0, snap["inliers_per_solved_frame"], 1e-9)

	assert.NotContains(t, (&Profiler{}).Snapshot(), "align_ms_per_frame")
}
