package batch

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/posest/internal/geometry"
	"github.com/MeKo-Tech/posest/internal/pipeline"
	"github.com/MeKo-Tech/posest/internal/posefile"
)

func mockResult() *Result {
	solved := &pipeline.FrameResult{
		Name:   "frame-000001",
		Frame:  1,
		Solved: true,
		Pose:   geometry.Pose{R: geometry.Identity().R, T: r3.Vector{X: 0.5}},
	}
	skipped := &pipeline.FrameResult{
		Name:  "frame-000002",
		Frame: 2,
		Skip:  pipeline.SkipMissingGroundTruth,
		Error: "ground truth pose not found: frame 2",
	}
	return &Result{
		Results:     []*pipeline.FrameResult{solved, skipped},
		Paths:       []string{"m/frame-000001_matches.cbor", "m/frame-000002_matches.cbor"},
		Duration:    2 * time.Second,
		WorkerCount: 2,
	}
}

func TestResult_FormatResults(t *testing.T) {
	r := mockResult()

	poses, err := r.FormatResults(FormatPoses)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(poses, "frame-000001:\n1.000000 0.000000 0.000000 0.500000\n"))
	assert.NotContains(t, poses, "frame-000002")

	def, err := r.FormatResults("")
	require.NoError(t, err)
	assert.Equal(t, poses, def)

	js, err := r.FormatResults(FormatJSON)
	require.NoError(t, err)
	assert.Contains(t, js, `"skip_reason": "missing_ground_truth"`)

	csv, err := r.FormatResults(FormatCSV)
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(csv), "\n"), 3)

	_, err = r.FormatResults("xml")
	require.Error(t, err)
}

func TestResult_Solved(t *testing.T) {
	assert.Equal(t, 1, mockResult().Solved())
	assert.Equal(t, 0, (&Result{}).Solved())
}

func TestResult_SaveResults_ToWriter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, mockResult().SaveResults(&buf, FormatPoses, "", false))
	assert.True(t, strings.HasPrefix(buf.String(), "frame-000001:\n"))
}

func TestResult_SaveResults_ToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "poses.txt")
	var buf bytes.Buffer
	require.NoError(t, mockResult().SaveResults(&buf, FormatPoses, path, false))
	assert.Equal(t, "Results written to "+path+"\n", buf.String())

	recs, perr, err := posefile.ReadFile(path)
	require.NoError(t, err)
	require.Empty(t, perr)
	require.Len(t, recs, 1)
	assert.Equal(t, 1, recs[0].Frame)
	assert.InDelta(t, 0.5, recs[0].Pose.T.X, 1e-9)

	buf.Reset()
	require.NoError(t, mockResult().SaveResults(&buf, FormatPoses, path, true))
	assert.Empty(t, buf.String())
}

func TestResult_SaveResults_Errors(t *testing.T) {
	var buf bytes.Buffer
	err := mockResult().SaveResults(&buf, "xml", "", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to format results")

	err = mockResult().SaveResults(&buf, FormatPoses, filepath.Join(t.TempDir(), "missing", "out.txt"), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to write output file")
}

func TestResult_PrintStats(t *testing.T) {
	var buf bytes.Buffer
	mockResult().PrintStats(&buf, false)
	out := buf.String()
	assert.Contains(t, out, "Processing Statistics:")
	assert.Contains(t, out, "Total frames: 2")
	assert.Contains(t, out, "Solved: 1")
	assert.Contains(t, out, "Skipped: 1")
	assert.Contains(t, out, "missing_ground_truth: 1")
	assert.Contains(t, out, "Throughput: 1.0 frames/sec")

	buf.Reset()
	mockResult().PrintStats(&buf, true)
	assert.Empty(t, buf.String())
}
