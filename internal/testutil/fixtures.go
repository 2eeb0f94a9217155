package testutil

import (
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/posest/internal/correspondence"
	"github.com/MeKo-Tech/posest/internal/geometry"
)

// IntrinsicsYAML renders k as an OpenCV FileStorage document with node K.
func IntrinsicsYAML(k geometry.Intrinsics) string {
	return fmt.Sprintf(`%%YAML:1.0
---
K: !!opencv-matrix
   rows: 3
   cols: 3
   dt: d
   data: [ %g, 0., %g, 0., %g, %g, 0., 0., 1. ]
`, k.Fx, k.Cx, k.Fy, k.Cy)
}

// PoseText renders a pose as a 4x4 whitespace-separated matrix.
func PoseText(p geometry.Pose) string {
	m := p.Matrix4()
	var b strings.Builder
	for i := range 4 {
		for j := range 4 {
			if j > 0 {
				b.WriteByte('\t')
			}
			fmt.Fprintf(&b, "% .9e", m.At(i, j))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// DatasetFrame describes one synthetic map/query pair written by WriteDataset.
type DatasetFrame struct {
	Name      string
	Index     int
	QueryPose geometry.Pose
	MapPose   geometry.Pose
}

// Dataset is an on-disk fixture: a matches directory, a ground-truth pose
// directory and an intrinsics file.
type Dataset struct {
	Root           string
	MatchesDir     string
	GroundTruthDir string
	IntrinsicsFile string
	Frames         []DatasetFrame
}

// DatasetOptions tunes WriteDataset.
type DatasetOptions struct {
	// Points is the number of matched keypoints per frame.
	Points int
	// Unmatched extra map keypoints carrying the -1 sentinel.
	Unmatched int
	// Ext is the correspondence file extension.
	Ext  string
	Seed uint64
}

// WriteDataset writes one correspondence file and one ground-truth pose per
// frame index under root.
func WriteDataset(t *testing.T, root string, frames []int, opts DatasetOptions) Dataset {
	t.Helper()

	ds, err := CreateDataset(root, frames, opts)
	require.NoError(t, err)
	return ds
}

// CreateDataset is WriteDataset for callers without a *testing.T, such as
// godog step definitions.
func CreateDataset(root string, frames []int, opts DatasetOptions) (Dataset, error) {
	if opts.Points == 0 {
		opts.Points = 40
	}
	if opts.Ext == "" {
		opts.Ext = correspondence.ExtCBOR
	}
	ds := Dataset{
		Root:           root,
		MatchesDir:     filepath.Join(root, "matches"),
		GroundTruthDir: filepath.Join(root, "map"),
		IntrinsicsFile: filepath.Join(root, "intrinsics.yml"),
	}
	if err := EnsureDir(ds.MatchesDir); err != nil {
		return ds, err
	}
	if err := EnsureDir(ds.GroundTruthDir); err != nil {
		return ds, err
	}
	if err := os.WriteFile(ds.IntrinsicsFile, []byte(IntrinsicsYAML(DefaultIntrinsics)), 0o600); err != nil {
		return ds, err
	}

	rng := NewRNG(opts.Seed)
	for _, idx := range frames {
		pair := PrealignedPair(rng, opts.Points)
		frame := DatasetFrame{
			Name:      fmt.Sprintf("frame-%06d", idx),
			Index:     idx,
			QueryPose: pair.QueryPose,
			MapPose:   pair.MapPose,
		}
		if err := SaveGroundTruth(ds.GroundTruthDir, idx, pair.MapPose); err != nil {
			return ds, err
		}
		path := filepath.Join(ds.MatchesDir, frame.Name+correspondence.Suffix+opts.Ext)
		if err := correspondence.Save(path, MatchesFile(rng, pair, opts.Unmatched)); err != nil {
			return ds, err
		}
		ds.Frames = append(ds.Frames, frame)
	}
	return ds, nil
}

// WriteGroundTruth writes the pose of frame idx using the 7-Scenes layout.
func WriteGroundTruth(t *testing.T, dir string, idx int, p geometry.Pose) {
	t.Helper()
	require.NoError(t, SaveGroundTruth(dir, idx, p))
}

// SaveGroundTruth writes the pose file of frame idx into dir.
func SaveGroundTruth(dir string, idx int, p geometry.Pose) error {
	path := filepath.Join(dir, fmt.Sprintf("frame-%06d.pose.txt", idx))
	return os.WriteFile(path, []byte(PoseText(p)), 0o600)
}

// MatchesFile shuffles the query keypoints of pair and adds unmatched map
// keypoints, producing the matcher's three parallel arrays.
func MatchesFile(rng *rand.Rand, pair Prealigned, unmatched int) *correspondence.File {
	n := len(pair.MapKeypoints)
	order := rng.Perm(n)
	f := &correspondence.File{
		Keypoints0: make([][2]float64, 0, n+unmatched),
		Keypoints1: make([][2]float64, n),
		Matches:    make([]int64, 0, n+unmatched),
	}
	for i, kp := range pair.MapKeypoints {
		slot := order[i]
		q := pair.QueryKeypoints[i]
		f.Keypoints0 = append(f.Keypoints0, [2]float64{kp.X, kp.Y})
		f.Keypoints1[slot] = [2]float64{q.X, q.Y}
		f.Matches = append(f.Matches, int64(slot))
	}
	for i := range unmatched {
		f.Keypoints0 = append(f.Keypoints0, [2]float64{float64(10 + i), float64(10 + i)})
		f.Matches = append(f.Matches, correspondence.Unmatched)
	}
	return f
}
