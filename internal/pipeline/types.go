package pipeline

import (
	"github.com/MeKo-Tech/posest/internal/geometry"
	"github.com/MeKo-Tech/posest/internal/posefile"
)

// SkipReason classifies why a frame produced no pose.
type SkipReason string

// Skip reasons. An empty reason means the frame was solved.
const (
	SkipNone                        SkipReason = ""
	SkipInvalidName                 SkipReason = "invalid_name"
	SkipMissingCorrespondences      SkipReason = "missing_correspondences"
	SkipMissingGroundTruth          SkipReason = "missing_ground_truth"
	SkipInvalidGroundTruth          SkipReason = "invalid_ground_truth"
	SkipInsufficientCorrespondences SkipReason = "insufficient_correspondences"
	SkipSolverFailure               SkipReason = "solver_failure"
)

// AllSkipReasons lists every non-empty reason in reporting order.
var AllSkipReasons = []SkipReason{
	SkipInvalidName,
	SkipMissingCorrespondences,
	SkipMissingGroundTruth,
	SkipInvalidGroundTruth,
	SkipInsufficientCorrespondences,
	SkipSolverFailure,
}

// FrameJob identifies one correspondence file to process.
type FrameJob struct {
	// Path of the correspondence file.
	Path string
	// Name is the frame label written to the pose file.
	Name string
	// Frame is the index of the map frame, parsed from Name.
	Frame int
}

// FrameResult is the outcome of estimating one frame.
type FrameResult struct {
	Name  string `json:"name"`
	Frame int    `json:"frame"`
	Path  string `json:"path"`

	Solved bool       `json:"solved"`
	Skip   SkipReason `json:"skip_reason,omitempty"`
	Error  string     `json:"error,omitempty"`

	Pose             geometry.Pose `json:"-"`
	Matrix           [4][4]float64 `json:"pose,omitzero"`
	Correspondences  int           `json:"correspondences"`
	Inliers          int           `json:"inliers"`
	Iterations       int           `json:"iterations"`
	ReprojectionRMSE float64       `json:"reprojection_rmse"`

	Processing struct {
		LoadNs  int64 `json:"load_ns"`
		AlignNs int64 `json:"align_ns"`
		SolveNs int64 `json:"solve_ns"`
		TotalNs int64 `json:"total_ns"`
	} `json:"processing"`
}

// Record converts a solved result into a pose file record.
func (r *FrameResult) Record() posefile.Record {
	return posefile.Record{Name: r.Name, Frame: r.Frame, Pose: r.Pose}
}

// Records returns the pose file records of all solved results, in order.
func Records(results []*FrameResult) []posefile.Record {
	recs := make([]posefile.Record, 0, len(results))
	for _, r := range results {
		if r != nil && r.Solved {
			recs = append(recs, r.Record())
		}
	}
	return recs
}
