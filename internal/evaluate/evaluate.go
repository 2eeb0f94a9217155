// Package evaluate scores estimated poses against ground truth.
package evaluate

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/MeKo-Tech/posest/internal/groundtruth"
	"github.com/MeKo-Tech/posest/internal/posefile"
)

// RotationError returns the geodesic angle between two rotations in degrees.
func RotationError(est, gt mat.Matrix) float64 {
	var d mat.Dense
	d.Mul(est, gt.T())
	tr := d.At(0, 0) + d.At(1, 1) + d.At(2, 2)
	c := math.Max(-1, math.Min(1, (tr-1)/2))
	return math.Acos(c) * 180 / math.Pi
}

// TranslationError returns the Euclidean distance between two translations.
func TranslationError(est, gt r3.Vector) float64 {
	return est.Sub(gt).Norm()
}

// Sample is the error of one evaluated pose.
type Sample struct {
	Name        string  `json:"name"`
	Frame       int     `json:"frame"`
	RotationDeg float64 `json:"rotation_deg"`
	Translation float64 `json:"translation"`
}

// Report aggregates the evaluation of a pose file.
type Report struct {
	Samples []Sample `json:"samples"`
	// Missing counts records without a ground-truth pose.
	Missing int `json:"missing"`
	// Invalid counts records whose ground-truth file is unreadable or malformed.
	Invalid         int     `json:"invalid_ground_truth"`
	MeanRotation    float64 `json:"mean_rotation_deg"`
	MeanTranslation float64 `json:"mean_translation"`
}

// Evaluated returns the number of scored poses.
func (r *Report) Evaluated() int { return len(r.Samples) }

// Print writes the human-readable summary.
func (r *Report) Print(w io.Writer) error {
	_, err := fmt.Fprintf(w, "Evaluated %d poses\nMean Rotation Error: %.2f\nMean Translation Error: %.2f\n",
		r.Evaluated(), r.MeanRotation, r.MeanTranslation)
	return err
}

// Evaluator compares estimated poses with a ground-truth store.
type Evaluator struct {
	GroundTruth groundtruth.Store
	Logger      *slog.Logger
}

// New creates an evaluator using the default logger.
func New(store groundtruth.Store) *Evaluator {
	return &Evaluator{GroundTruth: store, Logger: slog.Default()}
}

// Evaluate scores every record that has a ground-truth pose. Records whose
// pose is missing or malformed are logged, counted and skipped; other store
// failures are returned.
func (e *Evaluator) Evaluate(records []posefile.Record) (*Report, error) {
	logger := e.Logger
	if logger == nil {
		logger = slog.Default()
	}
	report := &Report{Samples: make([]Sample, 0, len(records))}
	for _, rec := range records {
		gt, err := e.GroundTruth.Pose(rec.Frame)
		if err != nil {
			if errors.Is(err, groundtruth.ErrNotFound) {
				logger.Warn("ground truth pose not found", "frame", rec.Frame, "name", rec.Name)
				report.Missing++
				continue
			}
			if errors.Is(err, groundtruth.ErrMalformed) {
				logger.Warn("ground truth pose unusable", "frame", rec.Frame, "name", rec.Name, "error", err)
				report.Invalid++
				continue
			}
			return nil, fmt.Errorf("frame %d: %w", rec.Frame, err)
		}
		report.Samples = append(report.Samples, Sample{
			Name:        rec.Name,
			Frame:       rec.Frame,
			RotationDeg: RotationError(rec.Pose.R, gt.R),
			Translation: TranslationError(rec.Pose.T, gt.T),
		})
	}
	report.aggregate()
	return report, nil
}

func (r *Report) aggregate() {
	if len(r.Samples) == 0 {
		r.MeanRotation, r.MeanTranslation = 0, 0
		return
	}
	rot := make([]float64, len(r.Samples))
	trans := make([]float64, len(r.Samples))
	for i, s := range r.Samples {
		rot[i] = s.RotationDeg
		trans[i] = s.Translation
	}
	r.MeanRotation = stat.Mean(rot, nil)
	r.MeanTranslation = stat.Mean(trans, nil)
}
