// Package metrics exposes pose estimation and evaluation counters as
// Prometheus collectors and writes them in the text exposition format.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/MeKo-Tech/posest/internal/evaluate"
	"github.com/MeKo-Tech/posest/internal/pipeline"
)

// Frame outcomes used as the "outcome" label.
const (
	OutcomeSolved  = "solved"
	OutcomeSkipped = "skipped"

	reasonNone = "none"
)

// Collector records frame and evaluation metrics on its own registry.
type Collector struct {
	registry *prometheus.Registry

	framesTotal     *prometheus.CounterVec
	stageDuration   *prometheus.HistogramVec
	inliers         prometheus.Histogram
	inlierRatio     prometheus.Histogram
	iterations      prometheus.Histogram
	reprojection    prometheus.Histogram
	rotationError   prometheus.Histogram
	translationErr  prometheus.Histogram
	posesEvaluated  prometheus.Gauge
	posesMissing    prometheus.Gauge
	posesInvalid    prometheus.Gauge
	meanRotation    prometheus.Gauge
	meanTranslation prometheus.Gauge
}

// New creates a collector with all metrics registered.
func New() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,

		// Estimation metrics
		framesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "posest_frames_total",
				Help: "Total number of processed frames",
			},
			[]string{"outcome", "reason"},
		),
		stageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "posest_stage_duration_seconds",
				Help:    "Per-frame stage duration in seconds",
				Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
			},
			[]string{"stage"}, // stage: load, align, solve, total
		),
		inliers: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "posest_solver_inliers",
				Help:    "Number of RANSAC inliers of solved frames",
				Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500},
			},
		),
		inlierRatio: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "posest_solver_inlier_ratio",
				Help:    "Inliers over correspondences of solved frames",
				Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
			},
		),
		iterations: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "posest_solver_iterations",
				Help:    "RANSAC iterations of solved frames",
				Buckets: []float64{1, 5, 10, 50, 100, 250, 500, 1000},
			},
		),
		reprojection: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "posest_solver_reprojection_rmse_pixels",
				Help:    "Inlier reprojection RMSE of solved frames in pixels",
				Buckets: []float64{.01, .1, .5, 1, 2, 4, 8},
			},
		),

		// Evaluation metrics
		rotationError: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "posest_rotation_error_degrees",
				Help:    "Geodesic rotation error of evaluated poses",
				Buckets: []float64{.1, .5, 1, 2, 5, 10, 30, 90, 180},
			},
		),
		translationErr: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "posest_translation_error",
				Help:    "Euclidean translation error of evaluated poses",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2, 5},
			},
		),
		posesEvaluated: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "posest_poses_evaluated",
				Help: "Number of poses scored by the last evaluation",
			},
		),
		posesMissing: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "posest_poses_missing_ground_truth",
				Help: "Number of poses skipped for missing ground truth",
			},
		),
		posesInvalid: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "posest_poses_invalid_ground_truth",
				Help: "Number of poses skipped for unreadable or malformed ground truth",
			},
		),
		meanRotation: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "posest_mean_rotation_error_degrees",
				Help: "Mean rotation error of the last evaluation",
			},
		),
		meanTranslation: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "posest_mean_translation_error",
				Help: "Mean translation error of the last evaluation",
			},
		),
	}
}

// Registry returns the registry holding the collector's metrics.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// ObserveFrame records one frame result. It is safe for concurrent use.
func (c *Collector) ObserveFrame(res *pipeline.FrameResult) {
	if res == nil {
		return
	}
	if !res.Solved {
		c.framesTotal.WithLabelValues(OutcomeSkipped, string(res.Skip)).Inc()
		return
	}
	c.framesTotal.WithLabelValues(OutcomeSolved, reasonNone).Inc()

	p := res.Processing
	c.stageDuration.WithLabelValues("load").Observe(seconds(p.LoadNs))
	c.stageDuration.WithLabelValues("align").Observe(seconds(p.AlignNs))
	c.stageDuration.WithLabelValues("solve").Observe(seconds(p.SolveNs))
	c.stageDuration.WithLabelValues("total").Observe(seconds(p.TotalNs))

	c.inliers.Observe(float64(res.Inliers))
	if res.Correspondences > 0 {
		c.inlierRatio.Observe(float64(res.Inliers) / float64(res.Correspondences))
	}
	c.iterations.Observe(float64(res.Iterations))
	c.reprojection.Observe(res.ReprojectionRMSE)
}

// ObserveReport records the per-pose errors and summary of an evaluation.
func (c *Collector) ObserveReport(rep *evaluate.Report) {
	if rep == nil {
		return
	}
	for _, s := range rep.Samples {
		c.rotationError.Observe(s.RotationDeg)
		c.translationErr.Observe(s.Translation)
	}
	c.posesEvaluated.Set(float64(rep.Evaluated()))
	c.posesMissing.Set(float64(rep.Missing))
	c.posesInvalid.Set(float64(rep.Invalid))
	c.meanRotation.Set(rep.MeanRotation)
	c.meanTranslation.Set(rep.MeanTranslation)
}

// WriteToTextfile writes all metrics to path in the text format read by the
// node exporter's textfile collector.
func (c *Collector) WriteToTextfile(path string) error {
	return prometheus.WriteToTextfile(path, c.registry)
}

func seconds(ns int64) float64 {
	return time.Duration(ns).Seconds()
}
