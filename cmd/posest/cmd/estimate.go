package cmd

import (
	"fmt"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/posest/internal/batch"
	"github.com/MeKo-Tech/posest/internal/config"
	"github.com/MeKo-Tech/posest/internal/metrics"
	"github.com/MeKo-Tech/posest/internal/version"
)

func newEstimateCommand(a *app) *cobra.Command {
	estimateCmd := &cobra.Command{
		Use:   "estimate [files or directories...]",
		Short: "Estimate query camera poses from correspondence files",
		Long: `Estimate the pose of every query frame from its correspondence file.
Map keypoints are lifted to unit depth with the map frame's ground-truth pose
and the query pose is solved with RANSAC + iterative PnP. Solved poses are
written as an estimated-poses file; frames that cannot be solved are skipped
and reported.

Correspondence files are named <frame>_matches.cbor or <frame>_matches.json
and hold keypoints0, keypoints1 and matches.

Examples:
  posest estimate matches/ --ground-truth fire/map --intrinsics intrinsics.yml
  posest estimate matches/ -g fire/map --fx 525 --fy 525 --cx 319.5 --cy 239.5 -o poses.txt
  posest estimate matches/ -g fire/map --intrinsics intrinsics.yml --format json --stats`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runEstimate(cmd, args)
		},
	}

	addInputFlags(estimateCmd)

	// Output flags
	estimateCmd.Flags().StringP("format", "f", batch.FormatPoses, "output format: poses, json, csv")
	estimateCmd.Flags().StringP("output", "o", "", "output file (default: stdout)")
	estimateCmd.Flags().String("metrics-file", "", "write Prometheus metrics in text format to this file")

	// Parallel processing flags
	estimateCmd.Flags().IntP("workers", "w", 0, fmt.Sprintf("number of parallel workers (default: %d)", runtime.NumCPU()))

	// Progress and monitoring flags
	estimateCmd.Flags().Bool("progress", false, "show progress bar")
	estimateCmd.Flags().Bool("quiet", false, "suppress progress output")
	estimateCmd.Flags().Bool("stats", false, "show processing statistics on stderr")
	estimateCmd.Flags().Duration("progress-interval", 500*time.Millisecond, "progress update interval")

	return estimateCmd
}

// addInputFlags registers the camera, alignment, solver and discovery flags
// shared by the commands that run the estimation pipeline.
func addInputFlags(c *cobra.Command) {
	// Camera and ground truth flags
	c.Flags().String("intrinsics", "", "OpenCV FileStorage YAML file with the camera matrix")
	c.Flags().String("intrinsics-node", "", "node name of the camera matrix (default: K)")
	c.Flags().Float64("fx", 0, "focal length x (overrides the intrinsics file)")
	c.Flags().Float64("fy", 0, "focal length y (overrides the intrinsics file)")
	c.Flags().Float64("cx", 0, "principal point x")
	c.Flags().Float64("cy", 0, "principal point y")
	c.Flags().StringP("ground-truth", "g", "", "directory of map frame poses")
	c.Flags().String("pose-template", "", "file name template of map frame poses (default: frame-%06d.pose.txt)")

	// Alignment and solver flags
	c.Flags().Int("min-correspondences", 0, "minimum correspondences handed to the solver")
	c.Flags().String("depth-prior", "", "depth prior for map keypoints: unit, constant")
	c.Flags().Float64("depth", 0, "depth used by the constant prior")
	c.Flags().Float64("reprojection-error", 0, "RANSAC inlier threshold in pixels")
	c.Flags().Float64("confidence", 0, "RANSAC confidence (0..1)")
	c.Flags().Int("max-iterations", 0, "maximum RANSAC iterations")
	c.Flags().Int("refine-iterations", 0, "Levenberg-Marquardt refinement iterations")
	c.Flags().Uint64("seed", 0, "base seed of the RANSAC sampling")

	// File discovery flags
	c.Flags().BoolP("recursive", "r", false, "recursively scan directories")
	c.Flags().StringSlice("include", batch.DefaultIncludePatterns, "file patterns to include")
	c.Flags().StringSlice("exclude", []string{}, "file patterns to exclude")
}

// configToBatchConfig maps centralized configuration to batch.Config.
// CLI flags override config file values only when set explicitly.
func configToBatchConfig(cfg *config.Config, cmd *cobra.Command) *batch.Config {
	flags := cmd.Flags()
	bc := cfg.ToBatchConfig()

	if flags.Changed("intrinsics") {
		bc.IntrinsicsFile, _ = flags.GetString("intrinsics")
	}
	if flags.Changed("intrinsics-node") {
		bc.IntrinsicsNode, _ = flags.GetString("intrinsics-node")
	}
	if flags.Changed("fx") {
		bc.Intrinsics.Fx, _ = flags.GetFloat64("fx")
	}
	if flags.Changed("fy") {
		bc.Intrinsics.Fy, _ = flags.GetFloat64("fy")
	}
	if flags.Changed("cx") {
		bc.Intrinsics.Cx, _ = flags.GetFloat64("cx")
	}
	if flags.Changed("cy") {
		bc.Intrinsics.Cy, _ = flags.GetFloat64("cy")
	}
	if flags.Changed("ground-truth") {
		bc.GroundTruthDir, _ = flags.GetString("ground-truth")
	}
	if flags.Changed("pose-template") {
		bc.PoseTemplate, _ = flags.GetString("pose-template")
	}

	if flags.Changed("min-correspondences") {
		bc.MinCorrespondences, _ = flags.GetInt("min-correspondences")
	}
	if flags.Changed("depth-prior") {
		bc.DepthPrior, _ = flags.GetString("depth-prior")
	}
	if flags.Changed("depth") {
		bc.Depth, _ = flags.GetFloat64("depth")
	}
	if flags.Changed("reprojection-error") {
		bc.Solver.ReprojectionError, _ = flags.GetFloat64("reprojection-error")
	}
	if flags.Changed("confidence") {
		bc.Solver.Confidence, _ = flags.GetFloat64("confidence")
	}
	if flags.Changed("max-iterations") {
		bc.Solver.MaxIterations, _ = flags.GetInt("max-iterations")
	}
	if flags.Changed("refine-iterations") {
		bc.Solver.RefineIterations, _ = flags.GetInt("refine-iterations")
	}
	if flags.Changed("seed") {
		bc.Solver.Seed, _ = flags.GetUint64("seed")
	}

	if flags.Changed("format") {
		bc.Format, _ = flags.GetString("format")
	}
	if flags.Changed("output") {
		bc.OutputFile, _ = flags.GetString("output")
	}
	if flags.Changed("workers") {
		bc.Workers, _ = flags.GetInt("workers")
	}

	// File discovery and progress settings are CLI-only
	bc.Recursive, _ = flags.GetBool("recursive")
	bc.IncludePatterns, _ = flags.GetStringSlice("include")
	bc.ExcludePatterns, _ = flags.GetStringSlice("exclude")
	bc.ShowProgress, _ = flags.GetBool("progress")
	bc.Quiet, _ = flags.GetBool("quiet")
	bc.ShowStats, _ = flags.GetBool("stats")
	bc.ProgressInterval, _ = flags.GetDuration("progress-interval")
	bc.Progress = cmd.ErrOrStderr()

	return &bc
}

func metricsFile(cfg *config.Config, cmd *cobra.Command) string {
	if cmd.Flags().Changed("metrics-file") {
		path, _ := cmd.Flags().GetString("metrics-file")
		return path
	}
	return cfg.Output.MetricsFile
}

func (a *app) runEstimate(cmd *cobra.Command, args []string) error {
	bc := configToBatchConfig(a.config, cmd)
	bc.Logger = a.logger

	collector := metrics.New()
	bc.Observer = collector

	a.logger.Info("Starting pose estimation",
		"inputs", len(args),
		"ground_truth", bc.GroundTruthDir,
		"workers", bc.Workers,
		"version", version.String(),
	)

	result, err := batch.ProcessBatch(cmd.Context(), args, bc)
	if err != nil {
		return fmt.Errorf("pose estimation failed: %w", err)
	}

	if err := result.SaveResults(cmd.OutOrStdout(), bc.Format, bc.OutputFile, bc.Quiet); err != nil {
		return fmt.Errorf("failed to save results: %w", err)
	}

	if bc.ShowStats {
		result.PrintStats(cmd.ErrOrStderr(), bc.Quiet)
	}

	if path := metricsFile(a.config, cmd); path != "" {
		if err := collector.WriteToTextfile(path); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}

	a.logger.Info("Pose estimation completed",
		"frames", len(result.Results),
		"solved", result.Solved(),
		"duration", result.Duration.String(),
	)
	return nil
}
