package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/posest/internal/evaluate"
	"github.com/MeKo-Tech/posest/internal/groundtruth"
	"github.com/MeKo-Tech/posest/internal/metrics"
	"github.com/MeKo-Tech/posest/internal/posefile"
)

func newEvaluateCommand(a *app) *cobra.Command {
	evaluateCmd := &cobra.Command{
		Use:   "evaluate <poses-file>",
		Short: "Score estimated poses against ground truth",
		Long: `Compare every pose of an estimated-poses file with the ground-truth pose
of the same frame and print the mean rotation error in degrees and the mean
translation error. Records without a ground-truth pose are skipped; malformed
records are reported and skipped.

Examples:
  posest evaluate estimated_poses.txt --ground-truth fire/map
  posest evaluate estimated_poses.txt -g fire/map --metrics-file eval.prom`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runEvaluate(cmd, args[0])
		},
	}

	evaluateCmd.Flags().StringP("ground-truth", "g", "", "directory of ground-truth poses")
	evaluateCmd.Flags().String("pose-template", "", "file name template of ground-truth poses (default: frame-%06d.pose.txt)")
	evaluateCmd.Flags().String("metrics-file", "", "write Prometheus metrics in text format to this file")

	return evaluateCmd
}

func (a *app) runEvaluate(cmd *cobra.Command, path string) error {
	dir := a.config.GroundTruth.Dir
	if cmd.Flags().Changed("ground-truth") {
		dir, _ = cmd.Flags().GetString("ground-truth")
	}
	template := a.config.GroundTruth.Template
	if cmd.Flags().Changed("pose-template") {
		template, _ = cmd.Flags().GetString("pose-template")
	}
	if dir == "" {
		return errors.New("no ground truth directory: set --ground-truth or ground_truth.dir")
	}

	records, skipped, err := posefile.ReadFile(path)
	if err != nil {
		return err
	}
	for _, recErr := range skipped {
		a.logger.Warn("Skipping malformed pose record", "file", path, "error", recErr)
	}

	evaluator := evaluate.New(groundtruth.NewDirStore(dir, template))
	evaluator.Logger = a.logger

	report, err := evaluator.Evaluate(records)
	if err != nil {
		return fmt.Errorf("evaluation failed: %w", err)
	}
	if err := report.Print(cmd.OutOrStdout()); err != nil {
		return err
	}

	if mf := metricsFile(a.config, cmd); mf != "" {
		collector := metrics.New()
		collector.ObserveReport(report)
		if err := collector.WriteToTextfile(mf); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}

	a.logger.Info("Evaluation completed",
		"records", len(records),
		"evaluated", report.Evaluated(),
		"missing_ground_truth", report.Missing,
		"invalid_ground_truth", report.Invalid,
		"malformed", len(skipped),
	)
	return nil
}
