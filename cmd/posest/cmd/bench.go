package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/posest/internal/benchmark"
)

func newBenchCommand(a *app) *cobra.Command {
	benchCmd := &cobra.Command{
		Use:   "bench [files or directories...]",
		Short: "Measure estimation throughput for several worker counts",
		Long: `Run pose estimation over the same correspondence files once per worker
count and report frames per second and the speedup over the first count.
No poses are written.

Examples:
  posest bench matches/ -g fire/map --intrinsics intrinsics.yml
  posest bench matches/ -g fire/map --intrinsics intrinsics.yml --worker-counts 1,4,8 --iterations 5`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runBench(cmd, args)
		},
	}

	addInputFlags(benchCmd)
	benchCmd.Flags().IntSlice("worker-counts", []int{1, 2, 4}, "worker counts to compare")
	benchCmd.Flags().Int("iterations", 3, "runs per worker count")

	return benchCmd
}

func (a *app) runBench(cmd *cobra.Command, args []string) error {
	bc := configToBatchConfig(a.config, cmd)
	bc.Logger = a.logger

	workers, _ := cmd.Flags().GetIntSlice("worker-counts")
	iterations, _ := cmd.Flags().GetInt("iterations")

	ws := &benchmark.WorkerScaling{Config: *bc, Paths: args, Workers: workers}
	results, err := ws.Run(cmd.Context(), iterations)
	if err != nil {
		return fmt.Errorf("benchmark failed: %w", err)
	}

	benchmark.PrintScaling(cmd.OutOrStdout(), results)
	for _, r := range results {
		a.logger.Debug("Benchmark result", "workers", r.Workers, "result", r.String())
	}
	return nil
}
