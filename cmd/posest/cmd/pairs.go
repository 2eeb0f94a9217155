package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/posest/internal/pairs"
)

func newPairsCommand(a *app) *cobra.Command {
	pairsCmd := &cobra.Command{
		Use:   "pairs <map-dir>",
		Short: "Generate sliding-window image pairs for matching",
		Long: `Pair every frame of each sequence under map-dir with its neighbours
within a window. One "first second" pair is written per line.

Examples:
  posest pairs fire/map
  posest pairs fire/map --sequences seq-01,seq-02 --window 3 -o pairs.txt`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runPairs(cmd, args[0])
		},
	}

	pairsCmd.Flags().StringSlice("sequences", nil, "sequence directories under map-dir (default: seq-01,seq-02)")
	pairsCmd.Flags().Int("window", 0, fmt.Sprintf("neighbours on each side of a frame (default: %d)", pairs.DefaultWindow))
	pairsCmd.Flags().String("suffix", "", fmt.Sprintf("file suffix of frame images (default: %s)", pairs.DefaultSuffix))
	pairsCmd.Flags().StringP("output", "o", "", "output file (default: stdout)")

	return pairsCmd
}

func (a *app) runPairs(cmd *cobra.Command, root string) error {
	flags := cmd.Flags()
	gen := a.config.ToPairsGenerator()
	gen.Logger = a.logger
	sequences := a.config.Pairs.Sequences

	if flags.Changed("sequences") {
		sequences, _ = flags.GetStringSlice("sequences")
	}
	if flags.Changed("window") {
		gen.Window, _ = flags.GetInt("window")
		if gen.Window <= 0 {
			return fmt.Errorf("invalid window: %d (must be positive)", gen.Window)
		}
	}
	if flags.Changed("suffix") {
		gen.Suffix, _ = flags.GetString("suffix")
	}

	generated, err := gen.Generate(root, sequences)
	if err != nil {
		return err
	}

	output, _ := flags.GetString("output")
	if output == "" {
		if err := pairs.Write(cmd.OutOrStdout(), generated); err != nil {
			return err
		}
	} else if err := pairs.WriteFile(output, generated); err != nil {
		return err
	}

	a.logger.Info("Pairs generated", "sequences", len(sequences), "pairs", len(generated), "output", output)
	return nil
}
