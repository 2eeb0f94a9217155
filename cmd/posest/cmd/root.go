package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/posest/internal/config"
	"github.com/MeKo-Tech/posest/internal/version"
)

// app holds the state shared by one command tree.
type app struct {
	cfgFile string
	loader  *config.Loader
	config  *config.Config
	logger  *slog.Logger
}

// NewRootCommand builds a fresh command tree. Every call returns independent
// flag and configuration state.
func NewRootCommand() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "posest",
		Short: "Map-relative camera pose estimation and evaluation",
		Long: `posest estimates query camera poses from 2D keypoint correspondences
against map frames with known ground-truth poses, and scores estimated poses
against ground truth.

This tool provides:
- Unit-depth pre-alignment of map keypoints into the map frame
- RANSAC + iterative PnP pose estimation, in parallel over frames
- Rotation and translation error evaluation of estimated-poses files
- Sliding-window candidate pair generation for the matcher
- Worker scaling benchmarks of the estimation pipeline

Examples:
  posest estimate matches/ --ground-truth fire/map --intrinsics intrinsics.yml
  posest evaluate estimated_poses.txt --ground-truth fire/map
  posest pairs fire/map --window 5 --output pairs.txt
  posest config show`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, _ := cmd.PersistentFlags().GetBool("version")
			if v {
				ver, commit, date := version.Info()
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "posest version %s\n", ver)
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Commit: %s\n", commit)
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Date: %s\n", date)
				return nil
			}
			return cmd.Help()
		},
	}

	// Global flags that apply to all commands
	rootCmd.PersistentFlags().StringVar(&a.cfgFile, "config", "",
		"config file (default is search in ., $HOME, $HOME/.config/posest, /etc/posest)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("version", false, "print version information and exit")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := a.initConfig(cmd); err != nil {
			return err
		}
		a.logger = newLogger(cmd.ErrOrStderr(), a.config)
		slog.SetDefault(a.logger)
		return nil
	}

	rootCmd.AddCommand(
		newEstimateCommand(a),
		newEvaluateCommand(a),
		newPairsCommand(a),
		newBenchCommand(a),
		newConfigCommand(a),
	)

	return rootCmd
}

// GetRootCommand returns a new root command for testing purposes.
// This allows tests to execute commands without calling os.Exit().
func GetRootCommand() *cobra.Command {
	return NewRootCommand()
}

// Execute runs the command tree. This is called by main.main().
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

// initConfig reads in config file and ENV variables, then applies the
// global flags that were set explicitly.
func (a *app) initConfig(cmd *cobra.Command) error {
	a.loader = config.NewLoader()

	var err error
	if a.cfgFile != "" {
		a.config, err = a.loader.LoadWithFile(a.cfgFile)
	} else {
		a.config, err = a.loader.Load()
	}
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("verbose") {
		a.config.Verbose, _ = flags.GetBool("verbose")
	}
	if flags.Changed("log-level") {
		a.config.LogLevel, _ = flags.GetString("log-level")
		if err := a.config.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
	}
	return nil
}

// newLogger installs structured JSON logging at the configured level.
func newLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	var logLevel slog.Level

	// Check verbose flag first for backward compatibility
	if cfg.Verbose {
		logLevel = slog.LevelDebug
	} else {
		switch cfg.LogLevel {
		case "debug":
			logLevel = slog.LevelDebug
		case "info":
			logLevel = slog.LevelInfo
		case "warn":
			logLevel = slog.LevelWarn
		case "error":
			logLevel = slog.LevelError
		default:
			logLevel = slog.LevelInfo
		}
	}

	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: logLevel,
	}))
}
