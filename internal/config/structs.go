//nolint:lll
package config

// Config represents the complete configuration for the posest application.
// It includes settings for all commands (estimate, evaluate, pairs) and
// supports loading from configuration files, environment variables, and command-line flags.
type Config struct {
	// Global settings
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	// Camera intrinsics shared by map and query frames
	Camera CameraConfig `mapstructure:"camera" yaml:"camera" json:"camera"`

	// Reference poses of the map frames
	GroundTruth GroundTruthConfig `mapstructure:"ground_truth" yaml:"ground_truth" json:"ground_truth"`

	// Correspondence alignment
	Alignment AlignmentConfig `mapstructure:"alignment" yaml:"alignment" json:"alignment"`

	// Robust pose solver
	Solver SolverConfig `mapstructure:"solver" yaml:"solver" json:"solver"`

	// Parallel processing
	Parallel ParallelConfig `mapstructure:"parallel" yaml:"parallel" json:"parallel"`

	// Output configuration
	Output OutputConfig `mapstructure:"output" yaml:"output" json:"output"`

	// Candidate pair generation
	Pairs PairsConfig `mapstructure:"pairs" yaml:"pairs" json:"pairs"`
}

// CameraConfig selects the intrinsics. Explicit focal lengths win over the
// calibration file.
type CameraConfig struct {
	IntrinsicsFile string  `mapstructure:"intrinsics_file" yaml:"intrinsics_file" json:"intrinsics_file"`
	IntrinsicsNode string  `mapstructure:"intrinsics_node" yaml:"intrinsics_node" json:"intrinsics_node"`
	Fx             float64 `mapstructure:"fx" yaml:"fx" json:"fx"`
	Fy             float64 `mapstructure:"fy" yaml:"fy" json:"fy"`
	Cx             float64 `mapstructure:"cx" yaml:"cx" json:"cx"`
	Cy             float64 `mapstructure:"cy" yaml:"cy" json:"cy"`
}

// GroundTruthConfig locates per-frame reference poses.
type GroundTruthConfig struct {
	Dir      string `mapstructure:"dir" yaml:"dir" json:"dir"`
	Template string `mapstructure:"template" yaml:"template" json:"template"`
}

// AlignmentConfig contains correspondence alignment settings.
type AlignmentConfig struct {
	MinCorrespondences int     `mapstructure:"min_correspondences" yaml:"min_correspondences" json:"min_correspondences"`
	DepthPrior         string  `mapstructure:"depth_prior" yaml:"depth_prior" json:"depth_prior"`
	Depth              float64 `mapstructure:"depth" yaml:"depth" json:"depth"`
}

// SolverConfig contains RANSAC PnP settings.
type SolverConfig struct {
	ReprojectionError float64 `mapstructure:"reprojection_error" yaml:"reprojection_error" json:"reprojection_error"`
	Confidence        float64 `mapstructure:"confidence" yaml:"confidence" json:"confidence"`
	MaxIterations     int     `mapstructure:"max_iterations" yaml:"max_iterations" json:"max_iterations"`
	RefineIterations  int     `mapstructure:"refine_iterations" yaml:"refine_iterations" json:"refine_iterations"`
	Seed              uint64  `mapstructure:"seed" yaml:"seed" json:"seed"`
}

// ParallelConfig contains parallel processing settings.
type ParallelConfig struct {
	MaxWorkers int `mapstructure:"max_workers" yaml:"max_workers" json:"max_workers"`
}

// OutputConfig contains output formatting settings.
type OutputConfig struct {
	Format      string `mapstructure:"format" yaml:"format" json:"format"`
	File        string `mapstructure:"file" yaml:"file" json:"file"`
	MetricsFile string `mapstructure:"metrics_file" yaml:"metrics_file" json:"metrics_file"`
}

// PairsConfig contains sliding window pair generation settings.
type PairsConfig struct {
	Window    int      `mapstructure:"window" yaml:"window" json:"window"`
	Suffix    string   `mapstructure:"suffix" yaml:"suffix" json:"suffix"`
	Sequences []string `mapstructure:"sequences" yaml:"sequences" json:"sequences"`
}
