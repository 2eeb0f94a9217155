// Package pnp estimates a camera pose from 3D-2D correspondences with RANSAC
// around an iterative Perspective-n-Point solver.
package pnp

import (
	"errors"
	"fmt"
)

// Default solver parameters.
const (
	DefaultReprojectionError = 8.0
	DefaultConfidence        = 0.99
	DefaultMaxIterations     = 1000
	DefaultRefineIterations  = 20
)

// Minimal sample sizes for planar and general point clouds.
const (
	MinPlanarPoints  = 5
	MinGeneralPoints = 6
)

var (
	// ErrNoHypothesis is returned when RANSAC finds no pose with enough inliers.
	ErrNoHypothesis = errors.New("no pose hypothesis found")
	// ErrInsufficientPoints is returned when there are too few points for a minimal sample.
	ErrInsufficientPoints = errors.New("insufficient points for pose estimation")
	// ErrMismatchedInput is returned when the 3D and 2D point lists differ in length.
	ErrMismatchedInput = errors.New("3D and 2D point counts differ")
)

// Config holds RANSAC and refinement parameters.
type Config struct {
	// ReprojectionError is the inlier threshold in pixels.
	ReprojectionError float64 `mapstructure:"reprojection_error" yaml:"reprojection_error" json:"reprojection_error"`
	// Confidence is the probability that at least one sample is outlier free.
	Confidence       float64 `mapstructure:"confidence" yaml:"confidence" json:"confidence"`
	MaxIterations    int     `mapstructure:"max_iterations" yaml:"max_iterations" json:"max_iterations"`
	RefineIterations int     `mapstructure:"refine_iterations" yaml:"refine_iterations" json:"refine_iterations"`
	// Seed and Stream select the sampling sequence. The same pair always
	// yields the same samples.
	Seed   uint64 `mapstructure:"seed" yaml:"seed" json:"seed"`
	Stream uint64 `mapstructure:"-" yaml:"-" json:"-"`
}

// DefaultConfig returns the standard solver settings.
func DefaultConfig() Config {
	return Config{
		ReprojectionError: DefaultReprojectionError,
		Confidence:        DefaultConfidence,
		MaxIterations:     DefaultMaxIterations,
		RefineIterations:  DefaultRefineIterations,
	}
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	if c.ReprojectionError <= 0 {
		return fmt.Errorf("reprojection error must be positive, got %g", c.ReprojectionError)
	}
	if c.Confidence <= 0 || c.Confidence >= 1 {
		return fmt.Errorf("confidence must be in (0, 1), got %g", c.Confidence)
	}
	if c.MaxIterations < 1 {
		return fmt.Errorf("max iterations must be at least 1, got %d", c.MaxIterations)
	}
	if c.RefineIterations < 0 {
		return fmt.Errorf("refine iterations must not be negative, got %d", c.RefineIterations)
	}
	return nil
}

// WithStream returns a copy of c drawing from the given sampling stream.
func (c Config) WithStream(stream uint64) Config {
	c.Stream = stream
	return c
}
