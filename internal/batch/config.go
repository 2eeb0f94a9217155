package batch

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/MeKo-Tech/posest/internal/geometry"
	"github.com/MeKo-Tech/posest/internal/pipeline"
	"github.com/MeKo-Tech/posest/internal/pnp"
)

// Output formats accepted by Result.FormatResults.
const (
	FormatPoses = "poses"
	FormatJSON  = "json"
	FormatCSV   = "csv"
)

// DefaultIncludePatterns select correspondence files when no include
// pattern is configured.
var DefaultIncludePatterns = []string{"*_matches.cbor", "*_matches.json"}

// Config holds all configuration for a batch estimation run.
type Config struct {
	// Camera and ground truth
	Intrinsics     geometry.Intrinsics
	IntrinsicsFile string
	IntrinsicsNode string
	GroundTruthDir string
	PoseTemplate   string

	// Alignment and solver settings
	MinCorrespondences int
	DepthPrior         string
	Depth              float64
	Solver             pnp.Config

	// Output settings
	Format     string
	OutputFile string

	// Parallel processing settings
	Workers int

	// File discovery settings
	Recursive       bool
	IncludePatterns []string
	ExcludePatterns []string

	// Progress settings
	ShowProgress     bool
	Quiet            bool
	ShowStats        bool
	ProgressInterval time.Duration

	// Optional collaborators
	Logger   *slog.Logger
	Observer pipeline.Observer
	Progress io.Writer
}

// Result holds the result of a batch run.
type Result struct {
	Results     []*pipeline.FrameResult
	Paths       []string
	Duration    time.Duration
	WorkerCount int
}

// Solved returns the number of frames that produced a pose.
func (r *Result) Solved() int {
	n := 0
	for _, res := range r.Results {
		if res != nil && res.Solved {
			n++
		}
	}
	return n
}

// FormatResults formats the batch results in the specified format.
func (r *Result) FormatResults(format string) (string, error) {
	return formatBatchResults(r.Results, format)
}

// SaveResults writes the formatted results to outputFile, or to w when no
// file is given.
func (r *Result) SaveResults(w io.Writer, format, outputFile string, quiet bool) error {
	output, err := r.FormatResults(format)
	if err != nil {
		return fmt.Errorf("failed to format results: %w", err)
	}

	if outputFile != "" {
		if err := os.WriteFile(outputFile, []byte(output), 0o600); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		if !quiet {
			_, _ = fmt.Fprintf(w, "Results written to %s\n", outputFile)
		}
	} else {
		_, _ = fmt.Fprint(w, output)
	}

	return nil
}

// PrintStats prints processing statistics.
func (r *Result) PrintStats(w io.Writer, quiet bool) {
	if quiet {
		return
	}
	stats := pipeline.CalculateParallelStats(r.Results, r.Duration, r.WorkerCount)
	_, _ = fmt.Fprintf(w, "\nProcessing Statistics:\n")
	_, _ = fmt.Fprintf(w, "  Total frames: %d\n", len(r.Paths))
	_, _ = fmt.Fprintf(w, "  Solved: %d\n", stats.SolvedFrames)
	_, _ = fmt.Fprintf(w, "  Skipped: %d\n", stats.SkippedFrames)
	for _, reason := range pipeline.AllSkipReasons {
		if n := stats.SkipReasons[reason]; n > 0 {
			_, _ = fmt.Fprintf(w, "    %s: %d\n", reason, n)
		}
	}
	_, _ = fmt.Fprintf(w, "  Workers: %d\n", stats.WorkerCount)
	_, _ = fmt.Fprintf(w, "  Duration: %v\n", stats.TotalDuration.Round(time.Millisecond))
	_, _ = fmt.Fprintf(w, "  Avg per frame: %v\n", stats.AveragePerFrame.Round(time.Millisecond))
	_, _ = fmt.Fprintf(w, "  Throughput: %.1f frames/sec\n", stats.ThroughputPerSec)
}
