package support

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MeKo-Tech/posest/internal/testutil"
)

// TestContext holds the state for integration tests.
type TestContext struct {
	// Command execution state
	LastCommand   string
	LastOutput    string
	LastStdout    string
	LastError     error
	LastExitCode  int
	LastStartTime time.Time
	LastDuration  time.Duration

	// Test environment
	WorkingDir string
	TempDir    string

	// Fixtures
	Dataset       *testutil.Dataset
	QueryPosesDir string
	MapRoot       string
}

// NewTestContext creates a new test context.
func NewTestContext() (*TestContext, error) {
	workingDir, err := testutil.ModuleRoot()
	if err != nil {
		return nil, fmt.Errorf("failed to find project root: %w", err)
	}

	// Create temporary directory for test artifacts
	tempDir, err := os.MkdirTemp("", "posest-test-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}

	return &TestContext{
		WorkingDir: workingDir,
		TempDir:    tempDir,
	}, nil
}

// Cleanup removes all temporary files and directories created during tests.
func (testCtx *TestContext) Cleanup() error {
	if err := os.RemoveAll(testCtx.TempDir); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove temp directory %s: %w", testCtx.TempDir, err)
	}
	return nil
}

// Path resolves a step argument: variables are substituted and relative
// paths are placed inside the scenario's temp directory.
func (testCtx *TestContext) Path(name string) string {
	name = testCtx.substituteCommandVariables(name)
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(testCtx.TempDir, name)
}

// substituteCommandVariables replaces fixture placeholders with their
// scenario-specific paths.
func (testCtx *TestContext) substituteCommandVariables(command string) string {
	replacements := []string{"{tmp}", testCtx.TempDir}
	if testCtx.Dataset != nil {
		replacements = append(replacements,
			"{matches}", testCtx.Dataset.MatchesDir,
			"{map}", testCtx.Dataset.GroundTruthDir,
			"{intrinsics}", testCtx.Dataset.IntrinsicsFile,
		)
	}
	if testCtx.QueryPosesDir != "" {
		replacements = append(replacements, "{query_gt}", testCtx.QueryPosesDir)
	}
	if testCtx.MapRoot != "" {
		replacements = append(replacements, "{map_root}", testCtx.MapRoot)
	}
	return strings.NewReplacer(replacements...).Replace(command)
}
