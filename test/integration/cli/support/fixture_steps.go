package support

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cucumber/godog"

	"github.com/MeKo-Tech/posest/internal/testutil"
)

// parseFrames reads a comma separated list of frame indices.
func parseFrames(list string) ([]int, error) {
	var frames []int
	for _, f := range strings.Split(list, ",") {
		idx, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return nil, fmt.Errorf("invalid frame index %q: %w", f, err)
		}
		frames = append(frames, idx)
	}
	return frames, nil
}

// aDatasetWithFrames writes matches, map poses and intrinsics for frames.
func (testCtx *TestContext) aDatasetWithFrames(list string) error {
	return testCtx.writeDataset(list, 0)
}

// aDatasetWithFramesAndCorrespondences writes a dataset whose frames carry n
// matched keypoints each.
func (testCtx *TestContext) aDatasetWithFramesAndCorrespondences(list string, n int) error {
	return testCtx.writeDataset(list, n)
}

func (testCtx *TestContext) writeDataset(list string, points int) error {
	frames, err := parseFrames(list)
	if err != nil {
		return err
	}
	// Additional datasets share the matches directory of the first one.
	root := filepath.Join(testCtx.TempDir, "dataset")
	if testCtx.Dataset != nil {
		root = filepath.Join(testCtx.TempDir, fmt.Sprintf("dataset-%d", len(testCtx.Dataset.Frames)))
	}
	ds, err := testutil.CreateDataset(root, frames, testutil.DatasetOptions{Points: points, Unmatched: 3, Seed: 7})
	if err != nil {
		return fmt.Errorf("failed to write dataset: %w", err)
	}
	if testCtx.Dataset == nil {
		testCtx.Dataset = &ds
		return nil
	}
	return testCtx.mergeDataset(ds)
}

// mergeDataset moves the files of ds into the primary dataset.
func (testCtx *TestContext) mergeDataset(ds testutil.Dataset) error {
	for _, dir := range [][2]string{
		{ds.MatchesDir, testCtx.Dataset.MatchesDir},
		{ds.GroundTruthDir, testCtx.Dataset.GroundTruthDir},
	} {
		entries, err := os.ReadDir(dir[0])
		if err != nil {
			return err
		}
		for _, e := range entries {
			if err := os.Rename(filepath.Join(dir[0], e.Name()), filepath.Join(dir[1], e.Name())); err != nil {
				return err
			}
		}
	}
	testCtx.Dataset.Frames = append(testCtx.Dataset.Frames, ds.Frames...)
	return nil
}

// queryGroundTruthForFrames writes the true query poses of the listed
// dataset frames to a separate ground-truth directory.
func (testCtx *TestContext) queryGroundTruthForFrames(list string) error {
	if testCtx.Dataset == nil {
		return errors.New("no dataset written")
	}
	frames, err := parseFrames(list)
	if err != nil {
		return err
	}
	dir := filepath.Join(testCtx.TempDir, "query")
	if err := testutil.EnsureDir(dir); err != nil {
		return err
	}
	for _, idx := range frames {
		found := false
		for _, f := range testCtx.Dataset.Frames {
			if f.Index == idx {
				if err := testutil.SaveGroundTruth(dir, idx, f.QueryPose); err != nil {
					return err
				}
				found = true
			}
		}
		if !found {
			return fmt.Errorf("frame %d is not part of the dataset", idx)
		}
	}
	testCtx.QueryPosesDir = dir
	return nil
}

// aFileWithContent writes a file inside the temp directory.
func (testCtx *TestContext) aFileWithContent(name string, doc *godog.DocString) error {
	return testutil.WriteFile(testCtx.Path(name), []byte(doc.Content+"\n"))
}

// anEmptyFile creates an empty file inside the temp directory.
func (testCtx *TestContext) anEmptyFile(name string) error {
	return testutil.WriteFile(testCtx.Path(name), nil)
}

// mapSequencesWithFrames creates sequence directories of empty frame images.
func (testCtx *TestContext) mapSequencesWithFrames(list string, n int) error {
	root := filepath.Join(testCtx.TempDir, "map-root")
	for _, seq := range strings.Split(list, ",") {
		dir := filepath.Join(root, strings.TrimSpace(seq))
		if err := testutil.EnsureDir(dir); err != nil {
			return err
		}
		for i := range n {
			for _, suffix := range []string{".color.png", ".depth.png", ".pose.txt"} {
				name := filepath.Join(dir, fmt.Sprintf("frame-%06d%s", i, suffix))
				if err := os.WriteFile(name, nil, 0o600); err != nil {
					return err
				}
			}
		}
	}
	testCtx.MapRoot = root
	return nil
}

// RegisterFixtureSteps registers the steps that prepare input data.
func (testCtx *TestContext) RegisterFixtureSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a dataset with frames "([^"]*)"$`, testCtx.aDatasetWithFrames)
	sc.Step(`^a dataset with frames "([^"]*)" and (\d+) correspondences$`, testCtx.aDatasetWithFramesAndCorrespondences)
	sc.Step(`^query ground truth for frames "([^"]*)"$`, testCtx.queryGroundTruthForFrames)
	sc.Step(`^a file "([^"]*)" with content:$`, testCtx.aFileWithContent)
	sc.Step(`^an empty file "([^"]*)"$`, testCtx.anEmptyFile)
	sc.Step(`^map sequences "([^"]*)" with (\d+) frames each$`, testCtx.mapSequencesWithFrames)
}
