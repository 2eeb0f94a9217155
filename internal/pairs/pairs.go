// Package pairs generates candidate image pairs for matching: every map
// frame is paired with its temporal neighbours inside a sliding window.
package pairs

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Defaults of the sliding window generator.
const (
	DefaultWindow = 5
	DefaultSuffix = ".color.png"
)

// Pair is one candidate match between two frame images.
type Pair struct {
	First  string
	Second string
}

// String renders the pair as a line of the pairs file.
func (p Pair) String() string { return p.First + " " + p.Second }

// Generator pairs frames of one or more sequences.
type Generator struct {
	// Window is the number of neighbours considered on each side.
	Window int
	// Suffix selects frame images inside a sequence directory.
	Suffix string
	// Logger receives a warning for sequences without frames.
	Logger *slog.Logger
}

// New returns a generator with the default window and suffix.
func New() *Generator {
	return &Generator{Window: DefaultWindow, Suffix: DefaultSuffix}
}

// Frames lists the frame images of dir in lexical order.
func (g *Generator) Frames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read sequence %s: %w", dir, err)
	}
	var frames []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), g.Suffix) {
			frames = append(frames, e.Name())
		}
	}
	slices.Sort(frames)
	return frames, nil
}

// Window pairs every frame with the frames at most window positions away,
// excluding itself. Both directions of a pair are emitted.
func Window(frames []string, window int) []Pair {
	var out []Pair
	n := len(frames)
	for i, a := range frames {
		lo := max(0, i-window)
		hi := min(n, i+window+1)
		for j := lo; j < hi; j++ {
			if j == i {
				continue
			}
			out = append(out, Pair{First: a, Second: frames[j]})
		}
	}
	return out
}

// Generate pairs the frames of each sequence under root. Sequences are
// processed in the given order and never paired with each other. Pair
// members are paths joined from root, the sequence and the file name.
// A sequence without frames contributes no pairs.
func (g *Generator) Generate(root string, sequences []string) ([]Pair, error) {
	logger := g.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var out []Pair
	for _, seq := range sequences {
		dir := filepath.Join(root, seq)
		frames, err := g.Frames(dir)
		if err != nil {
			return nil, err
		}
		if len(frames) == 0 {
			logger.Warn("No frames in sequence", "sequence", seq, "dir", dir, "suffix", g.Suffix)
			continue
		}
		for i, f := range frames {
			frames[i] = filepath.Join(dir, f)
		}
		out = append(out, Window(frames, g.Window)...)
	}
	return out, nil
}

// Write emits one "first second" line per pair.
func Write(w io.Writer, pairs []Pair) error {
	bw := bufio.NewWriter(w)
	for _, p := range pairs {
		if _, err := bw.WriteString(p.String() + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteFile writes pairs to path.
func WriteFile(path string, pairs []Pair) error {
	f, err := os.Create(path) //nolint:gosec // G304: output path from configuration
	if err != nil {
		return fmt.Errorf("failed to create pairs file: %w", err)
	}
	if err := Write(f, pairs); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write pairs file: %w", err)
	}
	return f.Close()
}
