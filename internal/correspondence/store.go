package correspondence

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/golang/geo/r2"
)

// Suffix joins a frame label to its correspondence file extension.
const Suffix = "_matches"

// Supported correspondence file extensions.
const (
	ExtCBOR = ".cbor"
	ExtJSON = ".json"
)

// File is the on-disk form of one matcher output: keypoints of the map
// frame, keypoints of the query frame and, per map keypoint, the index of
// its query partner or -1.
type File struct {
	Keypoints0 [][2]float64 `cbor:"keypoints0" json:"keypoints0"`
	Keypoints1 [][2]float64 `cbor:"keypoints1" json:"keypoints1"`
	Matches    []int64      `cbor:"matches" json:"matches"`
}

// Set filters the file's matches into a correspondence set.
func (f *File) Set() (Set, error) {
	return FromMatches(points(f.Keypoints0), points(f.Keypoints1), f.Matches)
}

// Load reads a correspondence file, choosing the codec by extension.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from directory discovery
	if err != nil {
		return nil, fmt.Errorf("failed to read correspondence file: %w", err)
	}
	var f File
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ExtCBOR:
		err = cbor.Unmarshal(data, &f)
	case ExtJSON:
		err = json.Unmarshal(data, &f)
	default:
		return nil, fmt.Errorf("unsupported correspondence format %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return &f, nil
}

// Save writes f to path, choosing the codec by extension.
func Save(path string, f *File) error {
	var (
		data []byte
		err  error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ExtCBOR:
		data, err = cbor.Marshal(f)
	case ExtJSON:
		data, err = json.MarshalIndent(f, "", "  ")
	default:
		return fmt.Errorf("unsupported correspondence format %q", ext)
	}
	if err != nil {
		return fmt.Errorf("failed to encode correspondences: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

// FrameName strips the matches suffix and extension from a correspondence
// file name: "frame-000010_matches.cbor" becomes "frame-000010".
// The second return is false for names that are not correspondence files.
func FrameName(path string) (string, bool) {
	base := filepath.Base(path)
	ext := strings.ToLower(filepath.Ext(base))
	if ext != ExtCBOR && ext != ExtJSON {
		return "", false
	}
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	name, ok := strings.CutSuffix(stem, Suffix)
	if !ok || name == "" {
		return "", false
	}
	return name, true
}

func points(raw [][2]float64) []r2.Point {
	out := make([]r2.Point, len(raw))
	for i, p := range raw {
		out[i] = r2.Point{X: p[0], Y: p[1]}
	}
	return out
}
