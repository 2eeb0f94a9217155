// Package groundtruth provides read-only access to per-frame reference poses.
package groundtruth

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/MeKo-Tech/posest/internal/geometry"
)

// DefaultTemplate is the per-frame pose filename layout of the 7-Scenes dataset.
const DefaultTemplate = "frame-%06d.pose.txt"

var (
	// ErrNotFound is returned when no pose exists for a frame index.
	ErrNotFound = errors.New("ground truth pose not found")
	// ErrMalformed is returned when a pose file exists but cannot be read
	// or does not hold a rigid 4x4 transform.
	ErrMalformed = errors.New("malformed ground truth pose")
)

// Store looks up the reference pose of a frame.
type Store interface {
	Pose(frame int) (geometry.Pose, error)
}

// DirStore reads poses from a directory of 4x4 text files. Parsed poses are
// cached, so a DirStore is safe to share between workers.
type DirStore struct {
	Dir      string
	Template string

	mu    sync.RWMutex
	cache map[int]geometry.Pose
}

// NewDirStore creates a store over dir. An empty template selects DefaultTemplate.
func NewDirStore(dir, template string) *DirStore {
	if template == "" {
		template = DefaultTemplate
	}
	return &DirStore{Dir: dir, Template: template, cache: make(map[int]geometry.Pose)}
}

// Path returns the file that holds the pose of frame.
func (s *DirStore) Path(frame int) string {
	return filepath.Join(s.Dir, fmt.Sprintf(s.Template, frame))
}

// Pose implements Store.
func (s *DirStore) Pose(frame int) (geometry.Pose, error) {
	s.mu.RLock()
	p, ok := s.cache[frame]
	s.mu.RUnlock()
	if ok {
		return p, nil
	}

	path := s.Path(frame)
	f, err := os.Open(path) //nolint:gosec // G304: path built from configured directory
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return geometry.Pose{}, fmt.Errorf("%w: frame %d", ErrNotFound, frame)
		}
		return geometry.Pose{}, fmt.Errorf("%w: %s: %w", ErrMalformed, path, err)
	}
	defer func() { _ = f.Close() }()

	p, err = ReadPose(f)
	if err != nil {
		return geometry.Pose{}, fmt.Errorf("%w: %s: %w", ErrMalformed, path, err)
	}

	s.mu.Lock()
	if s.cache == nil {
		s.cache = make(map[int]geometry.Pose)
	}
	s.cache[frame] = p
	s.mu.Unlock()
	return p, nil
}

// MapStore is an in-memory Store.
type MapStore map[int]geometry.Pose

// Pose implements Store.
func (m MapStore) Pose(frame int) (geometry.Pose, error) {
	p, ok := m[frame]
	if !ok {
		return geometry.Pose{}, fmt.Errorf("%w: frame %d", ErrNotFound, frame)
	}
	return p, nil
}

// ReadPose parses a whitespace-separated 4x4 matrix. Blank lines are ignored;
// any other line must hold exactly four numbers.
func ReadPose(r io.Reader) (geometry.Pose, error) {
	values := make([]float64, 0, 16)
	rows := 0
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 4 {
			return geometry.Pose{}, fmt.Errorf("row %d has %d values, want 4", rows+1, len(fields))
		}
		if rows == 4 {
			return geometry.Pose{}, errors.New("pose matrix has more than 4 rows")
		}
		for _, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return geometry.Pose{}, fmt.Errorf("row %d: %w", rows+1, err)
			}
			values = append(values, v)
		}
		rows++
	}
	if err := sc.Err(); err != nil {
		return geometry.Pose{}, err
	}
	if rows != 4 {
		return geometry.Pose{}, fmt.Errorf("pose matrix has %d rows, want 4", rows)
	}
	return geometry.PoseFromMatrix4(mat.NewDense(4, 4, values))
}
