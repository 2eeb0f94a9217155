// Package correspondence turns matcher output into 3D-2D correspondences
// ready for pose solving.
package correspondence

import (
	"errors"
	"fmt"

	"github.com/golang/geo/r2"
)

// Unmatched marks a map keypoint without a partner in the query frame.
const Unmatched = -1

// ErrInsufficientCorrespondences is returned when too few matches survive
// filtering to attempt pose estimation.
var ErrInsufficientCorrespondences = errors.New("insufficient correspondences")

// Set holds index-aligned map and query keypoints.
type Set struct {
	Map   []r2.Point
	Query []r2.Point
}

// Len returns the number of correspondences.
func (s Set) Len() int { return len(s.Map) }

// FromMatches keeps every map keypoint whose match entry points into
// keypoints of the query frame. Negative entries are treated as unmatched,
// as are entries beyond the query keypoint list.
func FromMatches(kp0, kp1 []r2.Point, matches []int64) (Set, error) {
	if len(matches) != len(kp0) {
		return Set{}, fmt.Errorf("matches has %d entries for %d map keypoints", len(matches), len(kp0))
	}
	var s Set
	for i, m := range matches {
		if m < 0 || m >= int64(len(kp1)) {
			continue
		}
		s.Map = append(s.Map, kp0[i])
		s.Query = append(s.Query, kp1[m])
	}
	return s, nil
}
