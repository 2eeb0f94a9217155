package pipeline

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/posest/internal/posefile"
)

// ToJSONFrames serializes frame results to pretty JSON.
func ToJSONFrames(results []*FrameResult) (string, error) {
	b, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ToCSVFrames exports one row per frame with its outcome and pose.
func ToCSVFrames(results []*FrameResult) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	header := []string{"name", "frame", "solved", "skip_reason", "correspondences", "inliers", "iterations", "rmse"}
	for i := range 3 {
		for j := range 4 {
			header = append(header, fmt.Sprintf("m%d%d", i, j))
		}
	}
	if err := w.Write(header); err != nil {
		return "", err
	}
	for _, r := range results {
		if r == nil {
			continue
		}
		row := []string{
			r.Name,
			strconv.Itoa(r.Frame),
			strconv.FormatBool(r.Solved),
			string(r.Skip),
			strconv.Itoa(r.Correspondences),
			strconv.Itoa(r.Inliers),
			strconv.Itoa(r.Iterations),
			fmt.Sprintf("%.4f", r.ReprojectionRMSE),
		}
		for i := range 3 {
			for j := range 4 {
				row = append(row, strconv.FormatFloat(r.Matrix[i][j], 'f', 6, 64))
			}
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}
	w.Flush()
	return buf.String(), w.Error()
}

// ToPoseText encodes the solved results in the estimated-poses format.
func ToPoseText(results []*FrameResult) (string, error) {
	var b strings.Builder
	for _, rec := range Records(results) {
		if err := posefile.Encode(&b, rec); err != nil {
			return "", err
		}
	}
	return b.String(), nil
}
