package batch

import (
	"fmt"

	"github.com/MeKo-Tech/posest/internal/pipeline"
)

// formatBatchResults formats the batch results in the specified format.
func formatBatchResults(results []*pipeline.FrameResult, format string) (string, error) {
	switch format {
	case FormatJSON:
		return pipeline.ToJSONFrames(results)
	case FormatCSV:
		return pipeline.ToCSVFrames(results)
	case FormatPoses, "":
		return pipeline.ToPoseText(results)
	default:
		return "", fmt.Errorf("unsupported format %q", format)
	}
}
