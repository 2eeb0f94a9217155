// Package posefile reads and writes the estimated-poses text format: per
// record a "<name>:" label, four rows of a 4x4 pose matrix with six
// decimals, and a blank separator line.
package posefile

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/MeKo-Tech/posest/internal/geometry"
)

// Record is one estimated pose.
type Record struct {
	Name string
	// Frame is the index parsed from Name. It is only set by Decode.
	Frame int
	Pose  geometry.Pose
}

// ErrMalformedRecord is wrapped by every RecordError.
var ErrMalformedRecord = errors.New("malformed pose record")

// RecordError describes a record that was skipped while decoding.
type RecordError struct {
	Line  int
	Label string
	Err   error
}

func (e *RecordError) Error() string {
	if e.Label == "" {
		return fmt.Sprintf("line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("line %d: record %q: %v", e.Line, e.Label, e.Err)
}

func (e *RecordError) Unwrap() []error { return []error{ErrMalformedRecord, e.Err} }

// Encode writes a single record.
func Encode(w io.Writer, rec Record) error {
	m := rec.Pose.Matrix4()
	var b strings.Builder
	b.WriteString(rec.Name)
	b.WriteString(":\n")
	for i := range 4 {
		for j := range 4 {
			if j > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(strconv.FormatFloat(m.At(i, j), 'f', 6, 64))
		}
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	_, err := io.WriteString(w, b.String())
	return err
}

// Writer appends records to an underlying writer.
type Writer struct {
	w     *bufio.Writer
	count int
}

// NewWriter returns a buffered record writer. Call Flush when done.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// Write encodes rec.
func (w *Writer) Write(rec Record) error {
	if err := Encode(w.w, rec); err != nil {
		return err
	}
	w.count++
	return nil
}

// Count returns the number of records written.
func (w *Writer) Count() int { return w.count }

// Flush writes any buffered data.
func (w *Writer) Flush() error { return w.w.Flush() }

// WriteFile writes all records to path, creating parent directories.
func WriteFile(path string, recs []Record) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	f, err := os.Create(path) //nolint:gosec // G304: output path from configuration
	if err != nil {
		return fmt.Errorf("failed to create pose file: %w", err)
	}
	w := NewWriter(f)
	for _, r := range recs {
		if err := w.Write(r); err != nil {
			_ = f.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Decode reads all well-formed records from r. Malformed records are
// skipped and returned as *RecordError values; the returned error is only
// set for read failures.
func Decode(r io.Reader) ([]Record, []error, error) {
	var (
		records []Record
		skipped []error
	)
	lines, err := readLines(r)
	if err != nil {
		return nil, nil, err
	}

	isLabel := func(s string) bool { return strings.HasSuffix(s, ":") }

	for i := 0; i < len(lines); {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			i++
			continue
		}
		start := i + 1
		i++
		if !isLabel(line) {
			skipped = append(skipped, &RecordError{Line: start, Err: fmt.Errorf("expected label, got %q", line)})
			continue
		}
		label := strings.TrimSuffix(line, ":")

		var rows []string
		for len(rows) < 4 && i < len(lines) {
			row := strings.TrimSpace(lines[i])
			if row == "" || isLabel(row) {
				break
			}
			rows = append(rows, row)
			i++
		}

		rec, err := parseRecord(label, rows)
		if err != nil {
			skipped = append(skipped, &RecordError{Line: start, Label: label, Err: err})
			continue
		}
		records = append(records, rec)
	}
	return records, skipped, nil
}

// readLines splits r into lines without a length limit.
func readLines(r io.Reader) ([]string, error) {
	var lines []string
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			lines = append(lines, strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r"))
		}
		if errors.Is(err, io.EOF) {
			return lines, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

// ReadFile decodes the pose file at path.
func ReadFile(path string) ([]Record, []error, error) {
	f, err := os.Open(path) //nolint:gosec // G304: input path from configuration
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open pose file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return Decode(f)
}

func parseRecord(label string, rows []string) (Record, error) {
	if len(rows) < 4 {
		return Record{}, fmt.Errorf("pose block has %d rows, want 4", len(rows))
	}
	frame, err := FrameIndex(label)
	if err != nil {
		return Record{}, err
	}
	values := make([]float64, 0, 16)
	for n, row := range rows {
		fields := strings.Fields(row)
		if len(fields) != 4 {
			return Record{}, fmt.Errorf("row %d has %d values, want 4", n+1, len(fields))
		}
		for _, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return Record{}, fmt.Errorf("row %d: %w", n+1, err)
			}
			values = append(values, v)
		}
	}
	pose, err := geometry.PoseFromMatrix4(mat.NewDense(4, 4, values))
	if err != nil {
		return Record{}, err
	}
	return Record{Name: label, Frame: frame, Pose: pose}, nil
}

// FrameIndex extracts the frame number from a frame name: the text after
// the last "-" of the final path element, up to the first ".".
// "seq-01/frame-000042.color" yields 42.
func FrameIndex(name string) (int, error) {
	base := name
	if i := strings.LastIndexAny(base, `/\`); i >= 0 {
		base = base[i+1:]
	}
	i := strings.LastIndex(base, "-")
	if i < 0 {
		return 0, fmt.Errorf("frame name %q has no index", name)
	}
	digits := base[i+1:]
	if j := strings.Index(digits, "."); j >= 0 {
		digits = digits[:j]
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, fmt.Errorf("frame name %q: invalid index: %w", name, err)
	}
	return n, nil
}
