// Package calib loads camera intrinsics from OpenCV FileStorage YAML files.
package calib

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
	"gonum.org/v1/gonum/mat"

	"github.com/MeKo-Tech/posest/internal/geometry"
)

// DefaultNode is the FileStorage node holding the camera matrix.
const DefaultNode = "K"

// ErrNodeNotFound is returned when the requested matrix node is absent.
var ErrNodeNotFound = errors.New("matrix node not found")

// Matrix mirrors an OpenCV `!!opencv-matrix` node.
type Matrix struct {
	Rows int       `yaml:"rows"`
	Cols int       `yaml:"cols"`
	DT   string    `yaml:"dt"`
	Data []float64 `yaml:"data"`
}

// UnmarshalYAML accepts the node whatever its tag; OpenCV marks matrices with
// a custom `!!opencv-matrix` tag which the default decoder rejects.
func (m *Matrix) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: matrix node is not a mapping", node.Line)
	}
	plain := *node
	plain.Tag = "!!map"
	type raw Matrix
	var r raw
	if err := plain.Decode(&r); err != nil {
		return err
	}
	*m = Matrix(r)
	return nil
}

// Dense converts the matrix to a gonum dense matrix.
func (m Matrix) Dense() (*mat.Dense, error) {
	if m.Rows <= 0 || m.Cols <= 0 || len(m.Data) != m.Rows*m.Cols {
		return nil, fmt.Errorf("matrix %dx%d has %d values", m.Rows, m.Cols, len(m.Data))
	}
	return mat.NewDense(m.Rows, m.Cols, append([]float64(nil), m.Data...)), nil
}

// Parse reads the named matrix node from FileStorage YAML content.
func Parse(data []byte, node string) (*mat.Dense, error) {
	if node == "" {
		node = DefaultNode
	}
	var doc map[string]yaml.Node
	if err := yaml.Unmarshal(stripDirective(data), &doc); err != nil {
		return nil, fmt.Errorf("failed to parse FileStorage YAML: %w", err)
	}
	n, ok := doc[node]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNodeNotFound, node)
	}
	var m Matrix
	if err := n.Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to decode node %q: %w", node, err)
	}
	return m.Dense()
}

// LoadIntrinsics reads a camera matrix node from an OpenCV YAML file.
func LoadIntrinsics(path, node string) (geometry.Intrinsics, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from configuration
	if err != nil {
		return geometry.Intrinsics{}, fmt.Errorf("failed to read intrinsics file: %w", err)
	}
	k, err := Parse(data, node)
	if err != nil {
		return geometry.Intrinsics{}, fmt.Errorf("%s: %w", path, err)
	}
	return geometry.IntrinsicsFromMatrix(k)
}

// stripDirective drops OpenCV's "%YAML:1.0" header, which is not a valid
// YAML directive.
func stripDirective(data []byte) []byte {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if !bytes.HasPrefix(trimmed, []byte("%YAML")) {
		return data
	}
	if i := bytes.IndexByte(trimmed, '\n'); i >= 0 {
		return trimmed[i+1:]
	}
	return nil
}
