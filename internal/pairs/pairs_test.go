package pairs

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/posest/internal/testutil"
)

func writeFrames(t *testing.T, dir string, names ...string) {
	t.Helper()
	require.NoError(t, testutil.EnsureDir(dir))
	for _, n := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), nil, 0o600))
	}
}

func TestWindow(t *testing.T) {
	tests := []struct {
		name   string
		frames []string
		window int
		want   []Pair
	}{
		{"empty", nil, 5, nil},
		{"single", []string{"a"}, 5, nil},
		{
			name:   "window one",
			frames: []string{"a", "b", "c"},
			window: 1,
			want:   []Pair{{"a", "b"}, {"b", "a"}, {"b", "c"}, {"c", "b"}},
		},
		{
			name:   "window covers all",
			frames: []string{"a", "b", "c"},
			window: 5,
			want:   []Pair{{"a", "b"}, {"a", "c"}, {"b", "a"}, {"b", "c"}, {"c", "a"}, {"c", "b"}},
		},
		{"zero window", []string{"a", "b"}, 0, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Window(tt.frames, tt.window))
		})
	}
}

func TestGenerator_Frames(t *testing.T) {
	dir := t.TempDir()
	writeFrames(t, dir,
		"frame-000002.color.png",
		"frame-000000.color.png",
		"frame-000001.depth.png",
		"frame-000001.pose.txt",
		"frame-000001.color.png",
	)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.color.png"), 0o750))

	frames, err := New().Frames(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"frame-000000.color.png",
		"frame-000001.color.png",
		"frame-000002.color.png",
	}, frames)

	_, err = New().Frames(filepath.Join(dir, "missing"))
	require.Error(t, err)
}

func TestGenerator_Generate(t *testing.T) {
	root := t.TempDir()
	writeFrames(t, filepath.Join(root, "seq-01"), "frame-000000.color.png", "frame-000001.color.png")
	writeFrames(t, filepath.Join(root, "seq-02"), "frame-000000.color.png", "frame-000001.color.png", "frame-000002.color.png")

	g := &Generator{Window: 1, Suffix: DefaultSuffix}
	got, err := g.Generate(root, []string{"seq-01", "seq-02"})
	require.NoError(t, err)

	s1 := filepath.Join(root, "seq-01")
	s2 := filepath.Join(root, "seq-02")
	f := func(dir string, i int) string {
		return filepath.Join(dir, []string{"frame-000000.color.png", "frame-000001.color.png", "frame-000002.color.png"}[i])
	}
	assert.Equal(t, []Pair{
		{f(s1, 0), f(s1, 1)},
		{f(s1, 1), f(s1, 0)},
		{f(s2, 0), f(s2, 1)},
		{f(s2, 1), f(s2, 0)},
		{f(s2, 1), f(s2, 2)},
		{f(s2, 2), f(s2, 1)},
	}, got)
}

func TestGenerator_GenerateSkipsEmptySequence(t *testing.T) {
	root := t.TempDir()
	writeFrames(t, filepath.Join(root, "seq-01"), "notes.txt")
	writeFrames(t, filepath.Join(root, "seq-02"), "frame-000000.color.png", "frame-000001.color.png")

	var logs bytes.Buffer
	g := &Generator{Window: 1, Suffix: DefaultSuffix, Logger: slog.New(slog.NewTextHandler(&logs, nil))}
	got, err := g.Generate(root, []string{"seq-01", "seq-02"})
	require.NoError(t, err)

	s2 := filepath.Join(root, "seq-02")
	assert.Equal(t, []Pair{
		{filepath.Join(s2, "frame-000000.color.png"), filepath.Join(s2, "frame-000001.color.png")},
		{filepath.Join(s2, "frame-000001.color.png"), filepath.Join(s2, "frame-000000.color.png")},
	}, got)
	assert.Contains(t, logs.String(), "No frames in sequence")
	assert.Contains(t, logs.String(), "seq-01")

	got, err = g.Generate(root, []string{"seq-01"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestGenerator_GenerateMissingSequence(t *testing.T) {
	_, err := New().Generate(t.TempDir(), []string{"seq-09"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read sequence")
}

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, []Pair{{"a.png", "b.png"}, {"b.png", "a.png"}}))
	assert.Equal(t, "a.png b.png\nb.png a.png\n", buf.String())

	path := filepath.Join(t.TempDir(), "pairs.txt")
	require.NoError(t, WriteFile(path, []Pair{{"x", "y"}}))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "x y\n", string(data))

	require.Error(t, WriteFile(filepath.Join(t.TempDir(), "no", "pairs.txt"), nil))
}
