package model

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestReadFeatures(t *testing.T) {
	in := "0 0 0 1 2\n\n1 0 0   3 4\n  2 1 0 5 6  \n"
	fs, err := ReadFeatures(strings.NewReader(in))
	require.NoError(t, err)

	assert.Equal(t, []r3.Vec{{}, {X: 1}, {X: 2, Y: 1}}, fs.Points)
	require.Equal(t, 2, fs.NumChannels())
	assert.Equal(t, []float64{1, 3, 5}, fs.Values[0])
	assert.Equal(t, []float64{2, 4, 6}, fs.Values[1])
}

func TestReadFeatures_Errors(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"too few fields", "0 0 0\n", "line 1"},
		{"bad number", "0 0 0 1\n0 x 0 1\n", "line 2: field 2"},
		{"channel mismatch", "0 0 0 1 2\n0 0 1 3\n", "want 2 features, got 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadFeatures(strings.NewReader(tt.in))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestReadFeatures_Empty(t *testing.T) {
	fs, err := ReadFeatures(strings.NewReader("\n\n"))
	require.NoError(t, err)
	assert.Empty(t, fs.Points)
	assert.Equal(t, 0, fs.NumChannels())
}

func TestAccentuate_ColorCube(t *testing.T) {
	fs := &FeatureSet{
		Points: []r3.Vec{{}, {X: 1}},
		Values: [][]float64{{-2, 2}, {0, 1}, {1, -1}},
	}
	fs.Accentuate(true)
	assert.InDeltaSlice(t, []float64{0, 1}, fs.Values[0], 1e-12)
	assert.InDeltaSlice(t, []float64{0.5, 0.75}, fs.Values[1], 1e-12)
	assert.InDeltaSlice(t, []float64{0.75, 0.25}, fs.Values[2], 1e-12)
}

func TestAccentuate_Percentiles(t *testing.T) {
	unsigned := []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	signed := []float64{-4, -1, 0, 1, 2, 0, 0, 0, 0, 0, 0}
	constant := []float64{3, 3, 3, 3, 3, 3, 3, 3, 3, 3, 3}
	fs := &FeatureSet{Points: make([]r3.Vec, 11), Values: [][]float64{unsigned, signed, constant}}

	fs.Accentuate(false)

	// Stretched between the 10th (1) and 90th (9) percentiles.
	assert.InDelta(t, 0, fs.Values[0][0], 1e-12)
	assert.InDelta(t, 0, fs.Values[0][1], 1e-12)
	assert.InDelta(t, 0.5, fs.Values[0][5], 1e-12)
	assert.InDelta(t, 1, fs.Values[0][10], 1e-12)

	// Signed: centred on 0 and scaled by the larger percentile magnitude (1).
	assert.InDelta(t, 0, fs.Values[1][0], 1e-12)
	assert.InDelta(t, 0, fs.Values[1][1], 1e-12)
	assert.InDelta(t, 0.5, fs.Values[1][2], 1e-12)
	assert.InDelta(t, 1, fs.Values[1][3], 1e-12)
	assert.InDelta(t, 1, fs.Values[1][4], 1e-12)

	assert.Equal(t, []float64{3, 3, 3, 3, 3, 3, 3, 3, 3, 3, 3}, fs.Values[2])
}

// lineMesh has faceless vertices at x = 0, 5 and 10.
func lineMesh() *Mesh {
	return &Mesh{Name: "targets", Vertices: []r3.Vec{{}, {X: 5}, {X: 10}}}
}

func TestPropagateFeatures(t *testing.T) {
	var buf bytes.Buffer
	opts := DefaultOptions()
	opts.Logger = slog.New(slog.NewTextHandler(&buf, nil))
	m, err := New(opts)
	require.NoError(t, err)
	m.AddMesh(lineMesh())

	fs := &FeatureSet{
		Points: []r3.Vec{{}, {X: 10}},
		Values: [][]float64{{0, 10}, {1, 1}},
	}

	for _, workers := range []int{1, 3} {
		require.NoError(t, m.PropagateFeatures(context.Background(), fs, workers))
		require.True(t, m.HasFeatures())

		vf := m.VertexFeatures(0)
		require.Len(t, vf, 3)
		// The scale is 2, so each end vertex only sees its own point and
		// the middle vertex falls back to both at equal weight.
		assert.InDeltaSlice(t, []float64{0, 1}, vf[0], 1e-12)
		assert.InDeltaSlice(t, []float64{5, 1}, vf[1], 1e-12)
		assert.InDeltaSlice(t, []float64{10, 1}, vf[2], 1e-12)
	}

	assert.Contains(t, buf.String(), `msg="propagated features"`)
	assert.Contains(t, buf.String(), "unbounded_retries=1")

	assert.Nil(t, m.VertexFeatures(1))
	m.AddMesh(lineMesh())
	assert.False(t, m.HasFeatures(), "adding a mesh drops stale features")
}

func TestPropagateFeatures_Errors(t *testing.T) {
	m := newTestModel(t, lineMesh())
	assert.ErrorIs(t, m.PropagateFeatures(context.Background(), &FeatureSet{}, 1), ErrNoFeatures)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fs := &FeatureSet{Points: []r3.Vec{{}}, Values: [][]float64{{1}}}
	assert.ErrorIs(t, m.PropagateFeatures(ctx, fs, 1), context.Canceled)
	assert.False(t, m.HasFeatures())
}

func TestPropagateFeatures_UsesModelTreeConfig(t *testing.T) {
	fs := &FeatureSet{
		Points: []r3.Vec{{}, {X: 10}},
		Values: [][]float64{{0, 10}},
	}
	for _, tt := range []struct {
		leafSize  int
		wantDepth string
	}{
		{8, "tree_depth=1"},
		{1, "tree_depth=2"},
	} {
		var buf bytes.Buffer
		opts := DefaultOptions()
		opts.Tree.LeafSize = tt.leafSize
		opts.Logger = slog.New(slog.NewTextHandler(&buf, nil))
		m, err := New(opts)
		require.NoError(t, err)
		m.AddMesh(lineMesh())

		require.NoError(t, m.PropagateFeatures(context.Background(), fs, 2))
		assert.Contains(t, buf.String(), tt.wantDepth, "leaf size %d", tt.leafSize)
		assert.InDeltaSlice(t, []float64{5}, m.VertexFeatures(0)[1], 1e-12)
	}
}
