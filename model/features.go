package model

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/TrevorS/kdtree"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"
)

// maxFeatureNeighbors is the number of feature points blended per vertex.
const maxFeatureNeighbors = 8

// FeatureSet is a set of points carrying one or more scalar feature
// channels. Values is channel-major: Values[c][i] is channel c of point i.
type FeatureSet struct {
	Points []r3.Vec
	Values [][]float64
}

// NumChannels returns the number of feature channels.
func (fs *FeatureSet) NumChannels() int { return len(fs.Values) }

// ReadFeatures parses lines of the form "x y z f0 [f1 ...]". Blank lines are
// skipped. The first line fixes the number of channels; every later line
// must carry the same number.
func ReadFeatures(r io.Reader) (*FeatureSet, error) {
	fs := &FeatureSet{}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) < 4 {
			return nil, fmt.Errorf("model: line %d: want x y z and at least one feature, got %d fields", line, len(fields))
		}

		vals := make([]float64, len(fields))
		for i, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("model: line %d: field %d: %w", line, i+1, err)
			}
			vals[i] = v
		}

		if fs.Values == nil {
			fs.Values = make([][]float64, len(vals)-3)
		} else if len(vals)-3 != len(fs.Values) {
			return nil, fmt.Errorf("model: line %d: want %d features, got %d", line, len(fs.Values), len(vals)-3)
		}

		fs.Points = append(fs.Points, r3.Vec{X: vals[0], Y: vals[1], Z: vals[2]})
		for c := range fs.Values {
			fs.Values[c] = append(fs.Values[c], vals[3+c])
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("model: reading features: %w", err)
	}
	return fs, nil
}

// Accentuate rescales every channel into [0, 1] for display.
//
// With colorCube and exactly three channels, all channels are scaled
// together by their largest magnitude and shifted so 0 maps to 0.5.
// Otherwise each channel is stretched between its 10th and 90th
// percentiles (falling back to min and max for near-constant channels).
// A channel with no negative values is treated as unsigned; otherwise it is
// scaled symmetrically about 0.
func (fs *FeatureSet) Accentuate(colorCube bool) {
	if len(fs.Points) == 0 {
		return
	}

	if colorCube && len(fs.Values) == 3 {
		absMax := 0.0
		for _, ch := range fs.Values {
			absMax = math.Max(absMax, math.Max(math.Abs(floats.Min(ch)), math.Abs(floats.Max(ch))))
		}
		if absMax > 0 {
			for _, ch := range fs.Values {
				floats.Scale(0.5/absMax, ch)
				floats.AddConst(0.5, ch)
				clamp01(ch)
			}
		}
		return
	}

	for _, ch := range fs.Values {
		sorted := append([]float64(nil), ch...)
		sort.Float64s(sorted)

		lo := sorted[int(0.1*float64(len(sorted)))]
		hi := sorted[int(0.9*float64(len(sorted)))]
		if hi-lo < 1e-20 {
			lo, hi = sorted[0], sorted[len(sorted)-1]
			if hi-lo < 1e-20 {
				continue
			}
		}

		if sorted[0] >= 0 {
			floats.AddConst(-lo, ch)
			floats.Scale(1/(hi-lo), ch)
		} else {
			absMax := math.Max(math.Abs(lo), math.Abs(hi))
			floats.AddConst(absMax, ch)
			floats.Scale(1/(2*absMax), ch)
		}
		clamp01(ch)
	}
}

func clamp01(s []float64) {
	for i, v := range s {
		s[i] = math.Min(math.Max(v, 0), 1)
	}
}

// ErrNoFeatures is returned when propagating an empty feature set.
var ErrNoFeatures = errors.New("model: feature set has no points")

// PropagateFeatures assigns feature values to every mesh vertex by blending
// the nearest feature points with Gaussian weights exp(-d²/s²), where s is
// a fifth of the diagonal of the feature points' bounding box. Up to eight
// neighbors within 2s are used; a vertex with none in range takes its
// neighbors from the whole set. Vertex positions are taken in mesh
// coordinates. The feature tree uses the model's tree configuration.
// Queries are spread over workers goroutines (<= 0 means GOMAXPROCS).
func (m *Model) PropagateFeatures(ctx context.Context, fs *FeatureSet, workers int) error {
	if len(fs.Points) == 0 {
		return ErrNoFeatures
	}

	cfg := m.treeCfg
	cfg.Metric = kdtree.EuclideanMetric{}
	tree, err := kdtree.New[kdtree.Point](cfg)
	if err != nil {
		return fmt.Errorf("model: feature tree: %w", err)
	}
	for _, p := range fs.Points {
		tree.Add(kdtree.Point{Position: p})
	}
	tree.Init()

	b := tree.Bounds()
	scale := math.Max(0.2*r3.Norm(r3.Sub(b.Max, b.Min)), 1e-8)
	scale2 := scale * scale

	var queries []r3.Vec
	for _, mesh := range m.meshes {
		queries = append(queries, mesh.Vertices...)
	}

	nbrs, err := kdtree.KClosestPairsBatch(ctx, tree, queries, maxFeatureNeighbors, 2*scale, workers)
	if err != nil {
		return fmt.Errorf("model: propagating features: %w", err)
	}

	retried := 0
	arr := kdtree.NewBoundedSortedArray[kdtree.NeighborPair](maxFeatureNeighbors)
	for i, pairs := range nbrs {
		if len(pairs) > 0 {
			continue
		}
		arr.Clear()
		tree.KClosestPairs(queries[i], arr, -1)
		nbrs[i] = arr.Values()
		retried++
	}

	out := make([][][]float64, len(m.meshes))
	q := 0
	for mi, mesh := range m.meshes {
		out[mi] = make([][]float64, len(mesh.Vertices))
		for vi := range mesh.Vertices {
			out[mi][vi] = blendFeatures(fs, nbrs[q], scale2)
			q++
		}
	}
	m.features = out

	m.logger.Info("propagated features",
		"points", len(fs.Points),
		"channels", fs.NumChannels(),
		"vertices", len(queries),
		"scale", scale,
		"tree_depth", tree.Depth(),
		"unbounded_retries", retried,
	)
	return nil
}

func blendFeatures(fs *FeatureSet, pairs []kdtree.NeighborPair, scale2 float64) []float64 {
	vals := make([]float64, fs.NumChannels())
	var sum float64
	for _, p := range pairs {
		w := math.Exp(-p.Distance * p.Distance / scale2)
		sum += w
		for c, ch := range fs.Values {
			vals[c] += w * ch[p.TargetIndex]
		}
	}
	if sum > 0 {
		floats.Scale(1/sum, vals)
	}
	return vals
}

// HasFeatures reports whether features have been propagated onto the
// current meshes.
func (m *Model) HasFeatures() bool { return m.features != nil }

// VertexFeatures returns the per-vertex feature values of mesh mi, indexed
// [vertex][channel], or nil if none were propagated.
func (m *Model) VertexFeatures(mi int) [][]float64 {
	if m.features == nil || mi < 0 || mi >= len(m.features) {
		return nil
	}
	return m.features[mi]
}
