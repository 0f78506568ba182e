package kdtree

import (
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

var allMetrics = []Metric{
	EuclideanMetric{},
	ManhattanMetric{},
	ChebyshevMetric{},
	MinkowskiMetric{P: 3},
}

// --- Metric values ---

func TestEuclideanDistance(t *testing.T) {
	m := EuclideanMetric{}
	a := r3.Vec{X: 1, Y: 0, Z: 0}
	b := r3.Vec{X: 0, Y: 1, Z: 0}
	if d := m.Distance(a, b); !almostEqual(d, math.Sqrt2, floatTol) {
		t.Errorf("Distance = %v, want %v", d, math.Sqrt2)
	}
	if rd := m.ReducedDistance(a, b); !almostEqual(rd, 2, floatTol) {
		t.Errorf("ReducedDistance = %v, want 2", rd)
	}
	if d := m.Distance(a, a); d != 0 {
		t.Errorf("self distance = %v, want 0", d)
	}
	if d := m.ReducedToDistance(m.ReducedDistance(a, b)); !almostEqual(d, m.Distance(a, b), floatTol) {
		t.Errorf("ReducedToDistance(ReducedDistance) = %v, want %v", d, m.Distance(a, b))
	}
	if rd := m.DistanceToReduced(3); rd != 9 {
		t.Errorf("DistanceToReduced(3) = %v, want 9", rd)
	}
}

func TestManhattanDistance(t *testing.T) {
	m := ManhattanMetric{}
	d := m.Distance(r3.Vec{X: 1, Y: 2, Z: 3}, r3.Vec{X: 4, Y: 0, Z: 3})
	if !almostEqual(d, 5, floatTol) {
		t.Errorf("Distance = %v, want 5", d)
	}
}

func TestChebyshevDistance(t *testing.T) {
	m := ChebyshevMetric{}
	d := m.Distance(r3.Vec{X: 1, Y: 2, Z: 3}, r3.Vec{X: 4, Y: 0, Z: -4})
	if !almostEqual(d, 7, floatTol) {
		t.Errorf("Distance = %v, want 7", d)
	}
}

func TestMinkowskiDistance_P2MatchesEuclidean(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	mk := MinkowskiMetric{P: 2}
	eu := EuclideanMetric{}
	for i := 0; i < 100; i++ {
		a, b := randomVec(rng, 10), randomVec(rng, 10)
		if d1, d2 := mk.Distance(a, b), eu.Distance(a, b); !almostEqual(d1, d2, 1e-9) {
			t.Fatalf("Minkowski(2) = %v, Euclidean = %v", d1, d2)
		}
	}
}

func TestMinkowskiMetric_PanicsBelowOne(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for P < 1")
		}
	}()
	MinkowskiMetric{P: 0.5}.ReducedDistance(r3.Vec{}, r3.Vec{X: 1})
}

func TestMetric_ReducedRoundTrip(t *testing.T) {
	for _, m := range allMetrics {
		for _, d := range []float64{0, 0.5, 1, 3.25, 100} {
			if got := m.ReducedToDistance(m.DistanceToReduced(d)); !almostEqual(got, d, 1e-9) {
				t.Errorf("%T: round trip of %v = %v", m, d, got)
			}
		}
	}
}

func TestMetric_ReducedIsMonotone(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for _, m := range allMetrics {
		q := randomVec(rng, 1)
		for i := 0; i < 200; i++ {
			a, b := randomVec(rng, 5), randomVec(rng, 5)
			da, db := m.Distance(q, a), m.Distance(q, b)
			ra, rb := m.ReducedDistance(q, a), m.ReducedDistance(q, b)
			if (da < db) != (ra < rb) && !almostEqual(da, db, 1e-12) {
				t.Fatalf("%T: distance order %v<%v disagrees with reduced %v<%v", m, da, db, ra, rb)
			}
		}
	}
}

// --- Lower-bound invariant ---

func TestMetric_MinReducedDistanceIsLowerBound(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for _, m := range allMetrics {
		for trial := 0; trial < 200; trial++ {
			box := extendBoxPoint(pointBox(randomVec(rng, 5)), randomVec(rng, 5))
			q := randomVec(rng, 10)
			lb := m.MinReducedDistance(q, box)

			// Sample points inside the box, including its corners.
			for _, c := range boxCorners(box) {
				if rd := m.ReducedDistance(q, c); lb > rd+floatTol {
					t.Fatalf("%T: bound %v > corner distance %v", m, lb, rd)
				}
			}
			for s := 0; s < 50; s++ {
				p := r3.Vec{
					X: box.Min.X + rng.Float64()*(box.Max.X-box.Min.X),
					Y: box.Min.Y + rng.Float64()*(box.Max.Y-box.Min.Y),
					Z: box.Min.Z + rng.Float64()*(box.Max.Z-box.Min.Z),
				}
				if rd := m.ReducedDistance(q, p); lb > rd+floatTol {
					t.Fatalf("%T: bound %v > sample distance %v", m, lb, rd)
				}
			}
		}
	}
}

func TestMetric_BoundIsZeroInsideBox(t *testing.T) {
	box := r3.Box{Min: r3.Vec{X: -1, Y: -1, Z: -1}, Max: r3.Vec{X: 1, Y: 1, Z: 1}}
	for _, m := range allMetrics {
		if lb := m.MinReducedDistance(r3.Vec{X: 0.5, Y: -0.2, Z: 0.9}, box); lb != 0 {
			t.Errorf("%T: bound inside box = %v, want 0", m, lb)
		}
	}
}

func TestMetric_BoundOfNullBoxIsInfinite(t *testing.T) {
	for _, m := range allMetrics {
		if lb := m.MinReducedDistance(r3.Vec{}, nullBox()); !math.IsInf(lb, 1) {
			t.Errorf("%T: bound of null box = %v, want +Inf", m, lb)
		}
	}
}

func TestMetric_ElementBoundForTriangles(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for _, m := range allMetrics {
		for _, tri := range randomTriangles(rng, 100, 5, 1) {
			q := randomVec(rng, 8)
			lb := m.MinReducedDistance(q, tri.Bounds())
			rd, pt := m.ElementReducedDistance(q, tri)
			if lb > rd+floatTol {
				t.Fatalf("%T: box bound %v > element distance %v", m, lb, rd)
			}
			if !BoxContains(tri.Bounds(), pointBox(pt)) {
				t.Fatalf("%T: closest point %v outside triangle bounds", m, pt)
			}
		}
	}
}

// --- Config ---

func TestParseMetric(t *testing.T) {
	tests := []struct {
		name string
		p    float64
		want Metric
	}{
		{"", 0, EuclideanMetric{}},
		{"euclidean", 0, EuclideanMetric{}},
		{"l1", 0, ManhattanMetric{}},
		{"chebyshev", 0, ChebyshevMetric{}},
		{"minkowski", 3, MinkowskiMetric{P: 3}},
	}
	for _, tt := range tests {
		got, err := ParseMetric(tt.name, tt.p)
		if err != nil {
			t.Errorf("ParseMetric(%q): %v", tt.name, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseMetric(%q) = %#v, want %#v", tt.name, got, tt.want)
		}
	}

	if _, err := ParseMetric("hamming", 0); err == nil {
		t.Error("expected error for unknown metric")
	}
	if _, err := ParseMetric("minkowski", 0.5); err == nil {
		t.Error("expected error for minkowski p < 1")
	}
}

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	bad := []Config{
		{LeafSize: 0, MaxDepth: 64},
		{LeafSize: 8, MaxDepth: 0},
		{LeafSize: 8, MaxDepth: 64, SplitRule: "median"},
		{LeafSize: 8, MaxDepth: 64, Metric: MinkowskiMetric{P: 0}},
	}
	for i, cfg := range bad {
		if err := cfg.Validate(); err == nil {
			t.Errorf("config %d: expected error", i)
		}
		if _, err := New[Point](cfg); err == nil {
			t.Errorf("config %d: New accepted invalid config", i)
		}
	}

	// Zero Metric and SplitRule are filled in.
	tree, err := New[Point](Config{LeafSize: 4, MaxDepth: 10})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := tree.Metric().(EuclideanMetric); !ok {
		t.Errorf("default metric = %T, want EuclideanMetric", tree.Metric())
	}
	if tree.Config().SplitRule != SplitLongestAxis {
		t.Errorf("default split rule = %q", tree.Config().SplitRule)
	}
}
