package kdtree

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Metric computes distances for tree queries. All comparisons inside a query
// happen in "reduced" space (e.g. squared Euclidean distance), which must be
// a monotone function of the true distance.
//
// The tree depends on one invariant: for any point p and any box b that
// contains primitive e, MinReducedDistance(p, b) <= ElementReducedDistance(p, e).
// A metric that overestimates the box bound silently prunes the true answer.
type Metric interface {
	Distance(a, b r3.Vec) float64
	ReducedDistance(a, b r3.Vec) float64

	// MinReducedDistance returns a lower bound on the reduced distance from p
	// to any point inside box.
	MinReducedDistance(p r3.Vec, box r3.Box) float64

	// ElementReducedDistance returns the reduced distance from p to prim and
	// the point of prim at which it is attained.
	ElementReducedDistance(p r3.Vec, prim Primitive) (float64, r3.Vec)

	ReducedToDistance(rd float64) float64
	DistanceToReduced(d float64) float64
}

// boxGap returns the per-axis distance from p to box (0 inside the slab).
func boxGap(p r3.Vec, box r3.Box) r3.Vec {
	return r3.Vec{
		X: axisGap(p.X, box.Min.X, box.Max.X),
		Y: axisGap(p.Y, box.Min.Y, box.Max.Y),
		Z: axisGap(p.Z, box.Min.Z, box.Max.Z),
	}
}

func axisGap(v, lo, hi float64) float64 {
	if v < lo {
		return lo - v
	}
	if v > hi {
		return v - hi
	}
	return 0
}

// EuclideanMetric computes the Euclidean (L2) distance.
// ReducedDistance returns squared Euclidean distance (skips sqrt).
type EuclideanMetric struct{}

func (EuclideanMetric) Distance(a, b r3.Vec) float64         { return r3.Norm(r3.Sub(a, b)) }
func (EuclideanMetric) ReducedDistance(a, b r3.Vec) float64  { return r3.Norm2(r3.Sub(a, b)) }
func (EuclideanMetric) ReducedToDistance(rd float64) float64 { return math.Sqrt(rd) }
func (EuclideanMetric) DistanceToReduced(d float64) float64  { return d * d }

func (EuclideanMetric) MinReducedDistance(p r3.Vec, box r3.Box) float64 {
	if IsNullBox(box) {
		return math.Inf(1)
	}
	return r3.Norm2(boxGap(p, box))
}

func (m EuclideanMetric) ElementReducedDistance(p r3.Vec, prim Primitive) (float64, r3.Vec) {
	q := prim.ClosestPoint(p)
	return m.ReducedDistance(p, q), q
}

// ManhattanMetric computes the Manhattan (L1 / city-block) distance.
// Distances to extended primitives are measured at the Euclidean closest
// point, which is exact for points and an upper bound otherwise.
type ManhattanMetric struct{}

func (ManhattanMetric) Distance(a, b r3.Vec) float64 {
	d := r3.Sub(a, b)
	return math.Abs(d.X) + math.Abs(d.Y) + math.Abs(d.Z)
}

func (m ManhattanMetric) ReducedDistance(a, b r3.Vec) float64 { return m.Distance(a, b) }
func (ManhattanMetric) ReducedToDistance(rd float64) float64  { return rd }
func (ManhattanMetric) DistanceToReduced(d float64) float64   { return d }

func (ManhattanMetric) MinReducedDistance(p r3.Vec, box r3.Box) float64 {
	if IsNullBox(box) {
		return math.Inf(1)
	}
	g := boxGap(p, box)
	return g.X + g.Y + g.Z
}

func (m ManhattanMetric) ElementReducedDistance(p r3.Vec, prim Primitive) (float64, r3.Vec) {
	q := prim.ClosestPoint(p)
	return m.ReducedDistance(p, q), q
}

// ChebyshevMetric computes the Chebyshev (L-infinity) distance.
type ChebyshevMetric struct{}

func (ChebyshevMetric) Distance(a, b r3.Vec) float64 {
	d := r3.Sub(a, b)
	return math.Max(math.Abs(d.X), math.Max(math.Abs(d.Y), math.Abs(d.Z)))
}

func (m ChebyshevMetric) ReducedDistance(a, b r3.Vec) float64 { return m.Distance(a, b) }
func (ChebyshevMetric) ReducedToDistance(rd float64) float64  { return rd }
func (ChebyshevMetric) DistanceToReduced(d float64) float64   { return d }

func (ChebyshevMetric) MinReducedDistance(p r3.Vec, box r3.Box) float64 {
	if IsNullBox(box) {
		return math.Inf(1)
	}
	g := boxGap(p, box)
	return math.Max(g.X, math.Max(g.Y, g.Z))
}

func (m ChebyshevMetric) ElementReducedDistance(p r3.Vec, prim Primitive) (float64, r3.Vec) {
	q := prim.ClosestPoint(p)
	return m.ReducedDistance(p, q), q
}

// MinkowskiMetric computes the Minkowski distance parameterized by P.
// P must be >= 1. Panics if P < 1.
// ReducedDistance returns sum(|a[i]-b[i]|^P) without the final root.
type MinkowskiMetric struct {
	P float64
}

func (m MinkowskiMetric) Distance(a, b r3.Vec) float64 {
	return m.ReducedToDistance(m.ReducedDistance(a, b))
}

func (m MinkowskiMetric) ReducedDistance(a, b r3.Vec) float64 {
	d := r3.Sub(a, b)
	return m.rawSum(math.Abs(d.X), math.Abs(d.Y), math.Abs(d.Z))
}

func (m MinkowskiMetric) ReducedToDistance(rd float64) float64 { return math.Pow(rd, 1/m.P) }
func (m MinkowskiMetric) DistanceToReduced(d float64) float64  { return math.Pow(d, m.P) }

func (m MinkowskiMetric) MinReducedDistance(p r3.Vec, box r3.Box) float64 {
	if IsNullBox(box) {
		return math.Inf(1)
	}
	g := boxGap(p, box)
	return m.rawSum(g.X, g.Y, g.Z)
}

func (m MinkowskiMetric) ElementReducedDistance(p r3.Vec, prim Primitive) (float64, r3.Vec) {
	q := prim.ClosestPoint(p)
	return m.ReducedDistance(p, q), q
}

func (m MinkowskiMetric) rawSum(x, y, z float64) float64 {
	if m.P < 1 {
		panic("kdtree: MinkowskiMetric: P must be >= 1")
	}
	return math.Pow(x, m.P) + math.Pow(y, m.P) + math.Pow(z, m.P)
}
