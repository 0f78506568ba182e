package kdtree

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// NeighborPair is the result of a proximity query: a query point and the
// element nearest to it.
type NeighborPair struct {
	// QueryIndex identifies the query in batch calls; -1 otherwise.
	QueryIndex int
	// QueryPoint is the world-space query point. For ray queries it is the
	// point on the ray closest to the target.
	QueryPoint r3.Vec
	// TargetIndex is the element index, or -1 for an invalid pair.
	TargetIndex int
	// TargetPoint is the world-space point on the target closest to the
	// query. Only set when closest points were requested.
	TargetPoint r3.Vec
	// Distance is the world-space metric distance.
	Distance float64
}

// IsValid reports whether the pair refers to an element.
func (p NeighborPair) IsValid() bool { return p.TargetIndex >= 0 }

func invalidPair() NeighborPair {
	return NeighborPair{QueryIndex: -1, TargetIndex: -1, Distance: -1}
}

type nearEntry struct {
	node  int
	bound float64 // metric lower bound from the query to the node's box
}

// pushChildren pushes the children of n that pass keep, the nearer one last
// so it is popped first.
func pushChildren(stack []nearEntry, n *node, lb func(int) float64, keep func(float64) bool) []nearEntry {
	l := nearEntry{n.left, lb(n.left)}
	r := nearEntry{n.right, lb(n.right)}
	if r.bound < l.bound {
		l, r = r, l
	}
	if keep(r.bound) {
		stack = append(stack, r)
	}
	if keep(l.bound) {
		stack = append(stack, l)
	}
	return stack
}

// ClosestElement returns the index of the element nearest p under the
// tree's metric, its world distance and the world point on it. Elements
// farther than distanceBound are ignored; a negative bound means unbounded.
// Returns index -1 when nothing qualifies.
func (t *Tree[P]) ClosestElement(p r3.Vec, distanceBound float64) (int, float64, r3.Vec) {
	idx, rd, q := t.closest(t.toLocalPoint(p), t.toLocalReducedBound(distanceBound))
	if idx < 0 {
		return -1, -1, r3.Vec{}
	}
	return idx, t.toWorldDistance(t.metric.ReducedToDistance(rd)), t.toWorldPoint(q)
}

// ClosestPair is ClosestElement packaged as a NeighborPair. TargetPoint is
// only filled when wantClosestPoints is set.
func (t *Tree[P]) ClosestPair(p r3.Vec, maxDistance float64, wantClosestPoints bool) NeighborPair {
	idx, d, q := t.ClosestElement(p, maxDistance)
	if idx < 0 {
		return invalidPair()
	}
	pair := NeighborPair{QueryIndex: -1, QueryPoint: p, TargetIndex: idx, Distance: d}
	if wantClosestPoints {
		pair.TargetPoint = q
	}
	return pair
}

// closest runs the branch-and-bound nearest search in build space with a
// reduced distance bound.
func (t *Tree[P]) closest(p r3.Vec, bound float64) (int, float64, r3.Vec) {
	if !t.built || len(t.elems) == 0 {
		return -1, 0, r3.Vec{}
	}

	m := t.metric
	best := bound
	found := -1
	var bestPt r3.Vec

	lb := func(i int) float64 { return m.MinReducedDistance(p, t.nodes[i].box) }
	keep := func(b float64) bool { return b <= best }

	rootLB := lb(0)
	if !keep(rootLB) {
		return -1, 0, r3.Vec{}
	}
	stack := make([]nearEntry, 0, t.depth+1)
	stack = append(stack, nearEntry{0, rootLB})

	for len(stack) > 0 {
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if e.bound > best {
			continue
		}

		n := &t.nodes[e.node]
		if !n.isLeaf() {
			stack = pushChildren(stack, n, lb, keep)
			continue
		}
		for _, ei := range t.idxArray[n.start:n.end] {
			d, q := m.ElementReducedDistance(p, t.elems[ei].Primitive)
			if d > best || (found >= 0 && d >= best) {
				continue
			}
			found, best, bestPt = ei, d, q
		}
	}
	if found < 0 {
		return -1, 0, r3.Vec{}
	}
	return found, best, bestPt
}

// KClosestPairs collects the elements nearest p into arr, which keeps at most
// arr.Capacity() pairs in ascending order. Keys of arr are reduced world
// distances under the tree's metric. Elements farther than maxDistance are
// ignored (negative = unbounded). arr is not cleared first, so results of
// several trees sharing a metric can be merged. Returns arr.Len().
func (t *Tree[P]) KClosestPairs(p r3.Vec, arr *BoundedSortedArray[NeighborPair], maxDistance float64) int {
	if !t.built || len(t.elems) == 0 || arr.Capacity() == 0 {
		return arr.Len()
	}

	m := t.metric
	lp := t.toLocalPoint(p)
	limit := t.toLocalReducedBound(maxDistance)

	lb := func(i int) float64 { return m.MinReducedDistance(lp, t.nodes[i].box) }
	keep := func(b float64) bool {
		if b > limit {
			return false
		}
		return !arr.IsFull() || t.worldReduced(b) <= arr.MaxKey()
	}

	rootLB := lb(0)
	if !keep(rootLB) {
		return arr.Len()
	}
	stack := make([]nearEntry, 0, t.depth+1)
	stack = append(stack, nearEntry{0, rootLB})

	for len(stack) > 0 {
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !keep(e.bound) {
			continue
		}

		n := &t.nodes[e.node]
		if !n.isLeaf() {
			stack = pushChildren(stack, n, lb, keep)
			continue
		}
		for _, ei := range t.idxArray[n.start:n.end] {
			d, q := m.ElementReducedDistance(lp, t.elems[ei].Primitive)
			if d > limit {
				continue
			}
			key := t.worldReduced(d)
			if !arr.IsInsertable(key) {
				continue
			}
			arr.Insert(key, NeighborPair{
				QueryIndex:  -1,
				QueryPoint:  p,
				TargetIndex: ei,
				TargetPoint: t.toWorldPoint(q),
				Distance:    m.ReducedToDistance(key),
			})
		}
	}
	return arr.Len()
}

// ClosestPairRay finds the element nearest to the ray r (Euclidean only).
// QueryPoint of the result is the point on the ray closest to the target.
// Pairs farther than maxDistance are ignored (negative = unbounded).
// Used for picking when a ray misses all surfaces. Panics if the tree's
// metric is not EuclideanMetric.
func (t *Tree[P]) ClosestPairRay(r Ray, maxDistance float64, wantClosestPoints bool) NeighborPair {
	if _, ok := t.metric.(EuclideanMetric); !ok {
		panic("kdtree: ClosestPairRay requires EuclideanMetric")
	}
	if !t.built || len(t.elems) == 0 {
		return invalidPair()
	}

	lr := t.toLocalRay(r)
	best := math.Inf(1)
	if maxDistance >= 0 {
		best = maxDistance
		if t.xf != nil {
			best /= t.xf.scale
		}
	}

	// Plain (not squared) distances: the ray lower bound is a distance.
	lb := func(i int) float64 { return rayBoxLowerBound(lr, t.nodes[i].box) }
	keep := func(b float64) bool { return b <= best }

	rootLB := lb(0)
	if !keep(rootLB) {
		return invalidPair()
	}

	found := -1
	var bestT float64
	var bestPt r3.Vec
	stack := make([]nearEntry, 0, t.depth+1)
	stack = append(stack, nearEntry{0, rootLB})

	for len(stack) > 0 {
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if e.bound > best {
			continue
		}

		n := &t.nodes[e.node]
		if !n.isLeaf() {
			stack = pushChildren(stack, n, lb, keep)
			continue
		}
		for _, ei := range t.idxArray[n.start:n.end] {
			rt, q := t.elems[ei].Primitive.ClosestPointsToRay(lr)
			d := r3.Norm(r3.Sub(lr.At(rt), q))
			if d > best || (found >= 0 && d >= best) {
				continue
			}
			found, best, bestT, bestPt = ei, d, rt, q
		}
	}
	if found < 0 {
		return invalidPair()
	}

	pair := NeighborPair{
		QueryIndex:  -1,
		QueryPoint:  r.At(bestT),
		TargetIndex: found,
		Distance:    t.toWorldDistance(best),
	}
	if wantClosestPoints {
		pair.TargetPoint = t.toWorldPoint(bestPt)
	}
	return pair
}
