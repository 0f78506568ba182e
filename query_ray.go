package kdtree

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// RayStructureIntersection is the full result of a ray query against a tree.
type RayStructureIntersection struct {
	RayIntersection
	// ElementIndex is the index of the hit element, or -1 for no hit.
	ElementIndex int
	// Position is the world-space hit point.
	Position r3.Vec
}

// IsValid reports whether the ray hit anything.
func (r RayStructureIntersection) IsValid() bool { return r.ElementIndex >= 0 }

func noRayHit() RayStructureIntersection {
	return RayStructureIntersection{RayIntersection: RayIntersection{Time: -1}, ElementIndex: -1}
}

type rayEntry struct {
	node int
	time float64 // entry time into the node's box
}

// RayIntersects reports whether r hits any element within [0, maxTime].
// A negative maxTime means unbounded.
func (t *Tree[P]) RayIntersects(r Ray, maxTime float64) bool {
	idx, _ := t.rayCast(t.toLocalRay(r), maxTime, true)
	return idx >= 0
}

// RayIntersectionTime returns the time of the first hit of r within
// [0, maxTime], or -1 if there is none.
func (t *Tree[P]) RayIntersectionTime(r Ray, maxTime float64) float64 {
	idx, hit := t.rayCast(t.toLocalRay(r), maxTime, false)
	if idx < 0 {
		return -1
	}
	return hit.Time
}

// RayStructureIntersection returns the first hit of r within [0, maxTime]
// with the element index, world position and world normal.
func (t *Tree[P]) RayStructureIntersection(r Ray, maxTime float64) RayStructureIntersection {
	idx, hit := t.rayCast(t.toLocalRay(r), maxTime, false)
	if idx < 0 {
		return noRayHit()
	}
	return RayStructureIntersection{
		RayIntersection: RayIntersection{Time: hit.Time, Normal: t.WorldNormal(hit.Normal)},
		ElementIndex:    idx,
		Position:        r.At(hit.Time),
	}
}

// rayCast finds the earliest hit of a build-space ray. Children are visited
// in order of entry time and skipped once they start after the best hit.
// With anyHit the search stops at the first hit found.
func (t *Tree[P]) rayCast(r Ray, maxTime float64, anyHit bool) (int, RayIntersection) {
	if !t.built || len(t.elems) == 0 {
		return -1, RayIntersection{}
	}

	best := math.Inf(1)
	if maxTime >= 0 {
		best = maxTime
	}
	limit := func() float64 {
		if math.IsInf(best, 1) {
			return -1
		}
		return best
	}

	rootT, ok := rayBoxEntry(r, t.nodes[0].box, limit())
	if !ok {
		return -1, RayIntersection{}
	}

	found := -1
	var hit RayIntersection
	stack := make([]rayEntry, 0, t.depth+1)
	stack = append(stack, rayEntry{node: 0, time: rootT})

	for len(stack) > 0 {
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if e.time > best {
			continue
		}

		n := &t.nodes[e.node]
		if n.isLeaf() {
			for _, ei := range t.idxArray[n.start:n.end] {
				h, ok := t.elems[ei].Primitive.IntersectRay(r, limit())
				if !ok || (found >= 0 && h.Time >= best) {
					continue
				}
				found, hit, best = ei, h, h.Time
				if anyHit {
					return found, hit
				}
			}
			continue
		}

		lt, lok := rayBoxEntry(r, t.nodes[n.left].box, limit())
		rt, rok := rayBoxEntry(r, t.nodes[n.right].box, limit())
		near, far := rayEntry{n.left, lt}, rayEntry{n.right, rt}
		nearOK, farOK := lok, rok
		if rok && (!lok || rt < lt) {
			near, far = far, near
			nearOK, farOK = farOK, nearOK
		}
		// Far first so the near child is popped next.
		if farOK {
			stack = append(stack, far)
		}
		if nearOK {
			stack = append(stack, near)
		}
	}
	return found, hit
}
