package kdtree

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Primitive is the geometric object stored in a tree. Implementations must
// be safe to call concurrently once the tree is built.
type Primitive interface {
	// Bounds returns the axis-aligned box enclosing the primitive.
	Bounds() r3.Box
	// Centroid returns the point used to partition the primitive during build.
	Centroid() r3.Vec
	// ClosestPoint returns the point on the primitive nearest p (Euclidean).
	ClosestPoint(p r3.Vec) r3.Vec
	// IntersectRay returns the first hit of r with the primitive within
	// [0, maxTime]. A negative maxTime means unbounded.
	IntersectRay(r Ray, maxTime float64) (RayIntersection, bool)
	// ClosestPointsToRay returns the ray parameter and the primitive point of
	// the closest pair between the ray and the primitive.
	ClosestPointsToRay(r Ray) (float64, r3.Vec)
}

// RayIntersection is the result of a ray hitting a single primitive.
type RayIntersection struct {
	Time float64
	// Normal is the unit surface normal at the hit, or the zero vector for
	// primitives without a surface.
	Normal r3.Vec
}

// Point is a zero-extent primitive. Rays never hit points; use
// [Tree.ClosestPairRay] to pick them.
type Point struct {
	Position r3.Vec
}

func (p Point) Bounds() r3.Box             { return pointBox(p.Position) }
func (p Point) Centroid() r3.Vec           { return p.Position }
func (p Point) ClosestPoint(r3.Vec) r3.Vec { return p.Position }
func (Point) IntersectRay(Ray, float64) (RayIntersection, bool) {
	return RayIntersection{}, false
}

func (p Point) ClosestPointsToRay(r Ray) (float64, r3.Vec) {
	return r.closestTime(p.Position), p.Position
}

// Triangle is a triangle with vertices A, B, C.
type Triangle struct {
	A, B, C r3.Vec
}

func (t Triangle) Bounds() r3.Box {
	return extendBoxPoint(extendBoxPoint(pointBox(t.A), t.B), t.C)
}

func (t Triangle) Centroid() r3.Vec {
	return r3.Scale(1.0/3, r3.Add(r3.Add(t.A, t.B), t.C))
}

// Normal returns the unit normal following the A, B, C winding, or the zero
// vector for a degenerate triangle.
func (t Triangle) Normal() r3.Vec {
	n := r3.Cross(r3.Sub(t.B, t.A), r3.Sub(t.C, t.A))
	l := r3.Norm(n)
	if l == 0 {
		return r3.Vec{}
	}
	return r3.Scale(1/l, n)
}

// Vertices returns A, B and C.
func (t Triangle) Vertices() [3]r3.Vec { return [3]r3.Vec{t.A, t.B, t.C} }

// ClosestPoint uses the Voronoi-region walk from Ericson, Real-Time
// Collision Detection 5.1.5.
func (t Triangle) ClosestPoint(p r3.Vec) r3.Vec {
	a, b, c := t.A, t.B, t.C
	ab := r3.Sub(b, a)
	ac := r3.Sub(c, a)
	ap := r3.Sub(p, a)
	d1 := r3.Dot(ab, ap)
	d2 := r3.Dot(ac, ap)
	if d1 <= 0 && d2 <= 0 {
		return a
	}

	bp := r3.Sub(p, b)
	d3 := r3.Dot(ab, bp)
	d4 := r3.Dot(ac, bp)
	if d3 >= 0 && d4 <= d3 {
		return b
	}

	vc := d1*d4 - d3*d2
	if vc <= 0 && d1 >= 0 && d3 <= 0 && d1 != d3 {
		v := d1 / (d1 - d3)
		return r3.Add(a, r3.Scale(v, ab))
	}

	cp := r3.Sub(p, c)
	d5 := r3.Dot(ab, cp)
	d6 := r3.Dot(ac, cp)
	if d6 >= 0 && d5 <= d6 {
		return c
	}

	vb := d5*d2 - d1*d6
	if vb <= 0 && d2 >= 0 && d6 <= 0 && d2 != d6 {
		w := d2 / (d2 - d6)
		return r3.Add(a, r3.Scale(w, ac))
	}

	va := d3*d6 - d5*d4
	if va <= 0 && d4-d3 >= 0 && d5-d6 >= 0 && (d4-d3)+(d5-d6) != 0 {
		w := (d4 - d3) / ((d4 - d3) + (d5 - d6))
		return r3.Add(b, r3.Scale(w, r3.Sub(c, b)))
	}

	sum := va + vb + vc
	if sum == 0 {
		return t.closestEdgePoint(p)
	}
	v := vb / sum
	w := vc / sum
	return r3.Add(a, r3.Add(r3.Scale(v, ab), r3.Scale(w, ac)))
}

// closestEdgePoint handles degenerate (zero-area) triangles.
func (t Triangle) closestEdgePoint(p r3.Vec) r3.Vec {
	best := closestOnSegment(p, t.A, t.B)
	bestD := r3.Norm2(r3.Sub(p, best))
	for _, e := range [2][2]r3.Vec{{t.B, t.C}, {t.C, t.A}} {
		q := closestOnSegment(p, e[0], e[1])
		if d := r3.Norm2(r3.Sub(p, q)); d < bestD {
			best, bestD = q, d
		}
	}
	return best
}

// IntersectRay is the Möller–Trumbore test. Both faces are hit.
func (t Triangle) IntersectRay(r Ray, maxTime float64) (RayIntersection, bool) {
	e1 := r3.Sub(t.B, t.A)
	e2 := r3.Sub(t.C, t.A)
	pv := r3.Cross(r.Direction, e2)
	det := r3.Dot(e1, pv)
	if det == 0 {
		return RayIntersection{}, false
	}
	inv := 1 / det
	tv := r3.Sub(r.Origin, t.A)
	u := r3.Dot(tv, pv) * inv
	if u < 0 || u > 1 {
		return RayIntersection{}, false
	}
	qv := r3.Cross(tv, e1)
	v := r3.Dot(r.Direction, qv) * inv
	if v < 0 || u+v > 1 {
		return RayIntersection{}, false
	}
	hit := r3.Dot(e2, qv) * inv
	if hit < 0 || (maxTime >= 0 && hit > maxTime) {
		return RayIntersection{}, false
	}
	return RayIntersection{Time: hit, Normal: t.Normal()}, true
}

func (t Triangle) ClosestPointsToRay(r Ray) (float64, r3.Vec) {
	if hit, ok := t.IntersectRay(r, -1); ok {
		return hit.Time, r.At(hit.Time)
	}

	bestT := 0.0
	bestP := t.ClosestPoint(r.Origin)
	bestD := r3.Norm2(r3.Sub(r.Origin, bestP))
	for _, e := range [3][2]r3.Vec{{t.A, t.B}, {t.B, t.C}, {t.C, t.A}} {
		rt, q := closestRaySegment(r, e[0], e[1])
		if d := r3.Norm2(r3.Sub(r.At(rt), q)); d < bestD {
			bestT, bestP, bestD = rt, q, d
		}
	}
	return bestT, bestP
}

func closestOnSegment(p, a, b r3.Vec) r3.Vec {
	ab := r3.Sub(b, a)
	ll := r3.Norm2(ab)
	if ll == 0 {
		return a
	}
	s := r3.Dot(r3.Sub(p, a), ab) / ll
	s = math.Max(0, math.Min(1, s))
	return r3.Add(a, r3.Scale(s, ab))
}

// closestRaySegment minimizes |O + tD - (P + sE)| over t >= 0, s in [0, 1].
// The objective is a convex quadratic, so when the free minimum is
// infeasible the answer lies on one of the boundary lines t = 0, s = 0, s = 1.
func closestRaySegment(r Ray, p0, p1 r3.Vec) (float64, r3.Vec) {
	e := r3.Sub(p1, p0)
	w := r3.Sub(r.Origin, p0)
	a := r3.Dot(r.Direction, r.Direction)
	b := r3.Dot(r.Direction, e)
	c := r3.Dot(e, e)
	d := r3.Dot(r.Direction, w)
	f := r3.Dot(e, w)

	if denom := a*c - b*b; denom > 0 {
		t := (b*f - c*d) / denom
		s := (a*f - b*d) / denom
		if t >= 0 && s >= 0 && s <= 1 {
			return t, r3.Add(p0, r3.Scale(s, e))
		}
	}

	bestT := 0.0
	bestP := closestOnSegment(r.Origin, p0, p1)
	bestD := r3.Norm2(r3.Sub(r.Origin, bestP))
	for _, q := range [2]r3.Vec{p0, p1} {
		t := r.closestTime(q)
		if dd := r3.Norm2(r3.Sub(r.At(t), q)); dd < bestD {
			bestT, bestP, bestD = t, q, dd
		}
	}
	return bestT, bestP
}

// Element associates a primitive with its cached bounding box and its
// stable index in the owning tree.
type Element[P Primitive] struct {
	Primitive P
	Box       r3.Box
	Index     int
}
