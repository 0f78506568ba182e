package kdtree

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Ray is a half-line O + t*D for t >= 0. The direction need not be unit
// length; intersection times are expressed in units of Direction.
type Ray struct {
	Origin    r3.Vec
	Direction r3.Vec
}

// NewRay returns a ray from origin along direction.
func NewRay(origin, direction r3.Vec) Ray {
	return Ray{Origin: origin, Direction: direction}
}

// At returns the point at parametric time t.
func (r Ray) At(t float64) r3.Vec {
	return r3.Add(r.Origin, r3.Scale(t, r.Direction))
}

// closestTime returns the parameter t >= 0 of the point on the ray nearest p.
func (r Ray) closestTime(p r3.Vec) float64 {
	dd := r3.Norm2(r.Direction)
	if dd == 0 {
		return 0
	}
	t := r3.Dot(r3.Sub(p, r.Origin), r.Direction) / dd
	if t < 0 {
		return 0
	}
	return t
}

// nullBox returns a box that contains nothing; extending it by any point
// yields the degenerate box of that point.
func nullBox() r3.Box {
	inf := math.Inf(1)
	return r3.Box{
		Min: r3.Vec{X: inf, Y: inf, Z: inf},
		Max: r3.Vec{X: -inf, Y: -inf, Z: -inf},
	}
}

// IsNullBox reports whether b contains no points.
func IsNullBox(b r3.Box) bool {
	return b.Min.X > b.Max.X || b.Min.Y > b.Max.Y || b.Min.Z > b.Max.Z
}

func pointBox(p r3.Vec) r3.Box { return r3.Box{Min: p, Max: p} }

func extendBoxPoint(b r3.Box, p r3.Vec) r3.Box {
	b.Min.X = math.Min(b.Min.X, p.X)
	b.Min.Y = math.Min(b.Min.Y, p.Y)
	b.Min.Z = math.Min(b.Min.Z, p.Z)
	b.Max.X = math.Max(b.Max.X, p.X)
	b.Max.Y = math.Max(b.Max.Y, p.Y)
	b.Max.Z = math.Max(b.Max.Z, p.Z)
	return b
}

func unionBox(a, b r3.Box) r3.Box {
	if IsNullBox(b) {
		return a
	}
	return extendBoxPoint(extendBoxPoint(a, b.Min), b.Max)
}

// BoxContains reports whether inner lies entirely inside outer. A null inner
// box is contained in everything.
func BoxContains(outer, inner r3.Box) bool {
	if IsNullBox(inner) {
		return true
	}
	return outer.Min.X <= inner.Min.X && inner.Max.X <= outer.Max.X &&
		outer.Min.Y <= inner.Min.Y && inner.Max.Y <= outer.Max.Y &&
		outer.Min.Z <= inner.Min.Z && inner.Max.Z <= outer.Max.Z
}

func boxCenter(b r3.Box) r3.Vec {
	return r3.Scale(0.5, r3.Add(b.Min, b.Max))
}

func boxCorners(b r3.Box) [8]r3.Vec {
	return [8]r3.Vec{
		{X: b.Min.X, Y: b.Min.Y, Z: b.Min.Z},
		{X: b.Min.X, Y: b.Min.Y, Z: b.Max.Z},
		{X: b.Min.X, Y: b.Max.Y, Z: b.Min.Z},
		{X: b.Min.X, Y: b.Max.Y, Z: b.Max.Z},
		{X: b.Max.X, Y: b.Min.Y, Z: b.Min.Z},
		{X: b.Max.X, Y: b.Min.Y, Z: b.Max.Z},
		{X: b.Max.X, Y: b.Max.Y, Z: b.Min.Z},
		{X: b.Max.X, Y: b.Max.Y, Z: b.Max.Z},
	}
}

// axisValue returns component axis (0=X, 1=Y, 2=Z) of v.
func axisValue(v r3.Vec, axis int) float64 {
	switch axis {
	case 0:
		return v.X
	case 1:
		return v.Y
	default:
		return v.Z
	}
}

// rayBoxEntry runs the slab test. It returns the time at which the ray
// enters b, clamped to 0 when the origin is inside, and false if the ray
// misses b within [0, maxTime]. A negative maxTime means unbounded.
func rayBoxEntry(r Ray, b r3.Box, maxTime float64) (float64, bool) {
	if IsNullBox(b) {
		return 0, false
	}
	tmin, tmax := 0.0, math.Inf(1)
	if maxTime >= 0 {
		tmax = maxTime
	}
	for axis := 0; axis < 3; axis++ {
		o := axisValue(r.Origin, axis)
		d := axisValue(r.Direction, axis)
		lo := axisValue(b.Min, axis)
		hi := axisValue(b.Max, axis)
		if d == 0 {
			if o < lo || o > hi {
				return 0, false
			}
			continue
		}
		inv := 1 / d
		t0 := (lo - o) * inv
		t1 := (hi - o) * inv
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		if t0 > tmin {
			tmin = t0
		}
		if t1 < tmax {
			tmax = t1
		}
		if tmin > tmax {
			return 0, false
		}
	}
	return tmin, true
}

// rayBoxLowerBound returns a lower bound on the Euclidean distance between
// the ray and any point of b, using the bounding sphere of the box.
func rayBoxLowerBound(r Ray, b r3.Box) float64 {
	if IsNullBox(b) {
		return math.Inf(1)
	}
	if _, ok := rayBoxEntry(r, b, -1); ok {
		return 0
	}
	c := boxCenter(b)
	radius := 0.5 * r3.Norm(r3.Sub(b.Max, b.Min))
	d := r3.Norm(r3.Sub(c, r.At(r.closestTime(c)))) - radius
	if d < 0 {
		return 0
	}
	return d
}
