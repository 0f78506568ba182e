package kdtree

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// AffineTransform maps p to Linear*p + Translation. Linear is row-major.
type AffineTransform struct {
	Linear      [3][3]float64
	Translation r3.Vec
}

// IdentityTransform returns the identity map.
func IdentityTransform() AffineTransform {
	return AffineTransform{Linear: [3][3]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}}
}

// TranslationTransform returns the map p -> p + v.
func TranslationTransform(v r3.Vec) AffineTransform {
	a := IdentityTransform()
	a.Translation = v
	return a
}

// ScaleTransform returns a (possibly non-uniform) axis-aligned scaling.
func ScaleTransform(sx, sy, sz float64) AffineTransform {
	return AffineTransform{Linear: [3][3]float64{{sx, 0, 0}, {0, sy, 0}, {0, 0, sz}}}
}

// RotationTransform returns a rotation by angle radians about axis
// (Rodrigues' formula). The axis need not be unit length.
func RotationTransform(axis r3.Vec, angle float64) AffineTransform {
	k := r3.Unit(axis)
	c, s := math.Cos(angle), math.Sin(angle)
	v := 1 - c
	return AffineTransform{Linear: [3][3]float64{
		{c + k.X*k.X*v, k.X*k.Y*v - k.Z*s, k.X*k.Z*v + k.Y*s},
		{k.Y*k.X*v + k.Z*s, c + k.Y*k.Y*v, k.Y*k.Z*v - k.X*s},
		{k.Z*k.X*v - k.Y*s, k.Z*k.Y*v + k.X*s, c + k.Z*k.Z*v},
	}}
}

// Apply maps a point.
func (a AffineTransform) Apply(p r3.Vec) r3.Vec {
	return r3.Add(a.ApplyLinear(p), a.Translation)
}

// ApplyLinear maps a direction (no translation).
func (a AffineTransform) ApplyLinear(v r3.Vec) r3.Vec {
	m := &a.Linear
	return r3.Vec{
		X: m[0][0]*v.X + m[0][1]*v.Y + m[0][2]*v.Z,
		Y: m[1][0]*v.X + m[1][1]*v.Y + m[1][2]*v.Z,
		Z: m[2][0]*v.X + m[2][1]*v.Y + m[2][2]*v.Z,
	}
}

// applyLinearTransposed maps v by the transpose of the linear part.
func (a AffineTransform) applyLinearTransposed(v r3.Vec) r3.Vec {
	m := &a.Linear
	return r3.Vec{
		X: m[0][0]*v.X + m[1][0]*v.Y + m[2][0]*v.Z,
		Y: m[0][1]*v.X + m[1][1]*v.Y + m[2][1]*v.Z,
		Z: m[0][2]*v.X + m[1][2]*v.Y + m[2][2]*v.Z,
	}
}

// Compose returns the transform applying b first, then a.
func (a AffineTransform) Compose(b AffineTransform) AffineTransform {
	var out AffineTransform
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			for k := 0; k < 3; k++ {
				out.Linear[i][j] += a.Linear[i][k] * b.Linear[k][j]
			}
		}
	}
	out.Translation = a.Apply(b.Translation)
	return out
}

func (a AffineTransform) dense() *mat.Dense {
	m := &a.Linear
	return mat.NewDense(3, 3, []float64{
		m[0][0], m[0][1], m[0][2],
		m[1][0], m[1][1], m[1][2],
		m[2][0], m[2][1], m[2][2],
	})
}

// Det returns the determinant of the linear part.
func (a AffineTransform) Det() float64 {
	return mat.Det(a.dense())
}

// ErrSingularTransform is returned when a transform cannot be inverted.
var ErrSingularTransform = errors.New("kdtree: transform is not invertible")

// Inverse returns the inverse map.
func (a AffineTransform) Inverse() (AffineTransform, error) {
	if a.Det() == 0 {
		return AffineTransform{}, ErrSingularTransform
	}
	var inv mat.Dense
	if err := inv.Inverse(a.dense()); err != nil {
		return AffineTransform{}, fmt.Errorf("%w: %w", ErrSingularTransform, err)
	}
	var out AffineTransform
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out.Linear[i][j] = inv.At(i, j)
		}
	}
	out.Translation = r3.Scale(-1, out.ApplyLinear(a.Translation))
	return out, nil
}

// UniformScale returns |det|^(1/3), the scale factor of the transform when it
// is a similarity.
func (a AffineTransform) UniformScale() float64 {
	return math.Cbrt(math.Abs(a.Det()))
}

// IsRigid reports whether the linear part is orthonormal within tol.
func (a AffineTransform) IsRigid(tol float64) bool {
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			var dot float64
			for k := 0; k < 3; k++ {
				dot += a.Linear[k][i] * a.Linear[k][j]
			}
			want := 0.0
			if i == j {
				want = 1
			}
			if math.Abs(dot-want) > tol {
				return false
			}
		}
	}
	return true
}

// transformState caches the inverse and scale of a tree's transform.
type transformState struct {
	forward AffineTransform // build space -> world space
	inverse AffineTransform // world space -> build space
	scale   float64
}

// SetTransform attaches a transform from build space to world space. The
// stored elements are not touched; queries are mapped instead.
func (t *Tree[P]) SetTransform(a AffineTransform) error {
	inv, err := a.Inverse()
	if err != nil {
		return err
	}
	t.xf = &transformState{forward: a, inverse: inv, scale: a.UniformScale()}
	return nil
}

// ClearTransform removes the transform; queries then run in build space.
func (t *Tree[P]) ClearTransform() { t.xf = nil }

// Transform returns the current transform and whether one is set.
func (t *Tree[P]) Transform() (AffineTransform, bool) {
	if t.xf == nil {
		return IdentityTransform(), false
	}
	return t.xf.forward, true
}

// HasTransform reports whether a transform is attached.
func (t *Tree[P]) HasTransform() bool { return t.xf != nil }

// WorldBounds returns the world-space box enclosing the transformed bounds.
func (t *Tree[P]) WorldBounds() r3.Box {
	b := t.Bounds()
	if t.xf == nil || IsNullBox(b) {
		return b
	}
	out := nullBox()
	for _, c := range boxCorners(b) {
		out = extendBoxPoint(out, t.xf.forward.Apply(c))
	}
	return out
}

func (t *Tree[P]) toLocalPoint(p r3.Vec) r3.Vec {
	if t.xf == nil {
		return p
	}
	return t.xf.inverse.Apply(p)
}

// toLocalRay maps a world ray into build space. The direction is mapped by
// the inverse linear part without renormalizing, so hit times agree in both
// spaces.
func (t *Tree[P]) toLocalRay(r Ray) Ray {
	if t.xf == nil {
		return r
	}
	return Ray{Origin: t.xf.inverse.Apply(r.Origin), Direction: t.xf.inverse.ApplyLinear(r.Direction)}
}

func (t *Tree[P]) toWorldPoint(p r3.Vec) r3.Vec {
	if t.xf == nil {
		return p
	}
	return t.xf.forward.Apply(p)
}

// WorldNormal maps a build-space surface normal to world space by the inverse
// transpose of the linear part.
func (t *Tree[P]) WorldNormal(n r3.Vec) r3.Vec {
	if t.xf == nil || n == (r3.Vec{}) {
		return n
	}
	w := t.xf.inverse.applyLinearTransposed(n)
	if l := r3.Norm(w); l > 0 {
		return r3.Scale(1/l, w)
	}
	return w
}

func (t *Tree[P]) toWorldDistance(d float64) float64 {
	if t.xf == nil {
		return d
	}
	return d * t.xf.scale
}

// toLocalReducedBound converts a world distance bound to a reduced bound in
// build space. Negative bounds mean unbounded.
func (t *Tree[P]) toLocalReducedBound(d float64) float64 {
	if d < 0 {
		return math.Inf(1)
	}
	if t.xf != nil {
		d /= t.xf.scale
	}
	return t.metric.DistanceToReduced(d)
}

// worldReduced converts a reduced build-space distance to a reduced
// world-space distance.
func (t *Tree[P]) worldReduced(rd float64) float64 {
	if t.xf == nil || t.xf.scale == 1 {
		return rd
	}
	return t.metric.DistanceToReduced(t.metric.ReducedToDistance(rd) * t.xf.scale)
}
