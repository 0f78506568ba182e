package model

import (
	"math"

	"github.com/TrevorS/kdtree"
	"gonum.org/v1/gonum/spatial/r3"
)

// PickedSample is the surface point selected by the last Pick.
type PickedSample struct {
	Face     FaceRef
	Position r3.Vec // world space
	// Direct is false when the ray missed and the nearest face to the ray was
	// used instead.
	Direct bool
}

// Sample is a labelled point stored on the model.
type Sample struct {
	Label    string
	Face     FaceRef
	Position r3.Vec // world space
	// Vertex is the snapped vertex, or Vertex -1 when the sample was not
	// snapped.
	Vertex VertexRef
}

// Pick selects the surface point under a world-space ray and returns the
// ray parameter of the selection, or -1 if the model is empty. When the ray
// misses every face, the face nearest to the ray is selected and the
// returned parameter is the projection of that point onto the ray, clamped
// to 0.
func (m *Model) Pick(r kdtree.Ray) float64 {
	m.validPick = false
	if m.IsEmpty() {
		return -1
	}

	ft := m.FaceTree(true)
	if hit := ft.RayStructureIntersection(r, -1); hit.IsValid() {
		m.picked = PickedSample{Face: m.faceRefs[hit.ElementIndex], Position: hit.Position, Direct: true}
		m.validPick = true
		return hit.Time
	}

	pair := ft.ClosestPairRay(r, -1, true)
	if !pair.IsValid() {
		return -1
	}
	m.picked = PickedSample{Face: m.faceRefs[pair.TargetIndex], Position: pair.TargetPoint}
	m.validPick = true

	d2 := r3.Norm2(r.Direction)
	if d2 == 0 {
		return 0
	}
	return math.Max(0, r3.Dot(r3.Sub(pair.TargetPoint, r.Origin), r.Direction)/d2)
}

// PickedSample returns the last pick and whether it is still valid.
func (m *Model) PickedSample() (PickedSample, bool) { return m.picked, m.validPick }

// InvalidatePick forgets the last pick.
func (m *Model) InvalidatePick() { m.validPick = false }

// AddPickedSample stores the last pick as a labelled sample. With
// snapToVertex the sample moves to the nearest vertex of the picked face.
// Returns false if there is no valid pick.
func (m *Model) AddPickedSample(label string, snapToVertex bool) bool {
	if !m.validPick {
		return false
	}

	s := Sample{Label: label, Face: m.picked.Face, Position: m.picked.Position, Vertex: VertexRef{Mesh: m.picked.Face.Mesh, Vertex: -1}}
	if snapToVertex {
		mesh := m.meshes[s.Face.Mesh]
		face := mesh.Faces[s.Face.Face]
		best := math.Inf(1)
		for k, v := range mesh.Triangle(s.Face.Face).Vertices() {
			w := m.toWorld(v)
			if d := r3.Norm2(r3.Sub(w, m.picked.Position)); d < best {
				best = d
				s.Position = w
				s.Vertex.Vertex = face[k]
			}
		}
	}
	m.samples = append(m.samples, s)
	return true
}

// Samples returns the stored samples.
func (m *Model) Samples() []Sample { return m.samples }

// RemoveSample deletes sample i. Returns false if i is out of range.
func (m *Model) RemoveSample(i int) bool {
	if i < 0 || i >= len(m.samples) {
		return false
	}
	m.samples = append(m.samples[:i], m.samples[i+1:]...)
	return true
}
