package model

import (
	"github.com/TrevorS/kdtree"
	"gonum.org/v1/gonum/spatial/r3"
)

// Mesh is an indexed triangle mesh in its own local coordinates.
type Mesh struct {
	Name     string
	Vertices []r3.Vec
	Faces    [][3]int
}

// Triangle returns face f as a kdtree primitive.
func (m *Mesh) Triangle(f int) kdtree.Triangle {
	face := m.Faces[f]
	return kdtree.Triangle{A: m.Vertices[face[0]], B: m.Vertices[face[1]], C: m.Vertices[face[2]]}
}

// FaceRef identifies a face of a model by mesh and face index.
type FaceRef struct {
	Mesh, Face int
}

// VertexRef identifies a vertex of a model by mesh and vertex index.
type VertexRef struct {
	Mesh, Vertex int
}
