// Package model owns triangle meshes together with the spatial trees built
// over them. Trees are rebuilt lazily: every geometry edit clears a validity
// flag and the next query that needs a tree rebuilds it once.
package model

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/TrevorS/kdtree"
	"gonum.org/v1/gonum/spatial/r3"
)

// Options configures a Model.
type Options struct {
	// Name is used in log messages. Default: "Untitled".
	Name string

	// Tree configures both the face and the vertex tree. Only
	// kdtree.EuclideanMetric is supported since picking needs ray distances.
	// Zero fields take their kdtree.DefaultConfig values.
	Tree kdtree.Config

	// Logger receives rebuild and propagation messages. Default: discard.
	Logger *slog.Logger
}

// DefaultOptions returns Options with reasonable defaults.
func DefaultOptions() Options {
	return Options{Name: "Untitled", Tree: kdtree.DefaultConfig()}
}

// Model is a set of meshes with a face tree and a vertex tree that are
// rebuilt on demand. A Model is not safe for concurrent use: queries may
// trigger a rebuild.
type Model struct {
	name    string
	logger  *slog.Logger
	treeCfg kdtree.Config

	meshes []*Mesh

	faceTree      *kdtree.Tree[kdtree.Triangle]
	faceRefs      []FaceRef // element index -> face
	validFaceTree bool
	faceBuilds    int

	vertexTree      *kdtree.Tree[kdtree.Point]
	vertexRefs      []VertexRef // element index -> vertex
	validVertexTree bool
	vertexBuilds    int

	transform *kdtree.AffineTransform

	picked    PickedSample
	validPick bool
	samples   []Sample

	features [][][]float64 // per mesh, per vertex, per channel
}

// New returns an empty model.
func New(opts Options) (*Model, error) {
	if opts.Name == "" {
		opts.Name = "Untitled"
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	def := kdtree.DefaultConfig()
	if opts.Tree.LeafSize == 0 {
		opts.Tree.LeafSize = def.LeafSize
	}
	if opts.Tree.MaxDepth == 0 {
		opts.Tree.MaxDepth = def.MaxDepth
	}
	if opts.Tree.Metric == nil {
		opts.Tree.Metric = def.Metric
	}
	if _, ok := opts.Tree.Metric.(kdtree.EuclideanMetric); !ok {
		return nil, fmt.Errorf("model: only EuclideanMetric is supported, got %T", opts.Tree.Metric)
	}

	faces, err := kdtree.New[kdtree.Triangle](opts.Tree)
	if err != nil {
		return nil, fmt.Errorf("model: face tree: %w", err)
	}
	verts, err := kdtree.New[kdtree.Point](opts.Tree)
	if err != nil {
		return nil, fmt.Errorf("model: vertex tree: %w", err)
	}

	// Empty trees are trivially valid.
	faces.Init()
	verts.Init()

	return &Model{
		name:            opts.Name,
		logger:          opts.Logger.With("model", opts.Name),
		treeCfg:         opts.Tree,
		faceTree:        faces,
		validFaceTree:   true,
		vertexTree:      verts,
		validVertexTree: true,
	}, nil
}

// Name returns the model name.
func (m *Model) Name() string { return m.name }

// IsEmpty reports whether the model has no faces.
func (m *Model) IsEmpty() bool {
	for _, mesh := range m.meshes {
		if len(mesh.Faces) > 0 {
			return false
		}
	}
	return true
}

// Meshes returns the meshes of the model. Callers that modify a mesh in
// place must call InvalidateAll.
func (m *Model) Meshes() []*Mesh { return m.meshes }

// AddMesh appends mesh and returns its index.
func (m *Model) AddMesh(mesh *Mesh) int {
	m.meshes = append(m.meshes, mesh)
	m.features = nil
	m.InvalidateAll()
	return len(m.meshes) - 1
}

// ErrVertexOutOfRange is returned by SetVertexPosition for a bad reference.
var ErrVertexOutOfRange = errors.New("model: vertex reference out of range")

// SetVertexPosition moves a vertex in mesh-local coordinates.
func (m *Model) SetVertexPosition(ref VertexRef, pos r3.Vec) error {
	if ref.Mesh < 0 || ref.Mesh >= len(m.meshes) {
		return fmt.Errorf("%w: mesh %d", ErrVertexOutOfRange, ref.Mesh)
	}
	mesh := m.meshes[ref.Mesh]
	if ref.Vertex < 0 || ref.Vertex >= len(mesh.Vertices) {
		return fmt.Errorf("%w: vertex %d of mesh %d", ErrVertexOutOfRange, ref.Vertex, ref.Mesh)
	}
	mesh.Vertices[ref.Vertex] = pos
	m.InvalidateAll()
	return nil
}

// Clear removes all meshes, samples and features.
func (m *Model) Clear() {
	m.meshes = nil
	m.samples = nil
	m.features = nil
	m.validPick = false
	m.InvalidateAll()
}

// InvalidateAll marks both trees stale.
func (m *Model) InvalidateAll() {
	m.InvalidateVertexTree()
	m.InvalidateFaceTree()
}

// InvalidateFaceTree marks the face tree stale.
func (m *Model) InvalidateFaceTree() { m.validFaceTree = false }

// InvalidateVertexTree marks the vertex tree stale.
func (m *Model) InvalidateVertexTree() { m.validVertexTree = false }

// TreeBuilds returns how many times the face and vertex trees were rebuilt.
func (m *Model) TreeBuilds() (faces, vertices int) { return m.faceBuilds, m.vertexBuilds }

// SetTransform places the model in world space. Valid trees take the
// transform immediately; stale trees receive it when rebuilt.
func (m *Model) SetTransform(a kdtree.AffineTransform) error {
	if _, err := a.Inverse(); err != nil {
		return fmt.Errorf("model: %w", err)
	}
	m.transform = &a
	if m.validFaceTree {
		m.applyFaceTransform()
	}
	if m.validVertexTree {
		m.applyVertexTransform()
	}
	return nil
}

// ClearTransform returns the model to its local coordinates.
func (m *Model) ClearTransform() {
	m.transform = nil
	if m.validFaceTree {
		m.faceTree.ClearTransform()
	}
	if m.validVertexTree {
		m.vertexTree.ClearTransform()
	}
}

// Transform returns the model transform and whether one is set.
func (m *Model) Transform() (kdtree.AffineTransform, bool) {
	if m.transform == nil {
		return kdtree.IdentityTransform(), false
	}
	return *m.transform, true
}

func (m *Model) applyFaceTransform() {
	if m.transform == nil {
		m.faceTree.ClearTransform()
		return
	}
	if err := m.faceTree.SetTransform(*m.transform); err != nil {
		m.logger.Error("failed to set face tree transform", "error", err)
	}
}

func (m *Model) applyVertexTransform() {
	if m.transform == nil {
		m.vertexTree.ClearTransform()
		return
	}
	if err := m.vertexTree.SetTransform(*m.transform); err != nil {
		m.logger.Error("failed to set vertex tree transform", "error", err)
	}
}

func (m *Model) toWorld(p r3.Vec) r3.Vec {
	if m.transform == nil {
		return p
	}
	return m.transform.Apply(p)
}

// updateFaceTree rebuilds the face tree if it is stale.
func (m *Model) updateFaceTree() {
	if m.validFaceTree {
		return
	}

	m.faceTree.Clear(false)
	m.faceRefs = m.faceRefs[:0]
	for mi, mesh := range m.meshes {
		for fi := range mesh.Faces {
			m.faceTree.Add(mesh.Triangle(fi))
			m.faceRefs = append(m.faceRefs, FaceRef{Mesh: mi, Face: fi})
		}
	}
	m.faceTree.Init()
	m.applyFaceTransform()

	m.validFaceTree = true
	m.faceBuilds++
	m.logger.Debug("updated kd-tree",
		"tree", "faces",
		"elements", m.faceTree.NumElements(),
		"nodes", m.faceTree.NumNodes(),
		"depth", m.faceTree.Depth(),
	)
}

// updateVertexTree rebuilds the vertex tree if it is stale.
func (m *Model) updateVertexTree() {
	if m.validVertexTree {
		return
	}

	m.vertexTree.Clear(false)
	m.vertexRefs = m.vertexRefs[:0]
	for mi, mesh := range m.meshes {
		for vi, v := range mesh.Vertices {
			m.vertexTree.Add(kdtree.Point{Position: v})
			m.vertexRefs = append(m.vertexRefs, VertexRef{Mesh: mi, Vertex: vi})
		}
	}
	m.vertexTree.Init()
	m.applyVertexTransform()

	m.validVertexTree = true
	m.vertexBuilds++
	m.logger.Debug("updated kd-tree",
		"tree", "vertices",
		"elements", m.vertexTree.NumElements(),
		"nodes", m.vertexTree.NumNodes(),
		"depth", m.vertexTree.Depth(),
	)
}

// FaceTree returns the face tree, rebuilding it first if it is stale and
// recomputeIfInvalid is set.
func (m *Model) FaceTree(recomputeIfInvalid bool) *kdtree.Tree[kdtree.Triangle] {
	if recomputeIfInvalid {
		m.updateFaceTree()
	}
	return m.faceTree
}

// VertexTree returns the vertex tree, rebuilding it first if it is stale and
// recomputeIfInvalid is set.
func (m *Model) VertexTree(recomputeIfInvalid bool) *kdtree.Tree[kdtree.Point] {
	if recomputeIfInvalid {
		m.updateVertexTree()
	}
	return m.vertexTree
}

// Face maps a face tree element index back to its face. Panics if the index
// is out of range.
func (m *Model) Face(elementIndex int) FaceRef {
	m.updateFaceTree()
	return m.faceRefs[elementIndex]
}

// Vertex maps a vertex tree element index back to its vertex.
func (m *Model) Vertex(elementIndex int) VertexRef {
	m.updateVertexTree()
	return m.vertexRefs[elementIndex]
}

// Bounds returns the box enclosing all faces in mesh coordinates, or a null
// box for a model without faces.
func (m *Model) Bounds() r3.Box { return m.FaceTree(true).Bounds() }

// WorldBounds returns the world-space box enclosing the transformed faces.
func (m *Model) WorldBounds() r3.Box { return m.FaceTree(true).WorldBounds() }

// RayIntersects reports whether the world-space ray hits the model.
func (m *Model) RayIntersects(r kdtree.Ray, maxTime float64) bool {
	return m.FaceTree(true).RayIntersects(r, maxTime)
}

// RayIntersectionTime returns the first hit time, or -1.
func (m *Model) RayIntersectionTime(r kdtree.Ray, maxTime float64) float64 {
	return m.FaceTree(true).RayIntersectionTime(r, maxTime)
}

// RayIntersection returns the first hit with face element index and normal.
func (m *Model) RayIntersection(r kdtree.Ray, maxTime float64) kdtree.RayStructureIntersection {
	return m.FaceTree(true).RayStructureIntersection(r, maxTime)
}

// ClosestPointResult is the answer of ClosestPoint.
type ClosestPointResult struct {
	Face     FaceRef
	Element  int // face tree element index
	Distance float64
	Point    r3.Vec // world space
	Normal   r3.Vec // world-space face normal
}

// ClosestPoint finds the point on the model nearest the world-space query.
// Faces farther than distanceBound are ignored (negative = unbounded). With
// accelerateWithVertices the nearest vertex is found first and its distance
// bounds the face search.
func (m *Model) ClosestPoint(q r3.Vec, distanceBound float64, accelerateWithVertices bool) (ClosestPointResult, bool) {
	if m.IsEmpty() {
		return ClosestPointResult{Element: -1}, false
	}

	ft := m.FaceTree(true)
	idx := -1
	var d float64
	var pt r3.Vec
	if accelerateWithVertices {
		if vi, vd, _ := m.VertexTree(true).ClosestElement(q, distanceBound); vi >= 0 {
			idx, d, pt = ft.ClosestElement(q, vd)
		}
	}
	// Vertices that belong to no face don't bound the face distance.
	if idx < 0 {
		idx, d, pt = ft.ClosestElement(q, distanceBound)
	}
	if idx < 0 {
		return ClosestPointResult{Element: -1}, false
	}
	return ClosestPointResult{
		Face:     m.faceRefs[idx],
		Element:  idx,
		Distance: d,
		Point:    pt,
		Normal:   ft.WorldNormal(ft.Element(idx).Primitive.Normal()),
	}, true
}
