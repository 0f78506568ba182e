package kdtree

import "gonum.org/v1/gonum/spatial/r3"

// NodeData describes a single node in a tree.
type NodeData struct {
	Box              r3.Box
	IdxStart, IdxEnd int // range into IdxArray covered by the node
	IsLeaf           bool
	Left, Right      int // child node indices; -1 for leaves
	Axis             int
	Split            float64
}

// SpatialIndex is the read interface shared by trees over any primitive
// type. Element indices returned by queries refer to the concrete tree's
// Elements.
type SpatialIndex interface {
	NumElements() int
	Bounds() r3.Box
	WorldBounds() r3.Box

	RayIntersects(r Ray, maxTime float64) bool
	RayIntersectionTime(r Ray, maxTime float64) float64
	RayStructureIntersection(r Ray, maxTime float64) RayStructureIntersection

	ClosestElement(p r3.Vec, distanceBound float64) (int, float64, r3.Vec)
	ClosestPair(p r3.Vec, maxDistance float64, wantClosestPoints bool) NeighborPair
	KClosestPairs(p r3.Vec, arr *BoundedSortedArray[NeighborPair], maxDistance float64) int
}

var (
	_ SpatialIndex = (*Tree[Point])(nil)
	_ SpatialIndex = (*Tree[Triangle])(nil)
)

// IdxArray returns the permutation array; leaf ranges index into it and its
// values are element indices.
func (t *Tree[P]) IdxArray() []int { return t.idxArray }

// NodeDataArray returns a summary of every node; index 0 is the root.
func (t *Tree[P]) NodeDataArray() []NodeData {
	out := make([]NodeData, len(t.nodes))
	for i := range t.nodes {
		n := &t.nodes[i]
		out[i] = NodeData{
			Box:      n.box,
			IdxStart: n.start,
			IdxEnd:   n.end,
			IsLeaf:   n.isLeaf(),
			Left:     n.left,
			Right:    n.right,
			Axis:     n.axis,
			Split:    n.split,
		}
	}
	return out
}

// LeafElements returns the element indices stored below node.
func (t *Tree[P]) LeafElements(node int) []int {
	n := &t.nodes[node]
	return t.idxArray[n.start:n.end]
}
