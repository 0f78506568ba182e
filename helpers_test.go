package kdtree

import (
	"math"
	"math/rand"
	"sort"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

const floatTol = 1e-10

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func vecAlmostEqual(a, b r3.Vec, tol float64) bool {
	return almostEqual(a.X, b.X, tol) && almostEqual(a.Y, b.Y, tol) && almostEqual(a.Z, b.Z, tol)
}

func randomVec(rng *rand.Rand, scale float64) r3.Vec {
	return r3.Vec{
		X: (rng.Float64()*2 - 1) * scale,
		Y: (rng.Float64()*2 - 1) * scale,
		Z: (rng.Float64()*2 - 1) * scale,
	}
}

func randomPoints(rng *rand.Rand, n int, scale float64) []Point {
	pts := make([]Point, n)
	for i := range pts {
		pts[i] = Point{Position: randomVec(rng, scale)}
	}
	return pts
}

// randomTriangles returns small triangles scattered through a cube.
func randomTriangles(rng *rand.Rand, n int, scale, size float64) []Triangle {
	tris := make([]Triangle, n)
	for i := range tris {
		c := randomVec(rng, scale)
		tris[i] = Triangle{
			A: r3.Add(c, randomVec(rng, size)),
			B: r3.Add(c, randomVec(rng, size)),
			C: r3.Add(c, randomVec(rng, size)),
		}
	}
	return tris
}

func buildTree[P Primitive](t testing.TB, cfg Config, prims []P) *Tree[P] {
	t.Helper()
	tree, err := New[P](cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	tree.AddAll(prims...)
	tree.Init()
	return tree
}

// bruteClosest returns the index and distance of the primitive nearest p.
func bruteClosest[P Primitive](prims []P, p r3.Vec, m Metric) (int, float64) {
	best, bestD := -1, math.Inf(1)
	for i, prim := range prims {
		rd, _ := m.ElementReducedDistance(p, prim)
		if rd < bestD {
			best, bestD = i, rd
		}
	}
	if best < 0 {
		return -1, -1
	}
	return best, m.ReducedToDistance(bestD)
}

// bruteKNNDistances returns the k smallest distances from p to prims.
func bruteKNNDistances[P Primitive](prims []P, p r3.Vec, k int, m Metric) []float64 {
	ds := make([]float64, len(prims))
	for i, prim := range prims {
		rd, _ := m.ElementReducedDistance(p, prim)
		ds[i] = m.ReducedToDistance(rd)
	}
	sort.Float64s(ds)
	if k < len(ds) {
		ds = ds[:k]
	}
	return ds
}

// bruteRay returns the earliest hit time of r against prims, or -1.
func bruteRay[P Primitive](prims []P, r Ray, maxTime float64) float64 {
	best := -1.0
	for _, prim := range prims {
		h, ok := prim.IntersectRay(r, maxTime)
		if ok && (best < 0 || h.Time < best) {
			best = h.Time
		}
	}
	return best
}

// bruteRayDistance returns the smallest distance between r and prims.
func bruteRayDistance[P Primitive](prims []P, r Ray) float64 {
	best := math.Inf(1)
	for _, prim := range prims {
		rt, q := prim.ClosestPointsToRay(r)
		best = math.Min(best, r3.Norm(r3.Sub(r.At(rt), q)))
	}
	return best
}

// checkTreeInvariants verifies the structural properties every built tree
// must have.
func checkTreeInvariants[P Primitive](t *testing.T, tree *Tree[P]) {
	t.Helper()
	nodes := tree.NodeDataArray()
	if len(nodes) == 0 {
		t.Fatal("built tree has no nodes")
	}

	n := tree.NumElements()
	seen := make([]bool, n)
	for _, v := range tree.IdxArray() {
		if v < 0 || v >= n {
			t.Fatalf("IdxArray contains out-of-range index %d", v)
		}
		if seen[v] {
			t.Fatalf("IdxArray contains duplicate index %d", v)
		}
		seen[v] = true
	}

	cfg := tree.Config()
	covered := 0
	for i, nd := range nodes {
		if nd.IsLeaf {
			covered += nd.IdxEnd - nd.IdxStart
			for _, ei := range tree.LeafElements(i) {
				if !BoxContains(nd.Box, tree.Element(ei).Box) {
					t.Errorf("leaf %d box %v does not contain element %d box %v", i, nd.Box, ei, tree.Element(ei).Box)
				}
			}
			if size := nd.IdxEnd - nd.IdxStart; size > cfg.LeafSize {
				// Oversized leaves are only allowed when nothing separates
				// the centroids or the depth cap was hit.
				if tree.Depth() < cfg.MaxDepth && centroidsSpread(tree, tree.LeafElements(i)) {
					t.Errorf("leaf %d holds %d elements > LeafSize %d", i, size, cfg.LeafSize)
				}
			}
			continue
		}
		for _, c := range []int{nd.Left, nd.Right} {
			if !BoxContains(nd.Box, nodes[c].Box) {
				t.Errorf("node %d box %v does not contain child %d box %v", i, nd.Box, c, nodes[c].Box)
			}
		}
		if nodes[nd.Left].IdxStart != nd.IdxStart || nodes[nd.Right].IdxEnd != nd.IdxEnd ||
			nodes[nd.Left].IdxEnd != nodes[nd.Right].IdxStart {
			t.Errorf("node %d children do not partition [%d, %d)", i, nd.IdxStart, nd.IdxEnd)
		}
	}
	if n > 0 && covered != n {
		t.Errorf("leaves cover %d elements, want %d", covered, n)
	}
}

func centroidsSpread[P Primitive](tree *Tree[P], elems []int) bool {
	c0 := tree.Element(elems[0]).Primitive.Centroid()
	for _, ei := range elems[1:] {
		if tree.Element(ei).Primitive.Centroid() != c0 {
			return true
		}
	}
	return false
}
