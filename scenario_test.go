package kdtree

import (
	"encoding/json"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

type goldenPointQuery struct {
	Query           [3]float64 `json:"query"`
	NearestIndex    int        `json:"nearest_index"`
	NearestPoint    [3]float64 `json:"nearest_point"`
	NearestDistance float64    `json:"nearest_distance"`
	KNNDistances    []float64  `json:"knn_distances"`
}

type goldenRayQuery struct {
	Origin    [3]float64 `json:"origin"`
	Direction [3]float64 `json:"direction"`
	MaxTime   float64    `json:"max_time"`
	Time      float64    `json:"time"`
}

type goldenData struct {
	Dataset      string             `json:"dataset"`
	GridSize     int                `json:"grid_size"`
	PointQueries []goldenPointQuery `json:"point_queries"`
	Triangles    [][3][3]float64    `json:"triangles"`
	RayQueries   []goldenRayQuery   `json:"ray_queries"`
}

func vec(a [3]float64) r3.Vec { return r3.Vec{X: a[0], Y: a[1], Z: a[2]} }

func loadGolden(t *testing.T, name string) goldenData {
	t.Helper()
	raw, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("reading golden file: %v", err)
	}
	var g goldenData
	if err := json.Unmarshal(raw, &g); err != nil {
		t.Fatalf("parsing golden file: %v", err)
	}
	return g
}

// gridPoints returns the integer lattice [0, n)^3 in x-major order.
func gridPoints(n int) []Point {
	pts := make([]Point, 0, n*n*n)
	for x := 0; x < n; x++ {
		for y := 0; y < n; y++ {
			for z := 0; z < n; z++ {
				pts = append(pts, Point{Position: r3.Vec{X: float64(x), Y: float64(y), Z: float64(z)}})
			}
		}
	}
	return pts
}

func TestGolden_Grid5(t *testing.T) {
	g := loadGolden(t, "grid5.json")

	for _, rule := range []SplitRule{SplitLongestAxis, SplitRoundRobin} {
		cfg := DefaultConfig()
		cfg.LeafSize = 2
		cfg.SplitRule = rule
		tree := buildTree(t, cfg, gridPoints(g.GridSize))

		for i, pq := range g.PointQueries {
			q := vec(pq.Query)
			idx, d, p := tree.ClosestElement(q, -1)
			if idx != pq.NearestIndex || p != vec(pq.NearestPoint) || !almostEqual(d, pq.NearestDistance, floatTol) {
				t.Errorf("%s query %d: closest = (%d, %v, %v), golden (%d, %v, %v)",
					rule, i, idx, p, d, pq.NearestIndex, pq.NearestPoint, pq.NearestDistance)
			}

			arr := NewBoundedSortedArray[NeighborPair](len(pq.KNNDistances))
			tree.KClosestPairs(q, arr, -1)
			if arr.Len() != len(pq.KNNDistances) {
				t.Fatalf("%s query %d: %d neighbors, golden %d", rule, i, arr.Len(), len(pq.KNNDistances))
			}
			for j, want := range pq.KNNDistances {
				if got := arr.Value(j).Distance; !almostEqual(got, want, floatTol) {
					t.Errorf("%s query %d: knn[%d] = %v, golden %v", rule, i, j, got, want)
				}
			}
		}
	}

	tris := make([]Triangle, len(g.Triangles))
	for i, v := range g.Triangles {
		tris[i] = Triangle{A: vec(v[0]), B: vec(v[1]), C: vec(v[2])}
	}
	tree := buildTree(t, DefaultConfig(), tris)
	for i, rq := range g.RayQueries {
		r := NewRay(vec(rq.Origin), vec(rq.Direction))
		if got := tree.RayIntersectionTime(r, rq.MaxTime); !almostEqual(got, rq.Time, floatTol) {
			t.Errorf("ray %d: time = %v, golden %v", i, got, rq.Time)
		}
	}
}

// 1000 random points in the unit cube, five nearest to the origin corner.
func TestScenario_RandomCloudKNN(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	pts := make([]Point, 1000)
	for i := range pts {
		pts[i] = Point{Position: r3.Vec{X: rng.Float64(), Y: rng.Float64(), Z: rng.Float64()}}
	}
	tree := buildTree(t, DefaultConfig(), pts)

	arr := NewBoundedSortedArray[NeighborPair](5)
	if n := tree.KClosestPairs(r3.Vec{}, arr, -1); n != 5 {
		t.Fatalf("got %d neighbors, want 5", n)
	}

	type cand struct {
		idx int
		d   float64
	}
	all := make([]cand, len(pts))
	for i, p := range pts {
		all[i] = cand{i, r3.Norm(p.Position)}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].d < all[j].d })

	for i := 0; i < 5; i++ {
		p := arr.Value(i)
		if i > 0 && p.Distance < arr.Value(i-1).Distance {
			t.Errorf("distances not ascending at %d", i)
		}
		if p.TargetIndex != all[i].idx || !almostEqual(p.Distance, all[i].d, floatTol) {
			t.Errorf("neighbor %d = (%d, %v), brute force (%d, %v)", i, p.TargetIndex, p.Distance, all[i].idx, all[i].d)
		}
		if p.TargetPoint != pts[p.TargetIndex].Position {
			t.Errorf("neighbor %d: TargetPoint %v", i, p.TargetPoint)
		}
	}
}

// Unit triangle hit straight down from z = 5.
func TestScenario_UnitTriangleRay(t *testing.T) {
	tree := buildTree(t, DefaultConfig(), []Triangle{unitTriangle})
	got := tree.RayIntersectionTime(NewRay(r3.Vec{X: 0.5, Y: 0.5, Z: 5}, r3.Vec{Z: -1}), -1)
	if !almostEqual(got, 5, 1e-9) {
		t.Errorf("RayIntersectionTime = %v, want 5", got)
	}
}
