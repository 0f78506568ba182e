package kdtree

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// Tree is a bounding-volume KD-tree over primitives of type P.
//
// Elements are staged with Add and become visible to queries after Init,
// which rebuilds the whole hierarchy. The tree stores coordinates in its
// build (local) space; an optional affine transform maps queries from world
// space without rebuilding.
//
// The hierarchy is stored in a flat node slice:
//   - internal nodes reference their children by slice index
//   - leaves reference a contiguous range of the permutation array idxArray
//
// A built tree is read-only during queries and safe for concurrent readers.
// Add, Init, Clear and SetTransform must not run concurrently with queries.
type Tree[P Primitive] struct {
	cfg    Config
	metric Metric

	staged   []Element[P]
	elems    []Element[P]
	idxArray []int    // permutation: leaf ranges index into this
	centers  []r3.Vec // centroid per element, build scratch
	nodes    []node
	depth    int
	built    bool

	xf *transformState
}

type node struct {
	box         r3.Box
	left, right int // -1 for leaves
	axis        int
	split       float64
	start, end  int // range into idxArray
}

func (n *node) isLeaf() bool { return n.left < 0 }

// New returns an empty tree configured by cfg.
func New[P Primitive](cfg Config) (*Tree[P], error) {
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &Tree[P]{cfg: cfg, metric: cfg.Metric}, nil
}

// NewDefault returns an empty tree using [DefaultConfig].
func NewDefault[P Primitive]() *Tree[P] {
	t, err := New[P](DefaultConfig())
	if err != nil {
		panic(err)
	}
	return t
}

// Config returns the configuration the tree was created with.
func (t *Tree[P]) Config() Config { return t.cfg }

// Metric returns the metric used by distance queries.
func (t *Tree[P]) Metric() Metric { return t.metric }

// Add stages p for the next Init and returns the index it will have in
// Elements.
func (t *Tree[P]) Add(p P) int {
	idx := len(t.elems) + len(t.staged)
	t.staged = append(t.staged, Element[P]{Primitive: p, Box: p.Bounds(), Index: idx})
	return idx
}

// AddAll stages every primitive in ps.
func (t *Tree[P]) AddAll(ps ...P) {
	for _, p := range ps {
		t.Add(p)
	}
}

// Init moves all staged elements into the tree and rebuilds the hierarchy.
// Calling Init again without intervening Adds rebuilds an identical tree.
func (t *Tree[P]) Init() {
	t.elems = append(t.elems, t.staged...)
	clear(t.staged)
	t.staged = t.staged[:0]
	t.build()
}

// Clear resets the tree to empty. With releaseMemory the backing storage is
// dropped; otherwise it is kept for reuse by the next build. The transform,
// if any, is kept.
func (t *Tree[P]) Clear(releaseMemory bool) {
	if releaseMemory {
		t.staged, t.elems, t.idxArray, t.centers, t.nodes = nil, nil, nil, nil, nil
	} else {
		clear(t.staged)
		clear(t.elems)
		t.staged = t.staged[:0]
		t.elems = t.elems[:0]
		t.idxArray = t.idxArray[:0]
		t.centers = t.centers[:0]
		t.nodes = t.nodes[:0]
	}
	t.depth = 0
	t.built = false
}

// IsBuilt reports whether Init has run since the last Clear.
func (t *Tree[P]) IsBuilt() bool { return t.built }

// NumElements returns the number of elements visible to queries.
func (t *Tree[P]) NumElements() int { return len(t.elems) }

// NumStaged returns the number of elements waiting for Init.
func (t *Tree[P]) NumStaged() int { return len(t.staged) }

// NumNodes returns the number of nodes (internal + leaf) in the tree.
func (t *Tree[P]) NumNodes() int { return len(t.nodes) }

// Depth returns the number of levels in the hierarchy (1 for a single leaf).
func (t *Tree[P]) Depth() int { return t.depth }

// Elements returns the element array, indexed by element index. The slice
// must not be modified.
func (t *Tree[P]) Elements() []Element[P] { return t.elems }

// Element returns the element with index i. Panics if i is out of range.
func (t *Tree[P]) Element(i int) Element[P] { return t.elems[i] }

// Bounds returns the box enclosing all elements in build space, or a null
// box for an empty or unbuilt tree.
func (t *Tree[P]) Bounds() r3.Box {
	if !t.built || len(t.nodes) == 0 {
		return nullBox()
	}
	return t.nodes[0].box
}

func (t *Tree[P]) build() {
	n := len(t.elems)

	t.idxArray = t.idxArray[:0]
	t.centers = t.centers[:0]
	for i := range t.elems {
		t.idxArray = append(t.idxArray, i)
		t.centers = append(t.centers, t.elems[i].Primitive.Centroid())
	}
	t.nodes = t.nodes[:0]
	t.depth = 0

	if n == 0 {
		t.nodes = append(t.nodes, node{box: nullBox(), left: -1, right: -1})
		t.depth = 1
	} else {
		t.buildNode(0, n, 1)
	}
	t.built = true
}

// buildNode builds the subtree for idxArray[start:end] at the given depth
// and returns its node index.
func (t *Tree[P]) buildNode(start, end, depth int) int {
	id := len(t.nodes)
	t.nodes = append(t.nodes, node{left: -1, right: -1, start: start, end: end})
	if depth > t.depth {
		t.depth = depth
	}

	// Tight box of the elements actually stored below this node.
	box := nullBox()
	for _, ei := range t.idxArray[start:end] {
		box = unionBox(box, t.elems[ei].Box)
	}
	t.nodes[id].box = box

	count := end - start
	if count <= t.cfg.LeafSize || depth >= t.cfg.MaxDepth {
		return id
	}

	axis, ok := t.chooseAxis(start, end, box, depth)
	if !ok {
		// Coincident centroids: nothing separates the set.
		return id
	}

	mid := start + count/2
	t.selectNth(start, end, mid, axis)
	split := axisValue(t.centers[t.idxArray[mid]], axis)

	left := t.buildNode(start, mid, depth+1)
	right := t.buildNode(mid, end, depth+1)

	nd := &t.nodes[id]
	nd.left, nd.right = left, right
	nd.axis, nd.split = axis, split
	return id
}

// chooseAxis returns the first axis, in SplitRule order, along which the
// element centroids in idxArray[start:end] are not all equal.
func (t *Tree[P]) chooseAxis(start, end int, box r3.Box, depth int) (int, bool) {
	var order [3]int
	switch t.cfg.SplitRule {
	case SplitRoundRobin:
		first := (depth - 1) % 3
		order = [3]int{first, (first + 1) % 3, (first + 2) % 3}
	default:
		order = [3]int{0, 1, 2}
		ext := r3.Sub(box.Max, box.Min)
		// Stable sort of three axes by descending extent.
		for i := 1; i < 3; i++ {
			for j := i; j > 0 && axisValue(ext, order[j]) > axisValue(ext, order[j-1]); j-- {
				order[j], order[j-1] = order[j-1], order[j]
			}
		}
	}

	for _, axis := range order {
		lo := axisValue(t.centers[t.idxArray[start]], axis)
		hi := lo
		for _, ei := range t.idxArray[start+1 : end] {
			v := axisValue(t.centers[ei], axis)
			if v < lo {
				lo = v
			} else if v > hi {
				hi = v
			}
		}
		if hi > lo {
			return axis, true
		}
	}
	return 0, false
}

// centroidLess orders elements by centroid along axis, breaking ties by
// element index so builds are deterministic.
func (t *Tree[P]) centroidLess(a, b, axis int) bool {
	ca := axisValue(t.centers[a], axis)
	cb := axisValue(t.centers[b], axis)
	if ca != cb {
		return ca < cb
	}
	return a < b
}

// selectNth partially orders idxArray[lo:hi] so that position k holds the
// element it would hold if fully sorted, with smaller elements before it and
// larger ones after. Expected O(hi-lo).
func (t *Tree[P]) selectNth(lo, hi, k, axis int) {
	idx := t.idxArray
	less := func(i, j int) bool { return t.centroidLess(idx[i], idx[j], axis) }

	for hi-lo > 1 {
		mid := lo + (hi-lo)/2
		last := hi - 1
		// Median of three into mid.
		if less(mid, lo) {
			idx[mid], idx[lo] = idx[lo], idx[mid]
		}
		if less(last, lo) {
			idx[last], idx[lo] = idx[lo], idx[last]
		}
		if less(last, mid) {
			idx[last], idx[mid] = idx[mid], idx[last]
		}

		idx[mid], idx[last] = idx[last], idx[mid]
		store := lo
		for i := lo; i < last; i++ {
			if less(i, last) {
				idx[i], idx[store] = idx[store], idx[i]
				store++
			}
		}
		idx[store], idx[last] = idx[last], idx[store]

		switch {
		case k == store:
			return
		case k < store:
			hi = store
		default:
			lo = store + 1
		}
	}
}
