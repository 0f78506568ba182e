// Package kdtree implements a bounding-volume KD-tree over 3D primitives
// (triangles, points) answering ray-intersection, nearest-element,
// k-nearest and closest-pair queries.
//
// Every node stores the tight axis-aligned box of the elements below it.
// Queries are depth-first branch-and-bound searches over an explicit stack:
// children are visited nearest-first and pruned when a lower bound on their
// distance (or ray entry time) cannot improve the current answer.
//
// Basic usage:
//
//	tree := kdtree.NewDefault[kdtree.Triangle]()
//	for _, tri := range triangles {
//		tree.Add(tri)
//	}
//	tree.Init()
//
//	t := tree.RayIntersectionTime(kdtree.NewRay(origin, dir), -1) // -1 = miss
//	idx, dist, pt := tree.ClosestElement(query, -1)               // idx -1 = none
//
//	nbrs := kdtree.NewBoundedSortedArray[kdtree.NeighborPair](8)
//	n := tree.KClosestPairs(query, nbrs, -1)
//
// # Metrics
//
// Distance queries use the tree's [Metric] (default [EuclideanMetric]).
// Traversal compares "reduced" distances (squared for Euclidean) and converts
// to true distances only when reporting. A metric's box lower bound must
// never exceed its element distance, or results silently lose elements.
//
// # Transforms
//
// [Tree.SetTransform] attaches an affine map from build space to world
// space. Queries are given and answered in world space without rebuilding.
// Distances are scaled by the transform's uniform scale, which is exact for
// similarities (rotation, translation, uniform scale).
//
// # Rebuilds
//
// A built tree is immutable; edits to the source geometry require Clear,
// re-Add and Init. The model subpackage wraps this in a lazy rebuild gate
// driven by a validity flag.
package kdtree
