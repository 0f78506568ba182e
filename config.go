package kdtree

import "fmt"

// SplitRule selects the axis an internal node is split on.
type SplitRule string

const (
	// SplitLongestAxis splits along the axis of greatest extent of the
	// node's box, falling back to the other axes when the element
	// centroids do not spread along it.
	SplitLongestAxis SplitRule = "longest"
	// SplitRoundRobin cycles X, Y, Z by depth with the same fallback.
	SplitRoundRobin SplitRule = "round_robin"
)

// Config controls tree construction and the metric used by queries.
// Start with [DefaultConfig] and override the fields you need.
type Config struct {
	// LeafSize is the maximum number of elements stored directly in a leaf.
	// Leaves may exceed it only when their elements cannot be separated or
	// MaxDepth is reached. Must be >= 1. Default: 8.
	LeafSize int

	// MaxDepth caps the depth of the hierarchy; a node at this depth becomes
	// a leaf regardless of its size. Bounds the traversal stack.
	// Must be >= 1. Default: 64.
	MaxDepth int

	// Metric is used by all distance queries.
	// Built-in: EuclideanMetric, ManhattanMetric, ChebyshevMetric,
	// MinkowskiMetric. Default: EuclideanMetric.
	Metric Metric

	// SplitRule chooses the split axis. Default: SplitLongestAxis.
	SplitRule SplitRule
}

// DefaultConfig returns a Config with reasonable defaults.
func DefaultConfig() Config {
	return Config{
		LeafSize:  8,
		MaxDepth:  64,
		Metric:    EuclideanMetric{},
		SplitRule: SplitLongestAxis,
	}
}

// validateConfig fills unset optional fields and checks that cfg is usable.
func validateConfig(cfg *Config) error {
	if cfg.Metric == nil {
		cfg.Metric = EuclideanMetric{}
	}
	if cfg.SplitRule == "" {
		cfg.SplitRule = SplitLongestAxis
	}
	if cfg.LeafSize < 1 {
		return fmt.Errorf("kdtree: LeafSize must be >= 1, got %d", cfg.LeafSize)
	}
	if cfg.MaxDepth < 1 {
		return fmt.Errorf("kdtree: MaxDepth must be >= 1, got %d", cfg.MaxDepth)
	}
	if cfg.SplitRule != SplitLongestAxis && cfg.SplitRule != SplitRoundRobin {
		return fmt.Errorf("kdtree: SplitRule must be %q or %q, got %q", SplitLongestAxis, SplitRoundRobin, cfg.SplitRule)
	}
	if m, ok := cfg.Metric.(MinkowskiMetric); ok && m.P < 1 {
		return fmt.Errorf("kdtree: MinkowskiMetric P must be >= 1, got %f", m.P)
	}
	return nil
}

// Validate reports whether cfg would be accepted by [New].
func (cfg Config) Validate() error {
	return validateConfig(&cfg)
}

// ParseMetric maps a metric name ("euclidean", "manhattan", "chebyshev",
// "minkowski") to a Metric. p is only used by "minkowski".
func ParseMetric(name string, p float64) (Metric, error) {
	switch name {
	case "", "euclidean", "l2":
		return EuclideanMetric{}, nil
	case "manhattan", "l1":
		return ManhattanMetric{}, nil
	case "chebyshev", "linf":
		return ChebyshevMetric{}, nil
	case "minkowski":
		if p < 1 {
			return nil, fmt.Errorf("kdtree: minkowski metric requires p >= 1, got %f", p)
		}
		return MinkowskiMetric{P: p}, nil
	default:
		return nil, fmt.Errorf("kdtree: unknown metric %q", name)
	}
}
