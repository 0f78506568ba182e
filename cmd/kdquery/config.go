package main

import (
	"fmt"
	"os"

	"github.com/TrevorS/kdtree"
	"gopkg.in/yaml.v3"
)

// fileConfig is the on-disk configuration of kdquery.
type fileConfig struct {
	LeafSize   int     `yaml:"leaf_size"`
	MaxDepth   int     `yaml:"max_depth"`
	Metric     string  `yaml:"metric"`
	MinkowskiP float64 `yaml:"minkowski_p"`
	SplitRule  string  `yaml:"split_rule"`
	Workers    int     `yaml:"workers"`
}

func defaultFileConfig() fileConfig {
	d := kdtree.DefaultConfig()
	return fileConfig{
		LeafSize:   d.LeafSize,
		MaxDepth:   d.MaxDepth,
		Metric:     "euclidean",
		MinkowskiP: 2,
		SplitRule:  string(d.SplitRule),
	}
}

// loadConfig reads path over the defaults. An empty path returns the
// defaults.
func loadConfig(path string) (fileConfig, error) {
	c := defaultFileConfig()
	if path == "" {
		return c, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if _, err := c.treeConfig(); err != nil {
		return c, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return c, nil
}

// treeConfig maps the file settings onto a validated kdtree.Config.
func (c fileConfig) treeConfig() (kdtree.Config, error) {
	m, err := kdtree.ParseMetric(c.Metric, c.MinkowskiP)
	if err != nil {
		return kdtree.Config{}, err
	}
	tc := kdtree.Config{
		LeafSize:  c.LeafSize,
		MaxDepth:  c.MaxDepth,
		Metric:    m,
		SplitRule: kdtree.SplitRule(c.SplitRule),
	}
	if err := tc.Validate(); err != nil {
		return kdtree.Config{}, err
	}
	return tc, nil
}
