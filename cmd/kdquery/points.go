package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/TrevorS/kdtree"
	"gonum.org/v1/gonum/spatial/r3"
)

// readPoints parses one point per line from r. Fields past the third are
// ignored.
func readPoints(r io.Reader) ([]r3.Vec, error) {
	var pts []r3.Vec
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) < 3 {
			return nil, fmt.Errorf("line %d: want at least 3 coordinates, got %d", line, len(fields))
		}
		var c [3]float64
		for i := range c {
			v, err := strconv.ParseFloat(fields[i], 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			c[i] = v
		}
		pts = append(pts, r3.Vec{X: c[0], Y: c[1], Z: c[2]})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return pts, nil
}

func readPointFile(path string) ([]r3.Vec, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open points: %w", err)
	}
	defer f.Close()

	pts, err := readPoints(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return pts, nil
}

// parseVec parses "x,y,z".
func parseVec(s string) (r3.Vec, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return r3.Vec{}, fmt.Errorf("invalid point %q: want x,y,z", s)
	}
	var c [3]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return r3.Vec{}, fmt.Errorf("invalid point %q: %w", s, err)
		}
		c[i] = v
	}
	return r3.Vec{X: c[0], Y: c[1], Z: c[2]}, nil
}

// queryPoints returns the single --query point or the points of the
// --queries file.
func queryPoints(query, queriesPath string) ([]r3.Vec, error) {
	switch {
	case query != "" && queriesPath != "":
		return nil, fmt.Errorf("--query and --queries are mutually exclusive")
	case query != "":
		p, err := parseVec(query)
		if err != nil {
			return nil, err
		}
		return []r3.Vec{p}, nil
	case queriesPath != "":
		return readPointFile(queriesPath)
	default:
		return nil, fmt.Errorf("one of --query or --queries is required")
	}
}

// buildPointTree builds a tree over the points of path using the loaded
// config.
func buildPointTree(path string) (*kdtree.Tree[kdtree.Point], error) {
	pts, err := readPointFile(path)
	if err != nil {
		return nil, err
	}
	tc, err := cfg.treeConfig()
	if err != nil {
		return nil, err
	}
	tree, err := kdtree.New[kdtree.Point](tc)
	if err != nil {
		return nil, err
	}
	for _, p := range pts {
		tree.Add(kdtree.Point{Position: p})
	}
	tree.Init()

	logger.Debug("built tree",
		"points", tree.NumElements(),
		"nodes", tree.NumNodes(),
		"depth", tree.Depth(),
	)
	return tree, nil
}
