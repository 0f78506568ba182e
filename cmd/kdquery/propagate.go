package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/TrevorS/kdtree"
	"github.com/TrevorS/kdtree/model"
	"github.com/spf13/cobra"
)

var (
	propagateAccentuate bool
	propagateColorCube  bool
)

var propagateCmd = &cobra.Command{
	Use:   "propagate <features> <targets>",
	Short: "Blend point features onto target points",
	Long: `Read a feature file ("x y z f0 [f1 ...]") and a target point file, and print
each target with feature values blended from its nearest feature points.

The features are optionally accentuated first: each channel is stretched
between its 10th and 90th percentiles into [0, 1].

Example:
  kdquery propagate curvature.txt vertices.txt --accentuate`,
	Args: cobra.ExactArgs(2),
	RunE: runPropagate,
}

func init() {
	propagateCmd.Flags().BoolVar(&propagateAccentuate, "accentuate", false, "Normalize feature channels into [0, 1]")
	propagateCmd.Flags().BoolVar(&propagateColorCube, "color-cube", false, "With --accentuate, scale three channels jointly about 0")
	rootCmd.AddCommand(propagateCmd)
}

func runPropagate(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open features: %w", err)
	}
	defer f.Close()

	fs, err := model.ReadFeatures(f)
	if err != nil {
		return err
	}
	if propagateAccentuate {
		fs.Accentuate(propagateColorCube)
	}

	targets, err := readPointFile(args[1])
	if err != nil {
		return err
	}

	tc, err := cfg.treeConfig()
	if err != nil {
		return err
	}
	if _, ok := tc.Metric.(kdtree.EuclideanMetric); !ok {
		logger.Warn("propagate always uses the euclidean metric", "configured", cfg.Metric)
		tc.Metric = kdtree.EuclideanMetric{}
	}

	m, err := model.New(model.Options{Name: args[1], Tree: tc, Logger: logger})
	if err != nil {
		return err
	}
	mi := m.AddMesh(&model.Mesh{Name: args[1], Vertices: targets})
	if err := m.PropagateFeatures(cmd.Context(), fs, cfg.Workers); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	vals := m.VertexFeatures(mi)
	var sb strings.Builder
	for i, p := range targets {
		sb.Reset()
		sb.WriteString(strconv.FormatFloat(p.X, 'g', 6, 64))
		sb.WriteByte(' ')
		sb.WriteString(strconv.FormatFloat(p.Y, 'g', 6, 64))
		sb.WriteByte(' ')
		sb.WriteString(strconv.FormatFloat(p.Z, 'g', 6, 64))
		for _, v := range vals[i] {
			sb.WriteByte(' ')
			sb.WriteString(strconv.FormatFloat(v, 'g', 6, 64))
		}
		fmt.Fprintln(out, sb.String())
	}
	return nil
}
