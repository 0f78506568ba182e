package main

import (
	"fmt"

	"github.com/TrevorS/kdtree"
	"github.com/spf13/cobra"
)

var (
	nearestQuery       string
	nearestQueriesPath string
	nearestMaxDistance float64
)

var nearestCmd = &cobra.Command{
	Use:   "nearest <points>",
	Short: "Find the nearest point to each query",
	Long: `Build a tree over the points file and print the nearest point to each query.
Queries with no point within --max-distance print target -1.

Each output line is: query target distance x y z

Example:
  kdquery nearest points.txt --query 0,0,0
  kdquery nearest points.txt --queries probes.txt --workers 4`,
	Args: cobra.ExactArgs(1),
	RunE: runNearest,
}

func init() {
	nearestCmd.Flags().StringVarP(&nearestQuery, "query", "q", "", "Query point as x,y,z")
	nearestCmd.Flags().StringVar(&nearestQueriesPath, "queries", "", "File of query points")
	nearestCmd.Flags().Float64Var(&nearestMaxDistance, "max-distance", -1, "Ignore points farther than this (negative = unbounded)")
	rootCmd.AddCommand(nearestCmd)
}

func runNearest(cmd *cobra.Command, args []string) error {
	queries, err := queryPoints(nearestQuery, nearestQueriesPath)
	if err != nil {
		return err
	}
	tree, err := buildPointTree(args[0])
	if err != nil {
		return err
	}

	pairs, err := kdtree.ClosestElementsBatch(cmd.Context(), tree, queries, nearestMaxDistance, cfg.Workers)
	if err != nil {
		return fmt.Errorf("nearest query failed: %w", err)
	}

	out := cmd.OutOrStdout()
	for _, p := range pairs {
		if !p.IsValid() {
			fmt.Fprintf(out, "%d -1\n", p.QueryIndex)
			continue
		}
		fmt.Fprintf(out, "%d %d %.6g %.6g %.6g %.6g\n",
			p.QueryIndex, p.TargetIndex, p.Distance,
			p.TargetPoint.X, p.TargetPoint.Y, p.TargetPoint.Z)
	}
	return nil
}
