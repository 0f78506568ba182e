package main

import (
	"fmt"

	"github.com/TrevorS/kdtree"
	"github.com/spf13/cobra"
)

var (
	knnQuery       string
	knnQueriesPath string
	knnK           int
	knnMaxDistance float64
)

var knnCmd = &cobra.Command{
	Use:   "knn <points>",
	Short: "Find the k nearest points to each query",
	Long: `Build a tree over the points file and print the k nearest points to each
query, nearest first.

Each output line is: query rank target distance x y z

Example:
  kdquery knn points.txt --query 1,2,3 -k 5
  kdquery knn points.txt --queries probes.txt -k 8 --max-distance 0.5`,
	Args: cobra.ExactArgs(1),
	RunE: runKNN,
}

func init() {
	knnCmd.Flags().StringVarP(&knnQuery, "query", "q", "", "Query point as x,y,z")
	knnCmd.Flags().StringVar(&knnQueriesPath, "queries", "", "File of query points")
	knnCmd.Flags().IntVarP(&knnK, "neighbors", "k", 5, "Number of neighbors")
	knnCmd.Flags().Float64Var(&knnMaxDistance, "max-distance", -1, "Ignore points farther than this (negative = unbounded)")
	rootCmd.AddCommand(knnCmd)
}

func runKNN(cmd *cobra.Command, args []string) error {
	if knnK < 1 {
		return fmt.Errorf("-k must be >= 1, got %d", knnK)
	}
	queries, err := queryPoints(knnQuery, knnQueriesPath)
	if err != nil {
		return err
	}
	tree, err := buildPointTree(args[0])
	if err != nil {
		return err
	}

	results, err := kdtree.KClosestPairsBatch(cmd.Context(), tree, queries, knnK, knnMaxDistance, cfg.Workers)
	if err != nil {
		return fmt.Errorf("knn query failed: %w", err)
	}

	out := cmd.OutOrStdout()
	for _, pairs := range results {
		for rank, p := range pairs {
			fmt.Fprintf(out, "%d %d %d %.6g %.6g %.6g %.6g\n",
				p.QueryIndex, rank, p.TargetIndex, p.Distance,
				p.TargetPoint.X, p.TargetPoint.Y, p.TargetPoint.Z)
		}
	}
	return nil
}
