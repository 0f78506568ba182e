package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string
	workers    int

	cfg    fileConfig
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "kdquery",
	Short: "Query 3D point sets with a bounding-volume kd-tree",
	Long: `kdquery builds a kd-tree over a point file and answers proximity queries.

Point files hold one point per line as "x y z" optionally followed by feature
values. Blank lines are ignored.

Example usage:
  kdquery knn points.txt --query 0,0,0 -k 5       # 5 nearest points to the origin
  kdquery nearest points.txt --queries probes.txt # nearest point per probe
  kdquery propagate features.txt targets.txt      # blend features onto targets`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var level slog.Level
		if err := level.UnmarshalText([]byte(logLevel)); err != nil {
			return fmt.Errorf("invalid --log-level %q: %w", logLevel, err)
		}
		logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

		c, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("workers") {
			c.Workers = workers
		}
		cfg = c
		logger.Debug("loaded config", "path", configPath, "metric", cfg.Metric, "leaf_size", cfg.LeafSize, "workers", cfg.Workers)
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().IntVar(&workers, "workers", 0, "Number of parallel query workers (0 = GOMAXPROCS)")
}
