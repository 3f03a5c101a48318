// cmd/root.go
package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rmemtree/rmemtree-sim/sim/config"
	"github.com/rmemtree/rmemtree-sim/sim/workload"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "rmemtree-sim [config path]",
	Short: "Discrete-event simulator for disaggregated-memory B+-tree indices over RDMA",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)

		path := "data/sim.yaml"
		if len(args) == 1 {
			path = args[0]
		}

		cfg, err := config.Load(path)
		if err != nil {
			logrus.Fatalf("loading config %s: %v", path, err)
		}

		logrus.Infof("starting simulation: index=%s, compute_nodes=%d, workloads=%d",
			cfg.Index.Kind, cfg.Cluster.ComputeNodes, len(cfg.Workloads))

		r := workload.NewRunner(*cfg)
		if err := r.RunAll(); err != nil {
			logrus.Fatalf("running workloads: %v", err)
		}
		logrus.Info("simulation complete.")
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().StringVar(&logLevel, "log", "info", "Log level (debug, info, warn, error)")
}
