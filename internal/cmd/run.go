package cmd

import (
	"github.com/spf13/cobra"
	logf "sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/manager/signals"

	"github.com/iljarotar/threshold-scaler/internal/runner"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Continuously evaluate and scale at a fixed interval",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, cfg, err := newEngine()
		if err != nil {
			return err
		}

		r := runner.New(eng, cfg.Namespace, cfg.Interval, logf.Log.WithName("runner"))

		return r.Run(signals.SetupSignalHandler())
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
