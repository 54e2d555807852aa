package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"sigs.k8s.io/controller-runtime/pkg/manager/signals"
)

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Run a single scaling cycle and print what happened",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, cfg, err := newEngine()
		if err != nil {
			return err
		}

		applied, err := eng.RunScalingCycle(signals.SetupSignalHandler(), cfg.Namespace)
		if err != nil {
			return err
		}

		report := eng.Report()

		fmt.Printf("actions applied: %d\n", applied)

		for _, event := range report.Recent {
			status := "ok"
			if !event.Success {
				status = "failed"
			}

			fmt.Printf("%s %s/%s %d -> %d (%s) [%s]\n",
				event.AppliedAt.Format("15:04:05"),
				event.Decision.Namespace, event.Decision.Deployment,
				event.Decision.CurrentReplicas, event.Decision.TargetReplicas,
				event.Decision.Reason, status)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(onceCmd)
}
