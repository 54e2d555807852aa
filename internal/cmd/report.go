package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"sigs.k8s.io/controller-runtime/pkg/manager/signals"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Evaluate all deployments without applying anything",
	Long: `Runs the read-only half of a scaling cycle and prints the decisions it
would apply. Nothing is scaled.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, cfg, err := newEngine()
		if err != nil {
			return err
		}

		decisions, err := eng.EvaluateAll(signals.SetupSignalHandler(), cfg.Namespace)
		if err != nil {
			return err
		}

		if len(decisions) == 0 {
			fmt.Println("no scaling needed")
			return nil
		}

		for _, decision := range decisions {
			fmt.Printf("%s/%s %d -> %d (%s) cpu=%.1f%% memory=%.1f%%\n",
				decision.Namespace, decision.Deployment,
				decision.CurrentReplicas, decision.TargetReplicas,
				decision.Reason, decision.CPUPercent, decision.MemoryPercent)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)
}
