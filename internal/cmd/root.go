package cmd

import (
	"github.com/spf13/cobra"
	"k8s.io/client-go/kubernetes"
	metrics "k8s.io/metrics/pkg/client/clientset/versioned"
	ctrlconfig "sigs.k8s.io/controller-runtime/pkg/client/config"
	logf "sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"

	"github.com/iljarotar/threshold-scaler/internal/cluster"
	"github.com/iljarotar/threshold-scaler/internal/config"
	"github.com/iljarotar/threshold-scaler/internal/engine"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "threshold-scaler",
	Short: "Threshold-driven autoscaler for kubernetes deployments",
	Long: `threshold-scaler watches the per-pod cpu and memory utilization of the
deployments in a namespace and adjusts their replica counts one step at a
time: scale up when either signal breaches its upper threshold, scale down
only when both signals sit below their lower thresholds, with a per-deployment
cooldown between applied actions.`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(func() {
		logf.SetLogger(zap.New())
	})

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config/scaler.yaml", "path to the configuration file")
}

// newEngine loads the configuration and wires the engine to the cluster.
func newEngine() (*engine.Engine, *config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	restConfig := ctrlconfig.GetConfigOrDie()

	clientset, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return nil, nil, err
	}

	metricsClientset, err := metrics.NewForConfig(restConfig)
	if err != nil {
		return nil, nil, err
	}

	client := cluster.NewClient(clientset, metricsClientset)

	eng, err := engine.New(client, client, engine.Options{
		Thresholds: cfg.Thresholds,
		Overrides:  cfg.Overrides,
		Logger:     logf.Log.WithName("threshold-scaler"),
	})
	if err != nil {
		return nil, nil, err
	}

	return eng, cfg, nil
}
