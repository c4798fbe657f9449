package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"channel-metrics-alerts/internal/app"
)

var (
	simulateMetric  string
	simulateSamples []float64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "Run the deviation check over a synthetic sample series",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateMetric == "" {
			return errors.New("--metric must be provided")
		}
		if len(simulateSamples) == 0 {
			return errors.New("--samples must be provided")
		}

		opts := app.SimulateOptions{
			Metric:  simulateMetric,
			Samples: simulateSamples,
		}
		return getApp().SimulateAlert(cmd.Context(), opts)
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateMetric, "metric", "views", "Tracked metric name for the simulated alert")
	simulateCmd.Flags().Float64SliceVar(&simulateSamples, "samples", nil, "Comma-separated sample series, oldest first")
}
