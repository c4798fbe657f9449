package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"channel-metrics-alerts/internal/app"
)

var (
	reportDays int
	reportEnd  string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Fetch the daily channel report and write it to the sheet",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ReportOptions{Days: reportDays}

		if reportEnd != "" {
			end, err := time.Parse("2006-01-02", reportEnd)
			if err != nil {
				return fmt.Errorf("invalid --end value: %w", err)
			}
			opts.End = &end
		}

		return getApp().Report(cmd.Context(), opts)
	},
}

func init() {
	reportCmd.Flags().IntVar(&reportDays, "days", 0, "Window length in days (defaults to config)")
	reportCmd.Flags().StringVar(&reportEnd, "end", "", "Window end date (YYYY-MM-DD, defaults to today)")
}
