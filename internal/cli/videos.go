package cli

import (
	"github.com/spf13/cobra"

	"channel-metrics-alerts/internal/app"
)

var (
	videosDays       int
	videosMaxResults int
)

var videosCmd = &cobra.Command{
	Use:   "videos",
	Short: "Fetch per-video performance, enrich with metadata, write to the sheet",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.VideosOptions{
			Days:       videosDays,
			MaxResults: videosMaxResults,
		}
		return getApp().Videos(cmd.Context(), opts)
	},
}

func init() {
	videosCmd.Flags().IntVar(&videosDays, "days", 0, "Window length in days (defaults to config)")
	videosCmd.Flags().IntVar(&videosMaxResults, "max-results", 0, "Maximum videos to report (defaults to config)")
}
