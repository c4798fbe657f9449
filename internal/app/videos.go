package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"channel-metrics-alerts/internal/fetcher"
	"channel-metrics-alerts/internal/sink"
)

// Videos runs the per-video performance pipeline: fetch the video report,
// enrich rows with titles and thumbnails, write to the sheet, render inline.
func (a *App) Videos(ctx context.Context, opts VideosOptions) error {
	clientOpts, err := a.authorize(ctx)
	if err != nil {
		return err
	}

	sess, err := a.establishSession(ctx, clientOpts)
	if err != nil {
		return err
	}
	if err := sess.BeginRun(); err != nil {
		return err
	}

	days := opts.Days
	if days <= 0 {
		days = a.Config.Videos.Days
	}
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = a.Config.Videos.MaxResults
	}

	end := time.Now().UTC()
	table, err := a.newReports(clientOpts).FetchMetrics(ctx, fetcher.Query{
		ChannelID:  sess.ChannelID(),
		StartDate:  end.AddDate(0, 0, -days),
		EndDate:    end,
		Metrics:    a.Config.Videos.Metrics,
		Dimensions: fetcher.DimensionVideo,
		Sort:       "-views",
		MaxResults: int64(maxResults),
	})
	if err != nil {
		return err
	}

	if table.Empty() {
		fmt.Fprintln(os.Stdout, "no video data for the requested window")
		return nil
	}

	rows, err := a.newEnricher(clientOpts).Enrich(ctx, table)
	if err != nil {
		return fmt.Errorf("enrich video rows: %w", err)
	}

	out := sink.FromEnriched(rows, table.Columns)
	if err := a.newSink(clientOpts).Write(ctx, out); err != nil {
		return fmt.Errorf("write videos to sheet: %w", err)
	}

	printTable(out)
	a.Logger.Info().Int("rows", len(rows)).Msg("video report written")
	return nil
}
