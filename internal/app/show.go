package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"channel-metrics-alerts/internal/storage"
)

type sampleLister interface {
	ListRecentSamples(ctx context.Context, channelID string, limit int) ([]storage.MetricSample, error)
}

type alertLister interface {
	ListRecentAlerts(ctx context.Context, limit int) ([]storage.AlertRecord, error)
}

// Show prints recent stored samples or alerts.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show history")
	}
	if closeStore != nil {
		defer closeStore()
	}

	if opts.Alerts {
		return a.showAlerts(ctx, store, opts.Limit)
	}
	return a.showSamples(ctx, store, opts.Limit)
}

func (a *App) showSamples(ctx context.Context, store sampleLister, limit int) error {
	samples, err := store.ListRecentSamples(ctx, a.Config.YouTube.ChannelID, limit)
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		fmt.Fprintln(os.Stdout, "no samples found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tViews\tImpressions\tCTR\tVPH\tEngagement\tStatus\tError")

	for _, sample := range samples {
		errMsg := ""
		if sample.Error != nil {
			errMsg = sanitizeInline(*sample.Error)
		}
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			sample.Bucket.UTC().Format(time.RFC3339),
			sample.Views.StringFixed(0),
			sample.Impressions.StringFixed(0),
			sample.CTR.StringFixed(4),
			sample.VPH.StringFixed(0),
			sample.EngagementRate.StringFixed(4),
			sample.Status,
			errMsg,
		)
	}

	writer.Flush()
	return nil
}

func (a *App) showAlerts(ctx context.Context, store alertLister, limit int) error {
	alerts, err := store.ListRecentAlerts(ctx, limit)
	if err != nil {
		return err
	}
	if len(alerts) == 0 {
		fmt.Fprintln(os.Stdout, "no alerts found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tMetric\tLatest\tAvg7\tDeviation%\tThreshold%")

	for _, alert := range alerts {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\n",
			alert.SampleTS.UTC().Format(time.RFC3339),
			alert.Metric,
			alert.Latest.String(),
			alert.Avg7.StringFixed(2),
			alert.DeviationPct.StringFixed(2),
			alert.ThresholdPct.StringFixed(2),
		)
	}

	writer.Flush()
	return nil
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
