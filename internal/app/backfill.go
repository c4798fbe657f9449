package app

import (
	"context"
	"errors"
	"time"

	"channel-metrics-alerts/internal/service"
	"channel-metrics-alerts/internal/storage"
)

// Backfill fetches and persists hourly samples for a historical window, one
// daily bucket at a time. Alerts are never raised for historical buckets.
func (a *App) Backfill(ctx context.Context, opts BackfillOptions) error {
	const step = 24 * time.Hour

	start := alignForward(opts.From.UTC(), step)
	end := opts.To.UTC()
	if !start.Before(end) {
		return errors.New("backfill window is empty; check --from/--to")
	}

	clientOpts, err := a.authorize(ctx)
	if err != nil {
		return err
	}
	if _, err := a.establishSession(ctx, clientOpts); err != nil {
		return err
	}

	var sampleStore storage.MetricSampleStore
	if opts.DryRun {
		a.Logger.Warn().Msg("backfill dry-run: nothing will be written to the database")
	} else {
		store, closeStore, err := a.openStore(ctx)
		if err != nil {
			return err
		}
		if store == nil {
			return errors.New("database.dsn not configured; cannot backfill")
		}
		if closeStore != nil {
			defer closeStore()
		}
		sampleStore = store
	}

	svc := service.New(a.Config, nil, a.newReports(clientOpts), sampleStore, nil, nil, a.Logger)

	processed := 0
	failed := 0
	for bucket := start; bucket.Before(end); bucket = bucket.Add(step) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := svc.ProcessBucket(ctx, bucket); err != nil {
			failed++
			a.Logger.Error().Err(err).Time("bucket", bucket).Msg("backfill bucket failed")
			continue
		}
		processed++
	}

	a.Logger.Info().Int("processed", processed).Int("failed", failed).Msg("backfill finished")
	if failed > 0 {
		return errors.New("some buckets failed to backfill; check the logs")
	}
	return nil
}

func alignForward(t time.Time, interval time.Duration) time.Time {
	truncated := t.Truncate(interval)
	if truncated.Before(t) {
		return truncated.Add(interval)
	}
	return truncated
}
