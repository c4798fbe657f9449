package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"channel-metrics-alerts/internal/alerting"
	"channel-metrics-alerts/internal/config"
	"channel-metrics-alerts/internal/fetcher"
	"channel-metrics-alerts/internal/monitor"
	"channel-metrics-alerts/internal/scheduler"
	"channel-metrics-alerts/internal/storage"
)

// Service orchestrates the hourly monitor pipeline: fetch hourly report
// rows, persist them, run the deviation check per tracked metric, and
// dispatch alerts.
type Service struct {
	scheduler  *scheduler.Scheduler
	reports    fetcher.ReportsFetcher
	store      storage.MetricSampleStore
	alertStore storage.AlertStore
	notifier   alerting.Notifier
	logger     zerolog.Logger

	channelID    string
	queryMetrics []string
	tracked      []string
	threshold    decimal.Decimal
	windowDays   int
	alertsOn     bool
	locker       storage.AdvisoryLocker
	lockKey      int64
}

// New constructs the monitoring service.
func New(cfg *config.Config, sched *scheduler.Scheduler, reports fetcher.ReportsFetcher, store storage.MetricSampleStore, alertStore storage.AlertStore, notifier alerting.Notifier, logger zerolog.Logger) *Service {
	var locker storage.AdvisoryLocker
	if l, ok := store.(storage.AdvisoryLocker); ok {
		locker = l
	}

	return &Service{
		scheduler:    sched,
		reports:      reports,
		store:        store,
		alertStore:   alertStore,
		notifier:     notifier,
		logger:       logger.With().Str("component", "service").Logger(),
		channelID:    cfg.YouTube.ChannelID,
		queryMetrics: cfg.Monitor.Metrics,
		tracked:      cfg.Monitor.Tracked,
		threshold:    decimal.NewFromFloat(cfg.Monitor.Threshold),
		windowDays:   cfg.Monitor.WindowDays,
		alertsOn:     cfg.Alerting.Enabled,
		locker:       locker,
		lockKey:      cfg.Scheduler.AdvisoryLockKey,
	}
}

// Run begins the aligned sampling loop.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.scheduler.Run(ctx, s.ProcessBucket)
}

// ProcessBucket executes the monitor pipeline for a single time bucket.
func (s *Service) ProcessBucket(ctx context.Context, bucket time.Time) error {
	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		s.logger.Debug().Time("bucket", bucket).Msg("skip bucket because advisory lock held elsewhere")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	return s.executeBucket(ctx, bucket)
}

func (s *Service) executeBucket(ctx context.Context, bucket time.Time) error {
	table, err := s.reports.FetchMetrics(ctx, fetcher.Query{
		ChannelID:  s.channelID,
		StartDate:  bucket.AddDate(0, 0, -s.windowDays),
		EndDate:    bucket,
		Metrics:    s.queryMetrics,
		Dimensions: fetcher.DimensionDayHour,
		Sort:       "day",
	})
	if err != nil {
		return fmt.Errorf("fetch hourly metrics: %w", err)
	}

	if table.Empty() {
		// zero rows is a valid outcome, not a failure
		s.logger.Info().Time("bucket", bucket).Msg("no rows in monitor window")
		return nil
	}

	rows := sortHourly(table.Rows)
	s.persistSamples(ctx, rows)

	alerts := 0
	for _, metric := range s.tracked {
		series := monitor.Series(rows, metric)
		event := monitor.CheckDeviation(series, metric, s.threshold)
		if event == nil {
			continue
		}
		event.Bucket = bucket
		alerts++
		s.emitAlert(ctx, *event)
	}

	s.logger.Info().Time("bucket", bucket).
		Int("rows", len(rows)).
		Int("alerts", alerts).
		Msg("bucket processed")
	return nil
}

// persistSamples upserts one audit sample per hourly row; persistence
// failures are logged, not fatal to the tick.
func (s *Service) persistSamples(ctx context.Context, rows []fetcher.MetricRow) {
	if s.store == nil {
		return
	}

	for _, row := range rows {
		bucket, ok := rowBucket(row)
		if !ok {
			continue
		}
		sample := storage.MetricSample{
			Bucket:         bucket,
			ChannelID:      s.channelID,
			Views:          monitor.Value(row, monitor.MetricViews),
			Impressions:    monitor.Value(row, monitor.MetricImpressions),
			CTR:            monitor.Value(row, monitor.MetricCTR),
			VPH:            monitor.Value(row, monitor.MetricVPH),
			EngagementRate: monitor.Value(row, monitor.MetricEngagementRate),
			Status:         "complete",
			CreatedAt:      time.Now().UTC(),
		}
		if err := s.store.UpsertMetricSample(ctx, sample); err != nil {
			s.logger.Error().Err(err).Time("sample_bucket", bucket).Msg("failed to upsert sample")
		}
	}
}

func (s *Service) emitAlert(ctx context.Context, event monitor.AlertEvent) {
	if s.alertStore != nil {
		record := storage.AlertRecord{
			SampleTS:     event.Bucket,
			Metric:       event.Metric,
			Latest:       event.Latest,
			Avg7:         event.Avg7,
			DeviationPct: event.Deviation.Mul(decimal.NewFromInt(100)),
			ThresholdPct: event.Threshold.Mul(decimal.NewFromInt(100)),
		}
		if _, err := s.alertStore.InsertAlert(ctx, record); err != nil {
			s.logger.Error().Err(err).Str("metric", event.Metric).Msg("failed to persist alert record")
		}
	}

	if !s.alertsOn || s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, event); err != nil {
		s.logger.Error().Err(err).Str("metric", event.Metric).Msg("failed to dispatch alert")
	}
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.lockKey == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}

// sortHourly orders rows chronologically by (day, hour). The API sorts by
// day only; hour order within a day is not guaranteed.
func sortHourly(rows []fetcher.MetricRow) []fetcher.MetricRow {
	sorted := make([]fetcher.MetricRow, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		di, dj := sorted[i].String("day"), sorted[j].String("day")
		if di != dj {
			return di < dj
		}
		return sorted[i].Int("hour") < sorted[j].Int("hour")
	})
	return sorted
}

// rowBucket derives the sample timestamp from the day and hour dimensions.
func rowBucket(row fetcher.MetricRow) (time.Time, bool) {
	day, err := time.Parse("2006-01-02", row.String("day"))
	if err != nil {
		return time.Time{}, false
	}
	return day.Add(time.Duration(row.Int("hour")) * time.Hour).UTC(), true
}
