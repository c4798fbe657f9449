package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ErrNotConfigured indicates the storage pool was not initialised.
var ErrNotConfigured = errors.New("storage: pool not configured")

const (
	upsertMetricSampleSQL = `INSERT INTO metric_samples (
        channel_id,
        bucket_ts,
        views,
        impressions,
        ctr,
        vph,
        engagement_rate,
        status,
        error
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9
    )
    ON CONFLICT (channel_id, bucket_ts) DO UPDATE
    SET
        views           = EXCLUDED.views,
        impressions     = EXCLUDED.impressions,
        ctr             = EXCLUDED.ctr,
        vph             = EXCLUDED.vph,
        engagement_rate = EXCLUDED.engagement_rate,
        status          = EXCLUDED.status,
        error           = EXCLUDED.error;`

	listSamplesBetweenSQL = `SELECT
        channel_id,
        bucket_ts,
        views,
        impressions,
        ctr,
        vph,
        engagement_rate,
        status,
        error,
        created_at
    FROM metric_samples
    WHERE channel_id = $1
      AND bucket_ts >= $2
      AND bucket_ts < $3
    ORDER BY bucket_ts;`

	listRecentSamplesSQL = `SELECT
        channel_id,
        bucket_ts,
        views,
        impressions,
        ctr,
        vph,
        engagement_rate,
        status,
        error,
        created_at
    FROM metric_samples
    WHERE channel_id = $1
    ORDER BY bucket_ts DESC
    LIMIT $2;`

	countSamplesSQL = `SELECT COUNT(*) FROM metric_samples WHERE channel_id = $1;`

	insertAlertSQL = `INSERT INTO alerts (
        sample_ts,
        metric,
        latest,
        avg7,
        deviation_pct,
        threshold_pct
    ) VALUES (
        $1,$2,$3,$4,$5,$6
    )
    ON CONFLICT (sample_ts, metric) DO UPDATE
    SET latest        = EXCLUDED.latest,
        avg7          = EXCLUDED.avg7,
        deviation_pct = EXCLUDED.deviation_pct,
        threshold_pct = EXCLUDED.threshold_pct
    RETURNING id, sample_ts, metric, latest, avg7, deviation_pct, threshold_pct, created_at;`

	listRecentAlertsSQL = `SELECT
        id,
        sample_ts,
        metric,
        latest,
        avg7,
        deviation_pct,
        threshold_pct,
        created_at
    FROM alerts
    ORDER BY created_at DESC
    LIMIT $1;`

	deleteAlertsBeforeSQL = `DELETE FROM alerts WHERE created_at < $1;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// MetricSampleStore defines operations for hourly sample persistence.
type MetricSampleStore interface {
	UpsertMetricSample(ctx context.Context, sample MetricSample) error
	ListSamplesBetween(ctx context.Context, channelID string, from, to time.Time) ([]MetricSample, error)
	ListRecentSamples(ctx context.Context, channelID string, limit int) ([]MetricSample, error)
	CountSamples(ctx context.Context, channelID string) (int64, error)
}

// AlertStore defines operations for alert auditing.
type AlertStore interface {
	InsertAlert(ctx context.Context, alert AlertRecord) (AlertRecord, error)
	ListRecentAlerts(ctx context.Context, limit int) ([]AlertRecord, error)
	DeleteAlertsBefore(ctx context.Context, olderThan time.Time) error
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to metric samples and alerts.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a
// release func. Used so only one watcher instance processes a tick.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// best effort; releasing the connection drops the lock anyway
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// UpsertMetricSample persists or updates an hourly sample.
func (s *Store) UpsertMetricSample(ctx context.Context, sample MetricSample) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	var errMsg any
	if sample.Error != nil {
		errMsg = *sample.Error
	}

	_, execErr := pool.Exec(ctx, upsertMetricSampleSQL,
		sample.ChannelID,
		sample.Bucket,
		sample.Views.String(),
		sample.Impressions.String(),
		sample.CTR.String(),
		sample.VPH.String(),
		sample.EngagementRate.String(),
		sample.Status,
		errMsg,
	)
	if execErr != nil {
		return fmt.Errorf("upsert metric sample: %w", execErr)
	}
	return nil
}

// ListSamplesBetween lists samples within a time window.
func (s *Store) ListSamplesBetween(ctx context.Context, channelID string, from, to time.Time) ([]MetricSample, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listSamplesBetweenSQL, channelID, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list samples between: %w", queryErr)
	}
	defer rows.Close()

	return collectSamples(rows, 0)
}

// ListRecentSamples lists the most recent samples ordered by descending bucket.
func (s *Store) ListRecentSamples(ctx context.Context, channelID string, limit int) ([]MetricSample, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentSamplesSQL, channelID, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent samples: %w", queryErr)
	}
	defer rows.Close()

	return collectSamples(rows, limit)
}

// CountSamples counts stored samples for a channel.
func (s *Store) CountSamples(ctx context.Context, channelID string) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countSamplesSQL, channelID).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count samples: %w", scanErr)
	}
	return count, nil
}

// InsertAlert persists an alert emission.
func (s *Store) InsertAlert(ctx context.Context, alert AlertRecord) (AlertRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return AlertRecord{}, err
	}

	row := pool.QueryRow(ctx, insertAlertSQL,
		alert.SampleTS,
		alert.Metric,
		alert.Latest.String(),
		alert.Avg7.String(),
		alert.DeviationPct.String(),
		alert.ThresholdPct.String(),
	)

	rec, scanErr := scanAlert(row)
	if scanErr != nil {
		return AlertRecord{}, fmt.Errorf("insert alert: %w", scanErr)
	}
	return rec, nil
}

// ListRecentAlerts lists most recent alerts.
func (s *Store) ListRecentAlerts(ctx context.Context, limit int) ([]AlertRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentAlertsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent alerts: %w", queryErr)
	}
	defer rows.Close()

	alerts := make([]AlertRecord, 0, limit)
	for rows.Next() {
		rec, scanErr := scanAlert(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		alerts = append(alerts, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return alerts, nil
}

// DeleteAlertsBefore deletes historical alerts.
func (s *Store) DeleteAlertsBefore(ctx context.Context, olderThan time.Time) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, deleteAlertsBeforeSQL, olderThan); execErr != nil {
		return fmt.Errorf("delete alerts before: %w", execErr)
	}
	return nil
}

func collectSamples(rows pgx.Rows, capacity int) ([]MetricSample, error) {
	samples := make([]MetricSample, 0, capacity)
	for rows.Next() {
		sample, scanErr := scanMetricSample(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		samples = append(samples, sample)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return samples, nil
}

func scanMetricSample(rows pgx.Rows) (MetricSample, error) {
	var (
		channelID      string
		bucket         time.Time
		viewsStr       string
		impressionsStr string
		ctrStr         string
		vphStr         string
		engagementStr  string
		status         string
		errMsg         sql.NullString
		createdAt      time.Time
	)

	if err := rows.Scan(
		&channelID,
		&bucket,
		&viewsStr,
		&impressionsStr,
		&ctrStr,
		&vphStr,
		&engagementStr,
		&status,
		&errMsg,
		&createdAt,
	); err != nil {
		return MetricSample{}, err
	}

	sample := MetricSample{
		ChannelID: channelID,
		Bucket:    bucket,
		Status:    status,
		CreatedAt: createdAt,
	}

	for _, field := range []struct {
		dst *decimal.Decimal
		src string
		tag string
	}{
		{&sample.Views, viewsStr, "views"},
		{&sample.Impressions, impressionsStr, "impressions"},
		{&sample.CTR, ctrStr, "ctr"},
		{&sample.VPH, vphStr, "vph"},
		{&sample.EngagementRate, engagementStr, "engagement_rate"},
	} {
		value, err := decimal.NewFromString(field.src)
		if err != nil {
			return MetricSample{}, fmt.Errorf("parse %s: %w", field.tag, err)
		}
		*field.dst = value
	}

	if errMsg.Valid {
		msg := errMsg.String
		sample.Error = &msg
	}

	return sample, nil
}

func scanAlert(row pgx.Row) (AlertRecord, error) {
	var (
		rec          AlertRecord
		latestStr    string
		avg7Str      string
		deviationStr string
		thresholdStr string
	)

	if err := row.Scan(
		&rec.ID,
		&rec.SampleTS,
		&rec.Metric,
		&latestStr,
		&avg7Str,
		&deviationStr,
		&thresholdStr,
		&rec.CreatedAt,
	); err != nil {
		return AlertRecord{}, err
	}

	for _, field := range []struct {
		dst *decimal.Decimal
		src string
		tag string
	}{
		{&rec.Latest, latestStr, "latest"},
		{&rec.Avg7, avg7Str, "avg7"},
		{&rec.DeviationPct, deviationStr, "deviation_pct"},
		{&rec.ThresholdPct, thresholdStr, "threshold_pct"},
	} {
		value, err := decimal.NewFromString(field.src)
		if err != nil {
			return AlertRecord{}, fmt.Errorf("parse %s: %w", field.tag, err)
		}
		*field.dst = value
	}

	return rec, nil
}
