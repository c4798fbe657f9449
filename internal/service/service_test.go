package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"channel-metrics-alerts/internal/config"
	"channel-metrics-alerts/internal/fetcher"
	"channel-metrics-alerts/internal/monitor"
	"channel-metrics-alerts/internal/storage"
)

type staticFetcher struct {
	table *fetcher.ReportTable
	err   error

	lastQuery fetcher.Query
}

func (f *staticFetcher) FetchMetrics(_ context.Context, q fetcher.Query) (*fetcher.ReportTable, error) {
	f.lastQuery = q
	if f.err != nil {
		return nil, f.err
	}
	return f.table, nil
}

type captureNotifier struct {
	events []monitor.AlertEvent
}

func (n *captureNotifier) Notify(_ context.Context, event monitor.AlertEvent) error {
	n.events = append(n.events, event)
	return nil
}

type memorySampleStore struct {
	samples []storage.MetricSample
}

func (m *memorySampleStore) UpsertMetricSample(_ context.Context, sample storage.MetricSample) error {
	m.samples = append(m.samples, sample)
	return nil
}

func (m *memorySampleStore) ListSamplesBetween(context.Context, string, time.Time, time.Time) ([]storage.MetricSample, error) {
	return m.samples, nil
}

func (m *memorySampleStore) ListRecentSamples(context.Context, string, int) ([]storage.MetricSample, error) {
	return m.samples, nil
}

func (m *memorySampleStore) CountSamples(context.Context, string) (int64, error) {
	return int64(len(m.samples)), nil
}

type memoryAlertStore struct {
	records []storage.AlertRecord
}

func (m *memoryAlertStore) InsertAlert(_ context.Context, alert storage.AlertRecord) (storage.AlertRecord, error) {
	m.records = append(m.records, alert)
	return alert, nil
}

func (m *memoryAlertStore) ListRecentAlerts(context.Context, int) ([]storage.AlertRecord, error) {
	return m.records, nil
}

func (m *memoryAlertStore) DeleteAlertsBefore(context.Context, time.Time) error {
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		YouTube: config.YouTubeConfig{ChannelID: "UC123"},
		Monitor: config.MonitorConfig{
			Metrics:    []string{"views", "estimatedMinutesWatched", "averageViewDuration"},
			Tracked:    []string{monitor.MetricViews},
			Threshold:  0.5,
			WindowDays: 2,
		},
		Alerting: config.AlertingConfig{Enabled: true},
	}
}

// hourlyTable builds one day of hourly rows with the given view counts.
func hourlyTable(views ...float64) *fetcher.ReportTable {
	table := &fetcher.ReportTable{Columns: []string{"day", "hour", "views"}}
	for i, v := range views {
		table.Rows = append(table.Rows, fetcher.MetricRow{
			"day":   "2024-01-01",
			"hour":  float64(i),
			"views": v,
		})
	}
	return table
}

func TestProcessBucketFiresAlert(t *testing.T) {
	reports := &staticFetcher{table: hourlyTable(10, 10, 10, 10, 10, 10, 10, 20)}
	notifier := &captureNotifier{}

	svc := New(testConfig(), nil, reports, nil, nil, notifier, zerolog.Nop())
	bucket := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	if err := svc.ProcessBucket(context.Background(), bucket); err != nil {
		t.Fatalf("process bucket: %v", err)
	}

	if len(notifier.events) != 1 {
		t.Fatalf("100%% deviation over a 50%% threshold should fire once, got %d", len(notifier.events))
	}

	event := notifier.events[0]
	if event.Metric != monitor.MetricViews {
		t.Fatalf("wrong metric: %s", event.Metric)
	}
	if !event.Bucket.Equal(bucket) {
		t.Fatalf("event should carry the processed bucket, got %s", event.Bucket)
	}
	if reports.lastQuery.Dimensions != fetcher.DimensionDayHour {
		t.Fatalf("monitor query must use day,hour dimensions, got %q", reports.lastQuery.Dimensions)
	}
}

func TestProcessBucketSortsUnorderedHours(t *testing.T) {
	// the 20-view spike is the chronologically latest hour but arrives first
	table := &fetcher.ReportTable{Columns: []string{"day", "hour", "views"}}
	values := []float64{20, 10, 10, 10, 10, 10, 10, 10}
	hours := []float64{7, 0, 1, 2, 3, 4, 5, 6}
	for i := range values {
		table.Rows = append(table.Rows, fetcher.MetricRow{
			"day":   "2024-01-01",
			"hour":  hours[i],
			"views": values[i],
		})
	}

	notifier := &captureNotifier{}
	svc := New(testConfig(), nil, &staticFetcher{table: table}, nil, nil, notifier, zerolog.Nop())
	if err := svc.ProcessBucket(context.Background(), time.Now().UTC()); err != nil {
		t.Fatalf("process bucket: %v", err)
	}

	if len(notifier.events) != 1 {
		t.Fatalf("spike in the latest hour should alert regardless of API row order, got %d", len(notifier.events))
	}
	if notifier.events[0].Latest.String() != "20" {
		t.Fatalf("latest must be the chronologically last value, got %s", notifier.events[0].Latest)
	}
}

func TestProcessBucketEmptyWindow(t *testing.T) {
	notifier := &captureNotifier{}
	reports := &staticFetcher{table: &fetcher.ReportTable{Columns: []string{"day", "hour", "views"}}}

	svc := New(testConfig(), nil, reports, nil, nil, notifier, zerolog.Nop())
	if err := svc.ProcessBucket(context.Background(), time.Now().UTC()); err != nil {
		t.Fatalf("empty window is a valid outcome: %v", err)
	}
	if len(notifier.events) != 0 {
		t.Fatalf("empty window must not alert, got %d events", len(notifier.events))
	}
}

func TestProcessBucketFetchFailure(t *testing.T) {
	reports := &staticFetcher{err: errors.New("quota exceeded")}
	svc := New(testConfig(), nil, reports, nil, nil, &captureNotifier{}, zerolog.Nop())

	if err := svc.ProcessBucket(context.Background(), time.Now().UTC()); err == nil {
		t.Fatal("fetch failure must surface from the tick")
	}
}

func TestProcessBucketPersistsSamplesAndAlerts(t *testing.T) {
	store := &memorySampleStore{}
	alerts := &memoryAlertStore{}
	reports := &staticFetcher{table: hourlyTable(10, 10, 10, 10, 10, 10, 10, 20)}

	svc := New(testConfig(), nil, reports, store, alerts, &captureNotifier{}, zerolog.Nop())
	if err := svc.ProcessBucket(context.Background(), time.Now().UTC()); err != nil {
		t.Fatalf("process bucket: %v", err)
	}

	if len(store.samples) != 8 {
		t.Fatalf("every hourly row should be upserted, got %d", len(store.samples))
	}
	if store.samples[0].ChannelID != "UC123" {
		t.Fatalf("samples should be scoped to the channel, got %q", store.samples[0].ChannelID)
	}
	wantBucket := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if !store.samples[0].Bucket.Equal(wantBucket) {
		t.Fatalf("sample bucket should come from day+hour, got %s", store.samples[0].Bucket)
	}

	if len(alerts.records) != 1 {
		t.Fatalf("the fired alert should be audited, got %d", len(alerts.records))
	}
	if alerts.records[0].DeviationPct.StringFixed(2) != "100.00" {
		t.Fatalf("audited deviation should be a percentage, got %s", alerts.records[0].DeviationPct)
	}
}

func TestProcessBucketAlertingDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Alerting.Enabled = false

	notifier := &captureNotifier{}
	reports := &staticFetcher{table: hourlyTable(10, 10, 10, 10, 10, 10, 10, 20)}

	svc := New(cfg, nil, reports, nil, nil, notifier, zerolog.Nop())
	if err := svc.ProcessBucket(context.Background(), time.Now().UTC()); err != nil {
		t.Fatalf("process bucket: %v", err)
	}
	if len(notifier.events) != 0 {
		t.Fatalf("disabled alerting must not notify, got %d events", len(notifier.events))
	}
}

func TestPersistFailureDoesNotAbortTick(t *testing.T) {
	store := &failingSampleStore{}
	notifier := &captureNotifier{}
	reports := &staticFetcher{table: hourlyTable(10, 10, 10, 10, 10, 10, 10, 20)}

	svc := New(testConfig(), nil, reports, store, nil, notifier, zerolog.Nop())
	if err := svc.ProcessBucket(context.Background(), time.Now().UTC()); err != nil {
		t.Fatalf("persistence failure must not fail the tick: %v", err)
	}
	if len(notifier.events) != 1 {
		t.Fatalf("deviation check should still run, got %d events", len(notifier.events))
	}
}

type failingSampleStore struct{}

func (failingSampleStore) UpsertMetricSample(context.Context, storage.MetricSample) error {
	return fmt.Errorf("connection refused")
}

func (failingSampleStore) ListSamplesBetween(context.Context, string, time.Time, time.Time) ([]storage.MetricSample, error) {
	return nil, nil
}

func (failingSampleStore) ListRecentSamples(context.Context, string, int) ([]storage.MetricSample, error) {
	return nil, nil
}

func (failingSampleStore) CountSamples(context.Context, string) (int64, error) {
	return 0, nil
}
