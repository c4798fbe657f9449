package fetcher

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	youtubeanalytics "google.golang.org/api/youtubeanalytics/v2"
)

const dateLayout = "2006-01-02"

// AnalyticsOptions parameterise the reporting fetcher.
type AnalyticsOptions struct {
	ClientOptions []option.ClientOption
	Timeout       time.Duration
}

// Analytics fetches report tables from the YouTube Analytics API.
type Analytics struct {
	opts   AnalyticsOptions
	logger zerolog.Logger

	mu  sync.Mutex
	svc *youtubeanalytics.Service
}

// NewAnalytics constructs a reporting fetcher.
func NewAnalytics(opts AnalyticsOptions, logger zerolog.Logger) *Analytics {
	return &Analytics{
		opts:   opts,
		logger: logger.With().Str("component", "analytics_fetcher").Logger(),
	}
}

// FetchMetrics runs one report query. An absent rows field yields a non-nil
// empty table; a failed call yields a nil table and an error, with HTTP 403
// mapped to a PermissionError for the queried channel.
func (a *Analytics) FetchMetrics(ctx context.Context, q Query) (*ReportTable, error) {
	if q.ChannelID == "" {
		return nil, errors.New("channel id required")
	}
	if len(q.Metrics) == 0 {
		return nil, errors.New("at least one metric required")
	}

	timeout := a.opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	var cancel context.CancelFunc
	ctx, cancel = context.WithTimeout(ctx, timeout)
	defer cancel()

	svc, err := a.getService(ctx)
	if err != nil {
		return nil, err
	}

	call := svc.Reports.Query().
		Ids("channel==" + q.ChannelID).
		StartDate(q.StartDate.Format(dateLayout)).
		EndDate(q.EndDate.Format(dateLayout)).
		Metrics(strings.Join(q.Metrics, ","))
	if q.Dimensions != "" {
		call = call.Dimensions(q.Dimensions)
	}
	if q.Sort != "" {
		call = call.Sort(q.Sort)
	}
	if q.MaxResults > 0 {
		call = call.MaxResults(q.MaxResults)
	}

	resp, err := call.Context(ctx).Do()
	if err != nil {
		var gErr *googleapi.Error
		if errors.As(err, &gErr) && gErr.Code == 403 {
			return nil, &PermissionError{ChannelID: q.ChannelID}
		}
		return nil, err
	}

	table := decodeResponse(resp)
	a.logger.Debug().
		Str("channel", q.ChannelID).
		Str("dimensions", q.Dimensions).
		Int("rows", len(table.Rows)).
		Msg("report fetched")
	return table, nil
}

// decodeResponse converts the API's ordered header list plus positional row
// values into named MetricRow maps.
func decodeResponse(resp *youtubeanalytics.QueryResponse) *ReportTable {
	columns := make([]string, 0, len(resp.ColumnHeaders))
	for _, header := range resp.ColumnHeaders {
		columns = append(columns, header.Name)
	}

	table := &ReportTable{Columns: columns, Rows: make([]MetricRow, 0, len(resp.Rows))}
	for _, raw := range resp.Rows {
		row := make(MetricRow, len(columns))
		for i, name := range columns {
			if i < len(raw) {
				row[name] = raw[i]
			}
		}
		table.Rows = append(table.Rows, row)
	}
	return table
}

func (a *Analytics) getService(ctx context.Context) (*youtubeanalytics.Service, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.svc != nil {
		return a.svc, nil
	}

	svc, err := youtubeanalytics.NewService(ctx, a.opts.ClientOptions...)
	if err != nil {
		return nil, err
	}
	a.svc = svc
	return svc, nil
}

var _ ReportsFetcher = (*Analytics)(nil)
