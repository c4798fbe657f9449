package enricher

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/api/option"
	youtube "google.golang.org/api/youtube/v3"

	"channel-metrics-alerts/internal/fetcher"
)

// maxBatchSize is the Data API limit on ids per Videos.List call.
const maxBatchSize = 50

// EnrichedRow is a metric row joined with the video's display metadata.
type EnrichedRow struct {
	VideoID   string
	Title     string
	Thumbnail string
	Metrics   fetcher.MetricRow
}

// videoMeta holds the fields extracted from one metadata lookup.
type videoMeta struct {
	title     string
	thumbnail string
}

// Options parameterise the enricher.
type Options struct {
	ClientOptions []option.ClientOption
	Timeout       time.Duration
}

// Enricher joins video titles and thumbnails onto per-video metric tables.
type Enricher struct {
	opts   Options
	logger zerolog.Logger

	mu  sync.Mutex
	svc *youtube.Service
}

// New constructs an enricher.
func New(opts Options, logger zerolog.Logger) *Enricher {
	return &Enricher{
		opts:   opts,
		logger: logger.With().Str("component", "enricher").Logger(),
	}
}

// Enrich looks up metadata for every video id in the table, at most 50 ids
// per call, and inner-joins it onto the rows. If no metadata resolves at all
// the table passes through unenriched rather than failing.
func (e *Enricher) Enrich(ctx context.Context, table *fetcher.ReportTable) ([]EnrichedRow, error) {
	if table.Empty() {
		return nil, nil
	}

	ids := make([]string, 0, len(table.Rows))
	for _, row := range table.Rows {
		if id := row.String(fetcher.DimensionVideo); id != "" {
			ids = append(ids, id)
		}
	}

	meta, err := e.lookup(ctx, ids)
	if err != nil {
		return nil, err
	}

	if len(meta) == 0 {
		rows := make([]EnrichedRow, 0, len(table.Rows))
		for _, row := range table.Rows {
			rows = append(rows, EnrichedRow{VideoID: row.String(fetcher.DimensionVideo), Metrics: row})
		}
		return rows, nil
	}

	rows := make([]EnrichedRow, 0, len(table.Rows))
	for _, row := range table.Rows {
		id := row.String(fetcher.DimensionVideo)
		m, ok := meta[id]
		if !ok {
			// inner join: metric rows without metadata are dropped
			continue
		}
		rows = append(rows, EnrichedRow{
			VideoID:   id,
			Title:     m.title,
			Thumbnail: m.thumbnail,
			Metrics:   row,
		})
	}

	e.logger.Debug().Int("input", len(table.Rows)).Int("joined", len(rows)).Msg("metadata joined")
	return rows, nil
}

// lookup issues one sequential Videos.List call per chunk of at most 50 ids
// and accumulates metadata keyed by video id.
func (e *Enricher) lookup(ctx context.Context, ids []string) (map[string]videoMeta, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	timeout := e.opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	var cancel context.CancelFunc
	ctx, cancel = context.WithTimeout(ctx, timeout)
	defer cancel()

	svc, err := e.getService(ctx)
	if err != nil {
		return nil, err
	}

	meta := make(map[string]videoMeta, len(ids))
	for start := 0; start < len(ids); start += maxBatchSize {
		end := start + maxBatchSize
		if end > len(ids) {
			end = len(ids)
		}

		resp, err := svc.Videos.List([]string{"snippet"}).
			Id(ids[start:end]...).
			Context(ctx).
			Do()
		if err != nil {
			return nil, err
		}

		for _, item := range resp.Items {
			if item.Snippet == nil {
				continue
			}
			m := videoMeta{title: item.Snippet.Title}
			if item.Snippet.Thumbnails != nil && item.Snippet.Thumbnails.Default != nil {
				m.thumbnail = item.Snippet.Thumbnails.Default.Url
			}
			meta[item.Id] = m
		}
	}

	return meta, nil
}

func (e *Enricher) getService(ctx context.Context) (*youtube.Service, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.svc != nil {
		return e.svc, nil
	}

	svc, err := youtube.NewService(ctx, e.opts.ClientOptions...)
	if err != nil {
		return nil, err
	}
	e.svc = svc
	return svc, nil
}
