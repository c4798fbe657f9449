package sink

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/api/option"
	sheets "google.golang.org/api/sheets/v4"

	"channel-metrics-alerts/internal/config"
	"channel-metrics-alerts/internal/enricher"
	"channel-metrics-alerts/internal/fetcher"
)

// Table is the tabular payload handed to the writer.
type Table struct {
	Header []string
	Rows   [][]any
}

// Writer persists a table into the external sink.
type Writer interface {
	Write(ctx context.Context, table Table) error
}

// Options parameterise the sheet writer.
type Options struct {
	SpreadsheetID string
	SheetName     string
	Mode          string
	ClientOptions []option.ClientOption
	Timeout       time.Duration
}

// SheetWriter writes tables into a Google Sheet using one of two policies:
// append (header only when the sheet is empty, then data rows) or overwrite
// (clear, then header + rows from the origin cell). A failure mid-write
// aborts and reports; there is no partial-state reconciliation.
type SheetWriter struct {
	opts   Options
	logger zerolog.Logger

	mu  sync.Mutex
	svc *sheets.Service
}

// NewSheetWriter constructs a sheet writer.
func NewSheetWriter(opts Options, logger zerolog.Logger) *SheetWriter {
	if opts.SheetName == "" {
		opts.SheetName = "Sheet1"
	}
	return &SheetWriter{
		opts:   opts,
		logger: logger.With().Str("component", "sheet_writer").Logger(),
	}
}

// Write applies the configured policy to the target sheet.
func (w *SheetWriter) Write(ctx context.Context, table Table) error {
	if w.opts.SpreadsheetID == "" {
		return errors.New("spreadsheet id required")
	}
	if len(table.Header) == 0 {
		return errors.New("table header required")
	}

	timeout := w.opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	var cancel context.CancelFunc
	ctx, cancel = context.WithTimeout(ctx, timeout)
	defer cancel()

	svc, err := w.getService(ctx)
	if err != nil {
		return err
	}

	switch w.opts.Mode {
	case config.SinkModeOverwrite:
		return w.overwrite(ctx, svc, table)
	case config.SinkModeAppend, "":
		return w.append(ctx, svc, table)
	default:
		return fmt.Errorf("unknown sink mode %q", w.opts.Mode)
	}
}

func (w *SheetWriter) append(ctx context.Context, svc *sheets.Service, table Table) error {
	existing, err := svc.Spreadsheets.Values.
		Get(w.opts.SpreadsheetID, w.opts.SheetName).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("read sheet %s: %w", w.opts.SheetName, err)
	}

	values := make([][]any, 0, len(table.Rows)+1)
	if len(existing.Values) == 0 {
		values = append(values, headerRow(table.Header))
	}
	values = append(values, table.Rows...)

	_, err = svc.Spreadsheets.Values.
		Append(w.opts.SpreadsheetID, w.opts.SheetName, &sheets.ValueRange{Values: values}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("append to sheet %s: %w", w.opts.SheetName, err)
	}

	w.logger.Info().Int("rows", len(table.Rows)).Str("mode", "append").Msg("sheet updated")
	return nil
}

func (w *SheetWriter) overwrite(ctx context.Context, svc *sheets.Service, table Table) error {
	_, err := svc.Spreadsheets.Values.
		Clear(w.opts.SpreadsheetID, w.opts.SheetName, &sheets.ClearValuesRequest{}).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("clear sheet %s: %w", w.opts.SheetName, err)
	}

	values := make([][]any, 0, len(table.Rows)+1)
	values = append(values, headerRow(table.Header))
	values = append(values, table.Rows...)

	_, err = svc.Spreadsheets.Values.
		Update(w.opts.SpreadsheetID, w.opts.SheetName+"!A1", &sheets.ValueRange{Values: values}).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("rewrite sheet %s: %w", w.opts.SheetName, err)
	}

	w.logger.Info().Int("rows", len(table.Rows)).Str("mode", "overwrite").Msg("sheet updated")
	return nil
}

func headerRow(header []string) []any {
	row := make([]any, len(header))
	for i, name := range header {
		row[i] = name
	}
	return row
}

func (w *SheetWriter) getService(ctx context.Context) (*sheets.Service, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.svc != nil {
		return w.svc, nil
	}

	svc, err := sheets.NewService(ctx, w.opts.ClientOptions...)
	if err != nil {
		return nil, err
	}
	w.svc = svc
	return svc, nil
}

// FromReport flattens a report table into sink rows, preserving the
// API-declared column order.
func FromReport(table *fetcher.ReportTable) Table {
	out := Table{Header: table.Columns}
	for _, row := range table.Rows {
		values := make([]any, len(table.Columns))
		for i, name := range table.Columns {
			values[i] = row[name]
		}
		out.Rows = append(out.Rows, values)
	}
	return out
}

// FromEnriched flattens enriched rows: video id, title, thumbnail, then the
// metric columns in report order.
func FromEnriched(rows []enricher.EnrichedRow, columns []string) Table {
	header := append([]string{"video", "title", "thumbnail"}, metricColumns(columns)...)
	out := Table{Header: header}
	for _, row := range rows {
		values := make([]any, 0, len(header))
		values = append(values, row.VideoID, row.Title, row.Thumbnail)
		for _, name := range metricColumns(columns) {
			values = append(values, row.Metrics[name])
		}
		out.Rows = append(out.Rows, values)
	}
	return out
}

func metricColumns(columns []string) []string {
	out := make([]string, 0, len(columns))
	for _, name := range columns {
		if name == fetcher.DimensionVideo {
			continue
		}
		out = append(out, name)
	}
	return out
}

var _ Writer = (*SheetWriter)(nil)
