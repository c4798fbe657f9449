package sink

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"channel-metrics-alerts/internal/config"
	"channel-metrics-alerts/internal/enricher"
	"channel-metrics-alerts/internal/fetcher"
)

// fakeSheet is a minimal stateful stand-in for the Sheets values API.
type fakeSheet struct {
	mu     sync.Mutex
	values [][]any
}

func (f *fakeSheet) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		switch {
		case strings.Contains(r.URL.Path, ":append"):
			var body struct {
				Values [][]any `json:"values"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			f.values = append(f.values, body.Values...)
			_ = json.NewEncoder(w).Encode(map[string]any{})
		case strings.Contains(r.URL.Path, ":clear"):
			f.values = nil
			_ = json.NewEncoder(w).Encode(map[string]any{})
		case r.Method == http.MethodPut:
			var body struct {
				Values [][]any `json:"values"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			f.values = body.Values
			_ = json.NewEncoder(w).Encode(map[string]any{})
		case r.Method == http.MethodGet:
			_ = json.NewEncoder(w).Encode(map[string]any{"values": f.values})
		default:
			http.Error(w, "unexpected call", http.StatusBadRequest)
		}
	})
}

func newTestWriter(url, mode string) *SheetWriter {
	return NewSheetWriter(Options{
		SpreadsheetID: "sheet-1",
		SheetName:     "Sheet1",
		Mode:          mode,
		ClientOptions: []option.ClientOption{
			option.WithEndpoint(url),
			option.WithoutAuthentication(),
		},
		Timeout: time.Second,
	}, zerolog.Nop())
}

func sampleTable() Table {
	return Table{
		Header: []string{"day", "views"},
		Rows: [][]any{
			{"2024-01-01", 10},
			{"2024-01-02", 20},
		},
	}
}

func TestAppendWritesHeaderOnlyOnce(t *testing.T) {
	fake := &fakeSheet{}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	w := newTestWriter(srv.URL, config.SinkModeAppend)

	if err := w.Write(context.Background(), sampleTable()); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := w.Write(context.Background(), sampleTable()); err != nil {
		t.Fatalf("second write: %v", err)
	}

	// header + 2 rows, then 2 more rows without a second header
	if len(fake.values) != 5 {
		t.Fatalf("expected 5 rows after two appends, got %d: %v", len(fake.values), fake.values)
	}
	if fake.values[0][0] != "day" {
		t.Fatalf("first row should be the header, got %v", fake.values[0])
	}
	for _, row := range fake.values[1:] {
		if row[0] == "day" {
			t.Fatalf("header must not repeat: %v", fake.values)
		}
	}
}

func TestOverwriteClearsBeforeWriting(t *testing.T) {
	fake := &fakeSheet{values: [][]any{{"stale"}, {"stale"}, {"stale"}}}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	w := newTestWriter(srv.URL, config.SinkModeOverwrite)
	if err := w.Write(context.Background(), sampleTable()); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	if len(fake.values) != 3 {
		t.Fatalf("overwrite should leave header + 2 rows, got %v", fake.values)
	}
	if fake.values[0][0] != "day" {
		t.Fatalf("overwrite should start with the header, got %v", fake.values[0])
	}
}

func TestWriteRejectsUnknownMode(t *testing.T) {
	w := newTestWriter("http://localhost", "upsert")
	if err := w.Write(context.Background(), sampleTable()); err == nil {
		t.Fatal("unknown mode must be rejected")
	}
}

func TestWriteFailurePropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	w := newTestWriter(srv.URL, config.SinkModeAppend)
	if err := w.Write(context.Background(), sampleTable()); err == nil {
		t.Fatal("sheet failure must abort the write")
	}
}

func TestFromReportPreservesColumnOrder(t *testing.T) {
	table := FromReport(&fetcher.ReportTable{
		Columns: []string{"day", "views", "likes"},
		Rows: []fetcher.MetricRow{
			{"views": float64(5), "day": "2024-01-01", "likes": float64(1)},
		},
	})

	if len(table.Header) != 3 || table.Header[0] != "day" {
		t.Fatalf("header should follow report column order, got %v", table.Header)
	}
	if table.Rows[0][1] != float64(5) {
		t.Fatalf("row values should align with columns, got %v", table.Rows[0])
	}
}

func TestFromEnrichedLayout(t *testing.T) {
	rows := []enricher.EnrichedRow{
		{
			VideoID:   "vid-1",
			Title:     "a title",
			Thumbnail: "https://img/vid-1",
			Metrics:   fetcher.MetricRow{"video": "vid-1", "views": float64(9)},
		},
	}

	table := FromEnriched(rows, []string{"video", "views"})
	wantHeader := []string{"video", "title", "thumbnail", "views"}
	for i, name := range wantHeader {
		if table.Header[i] != name {
			t.Fatalf("header mismatch at %d: want %v, got %v", i, wantHeader, table.Header)
		}
	}
	if table.Rows[0][3] != float64(9) {
		t.Fatalf("metric columns should follow the metadata columns, got %v", table.Rows[0])
	}
}
