package fetcher

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Dimensions supported by the report queries.
const (
	DimensionDay     = "day"
	DimensionVideo   = "video"
	DimensionDayHour = "day,hour"
)

// Query describes one read-only report request.
type Query struct {
	ChannelID  string
	StartDate  time.Time
	EndDate    time.Time
	Metrics    []string
	Dimensions string
	Sort       string
	MaxResults int64
}

// MetricRow maps metric/dimension names to decoded values for one reporting
// bucket. Rows are decoded at the API boundary so downstream code never
// depends on positional column order.
type MetricRow map[string]any

// String returns the named column as a string.
func (r MetricRow) String(name string) string {
	switch v := r[name].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Float returns the named column as a float64, zero when absent or
// non-numeric.
func (r MetricRow) Float(name string) float64 {
	switch v := r[name].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

// Int returns the named column as an int64, zero when absent.
func (r MetricRow) Int(name string) int64 {
	return int64(r.Float(name))
}

// ReportTable is the decoded result of one report query. A non-nil table
// with zero rows is a valid empty result, distinct from the nil table a
// failed call produces.
type ReportTable struct {
	Columns []string
	Rows    []MetricRow
}

// Empty reports whether the query matched no rows.
func (t *ReportTable) Empty() bool {
	return t == nil || len(t.Rows) == 0
}

// Channel identifies a channel accessible to the authenticated account.
type Channel struct {
	ID    string
	Title string
}

// ReportsFetcher issues read-only report queries.
type ReportsFetcher interface {
	FetchMetrics(ctx context.Context, q Query) (*ReportTable, error)
}

// ChannelLister enumerates the channels the credential can access.
type ChannelLister interface {
	ListAccessible(ctx context.Context) ([]Channel, error)
}

// PermissionError distinguishes HTTP 403 responses from other failures and
// carries enough context for a human-actionable message.
type PermissionError struct {
	ChannelID  string
	Accessible []Channel
}

func (e *PermissionError) Error() string {
	msg := fmt.Sprintf(
		"permission denied for channel %s: the authenticated account cannot read its analytics; grant the account access or change youtube.channel_id",
		e.ChannelID,
	)
	if len(e.Accessible) > 0 {
		ids := make([]string, 0, len(e.Accessible))
		for _, ch := range e.Accessible {
			ids = append(ids, ch.ID)
		}
		msg += fmt.Sprintf(" (accessible channels: %s)", strings.Join(ids, ", "))
	}
	return msg
}
