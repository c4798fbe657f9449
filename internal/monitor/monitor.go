package monitor

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"channel-metrics-alerts/internal/fetcher"
)

// Tracked metric names understood by the deviation monitor.
const (
	MetricViews          = "views"
	MetricImpressions    = "impressions"
	MetricCTR            = "ctr"
	MetricVPH            = "vph"
	MetricEngagementRate = "engagement_rate"
)

// windowSize is the minimum sample count: the latest value plus the seven
// trailing samples its average is taken over.
const windowSize = 8

var (
	decSeven   = decimal.NewFromInt(7)
	decHundred = decimal.NewFromInt(100)
)

// AlertEvent captures one tracked metric exceeding its deviation threshold.
type AlertEvent struct {
	Metric    string
	Latest    decimal.Decimal
	Avg7      decimal.Decimal
	Deviation decimal.Decimal // fraction, not percent
	Threshold decimal.Decimal
	Bucket    time.Time
}

// Message renders the alert as the webhook text payload.
func (e *AlertEvent) Message() string {
	return fmt.Sprintf(
		"[ytwatcher] %s deviated %s%% from its trailing 7-sample average (latest %s, avg7 %s, threshold %s%%)",
		e.Metric,
		e.Deviation.Mul(decHundred).StringFixed(2),
		e.Latest.String(),
		e.Avg7.StringFixed(2),
		e.Threshold.Mul(decHundred).StringFixed(2),
	)
}

// CheckDeviation compares the latest sample against the mean of the seven
// samples immediately preceding it. It returns nil when fewer than eight
// samples are supplied, when the trailing average is exactly zero, or when
// the relative deviation does not strictly exceed the threshold.
func CheckDeviation(samples []decimal.Decimal, metric string, threshold decimal.Decimal) *AlertEvent {
	if len(samples) < windowSize {
		return nil
	}

	latest := samples[len(samples)-1]
	trailing := samples[len(samples)-windowSize : len(samples)-1]

	sum := decimal.Zero
	for _, s := range trailing {
		sum = sum.Add(s)
	}
	avg7 := sum.Div(decSeven)
	if avg7.IsZero() {
		return nil
	}

	deviation := latest.Sub(avg7).Abs().Div(avg7)
	if !deviation.GreaterThan(threshold) {
		return nil
	}

	return &AlertEvent{
		Metric:    metric,
		Latest:    latest,
		Avg7:      avg7,
		Deviation: deviation,
		Threshold: threshold,
	}
}

// Series extracts one tracked metric series from hourly report rows, in row
// order. Derived metrics are computed per bucket; everything else reads the
// column the tracked name maps to.
func Series(rows []fetcher.MetricRow, metric string) []decimal.Decimal {
	out := make([]decimal.Decimal, 0, len(rows))
	for _, row := range rows {
		out = append(out, Value(row, metric))
	}
	return out
}

// Value computes one tracked metric for a single hourly bucket.
func Value(row fetcher.MetricRow, metric string) decimal.Decimal {
	switch metric {
	case MetricVPH:
		// hourly buckets make the raw view count a per-hour figure already
		return decimal.NewFromFloat(row.Float("views"))
	case MetricEngagementRate:
		return engagementRate(row)
	default:
		return decimal.NewFromFloat(row.Float(columnFor(metric)))
	}
}

// engagementRate is minutesWatched / (views * averageViewDuration), zero
// when either factor of the denominator is zero.
func engagementRate(row fetcher.MetricRow) decimal.Decimal {
	views := decimal.NewFromFloat(row.Float("views"))
	avd := decimal.NewFromFloat(row.Float("averageViewDuration"))
	minutes := decimal.NewFromFloat(row.Float("estimatedMinutesWatched"))

	denom := views.Mul(avd)
	if denom.IsZero() {
		return decimal.Zero
	}
	return minutes.Div(denom)
}

func columnFor(metric string) string {
	switch metric {
	case MetricCTR:
		return "annotationClickThroughRate"
	default:
		return metric
	}
}
