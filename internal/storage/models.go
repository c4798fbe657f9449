package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// MetricSample is one persisted hourly observation of the tracked metrics.
type MetricSample struct {
	Bucket         time.Time
	ChannelID      string
	Views          decimal.Decimal
	Impressions    decimal.Decimal
	CTR            decimal.Decimal
	VPH            decimal.Decimal
	EngagementRate decimal.Decimal
	Status         string
	Error          *string
	CreatedAt      time.Time
}

// AlertRecord captures an emitted deviation alert for auditing.
type AlertRecord struct {
	ID           int64
	SampleTS     time.Time
	Metric       string
	Latest       decimal.Decimal
	Avg7         decimal.Decimal
	DeviationPct decimal.Decimal
	ThresholdPct decimal.Decimal
	CreatedAt    time.Time
}
