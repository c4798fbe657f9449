package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"channel-metrics-alerts/internal/monitor"
)

var decimalHundred = decimal.NewFromInt(100)

// Notifier dispatches deviation alerts.
type Notifier interface {
	Notify(ctx context.Context, event monitor.AlertEvent) error
}

// WebhookNotifier posts one JSON payload {"text": "<alert>"} per alert to a
// configured webhook URL. Fire-and-forget: the response body is not
// interpreted, only the status class.
type WebhookNotifier struct {
	url    string
	client *http.Client
	logger zerolog.Logger
}

// NewWebhookNotifier constructs a webhook notifier.
func NewWebhookNotifier(url string, timeout time.Duration, logger zerolog.Logger) *WebhookNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookNotifier{
		url:    strings.TrimSpace(url),
		client: &http.Client{Timeout: timeout},
		logger: logger.With().Str("component", "alert_webhook").Logger(),
	}
}

// Notify posts the rendered alert text.
func (n *WebhookNotifier) Notify(ctx context.Context, event monitor.AlertEvent) error {
	if n.url == "" {
		return fmt.Errorf("webhook url not configured")
	}

	body, err := json.Marshal(map[string]string{"text": event.Message()})
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook responded %d", resp.StatusCode)
	}

	n.logger.Info().
		Str("metric", event.Metric).
		Str("deviation_pct", event.Deviation.Mul(decimalHundred).StringFixed(2)).
		Msg("alert sent")
	return nil
}

var _ Notifier = (*WebhookNotifier)(nil)
