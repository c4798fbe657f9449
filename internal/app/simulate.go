package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"channel-metrics-alerts/internal/monitor"
)

// SimulateAlert runs the deviation check over a user-supplied sample series
// and, when it trips, pushes the alert through the real webhook notifier.
func (a *App) SimulateAlert(ctx context.Context, opts SimulateOptions) error {
	if !a.Config.Alerting.Enabled {
		return errors.New("alerting is not enabled")
	}

	notifier := a.newNotifier()
	if notifier == nil {
		return errors.New("no alert channel configured")
	}

	samples := make([]decimal.Decimal, 0, len(opts.Samples))
	for _, s := range opts.Samples {
		samples = append(samples, decimal.NewFromFloat(s))
	}

	threshold := decimal.NewFromFloat(a.Config.Monitor.Threshold)
	event := monitor.CheckDeviation(samples, opts.Metric, threshold)
	if event == nil {
		fmt.Fprintln(os.Stdout, "no alert: deviation within threshold (or too few samples)")
		return nil
	}

	event.Bucket = time.Now().UTC().Truncate(a.Config.Scheduler.Interval)
	if err := notifier.Notify(ctx, *event); err != nil {
		return err
	}

	fmt.Fprintln(os.Stdout, event.Message())
	return nil
}
