package app

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"channel-metrics-alerts/internal/fetcher"
	"channel-metrics-alerts/internal/sink"
)

// Report runs the daily channel report pipeline once: authorize, verify,
// fetch, write to the sheet, and render the table inline.
func (a *App) Report(ctx context.Context, opts ReportOptions) error {
	clientOpts, err := a.authorize(ctx)
	if err != nil {
		return err
	}

	sess, err := a.establishSession(ctx, clientOpts)
	if err != nil {
		return err
	}
	if err := sess.BeginRun(); err != nil {
		return err
	}

	days := opts.Days
	if days <= 0 {
		days = a.Config.Report.Days
	}
	end := time.Now().UTC()
	if opts.End != nil {
		end = opts.End.UTC()
	}
	start := end.AddDate(0, 0, -days)

	table, err := a.newReports(clientOpts).FetchMetrics(ctx, fetcher.Query{
		ChannelID:  sess.ChannelID(),
		StartDate:  start,
		EndDate:    end,
		Metrics:    a.Config.Report.Metrics,
		Dimensions: fetcher.DimensionDay,
		Sort:       "day",
	})
	if err != nil {
		return err
	}

	if table.Empty() {
		fmt.Fprintln(os.Stdout, "no data for the requested window")
		return nil
	}

	if err := a.newSink(clientOpts).Write(ctx, sink.FromReport(table)); err != nil {
		return fmt.Errorf("write report to sheet: %w", err)
	}

	printTable(sink.FromReport(table))
	a.Logger.Info().Int("rows", len(table.Rows)).Msg("report written")
	return nil
}

// printTable renders a sink table to stdout.
func printTable(table sink.Table) {
	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for i, name := range table.Header {
		if i > 0 {
			fmt.Fprint(writer, "\t")
		}
		fmt.Fprint(writer, name)
	}
	fmt.Fprintln(writer)

	for _, row := range table.Rows {
		for i, value := range row {
			if i > 0 {
				fmt.Fprint(writer, "\t")
			}
			fmt.Fprintf(writer, "%v", value)
		}
		fmt.Fprintln(writer)
	}
	writer.Flush()
}
