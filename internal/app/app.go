package app

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"channel-metrics-alerts/internal/alerting"
	"channel-metrics-alerts/internal/auth"
	"channel-metrics-alerts/internal/config"
	"channel-metrics-alerts/internal/enricher"
	"channel-metrics-alerts/internal/fetcher"
	"channel-metrics-alerts/internal/scheduler"
	"channel-metrics-alerts/internal/service"
	"channel-metrics-alerts/internal/session"
	"channel-metrics-alerts/internal/sink"
	"channel-metrics-alerts/internal/storage"
	"channel-metrics-alerts/internal/version"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger

	authManager *auth.Manager
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{
		Config:      cfg,
		Logger:      logger.With().Str("component", "app").Logger(),
		authManager: auth.NewManager(cfg.Auth, logger),
	}
}

// authorize resolves the configured credential into Google client options.
// A pending OAuth flow is surfaced with the remediation command instead of
// the raw sentinel.
func (a *App) authorize(ctx context.Context) ([]option.ClientOption, error) {
	opts, err := a.authManager.Authorize(ctx)
	if err != nil {
		var pending *auth.AuthorizationPendingError
		if errors.As(err, &pending) {
			return nil, fmt.Errorf("not authorized yet; run `%s login` to complete the OAuth flow", a.Config.App.Name)
		}
		return nil, err
	}
	return append(opts, option.WithUserAgent(version.UserAgent())), nil
}

// establishSession walks the linear wizard up to the verified state:
// credential obtained, then target channel confirmed against the caller's
// accessible-channel list (skipped for credential sources that cannot
// enumerate their channels).
func (a *App) establishSession(ctx context.Context, clientOpts []option.ClientOption) (*session.Session, error) {
	sess := session.New(a.Config.YouTube.ChannelID)
	if err := sess.Authorize(); err != nil {
		return nil, err
	}

	if !a.authManager.Interactive() {
		a.Logger.Debug().Str("mode", a.authManager.Mode()).Msg("credential source cannot enumerate channels; skipping verification")
		if err := sess.SkipVerification(); err != nil {
			return nil, err
		}
		return sess, nil
	}

	channels, err := fetcher.NewChannels(fetcher.ChannelsOptions{
		ClientOptions: clientOpts,
		Timeout:       a.Config.Auth.RequestTimeout,
	}, a.Logger).ListAccessible(ctx)
	if err != nil {
		return nil, fmt.Errorf("list accessible channels: %w", err)
	}

	if err := sess.Verify(channels); err != nil {
		return nil, err
	}
	return sess, nil
}

func (a *App) newReports(clientOpts []option.ClientOption) fetcher.ReportsFetcher {
	return fetcher.NewAnalytics(fetcher.AnalyticsOptions{
		ClientOptions: clientOpts,
		Timeout:       a.Config.Auth.RequestTimeout,
	}, a.Logger)
}

func (a *App) newEnricher(clientOpts []option.ClientOption) *enricher.Enricher {
	return enricher.New(enricher.Options{
		ClientOptions: clientOpts,
		Timeout:       a.Config.Auth.RequestTimeout,
	}, a.Logger)
}

func (a *App) newSink(clientOpts []option.ClientOption) sink.Writer {
	return sink.NewSheetWriter(sink.Options{
		SpreadsheetID: a.Config.Sheets.SpreadsheetID,
		SheetName:     a.Config.Sheets.SheetName,
		Mode:          a.Config.Sheets.Mode,
		ClientOptions: clientOpts,
		Timeout:       a.Config.Auth.RequestTimeout,
	}, a.Logger)
}

func (a *App) newNotifier() alerting.Notifier {
	if !a.Config.Alerting.Enabled {
		return nil
	}
	return alerting.NewWebhookNotifier(
		a.Config.Alerting.WebhookURL,
		a.Config.Alerting.RequestTimeout,
		a.Logger,
	)
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// Run executes the long-running monitoring daemon.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	clientOpts, err := a.authorize(ctx)
	if err != nil {
		return err
	}
	if _, err := a.establishSession(ctx, clientOpts); err != nil {
		return err
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Warn().Msg("database.dsn not configured; persistence disabled")
	}
	if closeStore != nil {
		defer closeStore()
	}

	sched := scheduler.New(scheduler.Options{
		Interval:      a.Config.Scheduler.Interval,
		AlignToBucket: a.Config.Scheduler.AlignToBucket,
		StartupDelay:  a.Config.Scheduler.StartupDelay,
	}, a.Logger)

	var sampleStore storage.MetricSampleStore
	var alertStore storage.AlertStore
	if store != nil {
		sampleStore = store
		alertStore = store
	}

	svc := service.New(a.Config, sched, a.newReports(clientOpts), sampleStore, alertStore, a.newNotifier(), a.Logger)

	a.Logger.Info().Msg("starting monitoring service")
	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("monitoring service stopped")
	return nil
}

// ReportOptions configure the daily channel report.
type ReportOptions struct {
	Days int
	End  *time.Time
}

// VideosOptions configure the per-video performance report.
type VideosOptions struct {
	Days       int
	MaxResults int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit  int
	Alerts bool
}

// ExportOptions hold parameters for exporting stored samples.
type ExportOptions struct {
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// BackfillOptions configure the backfill job.
type BackfillOptions struct {
	From   time.Time
	To     time.Time
	DryRun bool
}

// SimulateOptions configure the alert simulation.
type SimulateOptions struct {
	Metric  string
	Samples []float64
}
