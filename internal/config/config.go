package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"channel-metrics-alerts/internal/logging"
)

// Sink policies supported by the sheet writer.
const (
	SinkModeAppend    = "append"
	SinkModeOverwrite = "overwrite"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Auth      AuthConfig      `mapstructure:"auth"`
	YouTube   YouTubeConfig   `mapstructure:"youtube"`
	Sheets    SheetsConfig    `mapstructure:"sheets"`
	Report    ReportConfig    `mapstructure:"report"`
	Videos    VideosConfig    `mapstructure:"videos"`
	Monitor   MonitorConfig   `mapstructure:"monitor"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Export    ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// AuthConfig selects and parameterises the credential source. Exactly one of
// the three modes must be configured: a raw API key, a service-account key
// file, or an OAuth client (id + secret).
type AuthConfig struct {
	APIKey             string        `mapstructure:"api_key"`
	ServiceAccountFile string        `mapstructure:"service_account_file"`
	ClientID           string        `mapstructure:"client_id"`
	ClientSecret       string        `mapstructure:"client_secret"`
	RedirectURL        string        `mapstructure:"redirect_url"`
	TokenFile          string        `mapstructure:"token_file"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout"`
}

// YouTubeConfig scopes the reporting queries.
type YouTubeConfig struct {
	ChannelID string `mapstructure:"channel_id"`
}

// SheetsConfig identifies the spreadsheet sink and its write policy.
type SheetsConfig struct {
	SpreadsheetID string `mapstructure:"spreadsheet_id"`
	SheetName     string `mapstructure:"sheet_name"`
	Mode          string `mapstructure:"mode"`
}

// ReportConfig parameterises the daily channel report.
type ReportConfig struct {
	Metrics []string `mapstructure:"metrics"`
	Days    int      `mapstructure:"days"`
}

// VideosConfig parameterises the per-video performance report.
type VideosConfig struct {
	Metrics    []string `mapstructure:"metrics"`
	Days       int      `mapstructure:"days"`
	MaxResults int      `mapstructure:"max_results"`
}

// MonitorConfig governs the hourly deviation monitor. Metrics is the raw
// Analytics metric list queried per tick; Tracked names the derived series
// the deviation check runs over.
type MonitorConfig struct {
	Metrics    []string `mapstructure:"metrics"`
	Tracked    []string `mapstructure:"tracked"`
	Threshold  float64  `mapstructure:"threshold"`
	WindowDays int      `mapstructure:"window_days"`
}

// AlertingConfig routes deviation alerts to a webhook.
type AlertingConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	WebhookURL     string        `mapstructure:"webhook_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity. An empty DSN disables
// persistence entirely.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// SchedulerConfig governs monitor cadence.
type SchedulerConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	AlignToBucket   bool          `mapstructure:"align_to_bucket"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// MissingKeysError reports every required configuration key that is absent.
type MissingKeysError struct {
	Keys []string
}

func (e *MissingKeysError) Error() string {
	return fmt.Sprintf("missing required configuration keys: %s", strings.Join(e.Keys, ", "))
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("YTWATCHER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "ytwatcher")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("auth.redirect_url", "urn:ietf:wg:oauth:2.0:oob")
	v.SetDefault("auth.token_file", "token.json")
	v.SetDefault("auth.request_timeout", "30s")

	v.SetDefault("sheets.sheet_name", "Sheet1")
	v.SetDefault("sheets.mode", SinkModeAppend)

	v.SetDefault("report.metrics", []string{
		"views", "redViews", "comments", "likes", "dislikes", "shares",
		"estimatedMinutesWatched", "averageViewDuration",
		"subscribersGained", "subscribersLost",
	})
	v.SetDefault("report.days", 28)

	v.SetDefault("videos.metrics", []string{
		"views", "estimatedMinutesWatched", "averageViewDuration", "likes", "comments",
	})
	v.SetDefault("videos.days", 28)
	v.SetDefault("videos.max_results", 200)

	v.SetDefault("monitor.metrics", []string{
		"views", "estimatedMinutesWatched", "averageViewDuration",
		"impressions", "annotationClickThroughRate",
	})
	v.SetDefault("monitor.tracked", []string{
		"views", "impressions", "ctr", "vph", "engagement_rate",
	})
	v.SetDefault("monitor.threshold", 0.01)
	v.SetDefault("monitor.window_days", 2)

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.request_timeout", "10s")

	v.SetDefault("scheduler.interval", "1h")
	v.SetDefault("scheduler.align_to_bucket", true)
	v.SetDefault("scheduler.advisory_lock_key", int64(0x79747761))
	v.SetDefault("scheduler.startup_delay", "0s")

	v.SetDefault("export.max_data_points", 100000)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.migrations_path", "migrations")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// MissingKeys enumerates every required key absent from the configuration.
func (c *Config) MissingKeys() []string {
	missing := make([]string, 0, 4)

	if c.YouTube.ChannelID == "" {
		missing = append(missing, "youtube.channel_id")
	}
	if c.Sheets.SpreadsheetID == "" {
		missing = append(missing, "sheets.spreadsheet_id")
	}

	switch {
	case c.Auth.APIKey != "" || c.Auth.ServiceAccountFile != "":
		// credential source present
	case c.Auth.ClientID != "" || c.Auth.ClientSecret != "":
		if c.Auth.ClientID == "" {
			missing = append(missing, "auth.client_id")
		}
		if c.Auth.ClientSecret == "" {
			missing = append(missing, "auth.client_secret")
		}
	default:
		missing = append(missing, "auth.api_key|auth.service_account_file|auth.client_id+auth.client_secret")
	}

	if c.Alerting.Enabled && c.Alerting.WebhookURL == "" {
		missing = append(missing, "alerting.webhook_url")
	}

	return missing
}

// Validate performs sanity checks on the configuration values. Missing
// required keys halt startup with the full enumerated list before any
// network call is made.
func (c *Config) Validate() error {
	if missing := c.MissingKeys(); len(missing) > 0 {
		return &MissingKeysError{Keys: missing}
	}

	if c.Sheets.Mode != SinkModeAppend && c.Sheets.Mode != SinkModeOverwrite {
		return fmt.Errorf("sheets.mode must be %q or %q", SinkModeAppend, SinkModeOverwrite)
	}
	if c.Monitor.Threshold < 0 {
		return fmt.Errorf("monitor.threshold cannot be negative")
	}
	if c.Monitor.WindowDays <= 0 {
		return fmt.Errorf("monitor.window_days must be greater than zero")
	}
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Report.Days <= 0 || c.Videos.Days <= 0 {
		return fmt.Errorf("report.days and videos.days must be greater than zero")
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
