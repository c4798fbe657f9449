package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const validConfig = `
youtube:
  channel_id: UC123
sheets:
  spreadsheet_id: sheet-1
auth:
  api_key: key-1
`

func TestLoadValidAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("valid config should load: %v", err)
	}

	if cfg.Sheets.Mode != SinkModeAppend {
		t.Fatalf("default sink mode should be append, got %q", cfg.Sheets.Mode)
	}
	if cfg.Sheets.SheetName != "Sheet1" {
		t.Fatalf("default sheet name should be Sheet1, got %q", cfg.Sheets.SheetName)
	}
	if cfg.Monitor.Threshold != 0.01 {
		t.Fatalf("default threshold should be 0.01, got %v", cfg.Monitor.Threshold)
	}
	if cfg.Scheduler.Interval != time.Hour {
		t.Fatalf("default interval should be 1h, got %v", cfg.Scheduler.Interval)
	}
	if len(cfg.Report.Metrics) == 0 || cfg.Report.Metrics[0] != "views" {
		t.Fatalf("report metric defaults missing: %v", cfg.Report.Metrics)
	}
}

func TestLoadMissingKeysEnumeratesAll(t *testing.T) {
	_, err := Load(writeConfig(t, "app:\n  name: ytwatcher\n"))
	if err == nil {
		t.Fatal("config without required keys must fail")
	}

	var missing *MissingKeysError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingKeysError, got %T: %v", err, err)
	}

	want := []string{
		"youtube.channel_id",
		"sheets.spreadsheet_id",
		"auth.api_key|auth.service_account_file|auth.client_id+auth.client_secret",
	}
	if !reflect.DeepEqual(missing.Keys, want) {
		t.Fatalf("missing key list must exactly match the absent keys:\nwant %v\ngot  %v", want, missing.Keys)
	}
}

func TestLoadPartialOAuthClient(t *testing.T) {
	body := `
youtube:
  channel_id: UC123
sheets:
  spreadsheet_id: sheet-1
auth:
  client_id: id-only
`
	_, err := Load(writeConfig(t, body))

	var missing *MissingKeysError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingKeysError, got %v", err)
	}
	if !reflect.DeepEqual(missing.Keys, []string{"auth.client_secret"}) {
		t.Fatalf("partial oauth client should only report the missing half, got %v", missing.Keys)
	}
}

func TestLoadWebhookRequiredWhenAlertingEnabled(t *testing.T) {
	body := validConfig + `
alerting:
  enabled: true
`
	_, err := Load(writeConfig(t, body))

	var missing *MissingKeysError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingKeysError, got %v", err)
	}
	if !reflect.DeepEqual(missing.Keys, []string{"alerting.webhook_url"}) {
		t.Fatalf("enabled alerting without webhook should report it, got %v", missing.Keys)
	}
}

func TestValidateRejectsUnknownSinkMode(t *testing.T) {
	body := `
youtube:
  channel_id: UC123
sheets:
  spreadsheet_id: sheet-1
  mode: upsert
auth:
  api_key: key-1
`
	if _, err := Load(writeConfig(t, body)); err == nil {
		t.Fatal("unknown sink mode must be rejected")
	}
}

func TestValidateRejectsNegativeThreshold(t *testing.T) {
	body := validConfig + `
monitor:
  threshold: -0.5
`
	if _, err := Load(writeConfig(t, body)); err == nil {
		t.Fatal("negative threshold must be rejected")
	}
}
