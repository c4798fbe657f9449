package auth

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"channel-metrics-alerts/internal/config"
)

func TestModeSelection(t *testing.T) {
	cases := []struct {
		name string
		cfg  config.AuthConfig
		want string
	}{
		{"api key", config.AuthConfig{APIKey: "key"}, ModeAPIKey},
		{"service account", config.AuthConfig{ServiceAccountFile: "sa.json"}, ModeServiceAccount},
		{"oauth", config.AuthConfig{ClientID: "id", ClientSecret: "secret"}, ModeOAuth},
		{"api key wins over oauth", config.AuthConfig{APIKey: "key", ClientID: "id", ClientSecret: "secret"}, ModeAPIKey},
		{"nothing", config.AuthConfig{}, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NewManager(tc.cfg, zerolog.Nop()).Mode(); got != tc.want {
				t.Fatalf("want mode %q, got %q", tc.want, got)
			}
		})
	}
}

func TestAuthorizeWithoutCredentials(t *testing.T) {
	m := NewManager(config.AuthConfig{}, zerolog.Nop())
	if _, err := m.Authorize(context.Background()); !errors.Is(err, ErrNoCredentials) {
		t.Fatalf("expected ErrNoCredentials, got %v", err)
	}
}

func TestAuthorizeAPIKey(t *testing.T) {
	m := NewManager(config.AuthConfig{APIKey: "key"}, zerolog.Nop())
	opts, err := m.Authorize(context.Background())
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if len(opts) == 0 {
		t.Fatal("api key mode should yield client options")
	}
	if m.Interactive() {
		t.Fatal("api key mode must not be interactive")
	}
}

func TestAuthorizeOAuthWithoutTokenIsPending(t *testing.T) {
	m := NewManager(config.AuthConfig{
		ClientID:     "id",
		ClientSecret: "secret",
		RedirectURL:  "urn:ietf:wg:oauth:2.0:oob",
		TokenFile:    filepath.Join(t.TempDir(), "token.json"),
	}, zerolog.Nop())

	_, err := m.Authorize(context.Background())
	var pending *AuthorizationPendingError
	if !errors.As(err, &pending) {
		t.Fatalf("expected AuthorizationPendingError, got %v", err)
	}
	if !strings.Contains(pending.AuthURL, "client_id=id") {
		t.Fatalf("authorization URL should carry the client id: %s", pending.AuthURL)
	}
	if !m.Interactive() {
		t.Fatal("oauth mode must be interactive")
	}
}

func TestAuthorizeOAuthWithCachedTokenFile(t *testing.T) {
	tokenFile := filepath.Join(t.TempDir(), "token.json")
	data, _ := json.Marshal(&oauth2.Token{AccessToken: "cached", TokenType: "Bearer"})
	if err := os.WriteFile(tokenFile, data, 0o600); err != nil {
		t.Fatalf("seed token file: %v", err)
	}

	m := NewManager(config.AuthConfig{
		ClientID:     "id",
		ClientSecret: "secret",
		TokenFile:    tokenFile,
	}, zerolog.Nop())

	opts, err := m.Authorize(context.Background())
	if err != nil {
		t.Fatalf("cached token should authorize without interaction: %v", err)
	}
	if len(opts) == 0 {
		t.Fatal("oauth mode with cached token should yield client options")
	}
}

func TestAuthorizeOAuthCorruptTokenFile(t *testing.T) {
	tokenFile := filepath.Join(t.TempDir(), "token.json")
	if err := os.WriteFile(tokenFile, []byte("not json"), 0o600); err != nil {
		t.Fatalf("seed token file: %v", err)
	}

	m := NewManager(config.AuthConfig{
		ClientID:     "id",
		ClientSecret: "secret",
		TokenFile:    tokenFile,
	}, zerolog.Nop())

	if _, err := m.Authorize(context.Background()); err == nil {
		t.Fatal("corrupt token file must be surfaced, not silently treated as pending")
	}
}

func TestExchangeOutsideOAuthMode(t *testing.T) {
	m := NewManager(config.AuthConfig{APIKey: "key"}, zerolog.Nop())
	if err := m.Exchange(context.Background(), "code"); err == nil {
		t.Fatal("exchange is only valid in oauth mode")
	}
}
