package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"

	"channel-metrics-alerts/internal/config"
)

// Credential source modes.
const (
	ModeAPIKey         = "api_key"
	ModeServiceAccount = "service_account"
	ModeOAuth          = "oauth"
)

// Scopes requested for the reporting, metadata, and spreadsheet APIs.
var Scopes = []string{
	"https://www.googleapis.com/auth/yt-analytics.readonly",
	"https://www.googleapis.com/auth/youtube.readonly",
	"https://www.googleapis.com/auth/spreadsheets",
}

// ErrNoCredentials indicates that no credential source is configured.
var ErrNoCredentials = errors.New("auth: no credential source configured")

// AuthorizationPendingError is returned when the OAuth flow has no cached
// token yet. The caller must surface AuthURL to the user and complete the
// exchange with the returned code.
type AuthorizationPendingError struct {
	AuthURL string
}

func (e *AuthorizationPendingError) Error() string {
	return "auth: authorization pending; visit the authorization URL and run the login command"
}

// Manager owns the session-scoped credential for one process lifetime.
type Manager struct {
	cfg    config.AuthConfig
	logger zerolog.Logger

	mu    sync.Mutex
	token *oauth2.Token
}

// NewManager constructs a credential manager from configuration.
func NewManager(cfg config.AuthConfig, logger zerolog.Logger) *Manager {
	return &Manager{cfg: cfg, logger: logger.With().Str("component", "auth").Logger()}
}

// Mode reports which credential source the configuration selects.
func (m *Manager) Mode() string {
	switch {
	case m.cfg.APIKey != "":
		return ModeAPIKey
	case m.cfg.ServiceAccountFile != "":
		return ModeServiceAccount
	case m.cfg.ClientID != "" && m.cfg.ClientSecret != "":
		return ModeOAuth
	default:
		return ""
	}
}

// Interactive reports whether the selected source requires a user-driven
// authorization step.
func (m *Manager) Interactive() bool {
	return m.Mode() == ModeOAuth
}

// Authorize resolves the configured credential source into client options
// for the Google API services. In OAuth mode with no cached token it returns
// an AuthorizationPendingError carrying the authorization URL.
func (m *Manager) Authorize(ctx context.Context) ([]option.ClientOption, error) {
	switch m.Mode() {
	case ModeAPIKey:
		return []option.ClientOption{option.WithAPIKey(m.cfg.APIKey)}, nil

	case ModeServiceAccount:
		if _, err := os.Stat(m.cfg.ServiceAccountFile); err != nil {
			return nil, fmt.Errorf("auth: service account file: %w", err)
		}
		return []option.ClientOption{
			option.WithCredentialsFile(m.cfg.ServiceAccountFile),
			option.WithScopes(Scopes...),
		}, nil

	case ModeOAuth:
		token, err := m.cachedToken()
		if err != nil {
			return nil, err
		}
		if token == nil {
			return nil, &AuthorizationPendingError{AuthURL: m.AuthCodeURL()}
		}
		client := m.oauthConfig().Client(ctx, token)
		client.Timeout = m.requestTimeout()
		return []option.ClientOption{option.WithHTTPClient(client)}, nil

	default:
		return nil, ErrNoCredentials
	}
}

// AuthCodeURL builds the authorization URL for the configured scope set and
// redirect target.
func (m *Manager) AuthCodeURL() string {
	return m.oauthConfig().AuthCodeURL("state", oauth2.AccessTypeOffline)
}

// Exchange trades an authorization code for a token and caches it for the
// remainder of the session (and in the token file across sessions). A failed
// exchange is recoverable: the caller may retry with a fresh code.
func (m *Manager) Exchange(ctx context.Context, code string) error {
	if m.Mode() != ModeOAuth {
		return errors.New("auth: exchange only valid in oauth mode")
	}

	token, err := m.oauthConfig().Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("auth: exchange authorization code: %w", err)
	}

	m.mu.Lock()
	m.token = token
	m.mu.Unlock()

	if err := m.saveToken(token); err != nil {
		return err
	}

	m.logger.Info().Str("token_file", m.cfg.TokenFile).Msg("authorization complete")
	return nil
}

func (m *Manager) oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     m.cfg.ClientID,
		ClientSecret: m.cfg.ClientSecret,
		RedirectURL:  m.cfg.RedirectURL,
		Scopes:       Scopes,
		Endpoint:     google.Endpoint,
	}
}

func (m *Manager) requestTimeout() time.Duration {
	if m.cfg.RequestTimeout > 0 {
		return m.cfg.RequestTimeout
	}
	return 30 * time.Second
}

// cachedToken returns the session token, falling back to the token file.
// A nil token with nil error means no authorization has happened yet.
func (m *Manager) cachedToken() (*oauth2.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.token != nil {
		return m.token, nil
	}

	data, err := os.ReadFile(m.cfg.TokenFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("auth: read token file: %w", err)
	}

	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("auth: decode token file: %w", err)
	}

	m.token = &token
	return m.token, nil
}

func (m *Manager) saveToken(token *oauth2.Token) error {
	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("auth: encode token: %w", err)
	}
	// Token material is a secret; keep the file owner-only.
	if err := os.WriteFile(m.cfg.TokenFile, data, 0o600); err != nil {
		return fmt.Errorf("auth: write token file: %w", err)
	}
	return nil
}

// HTTPClient returns a bare client with the configured timeout, for callers
// outside the Google client libraries.
func (m *Manager) HTTPClient() *http.Client {
	return &http.Client{Timeout: m.requestTimeout()}
}
