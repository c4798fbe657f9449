package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"channel-metrics-alerts/internal/auth"
)

// Login walks the interactive OAuth authorization-code flow: surface the
// authorization URL, read the code back, exchange it, and cache the token.
// A failed exchange is recoverable; the user may simply run login again.
func (a *App) Login(ctx context.Context) error {
	if a.authManager.Mode() != auth.ModeOAuth {
		return errors.New("login is only needed with an OAuth client; api_key and service_account modes authorize on their own")
	}

	fmt.Fprintln(os.Stdout, "Visit the following URL to authorize access:")
	fmt.Fprintln(os.Stdout)
	fmt.Fprintln(os.Stdout, "  "+a.authManager.AuthCodeURL())
	fmt.Fprintln(os.Stdout)
	fmt.Fprint(os.Stdout, "Enter the authorization code: ")

	reader := bufio.NewReader(os.Stdin)
	code, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("read authorization code: %w", err)
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return errors.New("empty authorization code")
	}

	if err := a.authManager.Exchange(ctx, code); err != nil {
		return err
	}

	fmt.Fprintln(os.Stdout, "Authorization complete.")
	return nil
}
