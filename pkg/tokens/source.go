// Package tokens manages the mailbox OAuth credentials: minting access
// tokens from a long-lived refresh token and persisting the rotated refresh
// token between runs.
package tokens

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/oauth2"

	"github.com/yobain/facturabot/pkg/api"
)

const (
	// DefaultTokenURL is the Microsoft identity endpoint for personal accounts.
	DefaultTokenURL = "https://login.microsoftonline.com/consumers/oauth2/v2.0/token"

	// StoreKey is where the rotating refresh token lives in the token store.
	StoreKey = "refresh_tokens/hotmail"

	redirectURL = "http://localhost:5000/"
)

var scopes = []string{
	"offline_access",
	"user.readwrite",
	"mail.read",
	"mail.send",
	"mail.readwrite",
}

// Config holds the OAuth application credentials.
type Config struct {
	ClientID     string
	ClientSecret string
	// TokenURL defaults to DefaultTokenURL; tests point it elsewhere.
	TokenURL string
}

// Source mints access tokens via the refresh-token grant. Microsoft rotates
// the refresh token on every exchange, so each new one is written back to
// the store before the access token is handed out.
type Source struct {
	oauth  *oauth2.Config
	store  api.TokenStore
	logger *slog.Logger
}

// NewSource creates a Source backed by the given store.
func NewSource(cfg Config, store api.TokenStore, logger *slog.Logger) *Source {
	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultTokenURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  redirectURL,
			Scopes:       scopes,
			Endpoint:     oauth2.Endpoint{TokenURL: cfg.TokenURL},
		},
		store:  store,
		logger: logger,
	}
}

// AccessToken exchanges the stored refresh token for a fresh access token.
// Losing a rotated refresh token strands the account, so a failed store
// write fails the whole call even though the exchange itself succeeded.
func (s *Source) AccessToken(ctx context.Context) (string, error) {
	refresh, err := s.store.Get(ctx, StoreKey)
	if err != nil {
		return "", fmt.Errorf("loading refresh token: %w", err)
	}

	token, err := s.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refresh}).Token()
	if err != nil {
		return "", fmt.Errorf("exchanging refresh token: %w", err)
	}

	if token.RefreshToken != "" && token.RefreshToken != refresh {
		if err := s.store.Set(ctx, StoreKey, token.RefreshToken); err != nil {
			return "", fmt.Errorf("persisting rotated refresh token: %w", err)
		}
		s.logger.Debug("refresh token rotated")
	}

	return token.AccessToken, nil
}
