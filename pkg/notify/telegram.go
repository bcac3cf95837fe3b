// Package notify delivers operator notifications over the Telegram bot API
// and builds the notification texts.
package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go"
)

// DefaultAPIBaseURL is the Telegram bot API endpoint.
const DefaultAPIBaseURL = "https://api.telegram.org"

// errRateLimited marks a 429 from the API; only these are retried.
var errRateLimited = errors.New("telegram rate limited")

// TelegramConfig holds the bot credentials.
type TelegramConfig struct {
	BotToken string
	ChatID   string
	// BaseURL defaults to DefaultAPIBaseURL; tests point it elsewhere.
	BaseURL string
	// HTTPClient defaults to a client with a 30s timeout.
	HTTPClient *http.Client
	// RetryDelay is the base backoff after a 429; defaults to 2s.
	RetryDelay time.Duration
}

// Telegram sends messages to a fixed chat.
type Telegram struct {
	cfg    TelegramConfig
	logger *slog.Logger
}

// NewTelegram creates a Telegram notifier.
func NewTelegram(cfg TelegramConfig, logger *slog.Logger) *Telegram {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultAPIBaseURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 2 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Telegram{cfg: cfg, logger: logger}
}

// Send posts the text to the configured chat as HTML. Rate-limit responses
// are retried with a short backoff; everything else fails immediately.
func (t *Telegram) Send(ctx context.Context, text string) error {
	form := url.Values{
		"chat_id":    {t.cfg.ChatID},
		"text":       {text},
		"parse_mode": {"html"},
	}

	err := retry.Do(
		func() error { return t.post(ctx, form) },
		retry.Context(ctx),
		retry.Attempts(4),
		retry.Delay(t.cfg.RetryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(func(err error) bool { return errors.Is(err, errRateLimited) }),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			t.logger.Warn("retrying telegram send", "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		return fmt.Errorf("sending telegram message: %w", err)
	}
	return nil
}

func (t *Telegram) post(ctx context.Context, form url.Values) error {
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.cfg.BaseURL, t.cfg.BotToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.cfg.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return errRateLimited
	case resp.StatusCode >= http.StatusBadRequest:
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}
