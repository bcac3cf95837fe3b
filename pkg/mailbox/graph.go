// Package mailbox implements the Mailbox collaborator against the
// Microsoft Graph mail API.
package mailbox

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/yobain/facturabot/pkg/api"
)

// DefaultBaseURL is the Microsoft Graph endpoint.
const DefaultBaseURL = "https://graph.microsoft.com/v1.0"

// TokenFunc returns a valid bearer token for the mailbox account.
type TokenFunc func(ctx context.Context) (string, error)

// Config holds the client settings.
type Config struct {
	// BaseURL defaults to DefaultBaseURL; tests point it elsewhere.
	BaseURL string
	// Token supplies the bearer token per request.
	Token TokenFunc
	// HTTPClient defaults to a client with a 30s timeout.
	HTTPClient *http.Client
}

// Client talks to the Graph mail endpoints.
type Client struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a mailbox client.
func New(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{cfg: cfg, logger: logger}
}

// graphMessage mirrors the subset of the Graph message resource we read.
type graphMessage struct {
	ID      string `json:"id"`
	Subject string `json:"subject"`
	Sender  struct {
		EmailAddress struct {
			Name string `json:"name"`
		} `json:"emailAddress"`
	} `json:"sender"`
	Body struct {
		Content string `json:"content"`
	} `json:"body"`
}

// FetchMessages returns every message in the folder. Any failure aborts the
// caller's run; there is no partial fetch.
func (c *Client) FetchMessages(ctx context.Context, folderID string) ([]api.ReceiptMessage, error) {
	url := fmt.Sprintf("%s/me/mailFolders/%s/messages", c.cfg.BaseURL, folderID)

	req, err := c.newRequest(ctx, http.MethodGet, url)
	if err != nil {
		return nil, err
	}

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching messages: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching messages: status %d", resp.StatusCode)
	}

	var payload struct {
		Value []graphMessage `json:"value"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding messages: %w", err)
	}

	messages := make([]api.ReceiptMessage, 0, len(payload.Value))
	for _, m := range payload.Value {
		messages = append(messages, api.ReceiptMessage{
			ID:         m.ID,
			SenderName: m.Sender.EmailAddress.Name,
			Subject:    m.Subject,
			Body:       m.Body.Content,
		})
	}

	c.logger.Debug("fetched messages", "folder", folderID, "count", len(messages))
	return messages, nil
}

// DeleteMessages deletes the given messages one at a time and returns a
// per-id status. A failed deletion is logged and does not stop the rest.
func (c *Client) DeleteMessages(ctx context.Context, ids []string, folderID string) map[string]error {
	statuses := make(map[string]error, len(ids))
	for _, id := range ids {
		err := c.deleteMessage(ctx, id, folderID)
		statuses[id] = err
		if err != nil {
			c.logger.Warn("failed to delete message", "message_id", id, "error", err)
		} else {
			c.logger.Debug("deleted message", "message_id", id)
		}
	}
	return statuses
}

func (c *Client) deleteMessage(ctx context.Context, id, folderID string) error {
	url := fmt.Sprintf("%s/me/mailFolders/%s/messages/%s", c.cfg.BaseURL, folderID, id)

	req, err := c.newRequest(ctx, http.MethodDelete, url)
	if err != nil {
		return err
	}

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("deleting message: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("deleting message: status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, url string) (*http.Request, error) {
	token, err := c.cfg.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting access token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return req, nil
}
