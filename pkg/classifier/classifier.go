// Package classifier maps inbound receipt messages to normalized
// transaction records through a data-driven dispatch table.
package classifier

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/yobain/facturabot/pkg/api"
)

// Extractor turns one matched message into its transaction records.
type Extractor func(ctx context.Context, msg api.ReceiptMessage) ([]api.TransactionRecord, error)

// Rule is one dispatch entry. A message matches when the sender is equal
// and, if SubjectContains is set, the subject contains it. Rules are tried
// in registration order, so narrower entries (Uber Eats) must precede wider
// ones with the same sender (Uber).
type Rule struct {
	Name            string
	Sender          string
	SubjectContains string
	Extract         Extractor
}

// Classifier resolves messages against its rule table.
type Classifier struct {
	rules  []Rule
	logger *slog.Logger
}

// New creates a classifier over the given rules.
func New(rules []Rule, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{rules: rules, logger: logger}
}

// Classify returns the records extracted from msg by the first matching
// rule, or NoRuleError when no rule matches. Single-record vendors yield a
// one-element slice; the ticket vendor yields one record per PDF page, in
// page order.
func (c *Classifier) Classify(ctx context.Context, msg api.ReceiptMessage) ([]api.TransactionRecord, error) {
	for _, rule := range c.rules {
		if rule.Sender != msg.SenderName {
			continue
		}
		if rule.SubjectContains != "" && !strings.Contains(msg.Subject, rule.SubjectContains) {
			continue
		}

		c.logger.Debug("rule matched", "rule", rule.Name, "subject", msg.Subject)
		return rule.Extract(ctx, msg)
	}

	return nil, &api.NoRuleError{Sender: msg.SenderName, Subject: msg.Subject}
}

// Fetcher downloads a linked document (the ticket PDF).
type Fetcher func(ctx context.Context, url string) ([]byte, error)

// HTTPFetcher returns a Fetcher over the given client.
func HTTPFetcher(client *http.Client) Fetcher {
	return func(ctx context.Context, url string) ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("building request: %w", err)
		}

		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("downloading %s: %w", url, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("downloading %s: status %d", url, resp.StatusCode)
		}
		return io.ReadAll(resp.Body)
	}
}
