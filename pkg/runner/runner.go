// Package runner implements the two periodic jobs: turning receipt emails
// into transaction notifications, and batching ticket PDFs into portal
// invoices.
package runner

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/yobain/facturabot/pkg/api"
	"github.com/yobain/facturabot/pkg/classifier"
	"github.com/yobain/facturabot/pkg/eligibility"
	"github.com/yobain/facturabot/pkg/notify"
	"github.com/yobain/facturabot/pkg/parser"
)

// DefaultAccount is the card all expense records post against unless a rule
// already set one.
const DefaultAccount = "BBVA Crédito"

// InvoiceSubmitter runs the portal protocol for one ticket group.
type InvoiceSubmitter interface {
	Submit(ctx context.Context, group api.TicketGroup) (string, error)
}

// Config holds the mail folder ids the jobs read from.
type Config struct {
	ExpenseFolderID string
	TicketFolderID  string
}

// Deps are the runner's collaborators.
type Deps struct {
	Mailbox    api.Mailbox
	Notifier   api.Notifier
	Classifier *classifier.Classifier
	Fetch      classifier.Fetcher
	Filter     *eligibility.Filter
	Submitter  InvoiceSubmitter
	Formatter  *notify.Formatter
}

// Runner executes the expense and invoicing jobs.
type Runner struct {
	cfg    Config
	deps   Deps
	logger *slog.Logger
	now    func() time.Time

	// Seams for tests; production always uses the parser package.
	ticketLink   func(body string) (string, error)
	parseTickets func(doc []byte, messageID string) ([]api.TicketRecord, error)
}

// New creates a Runner.
func New(cfg Config, deps Deps, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		cfg:          cfg,
		deps:         deps,
		logger:       logger,
		now:          time.Now,
		ticketLink:   parser.TicketPDFLink,
		parseTickets: parser.ParseTicketPDF,
	}
}

// RunExpenses classifies every message in the expense folder, notifies one
// message per extracted record, and deletes the messages that produced
// records. A message no rule or extractor can handle is logged and left in
// the folder; only a failed fetch aborts the run.
func (r *Runner) RunExpenses(ctx context.Context) error {
	messages, err := r.deps.Mailbox.FetchMessages(ctx, r.cfg.ExpenseFolderID)
	if err != nil {
		return err
	}

	var processed []string
	for _, msg := range messages {
		records, err := r.deps.Classifier.Classify(ctx, msg)
		if err != nil {
			r.logSkip(msg, err)
			continue
		}

		for _, rec := range records {
			if !rec.IsTransfer() && rec.Account == "" {
				rec.Account = DefaultAccount
			}
			r.send(ctx, r.deps.Formatter.Transaction(rec, r.now()))
		}
		processed = append(processed, msg.ID)
	}

	if len(processed) > 0 {
		r.deps.Mailbox.DeleteMessages(ctx, processed, r.cfg.ExpenseFolderID)
	}

	r.logger.Info("expense run finished", "messages", len(messages), "processed", len(processed))
	return nil
}

// RunInvoicing collects every ticket from the ticket folder, keeps the ones
// travelled in the trailing month, and submits one invoice per passenger
// group. Ticket emails stay in the folder; the travel window decides what
// gets invoiced, not deletion.
func (r *Runner) RunInvoicing(ctx context.Context) error {
	messages, err := r.deps.Mailbox.FetchMessages(ctx, r.cfg.TicketFolderID)
	if err != nil {
		return err
	}

	var tickets []api.TicketRecord
	for _, msg := range messages {
		link, err := r.ticketLink(msg.Body)
		if err != nil {
			r.logSkip(msg, err)
			continue
		}

		doc, err := r.deps.Fetch(ctx, link)
		if err != nil {
			r.logSkip(msg, err)
			continue
		}

		parsed, err := r.parseTickets(doc, msg.ID)
		if err != nil {
			if errors.Is(err, api.ErrUnreadablePDF) {
				r.send(ctx, r.deps.Formatter.UnreadableTicket(link))
			}
			r.logSkip(msg, err)
			continue
		}
		tickets = append(tickets, parsed...)
	}

	primary, other, err := r.deps.Filter.Filter(tickets, r.now())
	if err != nil {
		return err
	}

	for _, group := range []api.TicketGroup{primary, other} {
		if len(group) == 0 {
			continue
		}
		link, err := r.deps.Submitter.Submit(ctx, group)
		if err != nil {
			r.logger.Error("invoice submission failed", "tickets", len(group), "error", err)
			r.send(ctx, r.deps.Formatter.InvoiceFailure(group, err))
			continue
		}
		r.send(ctx, r.deps.Formatter.InvoiceSuccess(link))
	}

	r.logger.Info("invoicing run finished", "tickets", len(tickets), "primary", len(primary), "other", len(other))
	return nil
}

func (r *Runner) logSkip(msg api.ReceiptMessage, err error) {
	r.logger.Warn("skipping message", "message_id", msg.ID, "sender", msg.SenderName, "error", err)
}

func (r *Runner) send(ctx context.Context, text string) {
	if err := r.deps.Notifier.Send(ctx, text); err != nil {
		r.logger.Error("notification failed", "error", err)
	}
}
