// Package api defines the core records and collaborator contracts for facturabot.
package api

import (
	"context"

	"github.com/shopspring/decimal"
)

// ReceiptMessage is one inbound email as fetched from the mailbox.
// It is immutable; the core never mutates or persists it.
type ReceiptMessage struct {
	ID         string
	SenderName string
	Subject    string
	// Body is the HTML content of the message.
	Body string
}

// TransactionRecord is a normalized expense (or transfer) extracted from a
// receipt. One message may yield several records (e.g. a multi-page ticket PDF).
type TransactionRecord struct {
	Amount      decimal.Decimal
	Description string
	Category    string
	Payee       string
	Tag         string
	Notes       string
	Account     string
	// SourceAccount is set only for transfers; its presence selects the
	// transfer URL scheme instead of the expense one.
	SourceAccount string
}

// Field is one (name, value) pair of a record, in presentation order.
type Field struct {
	Key   string
	Value string
}

// Fields returns the record's non-empty fields in a fixed order, used both
// for the notification text and for the Debit & Credit URL scheme. Vendor
// receipts always print two-decimal currency, so the amount renders with a
// fixed scale; Decimal.String would drop trailing zeros ("125.00" → "125").
func (t TransactionRecord) Fields() []Field {
	all := []Field{
		{"amount", t.Amount.StringFixed(2)},
		{"description", t.Description},
		{"category", t.Category},
		{"payee", t.Payee},
		{"tag", t.Tag},
		{"notes", t.Notes},
		{"account", t.Account},
		{"source_account", t.SourceAccount},
	}

	fields := make([]Field, 0, len(all))
	for _, f := range all {
		if f.Value != "" {
			fields = append(fields, f)
		}
	}
	return fields
}

// IsTransfer reports whether the record describes a transfer between own
// accounts rather than an expense.
func (t TransactionRecord) IsTransfer() bool {
	return t.SourceAccount != ""
}

// TicketRecord is one bus ticket extracted from a single PDF page.
// Folio and Seat together identify one ticket within a batch.
type TicketRecord struct {
	Folio         string
	PassengerName string
	Seat          string
	Price         decimal.Decimal
	// TravelDate is the vendor's raw date string, e.g. "02 ENE 06".
	TravelDate string
	// MessageID links the ticket back to the email it came from.
	MessageID string
}

// TicketGroup is an ordered set of tickets invoiced together.
type TicketGroup []TicketRecord

// Mailbox fetches and deletes messages in a remote mail folder.
type Mailbox interface {
	// FetchMessages returns every message in the folder. A failure here
	// aborts the calling run.
	FetchMessages(ctx context.Context, folderID string) ([]ReceiptMessage, error)
	// DeleteMessages deletes the given messages one by one and returns a
	// per-id error map (nil value = deleted). A single failed deletion does
	// not stop the remaining ones.
	DeleteMessages(ctx context.Context, ids []string, folderID string) map[string]error
}

// Notifier delivers a formatted message to the operator. Fire-and-forget:
// callers log a failed Send but never abort on it.
type Notifier interface {
	Send(ctx context.Context, text string) error
}

// TokenStore holds the rotating mailbox refresh token.
type TokenStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}
