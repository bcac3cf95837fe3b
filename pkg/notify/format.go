package notify

import (
	"fmt"
	"html"
	"net/url"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/yobain/facturabot/pkg/api"
)

// The Debit & Credit app registers these x-callback-url schemes; the choice
// between them is driven by whether the record names a source account.
const (
	expenseScheme  = "dcapp://x-callback-url/expense?"
	transferScheme = "dcapp://x-callback-url/transfer?"
)

var titleCaser = cases.Title(language.Und)

// Formatter builds the notification texts. All timestamps render in the
// operator's civil timezone.
type Formatter struct {
	loc *time.Location
}

// NewFormatter creates a Formatter rendering dates in the given zone.
func NewFormatter(zone string) (*Formatter, error) {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %s: %w", zone, err)
	}
	return &Formatter{loc: loc}, nil
}

// Transaction renders one record: a field block, the detection time, and a
// Debit & Credit deep link that pre-fills the transaction in the app.
func (f *Formatter) Transaction(rec api.TransactionRecord, now time.Time) string {
	var b strings.Builder

	if rec.IsTransfer() {
		b.WriteString("<b>Transferencia detectada</b>\n\n")
	} else {
		b.WriteString("<b>Gasto detectado</b>\n\n")
	}

	fields := rec.Fields()
	for _, field := range fields {
		fmt.Fprintf(&b, "<b>%s</b>: %s\n", titleKey(field.Key), html.EscapeString(field.Value))
	}
	fmt.Fprintf(&b, "<b>Date</b>: %s\n\n", now.In(f.loc).Format("2006-01-02, 15:04"))

	scheme := expenseScheme
	if rec.IsTransfer() {
		scheme = transferScheme
	}
	fmt.Fprintf(&b, "<b>D&amp;C URL scheme</b>: %s", html.EscapeString(scheme+encodeFields(fields)))

	return b.String()
}

// InvoiceSuccess announces a submitted invoice with its PDF link.
func (f *Formatter) InvoiceSuccess(link string) string {
	return "<b>Facturación detectada ADO</b>\n\n<b>PDF Link</b>: " + html.EscapeString(link)
}

// InvoiceFailure reports a failed submission with enough context (the
// folios and the failing step) to redo the lot by hand on the portal.
func (f *Formatter) InvoiceFailure(group api.TicketGroup, err error) string {
	folios := make([]string, 0, len(group))
	for _, ticket := range group {
		folios = append(folios, ticket.Folio)
	}
	return fmt.Sprintf("<b>Facturación fallida</b>\n\n<b>Folios</b>: %s\n<b>Error</b>: %s",
		html.EscapeString(strings.Join(folios, ", ")), html.EscapeString(err.Error()))
}

// UnreadableTicket reports a ticket PDF the parser could not open, with the
// download link so the operator can inspect it.
func (f *Formatter) UnreadableTicket(link string) string {
	return "<b>Boleto ilegible</b>\n\n<b>PDF Link</b>: " + html.EscapeString(link)
}

// titleKey renders a field key for display: each underscore-separated word
// title-cased, underscores kept ("source_account" prints as "Source_Account").
func titleKey(key string) string {
	parts := strings.Split(key, "_")
	for i, part := range parts {
		parts[i] = titleCaser.String(part)
	}
	return strings.Join(parts, "_")
}

// encodeFields builds the deep-link query. Spaces encode as %20, not +, and
// slashes stay literal; the app's URL parser rejects form-style encoding.
func encodeFields(fields []api.Field) string {
	pairs := make([]string, 0, len(fields))
	for _, field := range fields {
		pairs = append(pairs, field.Key+"="+quoteValue(field.Value))
	}
	return strings.Join(pairs, "&")
}

func quoteValue(value string) string {
	escaped := url.QueryEscape(value)
	escaped = strings.ReplaceAll(escaped, "+", "%20")
	return strings.ReplaceAll(escaped, "%2F", "/")
}
