package notify

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yobain/facturabot/pkg/api"
)

func newFormatter(t *testing.T) *Formatter {
	t.Helper()
	f, err := NewFormatter("America/Mexico_City")
	require.NoError(t, err)
	return f
}

func amount(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func TestTransaction_Expense(t *testing.T) {
	f := newFormatter(t)
	rec := api.TransactionRecord{
		Amount:      amount(t, "125.00"),
		Description: "Uber Eats",
		Category:    "Comida",
		Payee:       "Uber Eats",
		Account:     "BBVA Crédito",
	}
	now := time.Date(2026, time.August, 29, 19, 4, 0, 0, time.UTC)

	text := f.Transaction(rec, now)

	assert.Contains(t, text, "<b>Gasto detectado</b>")
	assert.Contains(t, text, "<b>Amount</b>: 125.00\n")
	assert.Contains(t, text, "<b>Description</b>: Uber Eats\n")
	// UTC 19:04 is 13:04 in Mexico City during CST (UTC-6).
	assert.Contains(t, text, "<b>Date</b>: 2026-08-29, 13:04")
	assert.Contains(t, text, "dcapp://x-callback-url/expense?")
	assert.Contains(t, text, "amount=125.00&amp;description=Uber%20Eats")
	assert.NotContains(t, text, "transfer?")
}

func TestTransaction_Transfer(t *testing.T) {
	f := newFormatter(t)
	rec := api.TransactionRecord{
		Amount:        amount(t, "500"),
		Description:   "Pago tarjeta",
		Account:       "BBVA Crédito",
		SourceAccount: "BBVA Débito",
	}

	text := f.Transaction(rec, time.Now())

	assert.Contains(t, text, "<b>Transferencia detectada</b>")
	assert.Contains(t, text, "<b>Source_Account</b>: BBVA Débito\n")
	assert.Contains(t, text, "dcapp://x-callback-url/transfer?")
}

func TestEncodeFields(t *testing.T) {
	fields := []api.Field{
		{Key: "notes", Value: "Lugar: Plaza/Centro"},
		{Key: "payee", Value: "Uber Eats"},
	}

	// Spaces become %20 and slashes stay literal.
	assert.Equal(t, "notes=Lugar%3A%20Plaza/Centro&payee=Uber%20Eats", encodeFields(fields))
}

func TestTitleKey(t *testing.T) {
	assert.Equal(t, "Amount", titleKey("amount"))
	assert.Equal(t, "Source_Account", titleKey("source_account"))
}

func TestInvoiceMessages(t *testing.T) {
	f := newFormatter(t)

	success := f.InvoiceSuccess("http://portal.example/pdf/777.pdf")
	assert.Contains(t, success, "<b>Facturación detectada ADO</b>")
	assert.Contains(t, success, "http://portal.example/pdf/777.pdf")

	group := api.TicketGroup{{Folio: "F1"}, {Folio: "F2"}}
	failure := f.InvoiceFailure(group, errors.New("submit: status 500"))
	assert.Contains(t, failure, "<b>Facturación fallida</b>")
	assert.Contains(t, failure, "F1, F2")
	assert.Contains(t, failure, "submit: status 500")

	unreadable := f.UnreadableTicket("http://vendor.example/t.pdf")
	assert.Contains(t, unreadable, "<b>Boleto ilegible</b>")
	assert.Contains(t, unreadable, "http://vendor.example/t.pdf")
}
