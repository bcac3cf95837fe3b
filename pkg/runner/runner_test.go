package runner

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yobain/facturabot/pkg/api"
	"github.com/yobain/facturabot/pkg/classifier"
	"github.com/yobain/facturabot/pkg/eligibility"
	"github.com/yobain/facturabot/pkg/notify"
)

type fakeMailbox struct {
	messages map[string][]api.ReceiptMessage
	fetchErr error
	deleted  map[string][]string
}

func (m *fakeMailbox) FetchMessages(_ context.Context, folderID string) ([]api.ReceiptMessage, error) {
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	return m.messages[folderID], nil
}

func (m *fakeMailbox) DeleteMessages(_ context.Context, ids []string, folderID string) map[string]error {
	if m.deleted == nil {
		m.deleted = make(map[string][]string)
	}
	m.deleted[folderID] = append(m.deleted[folderID], ids...)
	statuses := make(map[string]error, len(ids))
	for _, id := range ids {
		statuses[id] = nil
	}
	return statuses
}

type fakeNotifier struct {
	texts []string
}

func (n *fakeNotifier) Send(_ context.Context, text string) error {
	n.texts = append(n.texts, text)
	return nil
}

type fakeSubmitter struct {
	groups []api.TicketGroup
	link   string
	err    error
}

func (s *fakeSubmitter) Submit(_ context.Context, group api.TicketGroup) (string, error) {
	s.groups = append(s.groups, group)
	if s.err != nil {
		return "", s.err
	}
	return s.link, nil
}

const uberBody = `<html><body><table><tr><td>MX$125.00</td></tr></table></body></html>`

func fixedNow(t *testing.T) time.Time {
	t.Helper()
	loc, err := time.LoadLocation("America/Mexico_City")
	require.NoError(t, err)
	return time.Date(2026, time.August, 15, 9, 30, 0, 0, loc)
}

func newRunner(t *testing.T, mb *fakeMailbox, n *fakeNotifier, sub *fakeSubmitter) *Runner {
	t.Helper()

	formatter, err := notify.NewFormatter("America/Mexico_City")
	require.NoError(t, err)
	filter, err := eligibility.New("MARIA GUADALUPE LOPEZ")
	require.NoError(t, err)

	r := New(Config{ExpenseFolderID: "expenses", TicketFolderID: "tickets"}, Deps{
		Mailbox:    mb,
		Notifier:   n,
		Classifier: classifier.New(classifier.DefaultRules(nil), nil),
		Fetch:      func(context.Context, string) ([]byte, error) { return []byte("pdf"), nil },
		Filter:     filter,
		Submitter:  sub,
		Formatter:  formatter,
	}, nil)

	now := fixedNow(t)
	r.now = func() time.Time { return now }
	return r
}

func TestRunExpenses(t *testing.T) {
	mb := &fakeMailbox{messages: map[string][]api.ReceiptMessage{
		"expenses": {
			{ID: "m1", SenderName: "Uber Receipts", Subject: "Tu recibo de Uber Eats", Body: uberBody},
			{ID: "m2", SenderName: "Desconocido", Subject: "Promo"},
		},
	}}
	n := &fakeNotifier{}
	r := newRunner(t, mb, n, &fakeSubmitter{})

	require.NoError(t, r.RunExpenses(context.Background()))

	// One notification for the matched message, carrying the default account.
	require.Len(t, n.texts, 1)
	assert.Contains(t, n.texts[0], "<b>Gasto detectado</b>")
	assert.Contains(t, n.texts[0], "<b>Amount</b>: 125.00")
	assert.Contains(t, n.texts[0], "BBVA Crédito")

	// Only the processed message gets deleted; the unmatched one stays.
	assert.Equal(t, []string{"m1"}, mb.deleted["expenses"])
}

func TestRunExpenses_FetchFailureAborts(t *testing.T) {
	mb := &fakeMailbox{fetchErr: errors.New("graph down")}
	r := newRunner(t, mb, &fakeNotifier{}, &fakeSubmitter{})

	err := r.RunExpenses(context.Background())
	require.Error(t, err)
	assert.Empty(t, mb.deleted)
}

func ticketMessage(id string) api.ReceiptMessage {
	return api.ReceiptMessage{
		ID:         id,
		SenderName: "ADO en Linea",
		Body:       fmt.Sprintf(`<html><body><a href="http://vendor.example/%s.pdf">Boleto</a></body></html>`, id),
	}
}

func TestRunInvoicing(t *testing.T) {
	mb := &fakeMailbox{messages: map[string][]api.ReceiptMessage{
		"tickets": {ticketMessage("t1"), ticketMessage("t2")},
	}}
	n := &fakeNotifier{}
	sub := &fakeSubmitter{link: "http://portal.example/pdf/1.pdf"}
	r := newRunner(t, mb, n, sub)

	// July tickets against a mid-August reference: both in window, split by
	// passenger.
	byMessage := map[string][]api.TicketRecord{
		"t1": {{Folio: "F1", PassengerName: "MARIA GUADALUPE LOPEZ", TravelDate: "10 JUL 26", MessageID: "t1"}},
		"t2": {{Folio: "F2", PassengerName: "JUAN PEREZ GOMEZ", TravelDate: "12 JUL 26", MessageID: "t2"}},
	}
	r.parseTickets = func(_ []byte, messageID string) ([]api.TicketRecord, error) {
		return byMessage[messageID], nil
	}

	require.NoError(t, r.RunInvoicing(context.Background()))

	// One submission per non-empty group, primary first.
	require.Len(t, sub.groups, 2)
	assert.Equal(t, "F1", sub.groups[0][0].Folio)
	assert.Equal(t, "F2", sub.groups[1][0].Folio)

	require.Len(t, n.texts, 2)
	assert.Contains(t, n.texts[0], "Facturación detectada ADO")

	// Ticket emails are never deleted.
	assert.Empty(t, mb.deleted)
}

func TestRunInvoicing_UnreadablePDF(t *testing.T) {
	mb := &fakeMailbox{messages: map[string][]api.ReceiptMessage{
		"tickets": {ticketMessage("t1")},
	}}
	n := &fakeNotifier{}
	sub := &fakeSubmitter{}
	r := newRunner(t, mb, n, sub)
	r.parseTickets = func([]byte, string) ([]api.TicketRecord, error) {
		return nil, fmt.Errorf("opening ticket: %w", api.ErrUnreadablePDF)
	}

	require.NoError(t, r.RunInvoicing(context.Background()))

	require.Len(t, n.texts, 1)
	assert.Contains(t, n.texts[0], "Boleto ilegible")
	assert.Contains(t, n.texts[0], "http://vendor.example/t1.pdf")
	assert.Empty(t, sub.groups)
}

func TestRunInvoicing_SubmissionFailureNotifies(t *testing.T) {
	mb := &fakeMailbox{messages: map[string][]api.ReceiptMessage{
		"tickets": {ticketMessage("t1")},
	}}
	n := &fakeNotifier{}
	sub := &fakeSubmitter{err: errors.New("posting /facturar.jsp: status 500")}
	r := newRunner(t, mb, n, sub)
	r.parseTickets = func(_ []byte, messageID string) ([]api.TicketRecord, error) {
		return []api.TicketRecord{{Folio: "F1", PassengerName: "MARIA GUADALUPE LOPEZ", TravelDate: "10 JUL 26", MessageID: messageID}}, nil
	}

	require.NoError(t, r.RunInvoicing(context.Background()))

	require.Len(t, n.texts, 1)
	assert.Contains(t, n.texts[0], "Facturación fallida")
	assert.Contains(t, n.texts[0], "F1")
}

func TestRunInvoicing_BadTravelDateAborts(t *testing.T) {
	mb := &fakeMailbox{messages: map[string][]api.ReceiptMessage{
		"tickets": {ticketMessage("t1")},
	}}
	sub := &fakeSubmitter{}
	r := newRunner(t, mb, &fakeNotifier{}, sub)
	r.parseTickets = func(_ []byte, messageID string) ([]api.TicketRecord, error) {
		return []api.TicketRecord{{Folio: "F1", TravelDate: "10 XYZ 26", MessageID: messageID}}, nil
	}

	var dateErr *api.DateFormatError
	err := r.RunInvoicing(context.Background())
	require.True(t, errors.As(err, &dateErr))
	assert.Empty(t, sub.groups)
}
