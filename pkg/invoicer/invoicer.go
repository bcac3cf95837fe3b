// Package invoicer drives the billing portal's invoicing protocol for one
// ticket group: validate each ticket, register the lot, scrape the
// pre-filled customer form, submit the combined invoice.
package invoicer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/yobain/facturabot/pkg/api"
)

const (
	validatePath = "/jsp/validate.jsp"
	registerPath = "/register.jsp"
	submitPath   = "/facturar.jsp"

	// noLot is the sentinel lot id sent with the first validation; the
	// portal mints a real lot and echoes it back.
	noLot = -1

	requestTimeout = 2 * time.Minute
)

// customerFieldIDs are the form elements scraped out of the registration
// response by element id.
var customerFieldIDs = []string{
	"RRfc",
	"IDDatosCliente",
	"RName",
	"RCalle",
	"RColonia",
	"RNumExt",
	"RNumInt",
	"RMunicipio",
	"RCodigoPostal",
	"RPais",
	"REmail",
}

// reDownloadLink pulls the PDF URL out of the download button's inline
// click handler, e.g. window.open('http://.../factura.pdf').
var reDownloadLink = regexp.MustCompile(`\('(.+)'\)`)

// Config holds the portal parameters.
type Config struct {
	// BaseURL is the portal root, e.g. http://factura.grupoado.com.mx.
	BaseURL string
	// TaxID is the RFC the invoices are issued to.
	TaxID string
	// InvoiceEmail always replaces the scraped contact address, so the
	// portal never mails the invoice to whatever is on file.
	InvoiceEmail string
}

// Submitter runs the invoicing protocol. Safe to reuse across groups: every
// Submit call builds a fresh session.
type Submitter struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a Submitter.
func New(cfg Config, logger *slog.Logger) *Submitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Submitter{cfg: cfg, logger: logger}
}

// session is the transient state of one submission: a cookie-bearing client
// (the portal tracks the lot server-side against the session) and the lot
// id accumulated by the validation calls.
type session struct {
	client *http.Client
	lotID  int
}

// Submit invoices the whole group and returns the invoice PDF link. Any
// step failure returns a PortalStepError and aborts the group; nothing is
// retried, since re-running a partially applied protocol risks a duplicate
// invoice. No state survives the call: a later retry starts from a clean
// session with the sentinel lot id.
func (s *Submitter) Submit(ctx context.Context, group api.TicketGroup) (string, error) {
	if len(group) == 0 {
		return "", &api.PortalStepError{Step: "validate", Err: fmt.Errorf("empty ticket group")}
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return "", &api.PortalStepError{Step: "validate", Err: err}
	}
	sess := &session{
		client: &http.Client{Jar: jar, Timeout: requestTimeout},
		lotID:  noLot,
	}

	if err := s.validate(ctx, sess, group); err != nil {
		return "", &api.PortalStepError{Step: "validate", Err: err}
	}

	registration, err := s.register(ctx, sess, group)
	if err != nil {
		return "", &api.PortalStepError{Step: "register", Err: err}
	}

	fields, err := s.scrapeCustomerFields(registration, sess.lotID)
	if err != nil {
		return "", &api.PortalStepError{Step: "scrape", Err: err}
	}

	link, err := s.submit(ctx, sess, fields)
	if err != nil {
		return "", &api.PortalStepError{Step: "submit", Err: err}
	}

	s.logger.Info("invoice submitted", "lot_id", sess.lotID, "tickets", len(group), "link", link)
	return link, nil
}

// validate posts every ticket in order. Each request carries the lot id the
// previous response returned, so the calls cannot be reordered or run in
// parallel: the lot only exists as the thread between them.
func (s *Submitter) validate(ctx context.Context, sess *session, group api.TicketGroup) error {
	for _, ticket := range group {
		form := url.Values{
			"tipo":    {"validateFolio"},
			"folio":   {ticket.Folio},
			"asiento": {ticket.Seat},
			"rfc":     {s.cfg.TaxID},
			"idl":     {strconv.Itoa(sess.lotID)},
		}

		body, err := s.postForm(ctx, sess, validatePath, form)
		if err != nil {
			return fmt.Errorf("folio %s: %w", ticket.Folio, err)
		}

		lot, err := lotFromResponse(body)
		if err != nil {
			return fmt.Errorf("folio %s: %w", ticket.Folio, err)
		}

		s.logger.Debug("ticket validated", "folio", ticket.Folio, "seat", ticket.Seat, "lot_id", lot)
		sess.lotID = lot
	}
	return nil
}

// lotFromResponse reads the new lot id from the validation response, a JSON
// array whose first element carries it in IDL. The portal is loose about
// whether IDL arrives as a number or a string.
func lotFromResponse(body []byte) (int, error) {
	var entries []struct {
		IDL json.Number `json:"IDL"`
	}
	if err := json.Unmarshal(body, &entries); err != nil {
		return 0, fmt.Errorf("decoding validation response: %w", err)
	}
	if len(entries) == 0 {
		return 0, fmt.Errorf("validation response is empty")
	}

	lot, err := strconv.Atoi(entries[0].IDL.String())
	if err != nil {
		return 0, fmt.Errorf("lot id %q: %w", entries[0].IDL, err)
	}
	return lot, nil
}

// register opens the invoice for the accumulated lot and returns the HTML
// customer form. A single-ticket group additionally identifies the ticket
// itself; batches leave those fields empty.
func (s *Submitter) register(ctx context.Context, sess *session, group api.TicketGroup) ([]byte, error) {
	form := url.Values{
		"sch_RFC":           {s.cfg.TaxID},
		"idlote":            {strconv.Itoa(sess.lotID)},
		"rfc":               {s.cfg.TaxID},
		"sch_Id_Ticket":     {""},
		"sch_Ticket_Amount": {""},
	}
	if len(group) == 1 {
		form.Set("sch_Id_Ticket", group[0].Folio)
		form.Set("sch_Ticket_Amount", group[0].Seat)
	}

	return s.postForm(ctx, sess, registerPath, form)
}

// scrapeCustomerFields assembles the submission payload from the
// registration response: the form values by element id, two values buried
// in inline script text, the lot id, and the fixed email override.
func (s *Submitter) scrapeCustomerFields(registration []byte, lotID int) (url.Values, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(registration)))
	if err != nil {
		return nil, fmt.Errorf("parsing registration response: %w", err)
	}

	fields := url.Values{}
	for _, id := range customerFieldIDs {
		value, ok := doc.Find("#" + id).Attr("value")
		if !ok {
			return nil, fmt.Errorf("registration form is missing #%s", id)
		}
		fields.Set(id, value)
	}

	// RNac and REstado are select elements whose values only exist inside
	// the page's script, not as form values.
	for _, id := range []string{"RNac", "REstado"} {
		value, ok := scriptValue(string(registration), "#"+id)
		if !ok {
			return nil, fmt.Errorf("registration script is missing %s", id)
		}
		fields.Set(id, value)
	}

	// The submission endpoint wants the client id and lot under different
	// keys than the form uses.
	fields.Set("id_datos_cliente", fields.Get("IDDatosCliente"))
	fields.Del("IDDatosCliente")
	fields.Set("idlo", strconv.Itoa(lotID))

	// Never let the portal mail the invoice to the address on file.
	fields.Set("REmail", s.cfg.InvoiceEmail)

	return fields, nil
}

// scriptValue extracts a value the page assigns to a CSS-selector-like
// string in inline script, e.g. $('#RNac [value="MEX"]'). This is a
// pattern match over raw HTML, deliberately separate from the structured
// DOM lookups: it is the fragile part and is tested on its own.
func scriptValue(body, selector string) (string, bool) {
	re := regexp.MustCompile(regexp.QuoteMeta(selector) + ` \[value="(.+)"\]`)
	m := re.FindStringSubmatch(body)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// submit posts the assembled fields and pulls the invoice PDF link out of
// the download button's click handler.
func (s *Submitter) submit(ctx context.Context, sess *session, fields url.Values) (string, error) {
	body, err := s.postForm(ctx, sess, submitPath, fields)
	if err != nil {
		return "", err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return "", fmt.Errorf("parsing submission response: %w", err)
	}

	handler, ok := doc.Find("#buttondwPDF").Attr("onclick")
	if !ok {
		return "", fmt.Errorf("submission response has no download button")
	}

	m := reDownloadLink.FindStringSubmatch(handler)
	if m == nil {
		return "", fmt.Errorf("no download link in handler %q", handler)
	}
	return m[1], nil
}

func (s *Submitter) postForm(ctx context.Context, sess *session, path string, form url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.BaseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := sess.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("posting %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("posting %s: status %d", path, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s response: %w", path, err)
	}
	return body, nil
}
