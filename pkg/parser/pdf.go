package parser

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/shopspring/decimal"

	"github.com/yobain/facturabot/pkg/api"
)

// Per-field patterns anchored between the literal labels printed on an ADO
// ticket page. A page that misses any of them is not a ticket.
var (
	reFolio      = regexp.MustCompile(`^\d+`)
	rePassenger  = regexp.MustCompile(`/NAME(.+)ORIGEN`)
	reSeat       = regexp.MustCompile(`SEAT(.+)FECHA`)
	rePrice      = regexp.MustCompile(`\$ (.+)PRECIO`)
	reTravelDate = regexp.MustCompile(`/DATEADULTO[^\d]+(.+)HORA/HOUR`)
	rePageTotal  = regexp.MustCompile(`\$ (.+)PRECIO TOTAL`)
)

// ParseTicketPDF extracts one TicketRecord per page of an ADO ticket PDF,
// in page order. A PDF the decoder cannot open (typically a cancelled or
// exchanged ticket) returns api.ErrUnreadablePDF; a page missing a required
// field returns a ParseError for the whole document.
func ParseTicketPDF(doc []byte, messageID string) ([]api.TicketRecord, error) {
	pages, err := pageTexts(doc)
	if err != nil {
		return nil, err
	}

	tickets := make([]api.TicketRecord, 0, len(pages))
	for _, text := range pages {
		ticket, err := parseTicketPage(text, messageID)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, ticket)
	}
	return tickets, nil
}

// TicketPageTotals returns the printed total of each page of an ADO ticket
// PDF, in page order. Used by the expense records, one per page.
func TicketPageTotals(doc []byte) ([]decimal.Decimal, error) {
	pages, err := pageTexts(doc)
	if err != nil {
		return nil, err
	}

	totals := make([]decimal.Decimal, 0, len(pages))
	for _, text := range pages {
		m := rePageTotal.FindStringSubmatch(text)
		if m == nil {
			return nil, &api.ParseError{Source: "ado-pdf", Field: "total"}
		}
		amount, err := parseAmount("ado-pdf", "total", strings.TrimSpace(m[1]))
		if err != nil {
			return nil, err
		}
		totals = append(totals, amount)
	}
	return totals, nil
}

func parseTicketPage(text, messageID string) (api.TicketRecord, error) {
	fields := []struct {
		name string
		re   *regexp.Regexp
	}{
		{"folio", reFolio},
		{"passenger_name", rePassenger},
		{"seat", reSeat},
		{"price", rePrice},
		{"travel_date", reTravelDate},
	}

	values := make(map[string]string, len(fields))
	for _, f := range fields {
		m := f.re.FindStringSubmatch(text)
		if m == nil {
			return api.TicketRecord{}, &api.ParseError{Source: "ado-pdf", Field: f.name}
		}
		// The folio pattern has no capture group; it is the leading digits.
		if len(m) > 1 {
			values[f.name] = m[1]
		} else {
			values[f.name] = m[0]
		}
	}

	price, err := parseAmount("ado-pdf", "price", strings.TrimSpace(values["price"]))
	if err != nil {
		return api.TicketRecord{}, err
	}

	return api.TicketRecord{
		Folio:         values["folio"],
		PassengerName: values["passenger_name"],
		Seat:          values["seat"],
		Price:         price,
		TravelDate:    strings.TrimSpace(values["travel_date"]),
		MessageID:     messageID,
	}, nil
}

// pageTexts decodes every page of the PDF to plain text, in page order.
// The pdf library panics on some malformed documents, so decoding runs
// behind a recover and any failure is mapped to api.ErrUnreadablePDF.
func pageTexts(doc []byte) (pages []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("%w: decoder panic: %v", api.ErrUnreadablePDF, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(doc), int64(len(doc)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", api.ErrUnreadablePDF, err)
	}

	numPages := reader.NumPage()
	if numPages == 0 {
		return nil, fmt.Errorf("%w: document has no pages", api.ErrUnreadablePDF)
	}

	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			return nil, fmt.Errorf("%w: page %d is empty", api.ErrUnreadablePDF, i)
		}

		fonts := make(map[string]*pdf.Font)
		for _, name := range page.Fonts() {
			f := page.Font(name)
			fonts[name] = &f
		}

		text, err := page.GetPlainText(fonts)
		if err != nil {
			return nil, fmt.Errorf("%w: page %d: %v", api.ErrUnreadablePDF, i, err)
		}
		pages = append(pages, text)
	}
	return pages, nil
}
