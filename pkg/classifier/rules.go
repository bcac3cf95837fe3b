package classifier

import (
	"context"
	"strings"

	"github.com/yobain/facturabot/pkg/api"
	"github.com/yobain/facturabot/pkg/parser"
)

// DefaultRules is the production dispatch table. Adding a vendor means
// appending one entry here plus its parser function; existing entries are
// never touched.
func DefaultRules(fetch Fetcher) []Rule {
	return []Rule{
		{
			Name:            "uber-eats",
			Sender:          "Uber Receipts",
			SubjectContains: "Uber Eats",
			Extract: func(_ context.Context, msg api.ReceiptMessage) ([]api.TransactionRecord, error) {
				amount, err := parser.ParseUberAmount(msg.Body)
				if err != nil {
					return nil, err
				}
				return []api.TransactionRecord{{
					Amount:      amount,
					Description: "Comida",
					Category:    "Comida",
					Payee:       "Uber Eats",
				}}, nil
			},
		},
		{
			Name:   "uber",
			Sender: "Uber Receipts",
			Extract: func(_ context.Context, msg api.ReceiptMessage) ([]api.TransactionRecord, error) {
				amount, err := parser.ParseUberAmount(msg.Body)
				if err != nil {
					return nil, err
				}
				return []api.TransactionRecord{{
					Amount:      amount,
					Description: "Uber",
					Category:    "Taxi",
					Payee:       "Uber",
				}}, nil
			},
		},
		{
			Name:   "ado",
			Sender: "ADO en Linea",
			Extract: func(ctx context.Context, msg api.ReceiptMessage) ([]api.TransactionRecord, error) {
				link, err := parser.TicketPDFLink(msg.Body)
				if err != nil {
					return nil, err
				}
				doc, err := fetch(ctx, link)
				if err != nil {
					return nil, err
				}
				totals, err := parser.TicketPageTotals(doc)
				if err != nil {
					return nil, err
				}

				records := make([]api.TransactionRecord, 0, len(totals))
				for _, total := range totals {
					records = append(records, api.TransactionRecord{
						Amount:      total,
						Description: "ADO",
						Category:    "Deudas",
						Payee:       "ADO",
						Tag:         "Deudas",
					})
				}
				return records, nil
			},
		},
		{
			Name:   "parkimovil",
			Sender: "Parkimovil",
			Extract: func(_ context.Context, msg api.ReceiptMessage) ([]api.TransactionRecord, error) {
				amount, place, err := parser.ParseParkimovil(msg.Body)
				if err != nil {
					return nil, err
				}
				return []api.TransactionRecord{{
					Amount:      amount,
					Description: "Estacionamiento",
					Category:    "Servicios",
					Payee:       "Parkimovil",
					Notes:       "Lugar: " + place,
				}}, nil
			},
		},
		{
			Name:            "apple",
			Sender:          "Apple",
			SubjectContains: "Your receipt from Apple.",
			Extract: func(_ context.Context, msg api.ReceiptMessage) ([]api.TransactionRecord, error) {
				amount, items, err := parser.ParseAppleReceipt(msg.Body)
				if err != nil {
					return nil, err
				}
				return []api.TransactionRecord{{
					Amount:      amount,
					Description: strings.Join(items, ", "),
					Category:    "Servicios",
					Payee:       "Apple",
				}}, nil
			},
		},
	}
}
