// Package eligibility selects which tickets get invoiced this run: only
// tickets travelled in the trailing calendar month, split by how closely
// the passenger name matches the configured primary traveler.
package eligibility

import (
	"fmt"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"

	"github.com/yobain/facturabot/pkg/api"
)

// Zone is the civil timezone all date math happens in.
const Zone = "America/Mexico_City"

// nameDistanceThreshold is inclusive: a distance of exactly 5 still counts
// as the primary passenger. Vendor names carry OCR noise, dropped accents
// and reordered surnames.
const nameDistanceThreshold = 5

// Ticket dates print the month as a Spanish three-letter abbreviation.
var months = map[string]time.Month{
	"ENE": time.January,
	"FEB": time.February,
	"MAR": time.March,
	"ABR": time.April,
	"MAY": time.May,
	"JUN": time.June,
	"JUL": time.July,
	"AGO": time.August,
	"SEP": time.September,
	"OCT": time.October,
	"NOV": time.November,
	"DIC": time.December,
}

// Filter partitions tickets by passenger.
type Filter struct {
	primaryName string
	loc         *time.Location
}

// New creates a Filter for the given primary passenger name.
func New(primaryName string) (*Filter, error) {
	loc, err := time.LoadLocation(Zone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %s: %w", Zone, err)
	}
	return &Filter{primaryName: primaryName, loc: loc}, nil
}

// Filter drops tickets outside the trailing-month window of ref and splits
// the rest into the primary passenger's group and everyone else's. Dropping
// is silent: an out-of-window ticket is expected, not an error. An
// unparseable travel date fails the whole step with DateFormatError, since
// it means an extraction rule drifted, not that the input is bad.
func (f *Filter) Filter(tickets []api.TicketRecord, ref time.Time) (primary, other api.TicketGroup, err error) {
	windowEnd := monthStart(ref.In(f.loc))
	windowStart := windowEnd.AddDate(0, -1, 0)

	for _, ticket := range tickets {
		travel, err := f.parseTravelDate(ticket.TravelDate)
		if err != nil {
			return nil, nil, err
		}

		// Half-open window: a ticket dated exactly at the reference month's
		// first instant belongs to the next billing cycle.
		if travel.Before(windowStart) || !travel.Before(windowEnd) {
			continue
		}

		if levenshtein.ComputeDistance(ticket.PassengerName, f.primaryName) <= nameDistanceThreshold {
			primary = append(primary, ticket)
		} else {
			other = append(other, ticket)
		}
	}
	return primary, other, nil
}

// parseTravelDate reads the vendor's "02 ENE 06" format.
func (f *Filter) parseTravelDate(value string) (time.Time, error) {
	parts := strings.Fields(value)
	if len(parts) != 3 {
		return time.Time{}, &api.DateFormatError{Value: value}
	}

	month, ok := months[parts[1]]
	if !ok {
		return time.Time{}, &api.DateFormatError{Value: value}
	}

	numeric := fmt.Sprintf("%s %02d %s", parts[0], month, parts[2])
	travel, err := time.ParseInLocation("02 01 06", numeric, f.loc)
	if err != nil {
		return time.Time{}, &api.DateFormatError{Value: value}
	}
	return travel, nil
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}
