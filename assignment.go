package alm

import (
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Classification is the output of assignment detection: a kind per booking
// transaction id, the inferred option→stock links, and the groups that could
// not be resolved automatically.
type Classification struct {
	Kinds      map[string]EventKind // booking transaction id → Assignment or Expiration
	Links      map[string]string    // option leg transaction id → stock leg transaction id
	Unresolved []UnresolvedGroup
}

// UnresolvedGroup is a booking timestamp with more than one plausible
// stock/option pairing. Its events are excluded from NAV computation and
// surfaced for manual review rather than guessed.
type UnresolvedGroup struct {
	Time           time.Time
	TransactionIDs []string
}

// IsUnresolved reports whether the transaction id belongs to an ambiguous
// assignment group.
func (c *Classification) IsUnresolved(transactionID string) bool {
	for _, g := range c.Unresolved {
		if slices.Contains(g.TransactionIDs, transactionID) {
			return true
		}
	}
	return false
}

// DetectAssignments infers option assignment and exercise links from
// simultaneous stock and option settlement bookings.
//
// The export never links an assignment to the stock trade it produces; the
// relationship is implicit in the booking timestamp. Two passes: index every
// internal settlement booking by exact timestamp, then reduce each bucket:
//
//   - one stock leg and one or more option legs: every leg is an Assignment,
//     each option leg linked to the stock leg;
//   - option legs only: each leg is an Expiration (zero cash impact, realized
//     P&L taken verbatim from the leg's reported value);
//   - more than one stock leg: ambiguous, left unresolved.
func DetectAssignments(trades []TradeRecord, log zerolog.Logger) *Classification {
	buckets := make(map[time.Time][]TradeRecord)
	for _, t := range trades {
		if !t.IsBooking() {
			continue
		}
		buckets[t.Time] = append(buckets[t.Time], t)
	}

	c := &Classification{
		Kinds: make(map[string]EventKind),
		Links: make(map[string]string),
	}
	for when, legs := range buckets {
		var stocks, options []TradeRecord
		for _, leg := range legs {
			switch {
			case leg.IsStock():
				stocks = append(stocks, leg)
			case leg.IsOption():
				options = append(options, leg)
			}
		}
		switch {
		case len(stocks) == 1 && len(options) >= 1:
			c.Kinds[stocks[0].TransactionID] = KindAssignment
			for _, opt := range options {
				c.Kinds[opt.TransactionID] = KindAssignment
				c.Links[opt.TransactionID] = stocks[0].TransactionID
			}
		case len(stocks) == 0 && len(options) >= 1:
			for _, opt := range options {
				c.Kinds[opt.TransactionID] = KindExpiration
			}
		case len(stocks) > 1:
			ids := make([]string, 0, len(legs))
			for _, leg := range legs {
				ids = append(ids, leg.TransactionID)
			}
			sort.Strings(ids)
			c.Unresolved = append(c.Unresolved, UnresolvedGroup{Time: when, TransactionIDs: ids})
			log.Warn().
				Time("booked_at", when).
				Str("transaction_ids", strings.Join(ids, ",")).
				Msg("ambiguous assignment group, excluded from NAV")
		}
	}
	sort.Slice(c.Unresolved, func(i, j int) bool {
		return c.Unresolved[i].Time.Before(c.Unresolved[j].Time)
	})
	return c
}
