package alm

import (
	"sort"
)

// TimelineBuilder merges all classified events into one time-ordered ledger
// with a running NAV. Given the same record set it produces a byte-identical
// ledger on every run.
type TimelineBuilder struct {
	ReportingCurrency string
}

// NewTimelineBuilder returns a builder reporting in the given currency.
func NewTimelineBuilder(reportingCurrency string) *TimelineBuilder {
	return &TimelineBuilder{ReportingCurrency: reportingCurrency}
}

// Build merges the record set into a new ledger. The running NAV is seeded
// from the earliest reported NAV snapshot; deposits and withdrawals booked
// before the first trading event then flow through it as ordinary events.
// Events belonging to an ambiguous assignment group are excluded from the
// NAV and carried on the ledger for manual review.
func (b *TimelineBuilder) Build(set *RecordSet, class *Classification, tracker *PositionTracker) *Ledger {
	ledger := &Ledger{
		ReportingCurrency: b.ReportingCurrency,
		Unresolved:        class.Unresolved,
	}
	if nav := earliestNav(set.Navs); nav != nil {
		ledger.OpeningNAV = nav.StartingValue
		ledger.Seeded = true
	}

	events := b.assemble(set, class, tracker, nil)
	running := ledger.OpeningNAV
	for i := range events {
		running = running.Add(events[i].CashImpact).Add(events[i].RealizedPnL)
		events[i].RunningNAV = running
	}
	ledger.Events = events
	return ledger
}

// Append adds events for transaction ids not already present in the
// baseline ledger, without altering existing rows. The running NAV continues
// from the baseline's closing NAV. The tracker should be restored from the
// persisted open positions so closes against baseline lots resolve.
func (b *TimelineBuilder) Append(baseline *Ledger, set *RecordSet, class *Classification, tracker *PositionTracker) []FinancialEvent {
	seen := make(map[string]bool, len(baseline.Events))
	for _, e := range baseline.Events {
		seen[e.TransactionID] = true
	}
	events := b.assemble(set, class, tracker, seen)
	running := baseline.ClosingNAV()
	for i := range events {
		running = running.Add(events[i].CashImpact).Add(events[i].RealizedPnL)
		events[i].RunningNAV = running
	}
	baseline.Events = append(baseline.Events, events...)
	return events
}

// assemble classifies and orders the record set into events, skipping
// transaction ids listed in seen. Running NAV is left to the caller.
func (b *TimelineBuilder) assemble(set *RecordSet, class *Classification, tracker *PositionTracker, seen map[string]bool) []FinancialEvent {
	type entry struct {
		trade *TradeRecord
		cash  *CashRecord
	}
	var entries []entry
	for i := range set.Trades {
		t := &set.Trades[i]
		if seen[t.TransactionID] || class.IsUnresolved(t.TransactionID) {
			continue
		}
		entries = append(entries, entry{trade: t})
	}
	for i := range set.Cash {
		c := &set.Cash[i]
		if seen[c.TransactionID] {
			continue
		}
		entries = append(entries, entry{cash: c})
	}

	// order by timestamp, ties broken by transaction id for determinism
	key := func(e entry) (int64, string) {
		if e.trade != nil {
			return e.trade.Time.UnixNano(), e.trade.TransactionID
		}
		return e.cash.Time.UnixNano(), e.cash.TransactionID
	}
	sort.Slice(entries, func(i, j int) bool {
		ti, idi := key(entries[i])
		tj, idj := key(entries[j])
		if ti != tj {
			return ti < tj
		}
		return idi < idj
	})

	events := make([]FinancialEvent, 0, len(entries))
	for _, e := range entries {
		if e.trade != nil {
			events = append(events, b.tradeEvent(*e.trade, class, tracker))
		} else {
			events = append(events, b.cashEvent(*e.cash))
		}
	}
	return events
}

func (b *TimelineBuilder) tradeEvent(t TradeRecord, class *Classification, tracker *PositionTracker) FinancialEvent {
	fx := fxOrOne(t.FXRate, t.Currency, b.ReportingCurrency)
	ev := FinancialEvent{
		Time:          t.Time,
		Kind:          KindTrade,
		Symbol:        t.Symbol,
		Commission:    t.Commission.Mul(fx),
		Currency:      t.Currency,
		TransactionID: t.TransactionID,
	}
	if kind, ok := class.Kinds[t.TransactionID]; ok {
		ev.Kind = kind
	}

	switch {
	case ev.Kind == KindExpiration:
		// worthless expiry: no cash moves, P&L taken verbatim from the leg
		ev.RealizedPnL = t.FifoPnL.Mul(fx)
	case ev.Kind == KindAssignment && t.IsStock():
		// an assignment opens exactly one new position, zero realized P&L
		p := tracker.Open(t)
		ev.PositionID = p.ID
		ev.CashImpact = t.Proceeds.Add(t.Commission).Mul(fx)
	case t.IsStock():
		closed, opened, realized := tracker.Apply(t)
		ev.RealizedPnL = realized
		ev.CashImpact = t.Proceeds.Add(t.Commission).Mul(fx)
		switch {
		case len(closed) > 0:
			ev.PositionID = closed[0].ID
		case opened != nil:
			ev.PositionID = opened.ID
		}
	default:
		// option legs are not position-tracked: the export's own FIFO
		// realized value is authoritative for them
		ev.RealizedPnL = t.FifoPnL.Mul(fx)
		ev.CashImpact = t.Proceeds.Add(t.Commission).Mul(fx)
	}
	return ev
}

func (b *TimelineBuilder) cashEvent(c CashRecord) FinancialEvent {
	fx := fxOrOne(c.FXRate, c.Currency, b.ReportingCurrency)
	return FinancialEvent{
		Time:          c.Time,
		Kind:          KindCashMovement,
		CashImpact:    c.Amount.Mul(fx),
		Currency:      c.Currency,
		TransactionID: c.TransactionID,
		External:      c.IsExternal(),
	}
}

// earliestNav returns the snapshot whose period starts first, or nil.
func earliestNav(navs []NavRecord) *NavRecord {
	var best *NavRecord
	for i := range navs {
		if best == nil || navs[i].FromDate.Before(best.FromDate) {
			best = &navs[i]
		}
	}
	return best
}
