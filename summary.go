package alm

import (
	"time"

	"github.com/shopspring/decimal"
)

// DailySummary is the roll-up of one calendar date of the ledger, in the
// reporting currency.
type DailySummary struct {
	Date        Date            `json:"date"`
	OpeningNAV  decimal.Decimal `json:"openingNav"`
	ClosingNAV  decimal.Decimal `json:"closingNav"`
	TotalPnL    decimal.Decimal `json:"totalPnl"`    // gross realized P&L
	NetCashFlow decimal.Decimal `json:"netCashFlow"` // signed cash impact
	Commissions decimal.Decimal `json:"commissions"` // signed, usually negative
	Flagged     bool            `json:"flagged,omitempty"`
	Err         string          `json:"error,omitempty"` // non-empty when this day failed to aggregate
}

// SummaryAggregator rolls the ledger into per-day summaries. Dates are
// bucketed in the reporting timezone; any number of distinct dates is
// supported in a single run.
type SummaryAggregator struct {
	Location *time.Location
}

// NewSummaryAggregator returns an aggregator bucketing days in loc
// (UTC when nil).
func NewSummaryAggregator(loc *time.Location) *SummaryAggregator {
	return &SummaryAggregator{Location: loc}
}

// Aggregate builds one summary per calendar date present in the ledger, in
// chronological order.
//
// The first day's opening NAV is the ledger's reported opening value; every
// later day opens at the previous day's close, which a deposit-only day
// still moves. When the ledger was never seeded the first day is marked
// failed with ErrMissingPriorDayNav and later days proceed from the running
// chain.
func (a *SummaryAggregator) Aggregate(ledger *Ledger) []DailySummary {
	var summaries []DailySummary
	var current *DailySummary

	for _, e := range ledger.Events {
		day := DateOf(e.Time, a.Location)
		if current == nil || day.After(current.Date) {
			opening := ledger.OpeningNAV
			if current != nil {
				opening = current.ClosingNAV
			}
			summaries = append(summaries, DailySummary{Date: day, OpeningNAV: opening})
			current = &summaries[len(summaries)-1]
		}
		current.TotalPnL = current.TotalPnL.Add(e.RealizedPnL)
		current.NetCashFlow = current.NetCashFlow.Add(e.CashImpact)
		current.Commissions = current.Commissions.Add(e.Commission)
		current.ClosingNAV = e.RunningNAV
	}

	if len(summaries) > 0 && !ledger.Seeded {
		summaries[0].Err = ErrMissingPriorDayNav.Error()
	}
	return summaries
}
