package alm

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Reconciliation statuses.
const (
	StatusOK     = "OK"
	StatusFailed = "FAILED"
)

// ReconciliationResult compares one day's computed summary with externally
// reported values.
type ReconciliationResult struct {
	Date          Date            `json:"date"`
	OpeningNAV    decimal.Decimal `json:"openingNav"`
	ClosingNAV    decimal.Decimal `json:"closingNav"`
	TotalPnL      decimal.Decimal `json:"totalPnl"`
	NetCashFlow   decimal.Decimal `json:"netCashFlow"`
	ReportedNAV   decimal.Decimal `json:"reportedNav"`
	Discrepancy   decimal.Decimal `json:"discrepancy"`
	NaiveReturn   decimal.Decimal `json:"naiveReturn"`   // gross P&L over opening NAV
	CorrectReturn decimal.Decimal `json:"correctReturn"` // net P&L over the flow-adjusted base
	Violations    []string        `json:"violations,omitempty"`
	Status        string          `json:"status"`
}

// ReconciliationReport is the engine's final output: one structured result
// per day plus an overall pass/fail usable as a pre-refresh safety gate.
type ReconciliationReport struct {
	Days       []ReconciliationResult `json:"days"`
	Unresolved []UnresolvedGroup      `json:"unresolved,omitempty"`
	Pass       bool                   `json:"pass"`
}

// Reconciler flags mismatches between computed summaries and broker-reported
// figures.
type Reconciler struct {
	Tolerance       decimal.Decimal // absolute NAV tolerance, reporting currency
	ReturnTolerance decimal.Decimal // rounding tolerance on the daily-return cross-check
	Location        *time.Location  // reporting timezone
	MarketOpen      time.Duration   // offset of market open from local midnight
}

// NewReconciler returns a reconciler with the given NAV tolerance and a
// 09:30 local market open. The return cross-check tolerance defaults to one
// basis point.
func NewReconciler(tolerance decimal.Decimal, loc *time.Location) *Reconciler {
	return &Reconciler{
		Tolerance:       tolerance,
		ReturnTolerance: decimal.New(1, -4),
		Location:        loc,
		MarketOpen:      9*time.Hour + 30*time.Minute,
	}
}

// Reconcile checks every daily summary against reported NAV snapshots and
// performs the dual daily-return check.
//
// The naive return divides gross P&L by the raw opening NAV; the correct
// return divides net-of-commission P&L by an NAV base adjusted for external
// deposits posted before that day's market open. The two must agree within
// rounding: a divergence means the wrong denominator was used upstream and
// flags the day.
func (r *Reconciler) Reconcile(ledger *Ledger, summaries []DailySummary, navs []NavRecord) *ReconciliationReport {
	reported := make(map[Date]decimal.Decimal)
	for _, n := range navs {
		// a snapshot reports the NAV at the close of its last covered day
		reported[n.ToDate] = n.EndingValue
	}

	report := &ReconciliationReport{Unresolved: ledger.Unresolved, Pass: true}
	for i := range summaries {
		s := &summaries[i]
		res := ReconciliationResult{
			Date:        s.Date,
			OpeningNAV:  s.OpeningNAV,
			ClosingNAV:  s.ClosingNAV,
			TotalPnL:    s.TotalPnL,
			NetCashFlow: s.NetCashFlow,
			Status:      StatusOK,
		}
		if s.Err != "" {
			res.Violations = append(res.Violations, s.Err)
		}

		if nav, ok := reported[s.Date]; ok {
			res.ReportedNAV = nav
			res.Discrepancy = s.ClosingNAV.Sub(nav)
			if res.Discrepancy.Abs().GreaterThan(r.Tolerance) {
				res.Violations = append(res.Violations,
					fmt.Sprintf("closing NAV %s differs from reported %s by %s",
						M(s.ClosingNAV, ledger.ReportingCurrency),
						M(nav, ledger.ReportingCurrency),
						M(res.Discrepancy, ledger.ReportingCurrency).SignedString()))
			}
		}

		res.NaiveReturn = safeDiv(s.TotalPnL, s.OpeningNAV)
		base := s.OpeningNAV.Add(r.preOpenFlows(ledger, s.Date))
		net := s.TotalPnL.Add(s.Commissions)
		res.CorrectReturn = safeDiv(net, base)
		if res.NaiveReturn.Sub(res.CorrectReturn).Abs().GreaterThan(r.ReturnTolerance) {
			res.Violations = append(res.Violations,
				fmt.Sprintf("daily return mismatch: naive %s vs %s on the adjusted base",
					res.NaiveReturn, res.CorrectReturn))
		}

		if len(res.Violations) > 0 {
			res.Status = StatusFailed
			s.Flagged = true
			report.Pass = false
		}
		report.Days = append(report.Days, res)
	}
	return report
}

// preOpenFlows sums external cash movements booked on the given day before
// market open in the reporting timezone.
func (r *Reconciler) preOpenFlows(ledger *Ledger, day Date) decimal.Decimal {
	loc := r.Location
	if loc == nil {
		loc = time.UTC
	}
	var total decimal.Decimal
	for _, e := range ledger.Events {
		if e.Kind != KindCashMovement || !e.External {
			continue
		}
		if DateOf(e.Time, loc) != day {
			continue
		}
		local := e.Time.In(loc)
		midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
		if local.Sub(midnight) < r.MarketOpen {
			total = total.Add(e.CashImpact)
		}
	}
	return total
}

// safeDiv returns a/b, or zero when b is zero.
func safeDiv(a, b decimal.Decimal) decimal.Decimal {
	if b.IsZero() {
		return decimal.Zero
	}
	return a.Div(b)
}
