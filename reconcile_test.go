package alm

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

// The deposit-before-open scenario: a large deposit posts before market
// open, so the naive return (gross P&L over the raw opening NAV) grossly
// overstates the day and must be flagged against the correct return.
func TestReconcile_DualReturnCheck(t *testing.T) {
	ledger := &Ledger{
		ReportingCurrency: "USD",
		OpeningNAV:        dec(79299.20),
		Seeded:            true,
		Events: []FinancialEvent{
			{
				Time:          ts("2025-06-27T08:00:00Z"),
				Kind:          KindCashMovement,
				CashImpact:    dec(119945.00),
				TransactionID: "C1",
				Currency:      "USD",
				External:      true,
			},
		},
	}
	summaries := []DailySummary{{
		Date:        MustParseDate("2025-06-27"),
		OpeningNAV:  dec(79299.20),
		ClosingNAV:  dec(199676.27),
		TotalPnL:    dec(463.29),
		NetCashFlow: dec(119945.00),
		Commissions: dec(-31.22),
	}}

	report := NewReconciler(dec(1), time.UTC).Reconcile(ledger, summaries, nil)
	if len(report.Days) != 1 {
		t.Fatalf("got %d result rows, want 1", len(report.Days))
	}
	res := report.Days[0]

	if got := res.NaiveReturn.Round(6); !got.Equal(dec(0.005842)) {
		t.Errorf("naive return %s, want 0.005842", got)
	}
	// net P&L 432.07 over the adjusted base 199244.20
	if got := res.CorrectReturn.Round(6); !got.Equal(dec(0.002169)) {
		t.Errorf("correct return %s, want 0.002169", got)
	}
	if res.Status != StatusFailed {
		t.Error("diverging returns did not fail the day")
	}
	if report.Pass {
		t.Error("report passed despite a return mismatch")
	}
	found := false
	for _, v := range res.Violations {
		if strings.Contains(v, "daily return mismatch") {
			found = true
		}
	}
	if !found {
		t.Errorf("violations %v lack the return mismatch", res.Violations)
	}
}

func TestReconcile_AgreeingReturnsPass(t *testing.T) {
	// no pre-open flows and no commissions: both denominators agree
	ledger := &Ledger{ReportingCurrency: "USD", OpeningNAV: dec(100000), Seeded: true}
	summaries := []DailySummary{{
		Date:       MustParseDate("2025-06-27"),
		OpeningNAV: dec(100000),
		ClosingNAV: dec(100500),
		TotalPnL:   dec(500),
	}}

	report := NewReconciler(dec(1), time.UTC).Reconcile(ledger, summaries, nil)
	if !report.Pass {
		t.Errorf("report failed: %v", report.Days[0].Violations)
	}
}

func TestReconcile_NavDiscrepancy(t *testing.T) {
	ledger := &Ledger{ReportingCurrency: "USD", OpeningNAV: dec(100000), Seeded: true}
	summaries := []DailySummary{{
		Date:       MustParseDate("2025-06-27"),
		OpeningNAV: dec(100000),
		ClosingNAV: dec(100500),
		TotalPnL:   dec(500),
	}}
	navs := []NavRecord{snapshot("2025-06-27", "2025-06-27", 100000, 100490)}

	tests := []struct {
		name      string
		tolerance decimal.Decimal
		wantPass  bool
	}{
		{"beyond tolerance", dec(1), false},
		{"within tolerance", dec(25), true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			report := NewReconciler(tc.tolerance, time.UTC).Reconcile(ledger, summaries, navs)
			if report.Pass != tc.wantPass {
				t.Errorf("pass = %v, want %v (violations %v)",
					report.Pass, tc.wantPass, report.Days[0].Violations)
			}
			if want := dec(10); !report.Days[0].Discrepancy.Equal(want) {
				t.Errorf("discrepancy %s, want %s", report.Days[0].Discrepancy, want)
			}
		})
	}
}

func TestReconcile_PreOpenFlowTiming(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatal(err)
	}
	// 13:00 UTC is 09:00 New York, before the 09:30 open;
	// 14:00 UTC is 10:00 New York, after it.
	ledger := &Ledger{
		ReportingCurrency: "USD",
		OpeningNAV:        dec(100000),
		Seeded:            true,
		Events: []FinancialEvent{
			{Time: ts("2025-06-27T13:00:00Z"), Kind: KindCashMovement, CashImpact: dec(5000), TransactionID: "C1", External: true},
			{Time: ts("2025-06-27T14:00:00Z"), Kind: KindCashMovement, CashImpact: dec(7000), TransactionID: "C2", External: true},
		},
	}
	r := NewReconciler(dec(1), ny)
	if got := r.preOpenFlows(ledger, MustParseDate("2025-06-27")); !got.Equal(dec(5000)) {
		t.Errorf("pre-open flows %s, want only the 09:00 deposit", got)
	}
}

func TestReconcile_UnresolvedSurfaced(t *testing.T) {
	ledger := &Ledger{
		ReportingCurrency: "USD",
		OpeningNAV:        dec(100000),
		Seeded:            true,
		Unresolved: []UnresolvedGroup{{
			Time:           ts("2025-06-27T16:20:00Z"),
			TransactionIDs: []string{"T1", "T2"},
		}},
	}
	report := NewReconciler(dec(1), time.UTC).Reconcile(ledger, nil, nil)
	if len(report.Unresolved) != 1 {
		t.Errorf("unresolved groups not surfaced in the report")
	}
}
