package alm

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func sampleSet() *RecordSet {
	return &RecordSet{
		Trades: []TradeRecord{
			stock("T1", "SPY", "2025-06-27T14:30:00Z", 100, 600, -60000, -1),
			stock("T2", "SPY", "2025-06-27T15:30:00Z", -100, 605, 60500, -1),
			booking(stock("T3", "SPY", "2025-06-27T16:20:00Z", -100, 622, 62200, 0)),
			option("T4", "SPY 250627P00622000", "SPY", "2025-06-27T16:20:00Z", 1, 622, 143.3, "P"),
			option("T5", "SPY 250627P00600000", "SPY", "2025-06-27T16:25:00Z", 1, 600, 211.7, "P"),
		},
		Cash: []CashRecord{deposit("C1", "2025-06-27T08:00:00Z", 10000)},
		Navs: []NavRecord{snapshot("2025-06-27", "2025-06-27", 79299.20, 80000)},
	}
}

func buildSample(set *RecordSet) *Ledger {
	class := DetectAssignments(set.Trades, zerolog.Nop())
	tracker := NewPositionTracker("USD")
	return NewTimelineBuilder("USD").Build(set, class, tracker)
}

func TestTimeline_Deterministic(t *testing.T) {
	var a, b bytes.Buffer
	if err := EncodeLedger(&a, buildSample(sampleSet())); err != nil {
		t.Fatal(err)
	}
	if err := EncodeLedger(&b, buildSample(sampleSet())); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a.Bytes(), b.Bytes()) {
		t.Error("two runs over the same record set are not byte-identical")
	}
}

func TestTimeline_RunningNAVInvariant(t *testing.T) {
	ledger := buildSample(sampleSet())
	if !ledger.Seeded {
		t.Fatal("ledger not seeded from the NAV snapshot")
	}

	running := ledger.OpeningNAV
	for _, e := range ledger.Events {
		running = running.Add(e.CashImpact).Add(e.RealizedPnL)
		if !e.RunningNAV.Equal(running) {
			t.Fatalf("event %s running NAV %s, want %s", e.TransactionID, e.RunningNAV, running)
		}
	}
}

func TestTimeline_Conservation(t *testing.T) {
	ledger := buildSample(sampleSet())

	var cash, pnl decimal.Decimal
	for _, e := range ledger.Events {
		cash = cash.Add(e.CashImpact)
		pnl = pnl.Add(e.RealizedPnL)
	}
	want := ledger.OpeningNAV.Add(cash).Add(pnl)
	if !ledger.ClosingNAV().Equal(want) {
		t.Errorf("closing NAV %s, want %s", ledger.ClosingNAV(), want)
	}
}

func TestTimeline_OrderAndTieBreak(t *testing.T) {
	ledger := buildSample(sampleSet())

	var prev *FinancialEvent
	for i := range ledger.Events {
		e := &ledger.Events[i]
		if prev != nil {
			if e.Time.Before(prev.Time) {
				t.Fatalf("event %s out of order", e.TransactionID)
			}
			if e.Time.Equal(prev.Time) && e.TransactionID < prev.TransactionID {
				t.Fatalf("tie between %s and %s broken against transaction id order",
					prev.TransactionID, e.TransactionID)
			}
		}
		prev = e
	}
	// the pre-open deposit must precede the first trade
	if ledger.Events[0].TransactionID != "C1" {
		t.Errorf("first event %s, want the deposit C1", ledger.Events[0].TransactionID)
	}
}

func TestTimeline_ExpirationEvent(t *testing.T) {
	ledger := buildSample(sampleSet())

	var exp *FinancialEvent
	for i := range ledger.Events {
		if ledger.Events[i].TransactionID == "T5" {
			exp = &ledger.Events[i]
		}
	}
	if exp == nil {
		t.Fatal("expiration event missing from ledger")
	}
	if exp.Kind != KindExpiration {
		t.Errorf("kind %s, want %s", exp.Kind, KindExpiration)
	}
	if !exp.CashImpact.IsZero() {
		t.Errorf("expiration cash impact %s, want 0", exp.CashImpact)
	}
	if want := dec(211.7); !exp.RealizedPnL.Equal(want) {
		t.Errorf("expiration realized P&L %s, want reported %s", exp.RealizedPnL, want)
	}
}

func TestTimeline_AssignmentOpensPosition(t *testing.T) {
	set := sampleSet()
	class := DetectAssignments(set.Trades, zerolog.Nop())
	tracker := NewPositionTracker("USD")
	ledger := NewTimelineBuilder("USD").Build(set, class, tracker)

	var stkLeg *FinancialEvent
	for i := range ledger.Events {
		if ledger.Events[i].TransactionID == "T3" {
			stkLeg = &ledger.Events[i]
		}
	}
	if stkLeg == nil || stkLeg.Kind != KindAssignment {
		t.Fatalf("stock leg event %v, want an assignment", stkLeg)
	}
	if !stkLeg.RealizedPnL.IsZero() {
		t.Errorf("assignment realized P&L %s, want 0", stkLeg.RealizedPnL)
	}

	open := tracker.OpenPositions()
	if len(open) != 1 {
		t.Fatalf("got %d open positions, want 1", len(open))
	}
	if want := Q(-100); !open[0].Quantity.Equal(want) {
		t.Errorf("assigned quantity %s, want %s", open[0].Quantity, want)
	}
	if want := dec(622); !open[0].EntryPrice.Equal(want) {
		t.Errorf("assigned entry price %s, want %s", open[0].EntryPrice, want)
	}
	if stkLeg.PositionID != open[0].ID {
		t.Errorf("event linked to %q, want %q", stkLeg.PositionID, open[0].ID)
	}
}

func TestTimeline_UnresolvedExcludedFromNAV(t *testing.T) {
	set := sampleSet()
	// a second stock booking at the assignment timestamp makes the group ambiguous
	set.Trades = append(set.Trades, booking(stock("T6", "SPY", "2025-06-27T16:20:00Z", 100, 622, -62200, 0)))

	ledger := buildSample(set)
	for _, e := range ledger.Events {
		if e.TransactionID == "T3" || e.TransactionID == "T4" || e.TransactionID == "T6" {
			t.Errorf("unresolved booking %s included in the ledger", e.TransactionID)
		}
	}
	if len(ledger.Unresolved) != 1 {
		t.Fatalf("got %d unresolved groups on the ledger, want 1", len(ledger.Unresolved))
	}
}

func TestTimeline_AppendOnlyAddsUnseen(t *testing.T) {
	set := sampleSet()
	class := DetectAssignments(set.Trades, zerolog.Nop())
	tracker := NewPositionTracker("USD")
	builder := NewTimelineBuilder("USD")
	baseline := builder.Build(set, class, tracker)

	before := make([]FinancialEvent, len(baseline.Events))
	copy(before, baseline.Events)

	// the refreshed extract carries everything again plus one new trade
	refreshed := sampleSet()
	refreshed.Trades = append(refreshed.Trades,
		stock("T7", "SPY", "2025-06-30T14:30:00Z", 100, 610, -61000, -1))

	fresh := NewPositionTracker("USD")
	fresh.Restore(tracker.OpenPositions())
	added := builder.Append(baseline, refreshed, DetectAssignments(refreshed.Trades, zerolog.Nop()), fresh)

	if len(added) != 1 || added[0].TransactionID != "T7" {
		t.Fatalf("appended %v, want only T7", added)
	}
	for i, e := range before {
		if baseline.Events[i].TransactionID != e.TransactionID ||
			!baseline.Events[i].RunningNAV.Equal(e.RunningNAV) {
			t.Fatalf("existing row %d altered by append", i)
		}
	}
	last := baseline.Events[len(baseline.Events)-1]
	want := before[len(before)-1].RunningNAV.Add(last.CashImpact).Add(last.RealizedPnL)
	if !last.RunningNAV.Equal(want) {
		t.Errorf("appended running NAV %s, want %s", last.RunningNAV, want)
	}
}
