package alm

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestDetectAssignments_StockAndOptionLeg(t *testing.T) {
	// a SPY put assigned at expiry: one stock booking and one option
	// booking share the exact settlement timestamp
	stk := booking(stock("T100", "SPY", "2025-06-27T16:20:00Z", -100, 622, 62200, 0))
	put := option("T101", "SPY 250627P00622000", "SPY", "2025-06-27T16:20:00Z", 1, 622, 143.3, "P")

	c := DetectAssignments([]TradeRecord{stk, put}, zerolog.Nop())

	if got := c.Kinds["T100"]; got != KindAssignment {
		t.Errorf("stock leg classified %q, want %q", got, KindAssignment)
	}
	if got := c.Kinds["T101"]; got != KindAssignment {
		t.Errorf("option leg classified %q, want %q", got, KindAssignment)
	}
	if got := c.Links["T101"]; got != "T100" {
		t.Errorf("option leg linked to %q, want T100", got)
	}
	if len(c.Unresolved) != 0 {
		t.Errorf("unexpected unresolved groups: %v", c.Unresolved)
	}
}

func TestDetectAssignments_MultipleOptionLegsOneStock(t *testing.T) {
	stk := booking(stock("T200", "SPY", "2025-06-27T16:20:00Z", -200, 620, 124000, 0))
	put1 := option("T201", "SPY 250627P00620000", "SPY", "2025-06-27T16:20:00Z", 1, 620, 50, "P")
	put2 := option("T202", "SPY 250627P00620000", "SPY", "2025-06-27T16:20:00Z", 1, 620, 50, "P")

	c := DetectAssignments([]TradeRecord{stk, put1, put2}, zerolog.Nop())

	for _, id := range []string{"T201", "T202"} {
		if c.Links[id] != "T200" {
			t.Errorf("option leg %s linked to %q, want T200", id, c.Links[id])
		}
	}
}

func TestDetectAssignments_OptionOnlyIsExpiration(t *testing.T) {
	put := option("T300", "SPY 250627P00600000", "SPY", "2025-06-27T16:20:00Z", 1, 600, 211.7, "P")

	c := DetectAssignments([]TradeRecord{put}, zerolog.Nop())

	if got := c.Kinds["T300"]; got != KindExpiration {
		t.Errorf("classified %q, want %q", got, KindExpiration)
	}
	if _, linked := c.Links["T300"]; linked {
		t.Error("expiration must not be linked to a stock leg")
	}
}

func TestDetectAssignments_TwoStockLegsIsAmbiguous(t *testing.T) {
	stk1 := booking(stock("T400", "SPY", "2025-06-27T16:20:00Z", -100, 622, 62200, 0))
	stk2 := booking(stock("T401", "SPY", "2025-06-27T16:20:00Z", 100, 622, -62200, 0))
	put := option("T402", "SPY 250627P00622000", "SPY", "2025-06-27T16:20:00Z", 1, 622, 0, "P")

	c := DetectAssignments([]TradeRecord{stk1, stk2, put}, zerolog.Nop())

	if len(c.Unresolved) != 1 {
		t.Fatalf("got %d unresolved groups, want 1", len(c.Unresolved))
	}
	for _, id := range []string{"T400", "T401", "T402"} {
		if !c.IsUnresolved(id) {
			t.Errorf("%s not marked unresolved", id)
		}
		if _, ok := c.Kinds[id]; ok {
			t.Errorf("%s classified despite ambiguity", id)
		}
	}
}

func TestDetectAssignments_IgnoresMarketTrades(t *testing.T) {
	// ordinary exchange executions at the same timestamp are not bookings
	buy := stock("T500", "SPY", "2025-06-27T15:00:00Z", 100, 600, -60000, -1)
	put := option("T501", "SPY 250627P00600000", "SPY", "2025-06-27T15:00:00Z", -1, 600, 0, "P")
	put.Subtype = SubtypeExchTrade

	c := DetectAssignments([]TradeRecord{buy, put}, zerolog.Nop())

	if len(c.Kinds) != 0 || len(c.Links) != 0 {
		t.Errorf("market trades classified: kinds=%v links=%v", c.Kinds, c.Links)
	}
}
