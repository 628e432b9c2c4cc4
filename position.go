package alm

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// PositionStatus is the lifecycle state of a position.
type PositionStatus string

const (
	PositionOpen   PositionStatus = "OPEN"
	PositionClosed PositionStatus = "CLOSED"
)

// OpenPosition is one stock position lot. A lot has exactly one entry event;
// a close consumes exactly one lot (partial closes split the lot).
type OpenPosition struct {
	ID                 string          `json:"id"`
	Symbol             string          `json:"symbol"`
	Quantity           Quantity        `json:"quantity"` // signed, negative for short
	EntryPrice         decimal.Decimal `json:"entryPrice"`
	EntryTime          time.Time       `json:"entryTime"`
	EntryTransactionID string          `json:"entryTransactionID"`
	EntryFX            decimal.Decimal `json:"entryFx"`
	Currency           string          `json:"currency"`
	Status             PositionStatus  `json:"status"`
	ExitPrice          decimal.Decimal `json:"exitPrice"`
	ExitTime           time.Time       `json:"exitTime,omitzero"`
	ExitTransactionID  string          `json:"exitTransactionID,omitempty"`
	RealizedPnL        decimal.Decimal `json:"realizedPnl"` // reporting currency
}

// PositionTracker owns one FIFO queue of open stock positions per symbol.
// It is explicit state threaded through the pipeline, never global.
type PositionTracker struct {
	reporting string
	open      map[string][]*OpenPosition
	closed    []*OpenPosition
	chunks    map[string]int // entry transaction id → lots split off so far
}

// NewPositionTracker returns an empty tracker reporting in the given currency.
func NewPositionTracker(reportingCurrency string) *PositionTracker {
	return &PositionTracker{
		reporting: reportingCurrency,
		open:      make(map[string][]*OpenPosition),
		chunks:    make(map[string]int),
	}
}

// Apply processes a stock entry/exit trade. A trade opposite in sign to, and
// overlapping with, existing open positions for its symbol closes them FIFO;
// any remainder (or a same-sign trade) opens a new position.
//
// Realized P&L for a closed lot is (exit − entry) × closed quantity × lot
// sign, converted to the reporting currency at the FX rate attached to the
// closing trade itself.
func (pt *PositionTracker) Apply(t TradeRecord) (closed []*OpenPosition, opened *OpenPosition, realized decimal.Decimal) {
	remaining := t.Quantity
	queue := pt.open[t.Symbol]

	for len(queue) > 0 && !remaining.IsZero() && queue[0].Quantity.Sign() == -remaining.Sign() {
		head := queue[0]
		lot := head
		if head.Quantity.Abs().GreaterThan(remaining.Abs()) {
			// partial close: split the closed chunk off the head lot
			lot = pt.split(head, remaining.Neg())
		} else {
			queue = queue[1:]
		}

		pnl := t.Price.Sub(lot.EntryPrice).
			Mul(lot.Quantity.Abs().value).
			Mul(decimal.NewFromInt(int64(lot.Quantity.Sign()))).
			Mul(fxOrOne(t.FXRate, t.Currency, pt.reporting))
		lot.Status = PositionClosed
		lot.ExitPrice = t.Price
		lot.ExitTime = t.Time
		lot.ExitTransactionID = t.TransactionID
		lot.RealizedPnL = pnl

		remaining = remaining.Add(lot.Quantity) // opposite signs, moves toward zero
		realized = realized.Add(pnl)
		closed = append(closed, lot)
		pt.closed = append(pt.closed, lot)
	}
	pt.open[t.Symbol] = queue

	if !remaining.IsZero() {
		left := t
		left.Quantity = remaining
		opened = pt.Open(left)
	}
	return closed, opened, realized
}

// Restore seeds the tracker with positions persisted by a previous run, so
// that append mode can close lots opened in the baseline period.
func (pt *PositionTracker) Restore(positions []*OpenPosition) {
	sorted := make([]*OpenPosition, len(positions))
	copy(sorted, positions)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].EntryTime.Equal(sorted[j].EntryTime) {
			return sorted[i].EntryTime.Before(sorted[j].EntryTime)
		}
		return sorted[i].ID < sorted[j].ID
	})
	for _, p := range sorted {
		if p.Status != PositionOpen {
			continue
		}
		pt.open[p.Symbol] = append(pt.open[p.Symbol], p)
	}
}

// Open opens a new position from the trade without attempting to match
// existing lots. Assignment stock legs always open exactly one new position
// with zero initial realized P&L.
func (pt *PositionTracker) Open(t TradeRecord) *OpenPosition {
	p := &OpenPosition{
		ID:                 t.Symbol + "#" + t.TransactionID,
		Symbol:             t.Symbol,
		Quantity:           t.Quantity,
		EntryPrice:         t.Price,
		EntryTime:          t.Time,
		EntryTransactionID: t.TransactionID,
		EntryFX:            fxOrOne(t.FXRate, t.Currency, pt.reporting),
		Currency:           t.Currency,
		Status:             PositionOpen,
	}
	pt.open[t.Symbol] = append(pt.open[t.Symbol], p)
	return p
}

// split carves a lot of the given (signed) quantity out of head, leaving the
// remainder open. The chunk keeps the entry attributes.
func (pt *PositionTracker) split(head *OpenPosition, qty Quantity) *OpenPosition {
	pt.chunks[head.EntryTransactionID]++
	chunk := *head
	chunk.ID = fmt.Sprintf("%s/%d", head.ID, pt.chunks[head.EntryTransactionID])
	chunk.Quantity = qty
	head.Quantity = head.Quantity.Sub(qty)
	return &chunk
}

// OpenPositions returns every position still open, ordered by entry time
// then id so the result is deterministic.
func (pt *PositionTracker) OpenPositions() []*OpenPosition {
	var all []*OpenPosition
	for _, queue := range pt.open {
		all = append(all, queue...)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].EntryTime.Equal(all[j].EntryTime) {
			return all[i].EntryTime.Before(all[j].EntryTime)
		}
		return all[i].ID < all[j].ID
	})
	return all
}

// ClosedPositions returns every closed lot in closing order.
func (pt *PositionTracker) ClosedPositions() []*OpenPosition { return pt.closed }

// fxOrOne returns the given rate, or 1 when absent or when no conversion is
// needed.
func fxOrOne(rate decimal.Decimal, from, to string) decimal.Decimal {
	if from == to || rate.IsZero() {
		return decimal.NewFromInt(1)
	}
	return rate
}
