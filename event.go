package alm

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventKind classifies a ledger event.
type EventKind string

const (
	KindTrade        EventKind = "TRADE"
	KindCashMovement EventKind = "CASH"
	KindAssignment   EventKind = "ASSIGNMENT"
	KindExpiration   EventKind = "EXPIRATION"
)

// FinancialEvent is one row of the reconstructed ledger. It is immutable
// once the realized P&L and position link are resolved during the merge.
// All monetary fields are in the reporting currency.
type FinancialEvent struct {
	Time          time.Time       `json:"dateTime"`
	Kind          EventKind       `json:"kind"`
	Symbol        string          `json:"symbol,omitempty"`
	CashImpact    decimal.Decimal `json:"cashImpact"`
	RealizedPnL   decimal.Decimal `json:"realizedPnl"`
	Commission    decimal.Decimal `json:"commission"`
	Currency      string          `json:"currency"` // currency of the source record
	TransactionID string          `json:"transactionID"`
	PositionID    string          `json:"positionID,omitempty"`
	RunningNAV    decimal.Decimal `json:"runningNav"`
	External      bool            `json:"external,omitempty"` // cash crossing the account boundary
}

// Ledger is the time-ordered list of financial events with a running NAV.
type Ledger struct {
	ReportingCurrency string
	OpeningNAV        decimal.Decimal // reported NAV at the start of the period
	Seeded            bool            // true when OpeningNAV came from a reported snapshot
	Events            []FinancialEvent
	Unresolved        []UnresolvedGroup // ambiguous bookings excluded from NAV
}

// ClosingNAV returns the running NAV after the last event, or the opening
// NAV for an empty ledger.
func (l *Ledger) ClosingNAV() decimal.Decimal {
	if len(l.Events) == 0 {
		return l.OpeningNAV
	}
	return l.Events[len(l.Events)-1].RunningNAV
}
