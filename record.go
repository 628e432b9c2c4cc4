package alm

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// SourceType identifies the logical export feed a record came from.
type SourceType string

const (
	SourceTrades SourceType = "trades"
	SourceCash   SourceType = "cash"
	SourceNav    SourceType = "nav"
)

// Asset categories reported by the export.
const (
	AssetStock  = "STK"
	AssetOption = "OPT"
)

// Transaction subtypes reported by the export. BookTrade marks an internal
// (non-market) settlement booking, the raw material for assignment detection.
const (
	SubtypeExchTrade = "ExchTrade"
	SubtypeBookTrade = "BookTrade"
)

// RecordKey uniquely identifies a raw record across all extracts.
type RecordKey struct {
	Source        SourceType
	TransactionID string
}

// RawRecord is a typed, validated export record. It is one of TradeRecord,
// CashRecord or NavRecord ("parse, don't validate": fields are checked once
// at the ingestion boundary, consumers can rely on them).
type RawRecord interface {
	Key() RecordKey
	When() time.Time
}

// TradeRecord is a single trade execution or settlement booking.
type TradeRecord struct {
	Time          time.Time       `json:"dateTime"`
	TransactionID string          `json:"transactionID"`
	Symbol        string          `json:"symbol"`
	Underlying    string          `json:"underlyingSymbol,omitempty"`
	AssetCategory string          `json:"assetCategory"`
	Subtype       string          `json:"transactionType"`
	Quantity      Quantity        `json:"quantity"`
	Price         decimal.Decimal `json:"tradePrice"`
	Proceeds      decimal.Decimal `json:"proceeds"`
	Commission    decimal.Decimal `json:"commission"`
	FifoPnL       decimal.Decimal `json:"fifoPnlRealized"`
	Currency      string          `json:"currency"`
	FXRate        decimal.Decimal `json:"fxRateToBase"`
	Strike        decimal.Decimal `json:"strike"`
	Right         string          `json:"putCall,omitempty"`
	Expiry        Date            `json:"expiry,omitzero"`
}

func (t TradeRecord) Key() RecordKey  { return RecordKey{SourceTrades, t.TransactionID} }
func (t TradeRecord) When() time.Time { return t.Time }

// IsBooking reports whether the trade is an internal settlement booking.
func (t TradeRecord) IsBooking() bool { return t.Subtype == SubtypeBookTrade }

// IsOption reports whether the trade leg is an option contract.
func (t TradeRecord) IsOption() bool { return t.AssetCategory == AssetOption }

// IsStock reports whether the trade leg is a stock.
func (t TradeRecord) IsStock() bool { return t.AssetCategory == AssetStock }

func (t TradeRecord) validate() error {
	switch {
	case t.TransactionID == "":
		return fmt.Errorf("trade: missing transactionID")
	case t.Time.IsZero():
		return fmt.Errorf("trade %s: missing dateTime", t.TransactionID)
	case t.Symbol == "":
		return fmt.Errorf("trade %s: missing symbol", t.TransactionID)
	case t.Currency == "":
		return fmt.Errorf("trade %s: missing currency", t.TransactionID)
	case t.AssetCategory != AssetStock && t.AssetCategory != AssetOption:
		return fmt.Errorf("trade %s: unknown asset category %q", t.TransactionID, t.AssetCategory)
	case t.IsOption() && t.Right != "P" && t.Right != "C":
		return fmt.Errorf("trade %s: option without put/call right", t.TransactionID)
	}
	return nil
}

// CashRecord is a cash movement: deposit, withdrawal, fee, dividend, interest.
type CashRecord struct {
	Time          time.Time       `json:"dateTime"`
	TransactionID string          `json:"transactionID"`
	Type          string          `json:"type"`
	Description   string          `json:"description,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	FXRate        decimal.Decimal `json:"fxRateToBase"`
}

func (c CashRecord) Key() RecordKey  { return RecordKey{SourceCash, c.TransactionID} }
func (c CashRecord) When() time.Time { return c.Time }

// IsExternal reports whether the movement crosses the account boundary
// (deposit or withdrawal) rather than being generated inside it.
func (c CashRecord) IsExternal() bool { return c.Type == "Deposits/Withdrawals" }

func (c CashRecord) validate() error {
	switch {
	case c.TransactionID == "":
		return fmt.Errorf("cash: missing transactionID")
	case c.Time.IsZero():
		return fmt.Errorf("cash %s: missing dateTime", c.TransactionID)
	case c.Type == "":
		return fmt.Errorf("cash %s: missing type", c.TransactionID)
	case c.Currency == "":
		return fmt.Errorf("cash %s: missing currency", c.TransactionID)
	}
	return nil
}

// NavRecord is a broker-reported NAV snapshot over a period, used to seed the
// running NAV and to reconcile computed figures.
type NavRecord struct {
	FromDate            Date            `json:"fromDate"`
	ToDate              Date            `json:"toDate"`
	StartingValue       decimal.Decimal `json:"startingValue"`
	EndingValue         decimal.Decimal `json:"endingValue"`
	DepositsWithdrawals decimal.Decimal `json:"depositsWithdrawals"`
	MarkToMarket        decimal.Decimal `json:"mtm"`
	Realized            decimal.Decimal `json:"realized"`
	Fees                decimal.Decimal `json:"otherFees"`
	Commissions         decimal.Decimal `json:"commissions"`
	Currency            string          `json:"currency"`
}

// Key synthesizes an id from the covered period: NAV snapshots carry no
// transaction id of their own, but overlapping extracts must still collapse.
func (n NavRecord) Key() RecordKey {
	return RecordKey{SourceNav, n.FromDate.String() + ":" + n.ToDate.String()}
}

func (n NavRecord) When() time.Time {
	return time.Date(n.FromDate.Year(), n.FromDate.Month(), n.FromDate.Day(), 0, 0, 0, 0, time.UTC)
}

func (n NavRecord) validate() error {
	switch {
	case n.FromDate.IsZero():
		return fmt.Errorf("nav: missing fromDate")
	case n.ToDate.IsZero():
		return fmt.Errorf("nav: missing toDate")
	case n.ToDate.Before(n.FromDate):
		return fmt.Errorf("nav: toDate %s before fromDate %s", n.ToDate, n.FromDate)
	case n.Currency == "":
		return fmt.Errorf("nav: missing currency")
	}
	return nil
}
