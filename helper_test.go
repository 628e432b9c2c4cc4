package alm

import (
	"time"

	"github.com/shopspring/decimal"
)

// ts parses an RFC3339 timestamp, panicking on error. Test fixtures only.
func ts(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func dec(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

// stock builds a stock trade record fixture.
func stock(id, symbol, when string, qty, price, proceeds, commission float64) TradeRecord {
	return TradeRecord{
		Time:          ts(when),
		TransactionID: id,
		Symbol:        symbol,
		AssetCategory: AssetStock,
		Subtype:       SubtypeExchTrade,
		Quantity:      Q(qty),
		Price:         dec(price),
		Proceeds:      dec(proceeds),
		Commission:    dec(commission),
		Currency:      "USD",
	}
}

// booking turns a trade fixture into an internal settlement booking.
func booking(t TradeRecord) TradeRecord {
	t.Subtype = SubtypeBookTrade
	return t
}

// option builds an option settlement booking fixture.
func option(id, symbol, underlying, when string, qty, strike, pnl float64, right string) TradeRecord {
	return TradeRecord{
		Time:          ts(when),
		TransactionID: id,
		Symbol:        symbol,
		Underlying:    underlying,
		AssetCategory: AssetOption,
		Subtype:       SubtypeBookTrade,
		Quantity:      Q(qty),
		Strike:        dec(strike),
		Right:         right,
		FifoPnL:       dec(pnl),
		Currency:      "USD",
		Expiry:        MustParseDate(when[:10]),
	}
}

// deposit builds an external cash movement fixture.
func deposit(id, when string, amount float64) CashRecord {
	return CashRecord{
		Time:          ts(when),
		TransactionID: id,
		Type:          "Deposits/Withdrawals",
		Amount:        dec(amount),
		Currency:      "USD",
	}
}

// snapshot builds a reported NAV snapshot fixture.
func snapshot(from, to string, starting, ending float64) NavRecord {
	return NavRecord{
		FromDate:      MustParseDate(from),
		ToDate:        MustParseDate(to),
		StartingValue: dec(starting),
		EndingValue:   dec(ending),
		Currency:      "USD",
	}
}
