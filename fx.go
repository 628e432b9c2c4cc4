package alm

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"github.com/shopspring/decimal"
)

// RateTable holds per-date conversion rates into the reporting currency.
// Conversion always uses the rate in effect for the event's own currency and
// date; there is no single hardcoded rate anywhere in the engine.
type RateTable struct {
	reporting string
	rates     map[string]map[Date]decimal.Decimal // currency → date → rate
}

// NewRateTable returns an empty table converting into the given currency.
func NewRateTable(reportingCurrency string) *RateTable {
	return &RateTable{
		reporting: reportingCurrency,
		rates:     make(map[string]map[Date]decimal.Decimal),
	}
}

// Add records the rate converting one unit of cur into the reporting
// currency on the given date.
func (rt *RateTable) Add(cur string, on Date, rate decimal.Decimal) {
	if rt.rates[cur] == nil {
		rt.rates[cur] = make(map[Date]decimal.Decimal)
	}
	rt.rates[cur][on] = rate
}

// Rate returns the conversion rate for cur on the given date. When the exact
// date is absent (weekend, holiday) the most recent earlier rate within a
// week is used.
func (rt *RateTable) Rate(cur string, on Date) (decimal.Decimal, error) {
	if cur == rt.reporting {
		return decimal.NewFromInt(1), nil
	}
	history := rt.rates[cur]
	for back := 0; back < 7; back++ {
		if rate, ok := history[on.Add(-back)]; ok {
			return rate, nil
		}
	}
	return decimal.Zero, fmt.Errorf("no %s/%s rate on or before %s", cur, rt.reporting, on)
}

// Resolve attaches a rate to every record that does not already carry one.
// A rate embedded in the record itself always wins. Returns an error when a
// needed rate is unavailable: amounts must never be applied unconverted.
func (rt *RateTable) Resolve(set *RecordSet, loc *time.Location) error {
	for i := range set.Trades {
		t := &set.Trades[i]
		if t.Currency == rt.reporting || !t.FXRate.IsZero() {
			continue
		}
		rate, err := rt.Rate(t.Currency, DateOf(t.Time, loc))
		if err != nil {
			return fmt.Errorf("trade %s: %w", t.TransactionID, err)
		}
		t.FXRate = rate
	}
	for i := range set.Cash {
		c := &set.Cash[i]
		if c.Currency == rt.reporting || !c.FXRate.IsZero() {
			continue
		}
		rate, err := rt.Rate(c.Currency, DateOf(c.Time, loc))
		if err != nil {
			return fmt.Errorf("cash %s: %w", c.TransactionID, err)
		}
		c.FXRate = rate
	}
	return nil
}

// ensureConverted verifies that every record is either in the reporting
// currency or carries an FX rate after resolution. Amounts are never applied
// unconverted; a run without a usable rate fails here rather than silently
// booking at 1.
func ensureConverted(set *RecordSet, reporting string) error {
	for _, t := range set.Trades {
		if t.Currency != reporting && t.FXRate.IsZero() {
			return fmt.Errorf("trade %s: no %s/%s rate, amount cannot be converted", t.TransactionID, t.Currency, reporting)
		}
	}
	for _, c := range set.Cash {
		if c.Currency != reporting && c.FXRate.IsZero() {
			return fmt.Errorf("cash %s: no %s/%s rate, amount cannot be converted", c.TransactionID, c.Currency, reporting)
		}
	}
	return nil
}

// LoadRates reads a frankfurter-style historical rates document:
//
//	{"base": "USD", "rates": {"2025-06-27": {"EUR": 0.9271, ...}, ...}}
//
// The document quotes units of each currency per unit of base; when base is
// the reporting currency the stored conversion rate is the inverse.
func LoadRates(r io.Reader, reportingCurrency string) (*RateTable, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var jobj any
	if err := json.Unmarshal(raw, &jobj); err != nil {
		return nil, fmt.Errorf("cannot parse rates document: %w", err)
	}

	jbase, err := jsonpath.Get("$.base", jobj)
	if err != nil {
		return nil, fmt.Errorf("rates document has no base currency: %w", err)
	}
	base, ok := jbase.(string)
	if !ok || base != reportingCurrency {
		return nil, fmt.Errorf("rates document base %v does not match reporting currency %s", jbase, reportingCurrency)
	}

	jrates, err := jsonpath.Get("$.rates", jobj)
	if err != nil {
		return nil, fmt.Errorf("rates document has no rates: %w", err)
	}
	days, ok := jrates.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("rates document: rates is not an object")
	}

	table := NewRateTable(reportingCurrency)
	for day, currencies := range days {
		on, err := ParseDate(day)
		if err != nil {
			return nil, fmt.Errorf("rates document: %w", err)
		}
		byCur, ok := currencies.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("rates document: %s is not an object", day)
		}
		for cur, v := range byCur {
			quote, ok := v.(float64)
			if !ok || quote == 0 {
				return nil, fmt.Errorf("rates document: bad %s rate on %s", cur, day)
			}
			// quoted as cur per base, stored as base per cur
			table.Add(cur, on, decimal.NewFromInt(1).Div(decimal.NewFromFloat(quote)))
		}
	}
	return table, nil
}
