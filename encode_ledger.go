package alm

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/shopspring/decimal"
)

func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

// This file contains the human-readable persistence format for the ledger:
// JSONL, one event per line, in ledger order. The encoding is byte-stable so
// two runs over the same record set produce identical files.

// EncodeLedger writes the ledger to w in the import/export format. The first
// line is a header object carrying the reporting currency and opening NAV,
// followed by one line per event.
func EncodeLedger(w io.Writer, ledger *Ledger) error {
	var h jsonObjectWriter
	h.Append("reportingCurrency", ledger.ReportingCurrency)
	h.Append("openingNav", ledger.OpeningNAV)
	h.Append("seeded", ledger.Seeded)
	header, err := h.MarshalJSON()
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "%s\n", header); err != nil {
		return err
	}
	for _, e := range ledger.Events {
		line, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("cannot encode event %s: %w", e.TransactionID, err)
		}
		if _, err := fmt.Fprintf(w, "%s\n", line); err != nil {
			return err
		}
	}
	return nil
}

// DecodeLedger reads a ledger previously written by EncodeLedger.
func DecodeLedger(r io.Reader) (*Ledger, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("empty ledger stream")
	}
	var header struct {
		ReportingCurrency string          `json:"reportingCurrency"`
		OpeningNav        decimal.Decimal `json:"openingNav"`
		Seeded            bool            `json:"seeded"`
	}
	if err := json.Unmarshal(scanner.Bytes(), &header); err != nil {
		return nil, fmt.Errorf("cannot parse ledger header: %w", err)
	}
	ledger := &Ledger{
		ReportingCurrency: header.ReportingCurrency,
		OpeningNAV:        header.OpeningNav,
		Seeded:            header.Seeded,
	}

	line := 1
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var e FinancialEvent
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, fmt.Errorf("cannot parse ledger line %d: %w", line, err)
		}
		ledger.Events = append(ledger.Events, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return ledger, nil
}
