package alm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Extract is one time-bounded export file for a single source type.
// Extracts for the same source may overlap (e.g. a month-to-date and a
// last-business-day extract covering the same days).
type Extract struct {
	Name   string
	Source SourceType
	Reader io.Reader
}

// RecordSet is the deduplicated output of ingestion: at most one record per
// (source type, transaction id), in first-seen order.
type RecordSet struct {
	Trades []TradeRecord
	Cash   []CashRecord
	Navs   []NavRecord
}

// Ingestor parses raw export extracts into typed, deduplicated records.
// It is a pure transform: the only side effect is logging.
type Ingestor struct {
	log zerolog.Logger
}

// NewIngestor returns an Ingestor logging conflicts to the given logger.
func NewIngestor(log zerolog.Logger) *Ingestor {
	return &Ingestor{log: log}
}

// Ingest parses all extracts and merges them into one deduplicated record
// set. Extracts of independent source types are parsed in parallel; the
// merge only starts once every extract parsed successfully (all-or-nothing).
//
// Dedup rule: records sharing a key collapse to one, first-seen attribute
// values win. A duplicate id carrying different attributes is logged as a
// duplicate transaction conflict and otherwise ignored.
func (in *Ingestor) Ingest(ctx context.Context, extracts ...Extract) (*RecordSet, error) {
	bySource := make(map[SourceType][]int) // extract indexes, original order
	for i, x := range extracts {
		bySource[x.Source] = append(bySource[x.Source], i)
	}

	parsed := make([][]RawRecord, len(extracts))
	g, ctx := errgroup.WithContext(ctx)
	for _, indexes := range bySource {
		indexes := indexes
		g.Go(func() error {
			for _, i := range indexes {
				if err := ctx.Err(); err != nil {
					return err
				}
				records, err := ParseExtract(extracts[i].Name, extracts[i].Source, extracts[i].Reader)
				if err != nil {
					return err
				}
				parsed[i] = records
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Hard barrier: every extract parsed, now merge deterministically in
	// the order the extracts were given.
	set := &RecordSet{}
	seen := make(map[RecordKey]RawRecord)
	for i := range extracts {
		for _, r := range parsed[i] {
			first, dup := seen[r.Key()]
			if !dup {
				seen[r.Key()] = r
				switch v := r.(type) {
				case TradeRecord:
					set.Trades = append(set.Trades, v)
				case CashRecord:
					set.Cash = append(set.Cash, v)
				case NavRecord:
					set.Navs = append(set.Navs, v)
				}
				continue
			}
			if !sameRecord(first, r) {
				in.log.Warn().
					Str("source", string(r.Key().Source)).
					Str("transaction_id", r.Key().TransactionID).
					Str("extract", extracts[i].Name).
					Msg("duplicate transaction conflict, first-seen value wins")
			}
		}
	}
	return set, nil
}

// sameRecord compares two records by their canonical JSON encoding. The
// encoders are byte-stable, so this detects any attribute difference.
func sameRecord(a, b RawRecord) bool {
	ja, erra := json.Marshal(a)
	jb, errb := json.Marshal(b)
	return erra == nil && errb == nil && bytes.Equal(ja, jb)
}

// ParseExtract parses one JSONL extract into validated records. Each line is
// a key/value object with a "type" discriminator (trade, cash, nav). Any
// malformed line is a *ParseError, fatal for the run.
func ParseExtract(name string, source SourceType, r io.Reader) ([]RawRecord, error) {
	var records []RawRecord
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		rec, err := parseLine(source, raw)
		if err != nil {
			return nil, &ParseError{File: name, Line: line, Err: err}
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, &ParseError{File: name, Err: err}
	}
	if records == nil {
		return nil, &ParseError{File: name, Err: fmt.Errorf("empty extract")}
	}
	return records, nil
}

func parseLine(source SourceType, raw []byte) (RawRecord, error) {
	var header struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &header); err != nil {
		return nil, fmt.Errorf("not a JSON object: %w", err)
	}
	kind := strings.ToLower(header.Type)
	switch kind {
	case "trade", "cash", "nav":
	default:
		// an extract may omit the discriminator, and on cash lines the
		// "type" key carries the movement type instead
		kind = defaultKind(source)
	}
	switch kind {
	case "trade":
		var t TradeRecord
		if err := json.Unmarshal(raw, &t); err != nil {
			return nil, fmt.Errorf("trade: %w", err)
		}
		if err := t.validate(); err != nil {
			return nil, err
		}
		return t, nil
	case "cash":
		var c CashRecord
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("cash: %w", err)
		}
		if err := c.validate(); err != nil {
			return nil, err
		}
		return c, nil
	case "nav":
		var n NavRecord
		if err := json.Unmarshal(raw, &n); err != nil {
			return nil, fmt.Errorf("nav: %w", err)
		}
		if err := n.validate(); err != nil {
			return nil, err
		}
		return n, nil
	default:
		return nil, fmt.Errorf("unknown record type %q", header.Type)
	}
}

func defaultKind(source SourceType) string {
	switch source {
	case SourceTrades:
		return "trade"
	case SourceCash:
		return "cash"
	case SourceNav:
		return "nav"
	default:
		return ""
	}
}
