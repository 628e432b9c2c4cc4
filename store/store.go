// Package store persists the reconstructed ledger, positions and daily
// summaries in SQLite.
//
// The engine is the single writer; its contract toward the store is
// insert-or-ignore keyed by transaction id for events, upsert by id for
// positions and upsert by date for summaries. Decimals are stored as text to
// keep amounts exact.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite" // pure Go SQLite driver

	"github.com/ostrelli/alm"
)

const schema = `
CREATE TABLE IF NOT EXISTS ledger_meta (
	id                 INTEGER PRIMARY KEY CHECK (id = 1),
	reporting_currency TEXT NOT NULL,
	opening_nav        TEXT NOT NULL,
	seeded             INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS events (
	transaction_id TEXT PRIMARY KEY,
	date_time      TEXT NOT NULL,
	kind           TEXT NOT NULL,
	symbol         TEXT NOT NULL DEFAULT '',
	cash_impact    TEXT NOT NULL,
	realized_pnl   TEXT NOT NULL,
	commission     TEXT NOT NULL,
	currency       TEXT NOT NULL,
	position_id    TEXT NOT NULL DEFAULT '',
	running_nav    TEXT NOT NULL,
	external       INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_events_date_time ON events(date_time, transaction_id);

CREATE TABLE IF NOT EXISTS positions (
	id                   TEXT PRIMARY KEY,
	symbol               TEXT NOT NULL,
	quantity             TEXT NOT NULL,
	entry_price          TEXT NOT NULL,
	entry_time           TEXT NOT NULL,
	entry_transaction_id TEXT NOT NULL,
	entry_fx             TEXT NOT NULL,
	currency             TEXT NOT NULL,
	status               TEXT NOT NULL,
	exit_price           TEXT NOT NULL DEFAULT '0',
	exit_time            TEXT NOT NULL DEFAULT '',
	exit_transaction_id  TEXT NOT NULL DEFAULT '',
	realized_pnl         TEXT NOT NULL DEFAULT '0'
);

CREATE TABLE IF NOT EXISTS daily_summaries (
	date          TEXT PRIMARY KEY,
	opening_nav   TEXT NOT NULL,
	closing_nav   TEXT NOT NULL,
	total_pnl     TEXT NOT NULL,
	net_cash_flow TEXT NOT NULL,
	commissions   TEXT NOT NULL,
	flagged       INTEGER NOT NULL DEFAULT 0,
	error         TEXT NOT NULL DEFAULT ''
);
`

// timeFormat is a fixed-width UTC timestamp: unlike RFC3339Nano it never
// trims trailing zeros, so lexicographic order on the column is
// chronological order and ORDER BY date_time preserves ledger order.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// Store is a SQLite-backed implementation of the engine's persistence
// contract.
type Store struct {
	db *sql.DB
}

// Open opens (and if needed creates) the store at path. Use ":memory:" for
// an ephemeral store in tests.
func Open(path string) (*Store, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	if path == ":memory:" {
		dsn = path
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("cannot open store %s: %w", path, err)
	}
	// single writer: one connection avoids SQLITE_BUSY on concurrent reads
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("cannot initialize store schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// SaveLedger persists the ledger metadata and inserts events, ignoring
// transaction ids already present. It reports how many events were new.
func (s *Store) SaveLedger(ctx context.Context, ledger *alm.Ledger) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	seeded := 0
	if ledger.Seeded {
		seeded = 1
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO ledger_meta (id, reporting_currency, opening_nav, seeded)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			reporting_currency = excluded.reporting_currency,
			opening_nav        = excluded.opening_nav,
			seeded             = excluded.seeded`,
		ledger.ReportingCurrency, ledger.OpeningNAV.String(), seeded); err != nil {
		return 0, fmt.Errorf("cannot save ledger meta: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO events (transaction_id, date_time, kind, symbol, cash_impact,
			realized_pnl, commission, currency, position_id, running_nav, external)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(transaction_id) DO NOTHING`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	inserted := 0
	for _, e := range ledger.Events {
		external := 0
		if e.External {
			external = 1
		}
		res, err := stmt.ExecContext(ctx,
			e.TransactionID, e.Time.UTC().Format(timeFormat), string(e.Kind),
			e.Symbol, e.CashImpact.String(), e.RealizedPnL.String(),
			e.Commission.String(), e.Currency, e.PositionID,
			e.RunningNAV.String(), external)
		if err != nil {
			return 0, fmt.Errorf("cannot save event %s: %w", e.TransactionID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		inserted += int(n)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}

// SavePositions upserts positions by id: a lot opened in a previous run may
// have closed in this one.
func (s *Store) SavePositions(ctx context.Context, positions []*alm.OpenPosition) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO positions (id, symbol, quantity, entry_price, entry_time,
			entry_transaction_id, entry_fx, currency, status, exit_price,
			exit_time, exit_transaction_id, realized_pnl)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			quantity     = excluded.quantity,
			status       = excluded.status,
			exit_price   = excluded.exit_price,
			exit_time    = excluded.exit_time,
			exit_transaction_id = excluded.exit_transaction_id,
			realized_pnl = excluded.realized_pnl`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, p := range positions {
		exitTime := ""
		if !p.ExitTime.IsZero() {
			exitTime = p.ExitTime.UTC().Format(timeFormat)
		}
		if _, err := stmt.ExecContext(ctx,
			p.ID, p.Symbol, p.Quantity.String(), p.EntryPrice.String(),
			p.EntryTime.UTC().Format(timeFormat), p.EntryTransactionID,
			p.EntryFX.String(), p.Currency, string(p.Status), p.ExitPrice.String(),
			exitTime, p.ExitTransactionID, p.RealizedPnL.String()); err != nil {
			return fmt.Errorf("cannot save position %s: %w", p.ID, err)
		}
	}
	return tx.Commit()
}

// SaveSummaries upserts the daily summaries by date.
func (s *Store) SaveSummaries(ctx context.Context, summaries []alm.DailySummary) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO daily_summaries (date, opening_nav, closing_nav, total_pnl,
			net_cash_flow, commissions, flagged, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			opening_nav   = excluded.opening_nav,
			closing_nav   = excluded.closing_nav,
			total_pnl     = excluded.total_pnl,
			net_cash_flow = excluded.net_cash_flow,
			commissions   = excluded.commissions,
			flagged       = excluded.flagged,
			error         = excluded.error`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, d := range summaries {
		flagged := 0
		if d.Flagged {
			flagged = 1
		}
		if _, err := stmt.ExecContext(ctx,
			d.Date.String(), d.OpeningNAV.String(), d.ClosingNAV.String(),
			d.TotalPnL.String(), d.NetCashFlow.String(), d.Commissions.String(),
			flagged, d.Err); err != nil {
			return fmt.Errorf("cannot save summary %s: %w", d.Date, err)
		}
	}
	return tx.Commit()
}

// LoadLedger reads the persisted ledger back in event order.
func (s *Store) LoadLedger(ctx context.Context) (*alm.Ledger, error) {
	ledger := &alm.Ledger{}
	var opening string
	var seeded int
	err := s.db.QueryRowContext(ctx,
		`SELECT reporting_currency, opening_nav, seeded FROM ledger_meta WHERE id = 1`).
		Scan(&ledger.ReportingCurrency, &opening, &seeded)
	switch {
	case err == sql.ErrNoRows:
		return nil, fmt.Errorf("store has no persisted ledger")
	case err != nil:
		return nil, err
	}
	if ledger.OpeningNAV, err = decimal.NewFromString(opening); err != nil {
		return nil, fmt.Errorf("corrupt opening NAV %q: %w", opening, err)
	}
	ledger.Seeded = seeded != 0

	rows, err := s.db.QueryContext(ctx, `
		SELECT transaction_id, date_time, kind, symbol, cash_impact, realized_pnl,
			commission, currency, position_id, running_nav, external
		FROM events ORDER BY date_time, transaction_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var e alm.FinancialEvent
		var when, kind string
		var cash, pnl, commission, nav string
		var external int
		if err := rows.Scan(&e.TransactionID, &when, &kind, &e.Symbol, &cash,
			&pnl, &commission, &e.Currency, &e.PositionID, &nav, &external); err != nil {
			return nil, err
		}
		if e.Time, err = time.Parse(time.RFC3339Nano, when); err != nil {
			return nil, fmt.Errorf("corrupt event time %q: %w", when, err)
		}
		e.Kind = alm.EventKind(kind)
		e.External = external != 0
		if e.CashImpact, err = decimal.NewFromString(cash); err != nil {
			return nil, err
		}
		if e.RealizedPnL, err = decimal.NewFromString(pnl); err != nil {
			return nil, err
		}
		if e.Commission, err = decimal.NewFromString(commission); err != nil {
			return nil, err
		}
		if e.RunningNAV, err = decimal.NewFromString(nav); err != nil {
			return nil, err
		}
		ledger.Events = append(ledger.Events, e)
	}
	return ledger, rows.Err()
}

// LoadOpenPositions reads the positions still open, the state append mode
// restores its tracker from.
func (s *Store) LoadOpenPositions(ctx context.Context) ([]*alm.OpenPosition, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, symbol, quantity, entry_price, entry_time, entry_transaction_id,
			entry_fx, currency
		FROM positions WHERE status = ? ORDER BY entry_time, id`, string(alm.PositionOpen))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var positions []*alm.OpenPosition
	for rows.Next() {
		p := &alm.OpenPosition{Status: alm.PositionOpen}
		var qty, price, entry, fx string
		if err := rows.Scan(&p.ID, &p.Symbol, &qty, &price, &entry,
			&p.EntryTransactionID, &fx, &p.Currency); err != nil {
			return nil, err
		}
		q, err := decimal.NewFromString(qty)
		if err != nil {
			return nil, err
		}
		p.Quantity = alm.Q(q)
		if p.EntryPrice, err = decimal.NewFromString(price); err != nil {
			return nil, err
		}
		if p.EntryFX, err = decimal.NewFromString(fx); err != nil {
			return nil, err
		}
		if p.EntryTime, err = time.Parse(time.RFC3339Nano, entry); err != nil {
			return nil, fmt.Errorf("corrupt position entry time %q: %w", entry, err)
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// LoadSummaries reads every persisted daily summary in date order.
func (s *Store) LoadSummaries(ctx context.Context) ([]alm.DailySummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date, opening_nav, closing_nav, total_pnl, net_cash_flow,
			commissions, flagged, error
		FROM daily_summaries ORDER BY date`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []alm.DailySummary
	for rows.Next() {
		var d alm.DailySummary
		var day, opening, closing, pnl, flow, commissions string
		var flagged int
		if err := rows.Scan(&day, &opening, &closing, &pnl, &flow,
			&commissions, &flagged, &d.Err); err != nil {
			return nil, err
		}
		if d.Date, err = alm.ParseDate(day); err != nil {
			return nil, err
		}
		if d.OpeningNAV, err = decimal.NewFromString(opening); err != nil {
			return nil, err
		}
		if d.ClosingNAV, err = decimal.NewFromString(closing); err != nil {
			return nil, err
		}
		if d.TotalPnL, err = decimal.NewFromString(pnl); err != nil {
			return nil, err
		}
		if d.NetCashFlow, err = decimal.NewFromString(flow); err != nil {
			return nil, err
		}
		if d.Commissions, err = decimal.NewFromString(commissions); err != nil {
			return nil, err
		}
		d.Flagged = flagged != 0
		summaries = append(summaries, d)
	}
	return summaries, rows.Err()
}

// compile-time check: Store satisfies the engine contract.
var _ alm.Store = (*Store)(nil)
