package alm

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Store is the persistence contract the engine requires from the shared
// ledger store: insert-or-ignore for events keyed by transaction id,
// insert-or-update by date for summaries. The engine is the single writer.
type Store interface {
	SaveLedger(ctx context.Context, ledger *Ledger) (inserted int, err error)
	SavePositions(ctx context.Context, positions []*OpenPosition) error
	SaveSummaries(ctx context.Context, summaries []DailySummary) error
	LoadLedger(ctx context.Context) (*Ledger, error)
	LoadOpenPositions(ctx context.Context) ([]*OpenPosition, error)
}

// Pipeline wires the full engine: ingest → classify → track → merge →
// aggregate → reconcile, with optional persistence.
type Pipeline struct {
	Config *Config
	Log    zerolog.Logger
	Store  Store // nil disables persistence
	Rates  *RateTable
}

// RunResult is everything one engine run computes.
type RunResult struct {
	Ledger    *Ledger
	Positions []*OpenPosition // open and closed
	Summaries []DailySummary
	Report    *ReconciliationReport
}

// Run executes the pipeline over the given extracts. Ingestion failures
// abort the whole run before anything is computed or persisted; results are
// only written to the store once every stage succeeded (all-or-nothing per
// period). Re-running on the same inputs is safe and produces identical
// output.
func (p *Pipeline) Run(ctx context.Context, extracts ...Extract) (*RunResult, error) {
	return p.run(ctx, false, extracts)
}

// RunAppend is the only incremental form of update: it adds events for
// transaction ids not yet in the persisted ledger on top of the stored
// baseline, never altering existing rows.
func (p *Pipeline) RunAppend(ctx context.Context, extracts ...Extract) (*RunResult, error) {
	if p.Store == nil {
		return nil, fmt.Errorf("append mode requires a store")
	}
	return p.run(ctx, true, extracts)
}

func (p *Pipeline) run(ctx context.Context, appendMode bool, extracts []Extract) (*RunResult, error) {
	started := time.Now()
	set, err := NewIngestor(p.Log).Ingest(ctx, extracts...)
	if err != nil {
		return nil, err
	}
	if p.Rates != nil {
		if err := p.Rates.Resolve(set, p.Config.Location()); err != nil {
			return nil, err
		}
	}
	if err := ensureConverted(set, p.Config.ReportingCurrency); err != nil {
		return nil, err
	}

	class := DetectAssignments(set.Trades, p.Log)
	tracker := NewPositionTracker(p.Config.ReportingCurrency)
	builder := NewTimelineBuilder(p.Config.ReportingCurrency)

	var ledger *Ledger
	if appendMode {
		baseline, err := p.Store.LoadLedger(ctx)
		if err != nil {
			return nil, fmt.Errorf("cannot load baseline ledger: %w", err)
		}
		open, err := p.Store.LoadOpenPositions(ctx)
		if err != nil {
			return nil, fmt.Errorf("cannot load open positions: %w", err)
		}
		tracker.Restore(open)
		added := builder.Append(baseline, set, class, tracker)
		p.Log.Info().Int("events", len(added)).Msg("appended to baseline ledger")
		ledger = baseline
	} else {
		ledger = builder.Build(set, class, tracker)
	}

	aggregator := NewSummaryAggregator(p.Config.Location())
	summaries := aggregator.Aggregate(ledger)
	reconciler := NewReconciler(p.Config.ToleranceAmount(), p.Config.Location())
	report := reconciler.Reconcile(ledger, summaries, set.Navs)

	positions := append(tracker.OpenPositions(), tracker.ClosedPositions()...)
	result := &RunResult{
		Ledger:    ledger,
		Positions: positions,
		Summaries: summaries,
		Report:    report,
	}

	if p.Store != nil {
		inserted, err := p.Store.SaveLedger(ctx, ledger)
		if err != nil {
			return nil, fmt.Errorf("cannot persist events: %w", err)
		}
		if err := p.Store.SavePositions(ctx, positions); err != nil {
			return nil, fmt.Errorf("cannot persist positions: %w", err)
		}
		if err := p.Store.SaveSummaries(ctx, summaries); err != nil {
			return nil, fmt.Errorf("cannot persist summaries: %w", err)
		}
		p.Log.Info().Int("new_events", inserted).Msg("ledger persisted")
	}

	p.Log.Info().
		Int("events", len(ledger.Events)).
		Int("days", len(summaries)).
		Bool("pass", report.Pass).
		Dur("elapsed", time.Since(started)).
		Msg("reconciliation run complete")
	return result, nil
}
