// Package alm reconstructs a single, internally consistent ledger of
// financial events from brokerage account-activity exports.
//
// The core functionalities include:
//   - Feed Ingestion: Parsing overlapping FlexQuery-style export extracts
//     (trades, cash transactions, NAV snapshots) into typed, deduplicated
//     records validated once at the boundary.
//   - Assignment Detection: Inferring option assignment and expiration
//     events by correlating simultaneous stock and option settlement
//     bookings that the export never links explicitly.
//   - Position Tracking: Maintaining per-symbol FIFO queues of open stock
//     positions and computing realized P&L when they close.
//   - Event Timeline: Merging every classified event into one chronological
//     ledger with a running net asset value, recomputed deterministically
//     from the canonical record set on each run.
//   - Daily Aggregation and Reconciliation: Rolling the ledger into per-day
//     NAV/P&L/cash-flow summaries and checking them against the broker's
//     own reported figures.
//
// The engine is batch and single-writer: it operates on bounded historical
// periods and persists results all-or-nothing. This package serves as the
// foundational logic for the `arec` command-line tool.
package alm
