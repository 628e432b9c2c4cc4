package cmd

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
)

// reconcileCmd holds the flags for the 'reconcile' subcommand.
type reconcileCmd struct {
	config     string
	appendMode bool
}

func (*reconcileCmd) Name() string     { return "reconcile" }
func (*reconcileCmd) Synopsis() string { return "run the full reconciliation pipeline" }
func (*reconcileCmd) Usage() string {
	return `arec reconcile -c <config> [-append]

  Ingests the configured extracts, rebuilds the ledger and daily summaries,
  reconciles them against reported values and prints the report as JSON.
  Exits non-zero when the reconciliation gate fails.
`
}

func (c *reconcileCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.config, "c", "alm.toml", "Path to the engine configuration file")
	f.BoolVar(&c.appendMode, "append", false, "Only add events not yet in the persisted ledger")
}

func (c *reconcileCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := loadConfig(c.config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	s, err := openStore(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	if s != nil {
		defer s.Close()
	}
	pipeline, err := newPipeline(cfg, s)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}

	extracts, closer, err := openExtracts(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer closer()

	run := pipeline.Run
	if c.appendMode {
		run = pipeline.RunAppend
	}
	result, err := run(ctx, extracts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result.Report); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	if !result.Report.Pass {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
