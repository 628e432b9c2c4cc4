package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
)

// ingestCmd holds the flags for the 'ingest' subcommand.
type ingestCmd struct {
	config string
}

func (*ingestCmd) Name() string     { return "ingest" }
func (*ingestCmd) Synopsis() string { return "parse the configured extracts and persist the ledger" }
func (*ingestCmd) Usage() string {
	return `arec ingest -c <config>

  Runs the pipeline and persists events, positions and daily summaries
  without enforcing the reconciliation gate.
`
}

func (c *ingestCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.config, "c", "alm.toml", "Path to the engine configuration file")
}

func (c *ingestCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := loadConfig(c.config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	if cfg.StorePath == "" {
		fmt.Fprintln(os.Stderr, "Error: ingest requires store_path in the configuration")
		return subcommands.ExitUsageError
	}
	s, err := openStore(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer s.Close()

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

	result, err := pipeline.Run(ctx, extracts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Printf("ingested %d events over %d days\n", len(result.Ledger.Events), len(result.Summaries))
	return subcommands.ExitSuccess
}
