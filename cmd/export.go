package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/ostrelli/alm"
)

// exportCmd holds the flags for the 'export' subcommand.
type exportCmd struct {
	config string
}

func (*exportCmd) Name() string     { return "export" }
func (*exportCmd) Synopsis() string { return "write the persisted ledger as JSONL" }
func (*exportCmd) Usage() string {
	return `arec export -c <config>

  Writes the persisted ledger to stdout in the import/export format.
`
}

func (c *exportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.config, "c", "alm.toml", "Path to the engine configuration file")
}

func (c *exportCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := loadConfig(c.config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	s, err := openStore(cfg)
	if err != nil || s == nil {
		fmt.Fprintf(os.Stderr, "Error: export requires a persisted store: %v\n", err)
		return subcommands.ExitFailure
	}
	defer s.Close()

	ledger, err := s.LoadLedger(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	if err := alm.EncodeLedger(os.Stdout, ledger); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
