package cmd

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/ostrelli/alm"
)

// dailyCmd holds the flags for the 'daily' subcommand.
type dailyCmd struct {
	config string
	date   string
}

func (*dailyCmd) Name() string     { return "daily" }
func (*dailyCmd) Synopsis() string { return "print one day's persisted summary" }
func (*dailyCmd) Usage() string {
	return `arec daily -c <config> [-d <date>]

  Prints the persisted daily summary row for a single date as JSON.
`
}

func (c *dailyCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.config, "c", "alm.toml", "Path to the engine configuration file")
	f.StringVar(&c.date, "d", alm.Today().String(), "Date of the summary (ISO-8601)")
}

func (c *dailyCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	on, err := alm.ParseDate(c.date)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing date: %v\n", err)
		return subcommands.ExitUsageError
	}
	cfg, err := loadConfig(c.config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	s, err := openStore(cfg)
	if err != nil || s == nil {
		fmt.Fprintf(os.Stderr, "Error: daily requires a persisted store: %v\n", err)
		return subcommands.ExitFailure
	}
	defer s.Close()

	summaries, err := s.LoadSummaries(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	for _, d := range summaries {
		if d.Date == on {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			enc.Encode(d)
			return subcommands.ExitSuccess
		}
	}
	fmt.Fprintf(os.Stderr, "no summary for %s\n", on)
	return subcommands.ExitFailure
}
