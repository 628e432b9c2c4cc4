// Package cmd implements the CLI application around the reconciliation
// engine. Argument parsing and printing live here; all engine logic stays in
// the root package.
package cmd

import (
	"fmt"
	"os"

	"github.com/google/subcommands"
	"github.com/rs/zerolog"

	"github.com/ostrelli/alm"
	"github.com/ostrelli/alm/store"
)

// Register the subcommands.
// A main package calls Register(), then Execute() on the user-selected one.
func Register(c *subcommands.Commander) {
	c.Register(&ingestCmd{}, "pipeline")
	c.Register(&reconcileCmd{}, "pipeline")

	c.Register(&dailyCmd{}, "reports")
	c.Register(&exportCmd{}, "reports")
}

// as a CLI application it is very short lived, a few globals are fine.

var logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

// loadConfig loads the engine configuration used by all subcommands.
func loadConfig(path string) (*alm.Config, error) {
	return alm.LoadConfig(path)
}

// openStore opens the persisted ledger store named in the configuration, or
// returns nil when persistence is not configured.
func openStore(cfg *alm.Config) (*store.Store, error) {
	if cfg.StorePath == "" {
		return nil, nil
	}
	return store.Open(cfg.StorePath)
}

// openExtracts opens every feed extract named in the configuration. The
// returned closer releases the files.
func openExtracts(cfg *alm.Config) (extracts []alm.Extract, closer func(), err error) {
	var files []*os.File
	closer = func() {
		for _, f := range files {
			f.Close()
		}
	}
	for _, feed := range cfg.Feeds {
		f, err := os.Open(feed.Path)
		if err != nil {
			closer()
			return nil, nil, fmt.Errorf("cannot open extract %s: %w", feed.Path, err)
		}
		files = append(files, f)
		extracts = append(extracts, alm.Extract{
			Name:   feed.Path,
			Source: alm.SourceType(feed.Source),
			Reader: f,
		})
	}
	return extracts, closer, nil
}

// newPipeline assembles the pipeline from the configuration.
func newPipeline(cfg *alm.Config, s *store.Store) (*alm.Pipeline, error) {
	p := &alm.Pipeline{Config: cfg, Log: logger}
	if s != nil {
		p.Store = s
	}
	if cfg.RatesFile != "" {
		f, err := os.Open(cfg.RatesFile)
		if err != nil {
			return nil, fmt.Errorf("cannot open rates file: %w", err)
		}
		defer f.Close()
		rates, err := alm.LoadRates(f, cfg.ReportingCurrency)
		if err != nil {
			return nil, err
		}
		p.Rates = rates
	}
	return p, nil
}
