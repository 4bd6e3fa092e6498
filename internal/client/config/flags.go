package config

import (
	"flag"
	"fmt"
	"io"

	"github.com/dmitrijs2005/growthfarm/internal/flagx"
)

var knownFlags = []string{"-a", "-s", "-store", "-r", "-t", "-l"}

// parseFlags overlays cfg with command-line flags.
//
//	-a string     backend base URL
//	-s string     SQLite database path
//	-store string store driver (sqlite, memory, redis)
//	-r string     recovery scope (all, session)
//	-t duration   store call timeout, e.g. 2s
//	-l string     log level
//
// Only these flags are looked at; everything else in args is ignored.
func parseFlags(cfg *Config, args []string) error {
	fs := flag.NewFlagSet("growthfarm", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.APIBaseURL, "a", cfg.APIBaseURL, "backend base URL")
	fs.StringVar(&cfg.StorePath, "s", cfg.StorePath, "sqlite database path")
	fs.StringVar(&cfg.StoreDriver, "store", cfg.StoreDriver, "store driver: sqlite, memory or redis")
	fs.StringVar(&cfg.RecoveryScope, "r", cfg.RecoveryScope, "recovery scope: all or session")
	fs.DurationVar(&cfg.StoreTimeout, "t", cfg.StoreTimeout, "store call timeout")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")

	if err := fs.Parse(flagx.FilterArgs(args, knownFlags)); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}
	return nil
}
