package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jessevdk/go-flags"
)

// Options are the global command line options.
type Options struct {
	Env      string `short:"e" long:"env" env:"ENV" description:"Environment name, selects config/<env>.yaml" default:"local"`
	Config   string `short:"c" long:"config" env:"SEARCHSYNC_CONFIG" description:"Config file path, overrides --env lookup"`
	LogLevel string `short:"l" long:"log-level" env:"LOG_LEVEL" description:"Log level override" choice:"debug" choice:"info" choice:"warn" choice:"error"`
}

var options Options

func main() {
	parser := flags.NewParser(&options, flags.Default)
	parser.LongDescription = "searchsync keeps search backends in sync with the catalog database."

	mustAdd(parser.AddCommand("migrate", "Create catalog tables",
		"Runs gorm auto-migration for every catalog entity.", &migrateCommand{}))
	mustAdd(parser.AddCommand("check", "Validate search field declarations",
		"Prints a warning for every declared search field that does not resolve.", &checkCommand{}))
	mustAdd(parser.AddCommand("reindex", "Rebuild search backends",
		"Writes every indexable row into the configured backends.", &reindexCommand{}))
	mustAdd(parser.AddCommand("serve", "Run the ops and query server",
		"Serves /healthz, /metrics and /search and dispatches in-process entity changes.", &serveCommand{}))
	mustAdd(parser.AddCommand("version", "Print build information", "", &versionCommand{}))

	if _, err := parser.Parse(); err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}
}

func mustAdd(_ *flags.Command, err error) {
	if err != nil {
		panic(err)
	}
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func printf(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stdout, format, args...)
}
