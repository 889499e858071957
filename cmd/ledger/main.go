// Command ledger imports statements, captures payment notifications, records
// quick entries and reports on the resulting ledger.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/FACorreiaa/pocket-ledger/pkg/config"
)

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stderr)
		os.Exit(1)
	}
	cmd := os.Args[1]
	if cmd == "help" || cmd == "-h" || cmd == "--help" {
		printUsage(os.Stdout)
		return
	}
	if _, ok := commands[cmd]; !ok {
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage(os.Stderr)
		os.Exit(1)
	}

	if err := config.LoadEnvFiles(".env", ".env.local"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := newLogger(os.Stderr)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := InitDependencies(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize dependencies", "error", err)
		os.Exit(1)
	}
	defer deps.Cleanup()

	a := &app{deps: deps, in: os.Stdin, out: os.Stdout}
	if err := a.run(ctx, cmd, os.Args[2:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		logger.Error("command failed", "command", cmd, "error", err)
		deps.Cleanup()
		os.Exit(1)
	}
}

func newLogger(w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		_ = level.UnmarshalText([]byte(v))
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Pocket Ledger")
	fmt.Fprintln(w, "\nUsage:")
	fmt.Fprintln(w, "  ledger <command> [options]")
	fmt.Fprintln(w, "\nCommands:")
	fmt.Fprintln(w, "  migrate    Apply database migrations")
	fmt.Fprintln(w, "  setup      Create a profile, wallet and source")
	fmt.Fprintln(w, "  import     Import a Revolut, Wise or Italian bank statement")
	fmt.Fprintln(w, "  capture    Record PayPal or Satispay notifications")
	fmt.Fprintln(w, "  quick      Add entries like \"Coffee 1.50€\" from stdin; \"undo\" reverts the last one")
	fmt.Fprintln(w, "  summary    Show the monthly dashboard")
	fmt.Fprintln(w, "  ledger     List entries grouped by day")
	fmt.Fprintln(w, "  export     Write the ledger to an xlsx workbook")
	fmt.Fprintln(w, "  search     Full-text search over merchants and descriptions")
	fmt.Fprintln(w, "  rule       Add a categorization rule")
	fmt.Fprintln(w, "  statements List archived statement files")
	fmt.Fprintln(w, "  run        Run scheduled jobs and serve metrics until interrupted")
	fmt.Fprintln(w, "  help       Show this help message")
	fmt.Fprintln(w, "\nRun 'ledger <command> -h' for more information on a command.")
}
