package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	dispatchservice "ride-dispatch/cmd/dispatch_service"
	ingestservice "ride-dispatch/cmd/ingest_service"
	"ride-dispatch/internal/cli"
)

func main() {
	// quick path for global help
	if len(os.Args) == 2 && (os.Args[1] == "--help" || os.Args[1] == "-h") {
		cli.PrintUsage(os.Stdout)
		os.Exit(0)
	}

	// parse mode and collect the remaining args for that mode
	mode, svcArgs, err := cli.ParseMode(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		cli.PrintUsage(os.Stderr)
		os.Exit(2)
	}

	// context cancelled on SIGINT/SIGTERM for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch mode {

	case cli.ModeDispatch:
		fs := flag.NewFlagSet(cli.ModeDispatch, flag.ContinueOnError)
		maxConc := fs.Int("max-concurrent", 100, "Maximum number of concurrent HTTP requests to process")
		cli.AttachUsage(fs, cli.ModeDispatch)

		if err := fs.Parse(svcArgs); err != nil {
			if err == flag.ErrHelp {
				os.Exit(0)
			}
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(2)
		}
		if *maxConc < 1 {
			fmt.Fprintln(os.Stderr, "Error: --max-concurrent must be >= 1")
			fs.Usage()
			os.Exit(2)
		}
		if err := dispatchservice.Run(ctx, *maxConc); err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(1)
		}

	case cli.ModeIngest:
		fs := flag.NewFlagSet(cli.ModeIngest, flag.ContinueOnError)
		cli.AttachUsage(fs, cli.ModeIngest)

		if err := fs.Parse(svcArgs); err != nil {
			if err == flag.ErrHelp {
				os.Exit(0)
			}
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(2)
		}
		if err := ingestservice.Run(ctx); err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(1)
		}

	default:
		// should not happen because ParseMode validates known modes
		fmt.Fprintln(os.Stderr, "Error: unknown mode")
		os.Exit(2)
	}

	// tiny delay to let deferred logs flush on very fast exits
	select {
	case <-ctx.Done():
	case <-time.After(10 * time.Millisecond):
	}
}
