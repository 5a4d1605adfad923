package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/specialistvlad/topomirror/internal/app"
	"github.com/specialistvlad/topomirror/internal/cli"
)

// main is the entrypoint for the topomirror daemon.
func main() {
	// Use a minimal logger until the full one is configured.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The real main function handles errors and exit codes.
	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run encapsulates the main application logic for easier testing and error
// handling. Logs go to errW so a snapshot on outW stays parseable.
func run(ctx context.Context, outW, errW io.Writer, args []string) error {
	cmd, shouldExit, err := cli.Parse(args, outW)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}

	topomirror, err := app.NewApp(errW, cmd.Config)
	if err != nil {
		return fmt.Errorf("application startup failed: %w", err)
	}

	if cmd.Name == cli.CommandSnapshot {
		ctx, cancel := context.WithTimeout(ctx, cmd.Timeout)
		defer cancel()
		return topomirror.Snapshot(ctx, outW, cmd.Format)
	}
	return topomirror.Run(ctx)
}
