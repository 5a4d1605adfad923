package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/specialistvlad/topomirror/internal/app"
	"github.com/specialistvlad/topomirror/internal/config"
)

// Subcommands.
const (
	CommandWatch    = "watch"
	CommandSnapshot = "snapshot"
)

const defaultSnapshotTimeout = 30 * time.Second

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Command is the parsed invocation.
type Command struct {
	Name   string
	Config *app.Config

	// Snapshot only.
	Format  string
	Timeout time.Duration
}

type flags struct {
	configPath string
	url        string
	transport  string
	namespace  string
	at         string
	insecure   bool
	positions  string
	posPath    string
	opsPort    int
	logLevel   string
	logFormat  string

	format  string
	timeout time.Duration
}

// Parse processes command-line arguments. It returns the command to run, a
// boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*Command, bool, error) {
	slog.Debug("CLI parser started.")
	var (
		f      flags
		parsed *Command
	)

	root := &cobra.Command{
		Use:   "topomirror",
		Short: "Mirror a live topology graph",
		Long: `topomirror connects to a topology server, keeps a local replica of its
graph in sync and hands batched redraws to a renderer.

Running without a subcommand is the same as "topomirror watch".`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
	}
	pf := root.PersistentFlags()
	pf.StringVarP(&f.configPath, "config", "c", "", "Path to an HCL config file.")
	pf.StringVar(&f.url, "url", "", "Topology server URL.")
	pf.StringVar(&f.transport, "transport", "", "Transport: 'websocket' or 'socketio'.")
	pf.StringVar(&f.namespace, "namespace", "", "socket.io namespace.")
	pf.StringVar(&f.at, "at", "", "Mirror the graph at this instant (epoch ms or RFC 3339) instead of live.")
	pf.BoolVar(&f.insecure, "insecure-skip-verify", false, "Skip TLS certificate verification.")
	pf.StringVar(&f.positions, "positions", "", "Position cache: 'none', 'memory' or 'badger'.")
	pf.StringVar(&f.posPath, "positions-path", "", "Badger directory for the position cache.")
	pf.IntVar(&f.opsPort, "ops-port", 0, "Port for the ops HTTP server. 0 is disabled.")
	pf.StringVar(&f.logLevel, "log-level", "", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	pf.StringVar(&f.logFormat, "log-format", "", "Log output format. Options: 'auto', 'text' or 'json'.")

	build := func(cmd *cobra.Command, name string) error {
		cfg, err := resolve(cmd, &f)
		if err != nil {
			return err
		}
		parsed = &Command{Name: name, Config: cfg, Format: f.format, Timeout: f.timeout}
		return nil
	}

	watch := &cobra.Command{
		Use:   CommandWatch,
		Short: "Keep the replica in sync until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return build(cmd, CommandWatch)
		},
	}
	root.RunE = watch.RunE

	snapshot := &cobra.Command{
		Use:   CommandSnapshot,
		Short: "Print the replica after the first successful sync and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if f.format != app.FormatJSON && f.format != app.FormatYAML {
				return fmt.Errorf("invalid format: must be '%s' or '%s'", app.FormatJSON, app.FormatYAML)
			}
			return build(cmd, CommandSnapshot)
		},
	}
	snapshot.Flags().StringVarP(&f.format, "format", "o", app.FormatJSON, "Output format: 'json' or 'yaml'.")
	snapshot.Flags().DurationVar(&f.timeout, "timeout", defaultSnapshotTimeout, "How long to wait for the first sync.")

	root.AddCommand(watch, snapshot)
	root.SetArgs(args)
	root.SetOut(output)
	root.SetErr(output)

	if err := root.Execute(); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			return nil, false, exitErr
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	if parsed == nil {
		// Help or version output; nothing to run.
		return nil, true, nil
	}

	slog.Debug("CLI parser finished successfully.", "command", parsed.Name)
	return parsed, false, nil
}

// resolve loads the config file and applies the flags the user set.
func resolve(cmd *cobra.Command, f *flags) (*app.Config, error) {
	base, err := config.Load(f.configPath)
	if err != nil {
		return nil, &ExitError{Code: 2, Message: err.Error()}
	}

	changed := cmd.Flags().Changed
	if changed("url") {
		base.Server.URL = f.url
	}
	if changed("transport") {
		base.Server.Transport = strings.ToLower(f.transport)
	}
	if changed("namespace") {
		base.Server.Namespace = f.namespace
	}
	if changed("insecure-skip-verify") {
		base.Server.InsecureSkipVerify = f.insecure
	}
	if changed("at") {
		at, err := config.ParseInstant(f.at)
		if err != nil {
			return nil, &ExitError{Code: 2, Message: "invalid at: " + err.Error()}
		}
		base.Sync.At = at
	}
	if changed("positions") {
		base.Positions.Backend = strings.ToLower(f.positions)
	}
	if changed("positions-path") {
		base.Positions.Path = f.posPath
	}
	if changed("ops-port") {
		base.Ops.Port = f.opsPort
	}
	if changed("log-level") {
		base.Log.Level = strings.ToLower(f.logLevel)
	}
	if changed("log-format") {
		base.Log.Format = strings.ToLower(f.logFormat)
	}
	slog.Debug("CLI parameter validation complete.")

	cfg, err := app.NewConfig(app.Config{Path: f.configPath, Config: base})
	if err != nil {
		return nil, &ExitError{Code: 2, Message: err.Error()}
	}
	return cfg, nil
}
