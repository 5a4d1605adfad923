package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/specialistvlad/topomirror/internal/ctxlog"
	"github.com/specialistvlad/topomirror/internal/syncengine"
)

// Replica dump formats.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// ErrUnknownFormat is returned for a dump format other than json or yaml.
var ErrUnknownFormat = errors.New("unknown output format")

// Snapshot connects, waits for the first successful sync, writes the
// replica to w in the given format and stops. Bound the wait with ctx.
func (a *App) Snapshot(ctx context.Context, w io.Writer, format string) error {
	if format != FormatJSON && format != FormatYAML {
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}

	ctx = ctxlog.WithLogger(ctx, a.logger)
	defer a.close()

	runCtx, cancel := context.WithCancel(ctx)
	var runErr error
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		runErr = a.engine.Run(runCtx)
	}()
	defer func() {
		cancel()
		<-stopped
	}()

	select {
	case <-a.engine.Synced():
	case <-stopped:
		if runErr == nil {
			runErr = ctx.Err()
		}
		return fmt.Errorf("engine stopped before the first sync: %w", runErr)
	case <-ctx.Done():
		return fmt.Errorf("waiting for the first sync: %w", ctx.Err())
	}

	replica, err := a.engine.Snapshot(ctx)
	if err != nil {
		return err
	}
	return writeReplica(w, replica, format)
}

func writeReplica(w io.Writer, r syncengine.Replica, format string) error {
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("failed to encode replica: %w", err)
		}
		return enc.Close()
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("failed to encode replica: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}
