package app

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/specialistvlad/topomirror/internal/config"
	"github.com/specialistvlad/topomirror/internal/ctxlog"
)

// Run keeps the replica in sync until ctx is done. Alongside the engine it
// serves the ops endpoint and follows the config file when those are
// configured.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")
	defer a.close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.engine.Run(gctx) })
	if a.config.Ops.Port > 0 {
		g.Go(func() error { return a.serveOps(gctx) })
	} else {
		a.logger.Warn("Ops server not started: disabled")
	}
	if a.config.Path != "" {
		g.Go(func() error { return config.Watch(gctx, a.config.Path, a.onConfigChange(gctx)) })
	}

	err := g.Wait()
	a.logger.Debug("App.Run method finished.", "error", err)
	return err
}

// onConfigChange returns the reload callback. Only the sync instant takes
// effect at runtime; it is forwarded as a SyncRequest.
func (a *App) onConfigChange(ctx context.Context) func(config.Config) {
	return func(cfg config.Config) {
		if cfg.Sync.At == a.at {
			return
		}
		a.at = cfg.Sync.At
		a.logger.Info("Sync instant changed", "at", cfg.Sync.At)
		if err := a.engine.SyncRequest(ctx, cfg.Sync.At); err != nil {
			a.logger.Warn("Failed to request sync", "at", cfg.Sync.At, "error", err)
		}
	}
}
