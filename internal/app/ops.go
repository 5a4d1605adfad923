package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/specialistvlad/topomirror/internal/ctxlog"
	"github.com/specialistvlad/topomirror/internal/syncengine"
)

const (
	replicaTimeout  = 5 * time.Second
	shutdownTimeout = 5 * time.Second
)

func init() {
	gin.SetMode(gin.ReleaseMode)
}

// opsHandler serves /health, /metrics and /replica.
func (a *App) opsHandler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/health", a.healthHandler)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{Registry: a.registry})))
	r.GET("/replica", a.replicaHandler)
	return r
}

func (a *App) healthHandler(c *gin.Context) {
	a.logger.Debug("Health check endpoint hit.", "remote_addr", c.ClientIP(), "path", c.Request.URL.Path)
	state := a.engine.State()
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"state":  state.String(),
		"synced": state == syncengine.ConnectedSynced,
	})
}

func (a *App) replicaHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), replicaTimeout)
	defer cancel()

	replica, err := a.engine.Snapshot(ctx)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}

	format := c.DefaultQuery("format", FormatJSON)
	switch format {
	case FormatJSON:
		c.Header("Content-Type", "application/json")
	case FormatYAML:
		c.Header("Content-Type", "application/yaml")
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown format %q", format)})
		return
	}
	c.Status(http.StatusOK)
	if err := writeReplica(c.Writer, replica, format); err != nil {
		a.logger.Warn("Failed to write replica", "error", err)
	}
}

// serveOps runs the ops server until ctx is done.
func (a *App) serveOps(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	addr := fmt.Sprintf(":%d", a.config.Ops.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           a.opsHandler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Ops server starting", "address", fmt.Sprintf("http://localhost%s", addr))
		// ListenAndServe will return an error on graceful shutdown.
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("ops server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	logger.Info("Shutting down ops server...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Ops server shutdown failed", "error", err)
		return err
	}
	logger.Debug("Ops server shut down gracefully.")
	return nil
}
