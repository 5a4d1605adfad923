package app

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/specialistvlad/topomirror/internal/channel"
	"github.com/specialistvlad/topomirror/internal/channel/socketio"
	"github.com/specialistvlad/topomirror/internal/channel/websocket"
	"github.com/specialistvlad/topomirror/internal/config"
	"github.com/specialistvlad/topomirror/internal/metrics"
	"github.com/specialistvlad/topomirror/internal/poscache"
	"github.com/specialistvlad/topomirror/internal/poscache/badgerstore"
	"github.com/specialistvlad/topomirror/internal/poscache/memstore"
	"github.com/specialistvlad/topomirror/internal/render"
	"github.com/specialistvlad/topomirror/internal/syncengine"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	config   *Config
	registry *prometheus.Registry
	metrics  *metrics.Metrics

	channel   channel.Channel
	renderer  render.Renderer
	positions poscache.Cache
	engine    *syncengine.Engine

	// at is the last sync instant taken from the config file.
	at int64
}

// Option overrides a dependency NewApp would otherwise build from Config.
type Option func(*App)

// WithChannel replaces the configured transport.
func WithChannel(ch channel.Channel) Option {
	return func(a *App) { a.channel = ch }
}

// WithRenderer replaces the log renderer.
func WithRenderer(r render.Renderer) Option {
	return func(a *App) { a.renderer = r }
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance, including its own isolated logger and metrics
// registry.
func NewApp(outW io.Writer, cfg *Config, opts ...Option) (*App, error) {
	logger := newLogger(cfg.Log.Level, cfg.Log.Format, outW)
	logger.Debug("Logger configured successfully.")

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	a := &App{
		outW:     outW,
		logger:   logger,
		config:   cfg,
		registry: reg,
		metrics:  metrics.New(reg),
		at:       cfg.Sync.At,
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.channel == nil {
		a.channel = newChannel(cfg.Server, a.metrics)
	}
	if a.renderer == nil {
		a.renderer = render.NewLogRenderer(logger)
	}

	positions, err := openPositions(cfg.Positions, logger)
	if err != nil {
		return nil, err
	}
	a.positions = positions

	engine, err := syncengine.New(syncengine.Options{
		Channel:               a.channel,
		Renderer:              a.renderer,
		Notifier:              syncengine.LogNotifier{Logger: logger},
		Positions:             positions,
		Metrics:               a.metrics,
		Logger:                logger,
		At:                    cfg.Sync.At,
		Debounce:              cfg.Sync.Debounce,
		AlertTTL:              cfg.Sync.AlertTTL,
		RedrawOn:              cfg.Sync.RedrawOn,
		SuppressRelationTypes: cfg.Sync.SuppressRelationTypes,
		FlushInterval:         cfg.Positions.FlushInterval,
		PositionTTL:           cfg.Positions.TTL,
	})
	if err != nil {
		a.close()
		return nil, err
	}
	a.engine = engine

	logger.Debug("App assembled.",
		"transport", cfg.Server.Transport, "url", cfg.Server.URL, "positions", cfg.Positions.Backend)
	return a, nil
}

func newChannel(s config.Server, m *metrics.Metrics) channel.Channel {
	if s.Transport == config.TransportSocketIO {
		return socketio.New(socketio.Options{
			URL:                s.URL,
			Namespace:          s.Namespace,
			Event:              s.Event,
			InsecureSkipVerify: s.InsecureSkipVerify,
		}, m)
	}

	header := http.Header{}
	for k, v := range s.Headers {
		header.Set(k, v)
	}
	return websocket.New(websocket.Options{
		URL:                s.URL,
		Header:             header,
		InsecureSkipVerify: s.InsecureSkipVerify,
		ReconnectDelay:     s.ReconnectDelay,
	}, m)
}

func openPositions(p config.Positions, logger *slog.Logger) (poscache.Cache, error) {
	switch p.Backend {
	case config.BackendMemory:
		return memstore.New(p.TTL), nil
	case config.BackendBadger:
		store, err := badgerstore.Open(p.Path, p.TTL, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open position cache: %w", err)
		}
		return store, nil
	default:
		return nil, nil
	}
}

// Engine returns the sync engine. This is primarily for testing.
func (a *App) Engine() *syncengine.Engine {
	return a.engine
}

func (a *App) close() {
	if a.positions == nil {
		return
	}
	if err := a.positions.Close(); err != nil {
		a.logger.Error("Failed to close position cache", "error", err)
	}
}
