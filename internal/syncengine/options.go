package syncengine

import (
	"log/slog"
	"time"

	"github.com/specialistvlad/topomirror/internal/channel"
	"github.com/specialistvlad/topomirror/internal/graph"
	"github.com/specialistvlad/topomirror/internal/metrics"
	"github.com/specialistvlad/topomirror/internal/poscache"
	"github.com/specialistvlad/topomirror/internal/render"
)

// Defaults.
const (
	DefaultDebounce      = 100 * time.Millisecond
	DefaultAlertTTL      = time.Second
	DefaultFlushInterval = 30 * time.Second
)

var (
	// DefaultRedrawOn lists the metadata keys whose change on NodeUpdated
	// needs a redraw.
	DefaultRedrawOn = []string{graph.KeyCaptureID, graph.KeyStatus}
	// DefaultSuppressRelationTypes are edge relation types never surfaced.
	DefaultSuppressRelationTypes = []string{"layer3"}
)

// Options configures an Engine. Channel is required.
type Options struct {
	Channel   channel.Channel
	Renderer  render.Renderer
	Notifier  Notifier
	Positions poscache.Cache
	Metrics   *metrics.Metrics
	Logger    *slog.Logger

	// At is the initial time-travel instant in epoch milliseconds; zero is
	// live.
	At int64

	Debounce              time.Duration
	AlertTTL              time.Duration
	RedrawOn              []string
	SuppressRelationTypes []string

	// FlushInterval is how often positions are saved once the user has
	// touched the layout. PositionTTL is the lifetime of a saved position.
	FlushInterval time.Duration
	PositionTTL   time.Duration
}

func (o *Options) setDefaults() {
	if o.Renderer == nil {
		o.Renderer = render.Nop{}
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Notifier == nil {
		o.Notifier = LogNotifier{Logger: o.Logger}
	}
	if o.Metrics == nil {
		o.Metrics = metrics.NewUnregistered()
	}
	if o.Debounce <= 0 {
		o.Debounce = DefaultDebounce
	}
	if o.AlertTTL <= 0 {
		o.AlertTTL = DefaultAlertTTL
	}
	if o.RedrawOn == nil {
		o.RedrawOn = DefaultRedrawOn
	}
	if o.SuppressRelationTypes == nil {
		o.SuppressRelationTypes = DefaultSuppressRelationTypes
	}
	if o.FlushInterval <= 0 {
		o.FlushInterval = DefaultFlushInterval
	}
	if o.PositionTTL <= 0 {
		o.PositionTTL = poscache.DefaultTTL
	}
}
