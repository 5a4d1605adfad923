package syncengine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/sync/errgroup"

	"github.com/specialistvlad/topomirror/internal/ctxlog"
	"github.com/specialistvlad/topomirror/internal/graph"
	"github.com/specialistvlad/topomirror/internal/protocol"
)

const inboxSize = 1024

// ErrNoChannel is returned by New when Options.Channel is nil.
var ErrNoChannel = errors.New("syncengine: channel is required")

// event runs on the loop goroutine.
type event func(ctx context.Context)

// stopper is the part of *time.Timer the debounce needs.
type stopper interface {
	Stop() bool
}

// Engine owns the replica. Create it with New and drive it with Run.
type Engine struct {
	opts   Options
	logger *slog.Logger

	store  *graph.Graph
	view   *view
	alerts *ttlcache.Cache[string, protocol.AlertObj]

	inbox chan event
	done  chan struct{}

	// Loop-owned.
	at int64
	// unsent is set while the SyncRequest for at has not reached the server.
	unsent bool
	queue  []action
	// pendingUpdates holds nodes with a queued metadata replacement.
	pendingUpdates map[string]struct{}
	armed          bool
	timer          stopper
	keepLayout     bool

	afterFunc func(d time.Duration, f func()) stopper

	state      atomic.Int32
	syncedOnce sync.Once
	synced     chan struct{}
	flushers   errgroup.Group
}

// New creates an engine and registers it on the channel.
func New(opts Options) (*Engine, error) {
	if opts.Channel == nil {
		return nil, ErrNoChannel
	}
	opts.setDefaults()

	e := &Engine{
		opts:   opts,
		logger: opts.Logger.With("component", "syncengine"),
		store:  graph.New(),
		alerts: ttlcache.New[string, protocol.AlertObj](
			ttlcache.WithTTL[string, protocol.AlertObj](opts.AlertTTL),
		),
		inbox:          make(chan event, inboxSize),
		done:           make(chan struct{}),
		at:             opts.At,
		pendingUpdates: make(map[string]struct{}),
		synced:         make(chan struct{}),
		afterFunc: func(d time.Duration, f func()) stopper {
			return time.AfterFunc(d, f)
		},
	}
	e.view = newView(e.store, opts.Renderer, opts.SuppressRelationTypes)
	e.flushers.SetLimit(1)

	e.alerts.OnEviction(func(_ context.Context, reason ttlcache.EvictionReason, _ *ttlcache.Item[string, protocol.AlertObj]) {
		if reason == ttlcache.EvictionReasonExpired {
			e.post(func(context.Context) { e.arm() })
		}
	})

	opts.Channel.OnConnect(func() { e.post(e.onConnect) })
	opts.Channel.OnDisconnect(func() { e.post(e.onDisconnect) })
	opts.Channel.OnMessage(func(msg protocol.Message) {
		e.post(func(ctx context.Context) { e.handleMessage(ctx, msg) })
	})

	e.setState(Disconnected)
	return e, nil
}

// Run connects the channel and processes events until ctx is done or the
// channel fails.
func (e *Engine) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, e.logger)
	e.logger.Info("Starting", "at", e.at)

	go e.alerts.Start()
	defer e.alerts.Stop()

	g, gctx := errgroup.WithContext(ctx)
	e.setState(Connecting)
	g.Go(func() error { return e.opts.Channel.Connect(gctx) })
	g.Go(func() error { return e.loop(gctx) })
	err := g.Wait()
	e.logger.Info("Stopped")
	return err
}

func (e *Engine) loop(ctx context.Context) error {
	defer func() {
		if e.timer != nil {
			e.timer.Stop()
		}
		close(e.done)
		_ = e.flushers.Wait()
	}()

	ticker := time.NewTicker(e.opts.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-e.inbox:
			ev(ctx)
		case <-ticker.C:
			e.persistPositions(ctx)
		}
	}
}

// post hands ev to the loop. It gives up once the loop has exited.
func (e *Engine) post(ev event) {
	select {
	case e.inbox <- ev:
	case <-e.done:
	}
}

// call runs fn on the loop and waits for it.
func (e *Engine) call(ctx context.Context, fn event) error {
	finished := make(chan struct{})
	ev := func(ctx context.Context) {
		defer close(finished)
		fn(ctx)
	}
	select {
	case e.inbox <- ev:
	case <-e.done:
		return context.Canceled
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) setState(s State) {
	prev := State(e.state.Swap(int32(s)))
	e.opts.Metrics.State.Set(float64(s))
	if prev != s {
		e.logger.Debug("State changed", "from", prev, "to", s)
	}
}

// State reports the current synchronization state. Safe from any goroutine.
func (e *Engine) State() State {
	return State(e.state.Load())
}

// Synced is closed after the first successful SyncReply.
func (e *Engine) Synced() <-chan struct{} {
	return e.synced
}

func (e *Engine) onConnect(ctx context.Context) {
	e.setState(ConnectedUnsynced)
	e.requestSync(ctx, e.at, true)
}

func (e *Engine) onDisconnect(context.Context) {
	if e.State() == Disconnected {
		return
	}
	e.setState(Disconnected)
	e.opts.Notifier.Notify(slog.LevelWarn, "Connection to the topology server lost")
}

// requestSync records at and sends a SyncRequest for it. Unless forced, a
// repeated non-zero instant that was already sent is ignored. While disconnected the instant is
// only recorded; onConnect sends it.
func (e *Engine) requestSync(ctx context.Context, at int64, force bool) {
	if !force && !e.unsent && at != 0 && at == e.at {
		return
	}
	e.at = at

	switch e.State() {
	case Disconnected, Connecting:
		e.unsent = true
		return
	}
	if err := e.opts.Channel.Send(protocol.NewSyncRequest(at)); err != nil {
		e.unsent = true
		ctxlog.FromContext(ctx).Warn("Failed to send SyncRequest", "at", at, "error", err)
		return
	}
	e.unsent = false
	e.setState(ConnectedUnsynced)
	ctxlog.FromContext(ctx).Info("SyncRequest sent", "at", at)
}
