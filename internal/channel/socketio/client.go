// Package socketio is a Channel transport over socket.io, for servers that
// expose the topology stream as a socket.io namespace. Envelopes travel as
// the single argument of a named event.
package socketio

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/url"
	"sync/atomic"

	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"

	"github.com/specialistvlad/topomirror/internal/channel"
	"github.com/specialistvlad/topomirror/internal/ctxlog"
	"github.com/specialistvlad/topomirror/internal/metrics"
	"github.com/specialistvlad/topomirror/internal/protocol"
)

// DefaultEvent is the event name carrying envelopes in both directions.
const DefaultEvent = "message"

// Options configures a Client.
type Options struct {
	URL                string
	Namespace          string
	Event              string
	InsecureSkipVerify bool
}

// Client implements channel.Channel. The socket.io manager owns
// reconnection; Client only maps its events onto the channel lifecycle.
type Client struct {
	channel.Handlers

	opts    Options
	metrics *metrics.Metrics

	io        atomic.Pointer[socket.Socket]
	connected atomic.Bool
}

var _ channel.Channel = (*Client)(nil)

// New creates a client. m may be nil.
func New(opts Options, m *metrics.Metrics) *Client {
	if opts.Event == "" {
		opts.Event = DefaultEvent
	}
	if opts.Namespace == "" {
		opts.Namespace = "/"
	}
	return &Client{opts: opts, metrics: m}
}

// Connect opens the socket and blocks until ctx is done.
func (c *Client) Connect(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx).With("component", "channel", "transport", "socketio", "url", c.opts.URL)

	parsedURL, err := url.Parse(c.opts.URL)
	if err != nil {
		return fmt.Errorf("failed to parse URL: %w", err)
	}

	opts := socket.DefaultOptions()
	if parsedURL.Path != "" {
		opts.SetPath(parsedURL.Path)
	}
	if c.opts.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	manager := socket.NewManager(baseURL, opts)
	io := manager.Socket(c.opts.Namespace, opts)

	io.On(types.EventName("connect"), func(...any) {
		logger.Info("Connected", "sid", io.Id())
		c.connected.Store(true)
		c.EmitConnect()
	})
	io.On(types.EventName("disconnect"), func(reason ...any) {
		logger.Info("Disconnected", "reason", reason)
		c.connected.Store(false)
		c.EmitDisconnect()
	})
	io.On(types.EventName("connect_error"), func(errs ...any) {
		logger.Warn("Connection attempt failed", "error", errs)
		if c.metrics != nil {
			c.metrics.Reconnects.Inc()
		}
	})
	io.On(types.EventName(c.opts.Event), func(args ...any) {
		if len(args) == 0 {
			return
		}
		msg, err := decodeArg(args[0])
		if err != nil {
			logger.Debug("Dropping undecodable event", "error", err)
			if c.metrics != nil {
				c.metrics.Dropped.WithLabelValues(metrics.ReasonMalformed).Inc()
			}
			return
		}
		c.EmitMessage(msg)
	})

	c.io.Store(io)
	logger.Debug("Initiating connection")
	io.Connect()

	<-ctx.Done()
	c.io.Store(nil)
	io.Disconnect()
	return nil
}

// Send emits msg as the argument of the configured event.
func (c *Client) Send(msg protocol.Message) error {
	io := c.io.Load()
	if io == nil || !c.connected.Load() {
		return channel.ErrNotConnected
	}
	io.Emit(c.opts.Event, msg)
	return nil
}

// decodeArg accepts the forms a socket.io event argument arrives in: JSON
// text, raw bytes, or an already-decoded JSON value.
func decodeArg(arg any) (protocol.Message, error) {
	switch v := arg.(type) {
	case string:
		return protocol.Decode([]byte(v))
	case []byte:
		return protocol.Decode(v)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return protocol.Message{}, fmt.Errorf("%w: %v", protocol.ErrMalformed, err)
		}
		return protocol.Decode(data)
	}
}
