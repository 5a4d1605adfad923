// Package websocket is the default Channel transport: JSON envelopes, one
// per text frame, over a gorilla websocket connection to the server's /ws
// endpoint.
package websocket

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
	"golang.org/x/time/rate"

	"github.com/specialistvlad/topomirror/internal/channel"
	"github.com/specialistvlad/topomirror/internal/ctxlog"
	"github.com/specialistvlad/topomirror/internal/metrics"
	"github.com/specialistvlad/topomirror/internal/protocol"
)

const defaultHandshakeTimeout = 10 * time.Second

// Options configures a Client.
type Options struct {
	URL                string
	Header             http.Header
	InsecureSkipVerify bool
	// ReconnectDelay is the minimum interval between connection attempts.
	ReconnectDelay   time.Duration
	HandshakeTimeout time.Duration
}

// Client implements channel.Channel.
type Client struct {
	channel.Handlers

	opts    Options
	dialer  *websocket.Dialer
	limiter *rate.Limiter
	metrics *metrics.Metrics

	mu   sync.Mutex
	conn *websocket.Conn
}

var _ channel.Channel = (*Client)(nil)

// New creates a client. m may be nil.
func New(opts Options, m *metrics.Metrics) *Client {
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = defaultHandshakeTimeout
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = time.Second
	}
	dialer := &websocket.Dialer{HandshakeTimeout: opts.HandshakeTimeout}
	if opts.InsecureSkipVerify {
		dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &Client{
		opts:    opts,
		dialer:  dialer,
		limiter: rate.NewLimiter(rate.Every(opts.ReconnectDelay), 1),
		metrics: m,
	}
}

// Connect dials, reads until the connection drops, and redials no faster
// than ReconnectDelay. It returns nil once ctx is done.
func (c *Client) Connect(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx).With("component", "channel", "transport", "websocket", "url", c.opts.URL)

	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil
		}
		if c.metrics != nil {
			c.metrics.Reconnects.Inc()
		}

		conn, _, err := c.dialer.DialContext(ctx, c.opts.URL, c.opts.Header)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Warn("Connection attempt failed", "error", err)
			continue
		}

		session := ulid.Make().String()
		logger.Info("Connected", "session", session)
		c.setConn(conn)
		c.EmitConnect()

		err = c.readLoop(ctx, conn, logger.With("session", session))

		c.setConn(nil)
		_ = conn.Close()
		logger.Info("Disconnected", "session", session, "reason", err)
		c.EmitDisconnect()

		if ctx.Err() != nil {
			return nil
		}
	}
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn, logger *slog.Logger) error {
	stop := context.AfterFunc(ctx, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = conn.Close()
	})
	defer stop()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		msg, err := protocol.Decode(data)
		if err != nil {
			logger.Debug("Dropping undecodable frame", "error", err)
			if c.metrics != nil {
				c.metrics.Dropped.WithLabelValues(metrics.ReasonMalformed).Inc()
			}
			continue
		}
		c.EmitMessage(msg)
	}
}

func (c *Client) setConn(conn *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn = conn
}

// Send writes msg as a single JSON text frame.
func (c *Client) Send(msg protocol.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return channel.ErrNotConnected
	}
	if err := c.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("websocket send %s: %w", msg.Type, err)
	}
	return nil
}
