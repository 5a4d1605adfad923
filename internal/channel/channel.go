// Package channel defines the duplex message connection to the topology
// server. Implementations own the transport handshake and the reconnection
// policy; consumers only see connect/disconnect lifecycle events and
// decoded protocol messages.
package channel

import (
	"context"
	"errors"
	"sync"

	"github.com/specialistvlad/topomirror/internal/protocol"
)

// ErrNotConnected is returned by Send while no connection is established.
var ErrNotConnected = errors.New("channel not connected")

// MessageHandler receives every decoded inbound message.
type MessageHandler func(protocol.Message)

// Channel is a persistent duplex connection.
type Channel interface {
	// Connect runs the connection until ctx is done, reconnecting as the
	// implementation sees fit. Lifecycle handlers fire on every transition.
	Connect(ctx context.Context) error
	// Send writes one message. It fails with ErrNotConnected when down.
	Send(msg protocol.Message) error

	OnMessage(h MessageHandler)
	OnConnect(h func())
	OnDisconnect(h func())
}

// Handlers is the handler registry shared by Channel implementations.
// The zero value is ready to use.
type Handlers struct {
	mu         sync.RWMutex
	message    []MessageHandler
	connect    []func()
	disconnect []func()
}

func (h *Handlers) OnMessage(fn MessageHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.message = append(h.message, fn)
}

func (h *Handlers) OnConnect(fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connect = append(h.connect, fn)
}

func (h *Handlers) OnDisconnect(fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.disconnect = append(h.disconnect, fn)
}

// EmitMessage calls every message handler in registration order.
func (h *Handlers) EmitMessage(msg protocol.Message) {
	h.mu.RLock()
	handlers := h.message
	h.mu.RUnlock()
	for _, fn := range handlers {
		fn(msg)
	}
}

// EmitConnect calls every connect handler in registration order.
func (h *Handlers) EmitConnect() {
	h.mu.RLock()
	handlers := h.connect
	h.mu.RUnlock()
	for _, fn := range handlers {
		fn()
	}
}

// EmitDisconnect calls every disconnect handler in registration order.
func (h *Handlers) EmitDisconnect() {
	h.mu.RLock()
	handlers := h.disconnect
	h.mu.RUnlock()
	for _, fn := range handlers {
		fn()
	}
}
