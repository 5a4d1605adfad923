// Package metrics holds the Prometheus collectors of the replica. Collectors
// are registered on a caller-supplied registry so tests and multiple engines
// never share global state.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "topomirror"

// Drop reasons used as the "reason" label of Dropped.
const (
	ReasonStale      = "stale"
	ReasonTimeTravel = "time_travel"
	ReasonMalformed  = "malformed"
	ReasonUnknown    = "unknown_type"
	ReasonViolation  = "protocol_violation"
)

// Metrics groups every collector the engine and transports update.
type Metrics struct {
	Messages    *prometheus.CounterVec
	Dropped     *prometheus.CounterVec
	SyncReplies *prometheus.CounterVec
	Redraws     prometheus.Counter
	Flushed     prometheus.Counter
	Reconnects  prometheus.Counter
	State       prometheus.Gauge
	Nodes       prometheus.Gauge
	Edges       prometheus.Gauge
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Inbound messages by namespace and type.",
		}, []string{"namespace", "type"}),
		Dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_dropped_total",
			Help:      "Inbound messages that were not applied, by reason.",
		}, []string{"reason"}),
		SyncReplies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_replies_total",
			Help:      "SyncReply messages by status code.",
		}, []string{"status"}),
		Redraws: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "redraws_total",
			Help:      "Deferred-action flushes that produced a redraw.",
		}),
		Flushed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deferred_actions_total",
			Help:      "Deferred actions applied by flushes.",
		}),
		Reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnect_attempts_total",
			Help:      "Connection attempts made by the transport.",
		}),
		State: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sync_state",
			Help:      "Current synchronization state (0 disconnected, 1 connecting, 2 unsynced, 3 synced).",
		}),
		Nodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "replica_nodes",
			Help:      "Nodes in the replica.",
		}),
		Edges: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "replica_edges",
			Help:      "Edges in the replica.",
		}),
	}
	reg.MustRegister(
		m.Messages, m.Dropped, m.SyncReplies,
		m.Redraws, m.Flushed, m.Reconnects,
		m.State, m.Nodes, m.Edges,
	)
	return m
}

// NewUnregistered returns collectors bound to a private registry.
func NewUnregistered() *Metrics {
	return New(prometheus.NewRegistry())
}
