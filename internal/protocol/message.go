package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
)

// Namespaces.
const (
	NamespaceGraph = "Graph"
	NamespaceAlert = "Alert"
)

// Message types of the Graph namespace.
const (
	TypeSyncRequest = "SyncRequest"
	TypeSyncReply   = "SyncReply"
	TypeNodeAdded   = "NodeAdded"
	TypeNodeUpdated = "NodeUpdated"
	TypeNodeDeleted = "NodeDeleted"
	TypeEdgeAdded   = "EdgeAdded"
	TypeEdgeUpdated = "EdgeUpdated"
	TypeEdgeDeleted = "EdgeDeleted"
)

// StatusOK is the Status of a successful SyncReply.
const StatusOK = 200

var (
	// ErrMalformed wraps any failure to decode an envelope or payload.
	ErrMalformed = errors.New("malformed message")
	// ErrUnknownType is returned for a Graph message type this client does
	// not implement.
	ErrUnknownType = errors.New("unknown message type")
)

var graphTypes = []string{
	TypeSyncReply,
	TypeNodeAdded, TypeNodeUpdated, TypeNodeDeleted,
	TypeEdgeAdded, TypeEdgeUpdated, TypeEdgeDeleted,
}

// Message is the wire envelope.
type Message struct {
	Namespace string          `json:"Namespace"`
	Type      string          `json:"Type"`
	Status    int             `json:"Status,omitempty"`
	Obj       json.RawMessage `json:"Obj,omitempty"`
}

// Decode parses a wire frame into an envelope.
func Decode(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return msg, nil
}

// Encode serializes the envelope.
func (m Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// IsGraphMutation reports whether m is one of the six incremental Graph
// messages.
func (m Message) IsGraphMutation() bool {
	return m.Namespace == NamespaceGraph && m.Type != TypeSyncReply && slices.Contains(graphTypes, m.Type)
}

// Validate checks that a Graph message has a type this client understands.
func (m Message) Validate() error {
	if m.Namespace == NamespaceGraph && !slices.Contains(graphTypes, m.Type) {
		return fmt.Errorf("%w: %s/%s", ErrUnknownType, m.Namespace, m.Type)
	}
	return nil
}

// DecodeObj unmarshals the payload into v.
func (m Message) DecodeObj(v any) error {
	if len(m.Obj) == 0 {
		return fmt.Errorf("%w: %s has no Obj", ErrMalformed, m.Type)
	}
	if err := json.Unmarshal(m.Obj, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformed, m.Type, err)
	}
	return nil
}

// NewMessage builds an envelope around obj.
func NewMessage(namespace, typ string, obj any) (Message, error) {
	raw, err := json.Marshal(obj)
	if err != nil {
		return Message{}, fmt.Errorf("encode %s/%s: %w", namespace, typ, err)
	}
	return Message{Namespace: namespace, Type: typ, Obj: raw}, nil
}
