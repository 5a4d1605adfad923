package graph

import (
	"fmt"
	"maps"
	"reflect"
	"strings"
)

// Well-known metadata keys. Nested keys use "/" as a path separator, the way
// the server flattens them.
const (
	KeyType         = "Type"
	KeyProbe        = "Probe"
	KeyGroup        = "Group"
	KeyName         = "Name"
	KeyTID          = "TID"
	KeyState        = "State"
	KeyStatus       = "Status"
	KeyCaptureID    = "Capture/ID"
	KeyRelationType = "RelationType"
	KeyInstanceID   = "InstanceID"
	KeyIfIndex      = "IfIndex"
	KeyManager      = "Manager"
)

// Metadata is the open attribute bag attached to nodes and edges. Values are
// whatever the JSON decoder produced: strings, float64, bool, nil, nested
// maps and slices.
type Metadata map[string]any

// Get resolves path against the bag. A flat key equal to path wins; otherwise
// the path is split on "/" and walked through nested maps.
func (m Metadata) Get(path string) (any, bool) {
	if m == nil {
		return nil, false
	}
	if v, ok := m[path]; ok {
		return v, true
	}
	if !strings.Contains(path, "/") {
		return nil, false
	}

	var cur any = map[string]any(m)
	for _, part := range strings.Split(path, "/") {
		switch typed := cur.(type) {
		case map[string]any:
			v, ok := typed[part]
			if !ok {
				return nil, false
			}
			cur = v
		case Metadata:
			v, ok := typed[part]
			if !ok {
				return nil, false
			}
			cur = v
		default:
			return nil, false
		}
	}
	return cur, true
}

// Has reports whether path resolves to a value, even a nil one.
func (m Metadata) Has(path string) bool {
	_, ok := m.Get(path)
	return ok
}

// String returns the value at path as a string. Non-string scalars are
// formatted; missing keys yield "".
func (m Metadata) String(path string) string {
	v, ok := m.Get(path)
	if !ok || v == nil {
		return ""
	}
	switch typed := v.(type) {
	case string:
		return typed
	case float64:
		return fmt.Sprintf("%g", typed)
	default:
		return fmt.Sprint(typed)
	}
}

// Equal reports whether the value at path is the same in both bags.
func (m Metadata) Equal(other Metadata, path string) bool {
	a, aok := m.Get(path)
	b, bok := other.Get(path)
	if aok != bok {
		return false
	}
	return reflect.DeepEqual(a, b)
}

func (m Metadata) Type() string         { return m.String(KeyType) }
func (m Metadata) Probe() string        { return m.String(KeyProbe) }
func (m Metadata) Group() string        { return m.String(KeyGroup) }
func (m Metadata) Name() string         { return m.String(KeyName) }
func (m Metadata) TID() string          { return m.String(KeyTID) }
func (m Metadata) State() string        { return m.String(KeyState) }
func (m Metadata) CaptureID() string    { return m.String(KeyCaptureID) }
func (m Metadata) RelationType() string { return m.String(KeyRelationType) }
func (m Metadata) Manager() string      { return m.String(KeyManager) }

// InstanceID reports whether the node carries a cloud instance ID, which
// marks a host as a virtual machine.
func (m Metadata) InstanceID() (string, bool) {
	if !m.Has(KeyInstanceID) {
		return "", false
	}
	return m.String(KeyInstanceID), true
}

// IfIndex reports whether the node has a non-zero interface index.
func (m Metadata) IfIndex() bool {
	v, ok := m.Get(KeyIfIndex)
	if !ok || v == nil {
		return false
	}
	switch typed := v.(type) {
	case float64:
		return typed != 0
	case int:
		return typed != 0
	case int64:
		return typed != 0
	case string:
		return typed != "" && typed != "0"
	case bool:
		return typed
	}
	return true
}

// Clone returns a deep copy, so snapshots handed to other goroutines do not
// alias the replica's nested maps.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch typed := v.(type) {
	case map[string]any:
		out := maps.Clone(typed)
		for k, inner := range out {
			out[k] = cloneValue(inner)
		}
		return out
	case Metadata:
		return typed.Clone()
	case []any:
		out := make([]any, len(typed))
		for i, inner := range typed {
			out[i] = cloneValue(inner)
		}
		return out
	default:
		return v
	}
}
