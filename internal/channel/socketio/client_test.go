package socketio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/topomirror/internal/channel"
	"github.com/specialistvlad/topomirror/internal/protocol"
)

func TestDecodeArg_Forms(t *testing.T) {
	text := `{"Namespace":"Graph","Type":"NodeAdded","Obj":{"ID":"n1"}}`

	fromString, err := decodeArg(text)
	require.NoError(t, err)
	assert.Equal(t, protocol.TypeNodeAdded, fromString.Type)

	fromBytes, err := decodeArg([]byte(text))
	require.NoError(t, err)
	assert.Equal(t, protocol.TypeNodeAdded, fromBytes.Type)

	fromMap, err := decodeArg(map[string]any{
		"Namespace": "Graph",
		"Type":      "EdgeDeleted",
		"Obj":       map[string]any{"ID": "e1"},
	})
	require.NoError(t, err)
	assert.Equal(t, protocol.TypeEdgeDeleted, fromMap.Type)
	assert.JSONEq(t, `{"ID":"e1"}`, string(fromMap.Obj))
}

func TestDecodeArg_Malformed(t *testing.T) {
	_, err := decodeArg("{")
	assert.ErrorIs(t, err, protocol.ErrMalformed)

	_, err = decodeArg(func() {})
	assert.ErrorIs(t, err, protocol.ErrMalformed)
}

func TestNew_Defaults(t *testing.T) {
	c := New(Options{URL: "http://localhost:8082"}, nil)
	assert.Equal(t, DefaultEvent, c.opts.Event)
	assert.Equal(t, "/", c.opts.Namespace)
	assert.ErrorIs(t, c.Send(protocol.NewSyncRequest(0)), channel.ErrNotConnected)
}
