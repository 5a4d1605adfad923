package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Transports.
const (
	TransportWebsocket = "websocket"
	TransportSocketIO  = "socketio"
)

// Position backends.
const (
	BackendNone   = "none"
	BackendMemory = "memory"
	BackendBadger = "badger"
)

// Config is the resolved daemon configuration.
type Config struct {
	Server    Server
	Sync      Sync
	Positions Positions
	Ops       Ops
	Log       Log
}

// Server selects the topology server and how to reach it.
type Server struct {
	URL       string `validate:"required,url"`
	Transport string `validate:"oneof=websocket socketio"`
	// Namespace and Event only apply to socket.io.
	Namespace          string
	Event              string
	Headers            map[string]string
	InsecureSkipVerify bool
	ReconnectDelay     time.Duration `validate:"gt=0"`
}

// Sync tunes the replica.
type Sync struct {
	// At is the epoch-millisecond instant to mirror; zero is live.
	At                    int64         `validate:"gte=0"`
	Debounce              time.Duration `validate:"gt=0"`
	AlertTTL              time.Duration `validate:"gt=0"`
	RedrawOn              []string
	SuppressRelationTypes []string
}

// Positions configures layout persistence.
type Positions struct {
	Backend string `validate:"oneof=none memory badger"`
	// Path is the badger directory; empty keeps badger in memory.
	Path          string
	TTL           time.Duration `validate:"gt=0"`
	FlushInterval time.Duration `validate:"gt=0"`
}

// Ops is the HTTP endpoint for health, metrics and the replica dump.
type Ops struct {
	// Port 0 disables the server.
	Port int `validate:"gte=0,lte=65535"`
}

// Log selects the logger.
type Log struct {
	Level  string `validate:"oneof=debug info warn error"`
	Format string `validate:"oneof=auto text json"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Server: Server{
			URL:            "ws://localhost:8082/ws",
			Transport:      TransportWebsocket,
			Event:          "message",
			ReconnectDelay: 3 * time.Second,
		},
		Sync: Sync{
			Debounce:              100 * time.Millisecond,
			AlertTTL:              time.Second,
			RedrawOn:              []string{"Capture/ID", "Status"},
			SuppressRelationTypes: []string{"layer3"},
		},
		Positions: Positions{
			Backend:       BackendMemory,
			TTL:           7 * 24 * time.Hour,
			FlushInterval: 30 * time.Second,
		},
		Log: Log{
			Level:  "info",
			Format: "auto",
		},
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks c against its field constraints. Every violation is
// reported, joined into one error.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]error, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Errorf("%s: failed %q (value %v)", fieldPath(fe.Namespace()), fe.Tag(), fe.Value()))
	}
	return errors.Join(msgs...)
}

// fieldPath turns "Config.Sync.AlertTTL" into "sync.alert_ttl".
func fieldPath(ns string) string {
	parts := strings.Split(ns, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	for i, p := range parts {
		parts[i] = snake(p)
	}
	return strings.Join(parts, ".")
}

func snake(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		upper := r >= 'A' && r <= 'Z'
		if upper && i > 0 {
			prevLower := runes[i-1] >= 'a' && runes[i-1] <= 'z'
			nextLower := i+1 < len(runes) && runes[i+1] >= 'a' && runes[i+1] <= 'z'
			if prevLower || nextLower {
				b.WriteByte('_')
			}
		}
		if upper {
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
