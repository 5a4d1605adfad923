// Package badgerstore is a poscache.Cache on an embedded BadgerDB, so saved
// layouts survive restarts. Badger's native per-entry TTL handles expiry.
package badgerstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/specialistvlad/topomirror/internal/poscache"
)

const keyPrefix = "pos/"

// Store implements poscache.Cache.
type Store struct {
	db         *badger.DB
	defaultTTL time.Duration
}

var _ poscache.Cache = (*Store)(nil)

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Open opens the database at path, or an in-memory one when path is empty.
// logger may be nil to silence badger.
func Open(path string, defaultTTL time.Duration, logger *slog.Logger) (*Store, error) {
	var opts badger.Options
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(path, 0o750); err != nil {
			return nil, fmt.Errorf("create position cache directory %s: %w", path, err)
		}
		opts = badger.DefaultOptions(path)
	}
	if logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open position cache: %w", err)
	}
	if defaultTTL <= 0 {
		defaultTTL = poscache.DefaultTTL
	}
	return &Store{db: db, defaultTTL: defaultTTL}, nil
}

func (s *Store) Get(_ context.Context, key string) (poscache.Position, bool, error) {
	var (
		pos   poscache.Position
		found bool
	)
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		val, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(val, &pos); err != nil {
			return fmt.Errorf("decode position %q: %w", key, err)
		}
		found = true
		return nil
	})
	if err != nil {
		return poscache.Position{}, false, err
	}
	return pos, found, nil
}

func (s *Store) Set(_ context.Context, key string, pos poscache.Position, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	val, err := json.Marshal(pos)
	if err != nil {
		return fmt.Errorf("encode position %q: %w", key, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry([]byte(keyPrefix+key), val).WithTTL(ttl))
	})
}

func (s *Store) Close() error {
	return s.db.Close()
}
