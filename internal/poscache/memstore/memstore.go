// Package memstore is an in-process poscache.Cache for runs that do not
// need layouts to survive a restart.
package memstore

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/specialistvlad/topomirror/internal/poscache"
)

// Store implements poscache.Cache on a ttlcache.
type Store struct {
	cache *ttlcache.Cache[string, poscache.Position]
}

var _ poscache.Cache = (*Store)(nil)

// New creates a store whose entries default to ttl and starts its expiry
// loop. Close stops it.
func New(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = poscache.DefaultTTL
	}
	cache := ttlcache.New[string, poscache.Position](
		ttlcache.WithTTL[string, poscache.Position](ttl),
	)
	go cache.Start()
	return &Store{cache: cache}
}

func (s *Store) Get(_ context.Context, key string) (poscache.Position, bool, error) {
	item := s.cache.Get(key)
	if item == nil {
		return poscache.Position{}, false, nil
	}
	return item.Value(), true, nil
}

func (s *Store) Set(_ context.Context, key string, pos poscache.Position, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = ttlcache.DefaultTTL
	}
	s.cache.Set(key, pos, ttl)
	return nil
}

// Len reports the number of live entries.
func (s *Store) Len() int {
	return s.cache.Len()
}

func (s *Store) Close() error {
	s.cache.Stop()
	return nil
}
