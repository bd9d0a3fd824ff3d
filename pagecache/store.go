// Copyright 2026 The Labsync Authors
// SPDX-License-Identifier: Apache-2.0

package pagecache

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/labfoundry/labsync/lib/clock"
	"github.com/labfoundry/labsync/lib/codec"
)

// Record is the identity contract cached records must satisfy. A
// negative ID marks a placeholder record: it exists only in the
// memory tier and is never persisted durably.
type Record interface {
	RecordID() int64
}

// Page is one server-defined page of records for a partition. Items
// keep the server's order. Owned by the Store; consumers read copies
// and mutate only through the Store's mutation API.
type Page[T Record] struct {
	Items      []T `json:"items"`
	Page       int `json:"page"`
	TotalPages int `json:"total_pages"`
	Total      int `json:"total"`
}

// Freshness classifies a Get result against the memory TTL.
type Freshness int

const (
	// Miss means neither tier holds a usable value; the caller must
	// block on a network fetch.
	Miss Freshness = iota

	// Stale means a value exists but is older than the memory TTL;
	// the caller should serve it and revalidate in the background.
	Stale

	// Fresh means the value is within the memory TTL; no refresh
	// needed.
	Fresh
)

func (f Freshness) String() string {
	switch f {
	case Miss:
		return "miss"
	case Stale:
		return "stale"
	case Fresh:
		return "fresh"
	default:
		return "invalid"
	}
}

// ErrNotFound is returned by DurableStore.Get when no row exists for
// the key.
var ErrNotFound = errors.New("pagecache: not found")

// DurableStore is the capability interface for the durable tier. All
// operations return errors rather than panicking; the Store treats
// every durable failure as non-fatal and degrades to memory-only
// behavior. Implementations must not interpret the payload bytes.
type DurableStore interface {
	// Get returns the payload and original store time for key, or
	// ErrNotFound.
	Get(key string) (data []byte, storedAt time.Time, err error)

	// Set writes the payload for key, replacing any previous row.
	Set(key string, storedAt time.Time, data []byte) error

	// Remove deletes the row for key. Removing an absent key is not
	// an error.
	Remove(key string) error
}

// Config configures a Store.
type Config struct {
	// Resource names the collection this store caches
	// ("issue-requests", "bills"). Durable rows are keyed
	// "<resource>:persist:<key>".
	Resource string

	// MemoryTTL is the short freshness window: entries younger than
	// this are Fresh, older are Stale. Required.
	MemoryTTL time.Duration

	// DurableTTL is the long hydration window: durable rows older
	// than this are treated as absent on read. Required when
	// Durable is set.
	DurableTTL time.Duration

	// Durable is the durable tier. Nil means memory-only.
	Durable DurableStore

	// Clock supplies the time for TTL decisions. Nil means the real
	// clock.
	Clock clock.Clock

	// Logger receives durable-tier degradation messages. Nil means
	// slog.Default().
	Logger *slog.Logger
}

type entry[T Record] struct {
	value    Page[T]
	storedAt time.Time
}

// Store is a two-tier partitioned page cache. Safe for concurrent
// use; all mutations of a key's page apply in call order.
type Store[T Record] struct {
	resource   string
	memoryTTL  time.Duration
	durableTTL time.Duration
	durable    DurableStore
	clock      clock.Clock
	logger     *slog.Logger

	mu      sync.Mutex
	entries map[Key]entry[T]
}

// New creates an empty Store.
func New[T Record](cfg Config) *Store[T] {
	cl := cfg.Clock
	if cl == nil {
		cl = clock.Real()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Store[T]{
		resource:   cfg.Resource,
		memoryTTL:  cfg.MemoryTTL,
		durableTTL: cfg.DurableTTL,
		durable:    cfg.Durable,
		clock:      cl,
		logger:     logger,
		entries:    make(map[Key]entry[T]),
	}
}

// Get returns the cached page for key and its freshness. The memory
// tier is consulted first; on a memory miss the durable tier is
// consulted, bounded by the durable TTL, and a durable hit is
// promoted into memory (keeping its original store time, so its
// freshness still reflects its true age).
func (s *Store[T]) Get(key Key) (Page[T], Freshness) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	if e, ok := s.entries[key]; ok {
		return e.value, s.freshnessLocked(e.storedAt, now)
	}

	e, ok := s.durableGet(key, now)
	if !ok {
		var zero Page[T]
		return zero, Miss
	}
	s.entries[key] = e
	return e.value, s.freshnessLocked(e.storedAt, now)
}

// Set stores a freshly-fetched page in both tiers. The durable write
// is best-effort: failures are logged and swallowed, and pages
// containing placeholder records are kept out of the durable tier
// entirely.
func (s *Store[T]) Set(key Key, page Page[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	s.entries[key] = entry[T]{value: page, storedAt: now}
	s.durableSet(key, page, now)
}

// Invalidate removes the partition from both tiers.
func (s *Store[T]) Invalidate(key Key) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	if s.durable == nil {
		return
	}
	if err := s.durable.Remove(s.durableKey(key)); err != nil {
		s.logger.Debug("durable remove failed",
			"resource", s.resource,
			"key", key.String(),
			"error", err,
		)
	}
}

// Keys returns the keys currently held in the memory tier.
func (s *Store[T]) Keys() []Key {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]Key, 0, len(s.entries))
	for key := range s.entries {
		keys = append(keys, key)
	}
	return keys
}

func (s *Store[T]) freshnessLocked(storedAt, now time.Time) Freshness {
	if now.Sub(storedAt) <= s.memoryTTL {
		return Fresh
	}
	return Stale
}

func (s *Store[T]) durableKey(key Key) string {
	return s.resource + ":persist:" + key.String()
}

// durableGet reads and decodes a durable row. Any failure — missing
// row, expired row, decode error — degrades to a miss.
func (s *Store[T]) durableGet(key Key, now time.Time) (entry[T], bool) {
	if s.durable == nil {
		return entry[T]{}, false
	}
	data, storedAt, err := s.durable.Get(s.durableKey(key))
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Debug("durable read failed",
				"resource", s.resource,
				"key", key.String(),
				"error", err,
			)
		}
		return entry[T]{}, false
	}
	if now.Sub(storedAt) > s.durableTTL {
		return entry[T]{}, false
	}

	var page Page[T]
	if err := codec.Unmarshal(data, &page); err != nil {
		s.logger.Debug("durable payload undecodable",
			"resource", s.resource,
			"key", key.String(),
			"error", err,
		)
		return entry[T]{}, false
	}
	return entry[T]{value: page, storedAt: storedAt}, true
}

// durableSet writes a page to the durable tier, best-effort. Called
// with s.mu held.
func (s *Store[T]) durableSet(key Key, page Page[T], storedAt time.Time) {
	if s.durable == nil {
		return
	}
	for _, item := range page.Items {
		if item.RecordID() < 0 {
			// Placeholders are session-local; persisting one
			// would resurrect an unconfirmed record after
			// restart.
			return
		}
	}

	data, err := codec.Marshal(page)
	if err != nil {
		s.logger.Debug("durable encode failed",
			"resource", s.resource,
			"key", key.String(),
			"error", err,
		)
		return
	}
	if err := s.durable.Set(s.durableKey(key), storedAt, data); err != nil {
		s.logger.Debug("durable write failed",
			"resource", s.resource,
			"key", key.String(),
			"error", err,
		)
	}
}
