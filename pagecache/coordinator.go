// Copyright 2026 The Labsync Authors
// SPDX-License-Identifier: Apache-2.0

package pagecache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Fetch retrieves one page from the network for a key. The
// Coordinator owns calling it; callers never fetch directly.
type Fetch[T Record] func(ctx context.Context, key Key) (Page[T], error)

// Coordinator deduplicates revalidations: at most one network fetch
// is outstanding per key at any time. A revalidation requested while
// one is already in flight attaches to it instead of dispatching a
// duplicate. In-flight fetches are never cancelled; a superseded
// result is simply adopted when it lands, and the store's call
// ordering takes care of the rest.
type Coordinator[T Record] struct {
	store  *Store[T]
	fetch  Fetch[T]
	logger *slog.Logger

	mu       sync.Mutex
	inflight map[Key]*flight[T]
}

type flight[T Record] struct {
	done chan struct{}
	page Page[T]
	err  error
}

// NewCoordinator creates a Coordinator writing fetched pages into
// store. A nil logger means slog.Default().
func NewCoordinator[T Record](store *Store[T], fetch Fetch[T], logger *slog.Logger) *Coordinator[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator[T]{
		store:    store,
		fetch:    fetch,
		logger:   logger,
		inflight: make(map[Key]*flight[T]),
	}
}

// Load is the stale-while-revalidate read path:
//
//   - Fresh cached value: returned as-is.
//   - Stale cached value: returned immediately, with a background
//     revalidation kicked off (detached from ctx, since abandoning
//     the read must not abort the refresh).
//   - Miss: blocks on the (shared) network fetch. The fetch itself is
//     detached from ctx too, so one caller giving up never fails the
//     other callers attached to the same flight.
//
// On a miss the fetch error is returned; on a stale hit a fetch
// error is only logged and the stale value stands (stale-while-error).
func (c *Coordinator[T]) Load(ctx context.Context, key Key) (Page[T], error) {
	page, freshness := c.store.Get(key)
	switch freshness {
	case Fresh:
		return page, nil
	case Stale:
		c.start(context.WithoutCancel(ctx), key)
		return page, nil
	}

	// The shared flight must not inherit any one waiter's
	// cancellation; each waiter gives up on its own ctx below.
	fl := c.start(context.WithoutCancel(ctx), key)
	select {
	case <-fl.done:
	case <-ctx.Done():
		return Page[T]{}, fmt.Errorf("pagecache: load %s: %w", key, ctx.Err())
	}
	if fl.err != nil {
		return Page[T]{}, fmt.Errorf("pagecache: load %s: %w", key, fl.err)
	}
	return fl.page, nil
}

// Revalidate triggers a background refresh for key, fire-and-forget.
// Guaranteed to dispatch at most one network fetch per key at a time;
// concurrent calls for the same key coalesce onto the in-flight
// fetch. Success writes through Store.Set; failure leaves the cached
// value untouched.
func (c *Coordinator[T]) Revalidate(ctx context.Context, key Key) {
	c.start(context.WithoutCancel(ctx), key)
}

// InflightCount returns the number of keys with an outstanding
// fetch. Test hook.
func (c *Coordinator[T]) InflightCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.inflight)
}

func (c *Coordinator[T]) start(ctx context.Context, key Key) *flight[T] {
	c.mu.Lock()
	if fl, ok := c.inflight[key]; ok {
		c.mu.Unlock()
		return fl
	}
	fl := &flight[T]{done: make(chan struct{})}
	c.inflight[key] = fl
	c.mu.Unlock()

	go func() {
		page, err := c.fetch(ctx, key)
		if err == nil {
			c.store.Set(key, page)
		} else {
			c.logger.Debug("revalidation failed, keeping cached value",
				"key", key.String(),
				"error", err,
			)
		}
		fl.page, fl.err = page, err

		c.mu.Lock()
		delete(c.inflight, key)
		c.mu.Unlock()
		close(fl.done)
	}()
	return fl
}
