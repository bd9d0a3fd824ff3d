// Copyright 2026 The Labsync Authors
// SPDX-License-Identifier: Apache-2.0

package pagecache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/labfoundry/labsync/lib/testutil"
)

// blockingFetch is a Fetch that parks every call until release is
// closed, counting dispatches.
type blockingFetch struct {
	calls   atomic.Int64
	release chan struct{}
	page    Page[rec]
	err     error
}

func (f *blockingFetch) fetch(ctx context.Context, key Key) (Page[rec], error) {
	f.calls.Add(1)
	select {
	case <-f.release:
	case <-ctx.Done():
		return Page[rec]{}, ctx.Err()
	}
	return f.page, f.err
}

func TestRevalidateAtMostOneInflight(t *testing.T) {
	fakes := newFakes()
	store := newTestStore(fakes)
	fetch := &blockingFetch{release: make(chan struct{}), page: pageOf(rec{ID: 1})}
	coordinator := NewCoordinator(store, fetch.fetch, slog.New(slog.NewTextHandler(io.Discard, nil)))
	key := NewKey("issue-requests", nil)

	coordinator.Revalidate(context.Background(), key)
	coordinator.Revalidate(context.Background(), key)

	if got := coordinator.InflightCount(); got != 1 {
		t.Fatalf("InflightCount() = %d, want 1", got)
	}

	close(fetch.release)
	waitForSettled(t, coordinator)

	if got := fetch.calls.Load(); got != 1 {
		t.Fatalf("network fetches = %d, want exactly 1", got)
	}
	if page, freshness := store.Get(key); freshness != Fresh || len(page.Items) != 1 {
		t.Fatalf("store after revalidation = %+v (%v), want fetched page Fresh", page, freshness)
	}
}

func TestRevalidateDistinctKeysRunIndependently(t *testing.T) {
	fakes := newFakes()
	store := newTestStore(fakes)
	fetch := &blockingFetch{release: make(chan struct{}), page: pageOf(rec{ID: 1})}
	coordinator := NewCoordinator(store, fetch.fetch, slog.New(slog.NewTextHandler(io.Discard, nil)))

	coordinator.Revalidate(context.Background(), NewKey("issue-requests", Params{"page": "1"}))
	coordinator.Revalidate(context.Background(), NewKey("issue-requests", Params{"page": "2"}))

	if got := coordinator.InflightCount(); got != 2 {
		t.Fatalf("InflightCount() = %d, want 2", got)
	}
	close(fetch.release)
	waitForSettled(t, coordinator)
}

func TestLoadMissBlocksOnFetch(t *testing.T) {
	fakes := newFakes()
	store := newTestStore(fakes)
	fetch := &blockingFetch{release: make(chan struct{}), page: pageOf(rec{ID: 7})}
	coordinator := NewCoordinator(store, fetch.fetch, slog.New(slog.NewTextHandler(io.Discard, nil)))
	key := NewKey("issue-requests", nil)

	type result struct {
		page Page[rec]
		err  error
	}
	done := make(chan result, 1)
	go func() {
		page, err := coordinator.Load(context.Background(), key)
		done <- result{page, err}
	}()

	select {
	case <-done:
		t.Fatal("Load returned before the fetch completed")
	case <-time.After(20 * time.Millisecond):
	}

	close(fetch.release)
	got := testutil.RequireReceive(t, done, 5*time.Second, "Load result")
	if got.err != nil {
		t.Fatalf("Load error = %v", got.err)
	}
	if len(got.page.Items) != 1 || got.page.Items[0].ID != 7 {
		t.Fatalf("Load page = %+v, want fetched page", got.page)
	}
}

func TestLoadMissSurvivesFirstCallerCancel(t *testing.T) {
	fakes := newFakes()
	store := newTestStore(fakes)
	fetch := &blockingFetch{release: make(chan struct{}), page: pageOf(rec{ID: 7})}
	coordinator := NewCoordinator(store, fetch.fetch, slog.New(slog.NewTextHandler(io.Discard, nil)))
	key := NewKey("issue-requests", nil)

	type result struct {
		page Page[rec]
		err  error
	}
	firstCtx, cancelFirst := context.WithCancel(context.Background())
	defer cancelFirst()
	first := make(chan result, 1)
	go func() {
		page, err := coordinator.Load(firstCtx, key)
		first <- result{page, err}
	}()
	for coordinator.InflightCount() == 0 {
		time.Sleep(time.Millisecond)
	}

	second := make(chan result, 1)
	go func() {
		page, err := coordinator.Load(context.Background(), key)
		second <- result{page, err}
	}()

	// The first caller gives up. Its own Load fails, but the shared
	// flight keeps running for the second caller.
	cancelFirst()
	got := testutil.RequireReceive(t, first, 5*time.Second, "first Load result")
	if !errors.Is(got.err, context.Canceled) {
		t.Fatalf("first Load error = %v, want context.Canceled", got.err)
	}

	close(fetch.release)
	got = testutil.RequireReceive(t, second, 5*time.Second, "second Load result")
	if got.err != nil {
		t.Fatalf("second Load error = %v", got.err)
	}
	if len(got.page.Items) != 1 || got.page.Items[0].ID != 7 {
		t.Fatalf("second Load page = %+v, want fetched page", got.page)
	}
	if calls := fetch.calls.Load(); calls != 1 {
		t.Fatalf("network fetches = %d, want the shared flight only", calls)
	}
}

func TestLoadStaleServesImmediatelyAndRefreshes(t *testing.T) {
	fakes := newFakes()
	store := newTestStore(fakes)
	key := NewKey("issue-requests", nil)
	store.Set(key, pageOf(rec{ID: 1, Name: "stale"}))
	fakes.clock.Advance(testMemoryTTL + time.Second)

	fetch := &blockingFetch{release: make(chan struct{}), page: pageOf(rec{ID: 1, Name: "fresh"})}
	coordinator := NewCoordinator(store, fetch.fetch, slog.New(slog.NewTextHandler(io.Discard, nil)))

	page, err := coordinator.Load(context.Background(), key)
	if err != nil {
		t.Fatalf("Load error = %v", err)
	}
	if page.Items[0].Name != "stale" {
		t.Fatalf("Load returned %+v, want the stale value immediately", page.Items)
	}

	close(fetch.release)
	waitForSettled(t, coordinator)

	refreshed, freshness := store.Get(key)
	if freshness != Fresh || refreshed.Items[0].Name != "fresh" {
		t.Fatalf("store after background refresh = %+v (%v), want fresh value", refreshed, freshness)
	}
}

func TestFailedRevalidationLeavesStaleValue(t *testing.T) {
	fakes := newFakes()
	store := newTestStore(fakes)
	key := NewKey("issue-requests", nil)
	store.Set(key, pageOf(rec{ID: 1, Name: "stale"}))
	fakes.clock.Advance(testMemoryTTL + time.Second)

	fetch := &blockingFetch{release: make(chan struct{}), err: errors.New("gateway timeout")}
	coordinator := NewCoordinator(store, fetch.fetch, slog.New(slog.NewTextHandler(io.Discard, nil)))

	coordinator.Revalidate(context.Background(), key)
	close(fetch.release)
	waitForSettled(t, coordinator)

	page, freshness := store.Get(key)
	if freshness != Stale || page.Items[0].Name != "stale" {
		t.Fatalf("store after failed revalidation = %+v (%v), want untouched stale value", page, freshness)
	}
}

func TestLoadMissFetchErrorSurfaces(t *testing.T) {
	fakes := newFakes()
	store := newTestStore(fakes)
	fetch := &blockingFetch{release: make(chan struct{}), err: errors.New("connection refused")}
	close(fetch.release)
	coordinator := NewCoordinator(store, fetch.fetch, slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := coordinator.Load(context.Background(), NewKey("issue-requests", nil))
	if err == nil {
		t.Fatal("Load on a miss with a failing fetch returned nil error")
	}
}

// waitForSettled polls until no fetch is in flight. The coordinator
// closes each flight's done channel after the store write, so an
// empty inflight map means results are visible.
func waitForSettled(t *testing.T, coordinator *Coordinator[rec]) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for coordinator.InflightCount() > 0 {
		if time.Now().After(deadline) {
			t.Fatal("coordinator did not settle")
		}
		time.Sleep(time.Millisecond)
	}
}
