// Copyright 2026 The Labsync Authors
// SPDX-License-Identifier: Apache-2.0

// Package engine is the synchronization core: it owns the
// authoritative in-memory request collection, applies optimistic local
// mutations, reconciles push events and server responses into the
// collection and the page cache, and projects derived views.
//
// Every state change, local intent or remote confirmation, flows
// through a single reducer that enforces lifecycle monotonicity: no
// request leaves the rejected state, and no approved request leaves
// the submitted state. Violations are logged and dropped, which also
// makes duplicate event delivery idempotent.
package engine

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/labfoundry/labsync/api"
	"github.com/labfoundry/labsync/lib/clock"
	"github.com/labfoundry/labsync/pagecache"
	"github.com/labfoundry/labsync/schema"
)

const resourceRequests = "issue-requests"

// defaultPageCap bounds the first-page item count after an optimistic
// upsert, matching the server's page size.
const defaultPageCap = 20

// Config holds the parameters for creating an Engine.
type Config struct {
	// Client performs all network calls.
	Client *api.Client

	// Durable is the durable cache tier. Nil means memory-only.
	Durable pagecache.DurableStore

	// MemoryTTL is the cache freshness window. Required.
	MemoryTTL time.Duration

	// DurableTTL is the durable hydration window. Required when
	// Durable is set.
	DurableTTL time.Duration

	// PageCap bounds the first page after optimistic upserts. Zero
	// means defaultPageCap.
	PageCap int

	// RequesterID and RequesterName identify the local user; stamped
	// onto placeholder records so the matching server confirmation can
	// be adopted.
	RequesterID   int64
	RequesterName string

	// NotifyEmail, when set, is sent with submit calls so the server
	// mails a handover receipt.
	NotifyEmail string

	// Clock supplies timestamps for placeholders, deadlines, and TTL
	// decisions. Nil means the real clock.
	Clock clock.Clock

	// Logger is used for structured logging. If nil, slog.Default()
	// is used.
	Logger *slog.Logger
}

// Engine is the synchronization engine for issue requests. Safe for
// concurrent use: the feed pumps, view readers, and operation callers
// may run on separate goroutines.
type Engine struct {
	client      *api.Client
	store       *pagecache.Store[schema.IssueRequest]
	coordinator *pagecache.Coordinator[schema.IssueRequest]
	clock       clock.Clock
	logger      *slog.Logger
	pageCap     int
	notifyEmail string

	requesterID   int64
	requesterName string

	mu          sync.Mutex
	requests    map[int64]schema.IssueRequest
	items       map[int64]schema.EquipmentItem
	unread      map[int64]bool // requester id -> has unseen messages
	placeholder int64          // last issued placeholder id, counts down
}

// New validates the configuration and creates an Engine.
func New(config Config) (*Engine, error) {
	if config.Client == nil {
		return nil, fmt.Errorf("engine: Client is required")
	}
	if config.MemoryTTL <= 0 {
		return nil, fmt.Errorf("engine: MemoryTTL is required")
	}
	if config.Durable != nil && config.DurableTTL <= 0 {
		return nil, fmt.Errorf("engine: DurableTTL is required when Durable is set")
	}
	cl := config.Clock
	if cl == nil {
		cl = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	pageCap := config.PageCap
	if pageCap <= 0 {
		pageCap = defaultPageCap
	}

	e := &Engine{
		client:        config.Client,
		clock:         cl,
		logger:        logger,
		pageCap:       pageCap,
		notifyEmail:   config.NotifyEmail,
		requesterID:   config.RequesterID,
		requesterName: config.RequesterName,
		requests:      make(map[int64]schema.IssueRequest),
		items:         make(map[int64]schema.EquipmentItem),
		unread:        make(map[int64]bool),
	}
	e.store = pagecache.New[schema.IssueRequest](pagecache.Config{
		Resource:   resourceRequests,
		MemoryTTL:  config.MemoryTTL,
		DurableTTL: config.DurableTTL,
		Durable:    config.Durable,
		Clock:      cl,
		Logger:     logger,
	})
	e.coordinator = pagecache.NewCoordinator(e.store, e.fetchPage, logger)
	return e, nil
}

// fetchPage is the coordinator's network fetch. Fetched records merge
// into the authoritative collection before the page lands in the
// cache, so a revalidation can never show records the collection does
// not know about.
func (e *Engine) fetchPage(ctx context.Context, key pagecache.Key) (pagecache.Page[schema.IssueRequest], error) {
	page, err := api.ListPage[schema.IssueRequest](ctx, e.client, key)
	if err != nil {
		return pagecache.Page[schema.IssueRequest]{}, err
	}
	e.mu.Lock()
	for _, record := range page.Items {
		e.reconcileLocked(record)
	}
	e.mu.Unlock()
	return page, nil
}

// LoadRequests reads one page of requests through the
// stale-while-revalidate path. Params partition the cache exactly as
// they partition the server query.
func (e *Engine) LoadRequests(ctx context.Context, params pagecache.Params) (pagecache.Page[schema.IssueRequest], error) {
	return e.coordinator.Load(ctx, pagecache.NewKey(resourceRequests, params))
}

// RefreshRequests triggers a background revalidation of one page,
// fire-and-forget.
func (e *Engine) RefreshRequests(ctx context.Context, params pagecache.Params) {
	e.coordinator.Revalidate(ctx, pagecache.NewKey(resourceRequests, params))
}

// SeedItems installs or refreshes equipment records. The engine needs
// an item's limits and availability before it can validate a create;
// inventory-channel events keep the records current afterwards.
func (e *Engine) SeedItems(items []schema.EquipmentItem) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, item := range items {
		e.items[item.ID] = item
	}
}

// Item returns the tracked equipment record for id.
func (e *Engine) Item(id int64) (schema.EquipmentItem, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	item, ok := e.items[id]
	return item, ok
}

// Requests returns a copy of the authoritative collection, newest
// first.
func (e *Engine) Requests() []schema.IssueRequest {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]schema.IssueRequest, 0, len(e.requests))
	for _, r := range e.requests {
		out = append(out, r)
	}
	sortNewestFirst(out)
	return out
}

// Request returns one request by id.
func (e *Engine) Request(id int64) (schema.IssueRequest, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.requests[id]
	return r, ok
}

// MarkRead clears the unread flag for a requester.
func (e *Engine) MarkRead(requesterID int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.unread, requesterID)
}

// firstPageKey is the canonical partition optimistic inserts land on.
func (e *Engine) firstPageKey() pagecache.Key {
	return pagecache.NewKey(resourceRequests, pagecache.Params{"page": "1"})
}

// applyLocked is the single reducer. It installs record in the
// authoritative collection unless the existing record is terminal, in
// which case the change is logged and dropped. Returns whether the
// record was installed. Called with e.mu held.
func (e *Engine) applyLocked(record schema.IssueRequest, origin string) bool {
	existing, ok := e.requests[record.ID]
	if ok && existing.Terminal() {
		if existing.Status == record.Status && existing.EffectiveSubmission() == record.EffectiveSubmission() {
			// Redelivery of the terminal state; nothing to do.
			return false
		}
		e.logger.Warn("dropping transition out of terminal state",
			"request_id", record.ID,
			"origin", origin,
			"have", string(existing.Status),
			"got", string(record.Status),
		)
		return false
	}
	e.requests[record.ID] = record
	return true
}

// reconcileLocked merges an authoritative server record: any matching
// placeholder is retired first, then the record flows through the
// reducer. Called with e.mu held.
func (e *Engine) reconcileLocked(record schema.IssueRequest) bool {
	if id, ok := e.matchPlaceholderLocked(record); ok {
		delete(e.requests, id)
		e.store.RemoveByID(e.firstPageKey(), id)
	}
	return e.applyLocked(record, "server")
}

// matchPlaceholderLocked finds the placeholder standing in for a
// confirmed server record: same requester and item, nearest creation
// time. Called with e.mu held.
func (e *Engine) matchPlaceholderLocked(server schema.IssueRequest) (int64, bool) {
	var bestID int64
	var bestDelta time.Duration
	found := false
	for id, r := range e.requests {
		if !r.Placeholder() || r.RequesterID != server.RequesterID || r.ItemID != server.ItemID {
			continue
		}
		delta := server.CreatedAt.Sub(r.CreatedAt)
		if delta < 0 {
			delta = -delta
		}
		if !found || delta < bestDelta {
			found, bestID, bestDelta = true, id, delta
		}
	}
	return bestID, found
}

func sortNewestFirst(requests []schema.IssueRequest) {
	slices.SortFunc(requests, func(a, b schema.IssueRequest) int {
		if c := activityTime(b).Compare(activityTime(a)); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
}

// activityTime is the request's most recent lifecycle timestamp, used
// for newest-first ordering.
func activityTime(r schema.IssueRequest) time.Time {
	t := r.CreatedAt
	if r.ApprovedAt != nil && r.ApprovedAt.After(t) {
		t = *r.ApprovedAt
	}
	if r.SubmittedAt != nil && r.SubmittedAt.After(t) {
		t = *r.SubmittedAt
	}
	return t
}
