// Copyright 2026 The Labsync Authors
// SPDX-License-Identifier: Apache-2.0

// Package billing tracks financial bills and lab handouts. Both
// collections are partitioned by financial year, read through the
// stale-while-revalidate page cache, and reconciled from the billing
// push channel. There is no optimistic write path here: bills and
// handouts are created by back-office staff and reach this client only
// as server truth.
package billing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/labfoundry/labsync/api"
	"github.com/labfoundry/labsync/feed"
	"github.com/labfoundry/labsync/lib/clock"
	"github.com/labfoundry/labsync/pagecache"
	"github.com/labfoundry/labsync/schema"
)

const (
	resourceBills    = "bills"
	resourceHandouts = "handouts"
)

const defaultPageCap = 20

// Config holds the parameters for creating a Tracker.
type Config struct {
	// Client performs all network calls.
	Client *api.Client

	// Durable is the durable cache tier, shared with the request
	// caches. Nil means memory-only.
	Durable pagecache.DurableStore

	// MemoryTTL is the cache freshness window. Required.
	MemoryTTL time.Duration

	// DurableTTL is the durable hydration window. Required when
	// Durable is set.
	DurableTTL time.Duration

	// PageCap bounds first pages after event-driven upserts. Zero
	// means defaultPageCap.
	PageCap int

	// Clock supplies the time for TTL decisions. Nil means the real
	// clock.
	Clock clock.Clock

	// Logger is used for structured logging. If nil, slog.Default()
	// is used.
	Logger *slog.Logger
}

// Tracker is the bills and handouts cache. Safe for concurrent use.
type Tracker struct {
	bills    *pagecache.Store[schema.Bill]
	handouts *pagecache.Store[schema.Handout]

	billLoads    *pagecache.Coordinator[schema.Bill]
	handoutLoads *pagecache.Coordinator[schema.Handout]

	pageCap int
	logger  *slog.Logger
}

// New validates the configuration and creates a Tracker.
func New(config Config) (*Tracker, error) {
	if config.Client == nil {
		return nil, fmt.Errorf("billing: Client is required")
	}
	if config.MemoryTTL <= 0 {
		return nil, fmt.Errorf("billing: MemoryTTL is required")
	}
	if config.Durable != nil && config.DurableTTL <= 0 {
		return nil, fmt.Errorf("billing: DurableTTL is required when Durable is set")
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	pageCap := config.PageCap
	if pageCap <= 0 {
		pageCap = defaultPageCap
	}

	t := &Tracker{pageCap: pageCap, logger: logger}
	storeConfig := pagecache.Config{
		MemoryTTL:  config.MemoryTTL,
		DurableTTL: config.DurableTTL,
		Durable:    config.Durable,
		Clock:      config.Clock,
		Logger:     logger,
	}

	billConfig := storeConfig
	billConfig.Resource = resourceBills
	t.bills = pagecache.New[schema.Bill](billConfig)
	t.billLoads = pagecache.NewCoordinator(t.bills,
		func(ctx context.Context, key pagecache.Key) (pagecache.Page[schema.Bill], error) {
			return api.ListPage[schema.Bill](ctx, config.Client, key)
		}, logger)

	handoutConfig := storeConfig
	handoutConfig.Resource = resourceHandouts
	t.handouts = pagecache.New[schema.Handout](handoutConfig)
	t.handoutLoads = pagecache.NewCoordinator(t.handouts,
		func(ctx context.Context, key pagecache.Key) (pagecache.Page[schema.Handout], error) {
			return api.ListPage[schema.Handout](ctx, config.Client, key)
		}, logger)

	return t, nil
}

// billKey builds the partition key for one page of a fiscal year's
// bills.
func billKey(year string, page int) pagecache.Key {
	params := pagecache.Params{"financial_year": year}
	params.SetInt("page", page)
	return pagecache.NewKey(resourceBills, params)
}

func handoutKey(year string, page int) pagecache.Key {
	params := pagecache.Params{"financial_year": year}
	params.SetInt("page", page)
	return pagecache.NewKey(resourceHandouts, params)
}

// LoadBills reads one page of a fiscal year's bills through the
// stale-while-revalidate path.
func (t *Tracker) LoadBills(ctx context.Context, year string, page int) (pagecache.Page[schema.Bill], error) {
	return t.billLoads.Load(ctx, billKey(year, page))
}

// LoadHandouts reads one page of a fiscal year's handouts.
func (t *Tracker) LoadHandouts(ctx context.Context, year string, page int) (pagecache.Page[schema.Handout], error) {
	return t.handoutLoads.Load(ctx, handoutKey(year, page))
}

// RefreshBills triggers a background revalidation, fire-and-forget.
func (t *Tracker) RefreshBills(ctx context.Context, year string, page int) {
	t.billLoads.Revalidate(ctx, billKey(year, page))
}

// RefreshHandouts triggers a background revalidation, fire-and-forget.
func (t *Tracker) RefreshHandouts(ctx context.Context, year string, page int) {
	t.handoutLoads.Revalidate(ctx, handoutKey(year, page))
}

// HandleMessage is the pump handler for the billing channel.
func (t *Tracker) HandleMessage(msg feed.Message) error {
	event, err := feed.DecodeBillingEvent(msg)
	if err != nil {
		return err
	}
	t.ApplyEvent(event)
	return nil
}

// ApplyEvent reconciles one billing-channel event into the cached
// pages. A created record lands on the first page of its own fiscal
// year; records for uncached years are dropped rather than forced into
// the current view. Updates and removals apply to every cached page of
// the record's year. All paths tolerate duplicate delivery.
func (t *Tracker) ApplyEvent(event feed.BillingEvent) {
	switch ev := event.(type) {
	case feed.BillCreated:
		t.bills.UpsertFront(billKey(ev.Bill.FinancialYear, 1), ev.Bill, t.pageCap)
	case feed.BillUpdated:
		for _, key := range yearKeys(t.bills.Keys(), ev.Bill.FinancialYear) {
			t.bills.ReplaceByID(key, ev.Bill)
		}
	case feed.BillDeleted:
		for _, key := range yearKeys(t.bills.Keys(), ev.FinancialYear) {
			t.bills.RemoveByID(key, ev.ID)
		}
	case feed.HandoutCreated:
		t.handouts.UpsertFront(handoutKey(ev.Handout.FinancialYear, 1), ev.Handout, t.pageCap)
	case feed.HandoutUpdated:
		for _, key := range yearKeys(t.handouts.Keys(), ev.Handout.FinancialYear) {
			t.handouts.ReplaceByID(key, ev.Handout)
		}
	case feed.HandoutDeleted:
		for _, key := range yearKeys(t.handouts.Keys(), ev.FinancialYear) {
			t.handouts.RemoveByID(key, ev.ID)
		}
	}
}

// yearKeys filters cached keys down to one fiscal year's partitions.
func yearKeys(keys []pagecache.Key, year string) []pagecache.Key {
	out := keys[:0:0]
	for _, key := range keys {
		if key.Query().Get("financial_year") == year {
			out = append(out, key)
		}
	}
	return out
}
