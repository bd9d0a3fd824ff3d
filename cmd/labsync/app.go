// Copyright 2026 The Labsync Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/labfoundry/labsync/api"
	"github.com/labfoundry/labsync/billing"
	"github.com/labfoundry/labsync/durable"
	"github.com/labfoundry/labsync/engine"
	"github.com/labfoundry/labsync/lib/config"
	"github.com/labfoundry/labsync/pagecache"
	"github.com/labfoundry/labsync/schema"
)

// app wires the configured stack: durable store, API client, engine,
// billing tracker.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	client  *api.Client
	store   *durable.SQLite // nil when the durable tier is disabled
	engine  *engine.Engine
	billing *billing.Tracker
}

func newApp(cfg *config.Config) (*app, error) {
	logger := slog.Default()

	var store *durable.SQLite
	var durableTier pagecache.DurableStore
	if cfg.Durable.Path != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Durable.Path), 0o755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
		opened, err := durable.Open(durable.Config{
			Path:        cfg.Durable.Path,
			PoolSize:    cfg.Durable.PoolSize,
			Compression: cfg.Compression(),
			Logger:      logger,
		})
		if err != nil {
			return nil, err
		}
		store = opened
		durableTier = opened
	}

	client, err := api.NewClient(api.Config{
		BaseURL:    cfg.API.BaseURL,
		HTTPClient: &http.Client{Timeout: cfg.APITimeout()},
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}

	eng, err := engine.New(engine.Config{
		Client:        client,
		Durable:       durableTier,
		MemoryTTL:     cfg.MemoryTTL(),
		DurableTTL:    cfg.DurableTTL(),
		PageCap:       cfg.Cache.PageCap,
		RequesterID:   cfg.User.RequesterID,
		RequesterName: cfg.User.RequesterName,
		NotifyEmail:   cfg.User.NotifyEmail,
		Logger:        logger,
	})
	if err != nil {
		return nil, err
	}

	tracker, err := billing.New(billing.Config{
		Client:     client,
		Durable:    durableTier,
		MemoryTTL:  cfg.MemoryTTL(),
		DurableTTL: cfg.DurableTTL(),
		PageCap:    cfg.Cache.PageCap,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:     cfg,
		logger:  logger,
		client:  client,
		store:   store,
		engine:  eng,
		billing: tracker,
	}, nil
}

func (a *app) close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("closing durable store", "error", err)
		}
	}
}

// loadWorkingSet pulls the first request page and the equipment list
// so the engine can validate and display before any event arrives.
func (a *app) loadWorkingSet(ctx context.Context) error {
	if _, err := a.engine.LoadRequests(ctx, pagecache.Params{"page": "1"}); err != nil {
		return err
	}
	items, err := api.ListPage[schema.EquipmentItem](ctx, a.client,
		pagecache.NewKey("items", pagecache.Params{"page": "1"}))
	if err != nil {
		return fmt.Errorf("loading equipment list: %w", err)
	}
	a.engine.SeedItems(items.Items)
	return nil
}
