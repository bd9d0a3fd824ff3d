// Copyright 2026 The Labsync Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for labsync.
//
// Configuration is loaded from a single YAML file specified by:
//   - LABSYNC_CONFIG environment variable, or
//   - --config flag passed to the command
//
// There are no fallbacks or automatic discovery, and environment
// variables never override file values. This keeps configuration
// deterministic and auditable.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/labfoundry/labsync/durable"
)

// Config is the master configuration for labsync.
type Config struct {
	// API configures the REST client and the push feed, which share a
	// base URL.
	API APIConfig `yaml:"api"`

	// Cache configures the two-tier page cache.
	Cache CacheConfig `yaml:"cache"`

	// Durable configures the on-disk cache tier.
	Durable DurableConfig `yaml:"durable"`

	// Feed selects which push channels to follow.
	Feed FeedConfig `yaml:"feed"`

	// User identifies the local user for optimistic creates and
	// submit notifications.
	User UserConfig `yaml:"user"`
}

// APIConfig configures the network layer.
type APIConfig struct {
	// BaseURL is the service root (e.g. "https://lab.example.edu/api").
	// Required.
	BaseURL string `yaml:"base_url"`

	// Timeout is the per-request HTTP timeout for REST calls, as a
	// Go duration string. The feed's long-poll client is configured
	// separately and ignores this. Default: 15s.
	Timeout string `yaml:"timeout"`
}

// CacheConfig configures TTLs and page bounds.
type CacheConfig struct {
	// MemoryTTL is the freshness window, as a Go duration string.
	// Cached pages younger than this are served without revalidation.
	// Default: 30s.
	MemoryTTL string `yaml:"memory_ttl"`

	// DurableTTL is the hydration window for the on-disk tier.
	// Default: 24h.
	DurableTTL string `yaml:"durable_ttl"`

	// PageCap bounds the first page after optimistic inserts,
	// matching the server's page size. Default: 20.
	PageCap int `yaml:"page_cap"`
}

// DurableConfig configures the SQLite cache tier.
type DurableConfig struct {
	// Path is the database file. Empty disables the durable tier
	// entirely (memory-only cache).
	Path string `yaml:"path"`

	// PoolSize is the SQLite connection pool size. Zero means the
	// store's default.
	PoolSize int `yaml:"pool_size"`

	// Compression selects payload compression: "zstd", "lz4", or
	// "none". Empty means zstd.
	Compression string `yaml:"compression"`
}

// FeedConfig selects push channels.
type FeedConfig struct {
	// Requests follows the issue-request channel. Default: true.
	Requests bool `yaml:"requests"`

	// Inventory follows the equipment availability channel.
	// Default: true.
	Inventory bool `yaml:"inventory"`

	// Billing follows the bills and handouts channel. Default: false;
	// only back-office stations need it.
	Billing bool `yaml:"billing"`
}

// UserConfig identifies the local user.
type UserConfig struct {
	RequesterID   int64  `yaml:"requester_id"`
	RequesterName string `yaml:"requester_name"`

	// NotifyEmail, when set, is sent with submit calls so the server
	// mails a handover receipt.
	NotifyEmail string `yaml:"notify_email"`
}

// Default returns the default configuration. The defaults give every
// field a sensible value but do not replace the config file: BaseURL
// has no default and Validate rejects a config without one.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		API: APIConfig{
			Timeout: "15s",
		},
		Cache: CacheConfig{
			MemoryTTL:  "30s",
			DurableTTL: "24h",
			PageCap:    20,
		},
		Durable: DurableConfig{
			Path:        filepath.Join(homeDir, ".cache", "labsync", "pages.db"),
			Compression: "zstd",
		},
		Feed: FeedConfig{
			Requests:  true,
			Inventory: true,
		},
	}
}

// Load loads configuration from the LABSYNC_CONFIG environment
// variable. There are no fallbacks: if LABSYNC_CONFIG is not set, this
// fails.
func Load() (*Config, error) {
	path := os.Getenv("LABSYNC_CONFIG")
	if path == "" {
		return nil, fmt.Errorf("config: LABSYNC_CONFIG environment variable not set; " +
			"set it to the path of your labsync.yaml file, or use --config")
	}
	return LoadFile(path)
}

// LoadFile loads configuration from a specific file path, merging over
// the defaults, and validates the result.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for contradictions and
// unparseable values.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	if _, err := time.ParseDuration(c.API.Timeout); err != nil {
		return fmt.Errorf("api.timeout: %w", err)
	}
	if _, err := time.ParseDuration(c.Cache.MemoryTTL); err != nil {
		return fmt.Errorf("cache.memory_ttl: %w", err)
	}
	if _, err := time.ParseDuration(c.Cache.DurableTTL); err != nil {
		return fmt.Errorf("cache.durable_ttl: %w", err)
	}
	if c.Cache.PageCap <= 0 {
		return fmt.Errorf("cache.page_cap must be positive, got %d", c.Cache.PageCap)
	}
	if _, err := durable.ParseCompression(c.Durable.Compression); err != nil {
		return fmt.Errorf("durable.compression: %w", err)
	}
	return nil
}

// APITimeout returns the parsed REST timeout. Call after Validate.
func (c *Config) APITimeout() time.Duration {
	d, _ := time.ParseDuration(c.API.Timeout)
	return d
}

// MemoryTTL returns the parsed freshness window. Call after Validate.
func (c *Config) MemoryTTL() time.Duration {
	d, _ := time.ParseDuration(c.Cache.MemoryTTL)
	return d
}

// DurableTTL returns the parsed hydration window. Call after Validate.
func (c *Config) DurableTTL() time.Duration {
	d, _ := time.ParseDuration(c.Cache.DurableTTL)
	return d
}

// Compression returns the parsed compression selection. Call after
// Validate.
func (c *Config) Compression() durable.Compression {
	compression, _ := durable.ParseCompression(c.Durable.Compression)
	return compression
}
