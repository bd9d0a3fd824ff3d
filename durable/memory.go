// Copyright 2026 The Labsync Authors
// SPDX-License-Identifier: Apache-2.0

package durable

import (
	"sync"
	"time"

	"github.com/labfoundry/labsync/pagecache"
)

// Memory is a map-backed pagecache.DurableStore. It survives nothing,
// which makes it the right durable tier for tests and for sessions
// with no database path configured. Safe for concurrent use.
type Memory struct {
	mu   sync.Mutex
	rows map[string]memoryRow
}

type memoryRow struct {
	storedAt time.Time
	data     []byte
}

var _ pagecache.DurableStore = (*Memory)(nil)

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{rows: make(map[string]memoryRow)}
}

// Get implements pagecache.DurableStore.
func (m *Memory) Get(key string) ([]byte, time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[key]
	if !ok {
		return nil, time.Time{}, pagecache.ErrNotFound
	}
	data := make([]byte, len(row.data))
	copy(data, row.data)
	return data, row.storedAt, nil
}

// Set implements pagecache.DurableStore.
func (m *Memory) Set(key string, storedAt time.Time, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := make([]byte, len(data))
	copy(stored, data)
	m.rows[key] = memoryRow{storedAt: storedAt, data: stored}
	return nil
}

// Remove implements pagecache.DurableStore.
func (m *Memory) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, key)
	return nil
}

// Len returns the number of stored rows. Test hook.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}
