// Copyright 2026 The Labsync Authors
// SPDX-License-Identifier: Apache-2.0

package pagecache

// The mutation API applies optimistic local edits and push-event
// reconciliations directly to cached pages. All three operations are
// idempotent (safe under duplicate event delivery), no-ops when the
// key is not cached, and preserve the entry's store time — a local
// mutation is not a revalidation and must not suppress the next
// background refresh.

// UpsertFront inserts or refreshes a record at the front of the
// key's page: any existing record with the same ID is removed first,
// the record is prepended, the page is truncated to cap items, and
// Total is incremented only when the record was not already present
// (an update never counts as an insert).
func (s *Store[T]) UpsertFront(key Key, record T, cap int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return
	}

	items := make([]T, 0, len(e.value.Items)+1)
	items = append(items, record)
	replaced := false
	for _, item := range e.value.Items {
		if item.RecordID() == record.RecordID() {
			replaced = true
			continue
		}
		items = append(items, item)
	}
	if cap > 0 && len(items) > cap {
		items = items[:cap]
	}

	e.value.Items = items
	if !replaced {
		e.value.Total++
	}
	s.entries[key] = e
	s.durableSet(key, e.value, e.storedAt)
}

// ReplaceByID replaces the record whose ID matches. No-op when the
// record is not on the page — replace never inserts.
func (s *Store[T]) ReplaceByID(key Key, record T) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return
	}

	found := false
	items := make([]T, len(e.value.Items))
	for i, item := range e.value.Items {
		if item.RecordID() == record.RecordID() {
			items[i] = record
			found = true
		} else {
			items[i] = item
		}
	}
	if !found {
		return
	}

	e.value.Items = items
	s.entries[key] = e
	s.durableSet(key, e.value, e.storedAt)
}

// RemoveByID filters out the record with the given ID and decrements
// Total, floored at zero. No-op when the record is not on the page.
func (s *Store[T]) RemoveByID(key Key, id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return
	}

	items := make([]T, 0, len(e.value.Items))
	removed := false
	for _, item := range e.value.Items {
		if item.RecordID() == id {
			removed = true
			continue
		}
		items = append(items, item)
	}
	if !removed {
		return
	}

	e.value.Items = items
	if e.value.Total > 0 {
		e.value.Total--
	}
	s.entries[key] = e
	s.durableSet(key, e.value, e.storedAt)
}
