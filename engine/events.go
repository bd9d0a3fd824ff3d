// Copyright 2026 The Labsync Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"github.com/labfoundry/labsync/feed"
)

// HandleRequestMessage is the pump handler for the requests channel:
// it decodes one wire message and applies the event. Decode failures
// (unknown event name, malformed payload) are returned for the pump to
// log and drop.
func (e *Engine) HandleRequestMessage(msg feed.Message) error {
	event, err := feed.DecodeRequestEvent(msg)
	if err != nil {
		return err
	}
	e.ApplyRequestEvent(event)
	return nil
}

// ApplyRequestEvent reconciles one requests-channel event into the
// authoritative collection and the page cache. Events apply in call
// order; duplicate delivery is a no-op because every path below is
// idempotent.
func (e *Engine) ApplyRequestEvent(event feed.RequestEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch ev := event.(type) {
	case feed.RequestCreated:
		if e.reconcileLocked(ev.Request) {
			e.store.UpsertFront(e.firstPageKey(), ev.Request, e.pageCap)
		}

	case feed.RequestUpdated:
		if e.applyLocked(ev.Request, "event") {
			e.store.ReplaceByID(e.firstPageKey(), ev.Request)
		}

	case feed.RequestDeleted:
		delete(e.requests, ev.ID)
		e.store.RemoveByID(e.firstPageKey(), ev.ID)

	case feed.RequestsBulkRejected:
		for _, id := range ev.IDs {
			record, ok := e.requests[id]
			if !ok || record.Terminal() {
				continue
			}
			e.rejectLocked(&record, ev.Remarks)
			if e.applyLocked(record, "event") {
				e.store.ReplaceByID(e.firstPageKey(), record)
			}
		}

	case feed.RequestMessage:
		requesterID := ev.RequesterID
		if requesterID == 0 {
			if record, ok := e.requests[ev.RequestID]; ok {
				requesterID = record.RequesterID
			}
		}
		if requesterID != 0 {
			e.unread[requesterID] = true
		}
	}
}

// HandleInventoryMessage is the pump handler for the inventory
// channel.
func (e *Engine) HandleInventoryMessage(msg feed.Message) error {
	event, err := feed.DecodeInventoryEvent(msg)
	if err != nil {
		return err
	}
	e.ApplyInventoryEvent(event)
	return nil
}

// ApplyInventoryEvent overwrites the tracked equipment record with the
// authoritative server value.
func (e *Engine) ApplyInventoryEvent(event feed.InventoryEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch ev := event.(type) {
	case feed.InventoryUpdated:
		e.items[ev.Item.ID] = ev.Item
	}
}

// Unread reports whether the requester has messages not yet seen.
func (e *Engine) Unread(requesterID int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.unread[requesterID]
}

// unreadSnapshotLocked copies the unread set. Called with e.mu held.
func (e *Engine) unreadSnapshotLocked() map[int64]bool {
	out := make(map[int64]bool, len(e.unread))
	for id := range e.unread {
		out[id] = true
	}
	return out
}
