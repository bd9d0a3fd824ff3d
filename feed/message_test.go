// Copyright 2026 The Labsync Authors
// SPDX-License-Identifier: Apache-2.0

package feed

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/labfoundry/labsync/schema"
)

func message(t *testing.T, event string, payload any) Message {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshaling payload: %v", err)
	}
	return Message{Event: event, Payload: raw}
}

func TestDecodeRequestEvents(t *testing.T) {
	created, err := DecodeRequestEvent(message(t, "created", schema.IssueRequest{
		ID: 42, ItemID: 3, Status: schema.StatusPending,
	}))
	if err != nil {
		t.Fatalf("created: %v", err)
	}
	if event, ok := created.(RequestCreated); !ok || event.Request.ID != 42 {
		t.Fatalf("created = %#v, want RequestCreated id 42", created)
	}

	updated, err := DecodeRequestEvent(message(t, "updated", schema.IssueRequest{
		ID: 42, Status: schema.StatusApproved,
	}))
	if err != nil {
		t.Fatalf("updated: %v", err)
	}
	if event, ok := updated.(RequestUpdated); !ok || event.Request.Status != schema.StatusApproved {
		t.Fatalf("updated = %#v, want approved record", updated)
	}

	deleted, err := DecodeRequestEvent(message(t, "deleted", map[string]any{"id": 9}))
	if err != nil {
		t.Fatalf("deleted: %v", err)
	}
	if event, ok := deleted.(RequestDeleted); !ok || event.ID != 9 {
		t.Fatalf("deleted = %#v, want id 9", deleted)
	}

	bulk, err := DecodeRequestEvent(message(t, "bulk_rejected", map[string]any{
		"ids": []int64{1, 2}, "remarks": "semester over",
	}))
	if err != nil {
		t.Fatalf("bulk_rejected: %v", err)
	}
	if event, ok := bulk.(RequestsBulkRejected); !ok || len(event.IDs) != 2 || event.Remarks != "semester over" {
		t.Fatalf("bulk_rejected = %#v", bulk)
	}

	chat, err := DecodeRequestEvent(message(t, "message", map[string]any{
		"request_id": 7, "text": "bring your ID card",
	}))
	if err != nil {
		t.Fatalf("message: %v", err)
	}
	if event, ok := chat.(RequestMessage); !ok || event.RequestID != 7 {
		t.Fatalf("message = %#v", chat)
	}
}

func TestDecodeUnknownEventIsRecognizable(t *testing.T) {
	_, err := DecodeRequestEvent(message(t, "archived", map[string]any{"id": 1}))
	if !errors.Is(err, ErrUnknownEvent) {
		t.Fatalf("error = %v, want ErrUnknownEvent", err)
	}

	_, err = DecodeInventoryEvent(message(t, "created", map[string]any{}))
	if !errors.Is(err, ErrUnknownEvent) {
		t.Fatalf("inventory error = %v, want ErrUnknownEvent", err)
	}

	_, err = DecodeBillingEvent(message(t, "created", map[string]any{}))
	if !errors.Is(err, ErrUnknownEvent) {
		t.Fatalf("billing error = %v, want ErrUnknownEvent", err)
	}
}

func TestDecodeMalformedPayloadIsNotUnknown(t *testing.T) {
	_, err := DecodeRequestEvent(Message{Event: "created", Payload: json.RawMessage(`"not an object"`)})
	if err == nil {
		t.Fatal("decoded a malformed payload")
	}
	if errors.Is(err, ErrUnknownEvent) {
		t.Fatalf("malformed payload classified as unknown event: %v", err)
	}
}

func TestDecodeInventoryUpdated(t *testing.T) {
	event, err := DecodeInventoryEvent(message(t, "updated", schema.EquipmentItem{
		ID: 3, Name: "oscilloscope", Available: 5,
	}))
	if err != nil {
		t.Fatalf("updated: %v", err)
	}
	updated, ok := event.(InventoryUpdated)
	if !ok || updated.Item.Available != 5 {
		t.Fatalf("event = %#v, want availability 5", event)
	}
}

func TestDecodeBillingEvents(t *testing.T) {
	created, err := DecodeBillingEvent(message(t, "bill_created", schema.Bill{
		ID: 11, FinancialYear: "2025-26", Vendor: "acme",
	}))
	if err != nil {
		t.Fatalf("bill_created: %v", err)
	}
	if event, ok := created.(BillCreated); !ok || event.Bill.FinancialYear != "2025-26" {
		t.Fatalf("bill_created = %#v", created)
	}

	deleted, err := DecodeBillingEvent(message(t, "bill_deleted", map[string]any{
		"id": 11, "financial_year": "2025-26",
	}))
	if err != nil {
		t.Fatalf("bill_deleted: %v", err)
	}
	if event, ok := deleted.(BillDeleted); !ok || event.FinancialYear != "2025-26" {
		t.Fatalf("bill_deleted = %#v, want fiscal-year partition", deleted)
	}

	handout, err := DecodeBillingEvent(message(t, "handout_updated", schema.Handout{
		ID: 4, FinancialYear: "2025-26", ItemName: "breadboards",
	}))
	if err != nil {
		t.Fatalf("handout_updated: %v", err)
	}
	if event, ok := handout.(HandoutUpdated); !ok || event.Handout.ItemName != "breadboards" {
		t.Fatalf("handout_updated = %#v", handout)
	}
}
