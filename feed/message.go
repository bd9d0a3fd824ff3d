// Copyright 2026 The Labsync Authors
// SPDX-License-Identifier: Apache-2.0

// Package feed consumes the server's push channels and normalizes raw
// wire messages into a closed set of typed domain events. There are
// three channels — requests, inventory, billing — each with its own
// event set and decoder. Unknown event names decode to ErrUnknownEvent
// so consumers can log and drop them without ever stopping the stream.
package feed

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/labfoundry/labsync/schema"
)

// Message is the wire shape of one push-channel message.
type Message struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// ErrUnknownEvent marks a message whose event name is outside the
// channel's closed set. Consumers log and drop these; new server-side
// event types must never break older clients.
var ErrUnknownEvent = errors.New("feed: unknown event")

// RequestEvent is one normalized event from the requests channel.
type RequestEvent interface {
	requestEvent()
}

// RequestCreated announces a newly created issue request.
type RequestCreated struct {
	Request schema.IssueRequest
}

// RequestUpdated carries the full post-change record; appliers replace
// by id rather than patching fields.
type RequestUpdated struct {
	Request schema.IssueRequest
}

// RequestDeleted announces a removed issue request.
type RequestDeleted struct {
	ID int64 `json:"id"`
}

// RequestsBulkRejected announces a staff bulk rejection. The ids cover
// every request rejected in the batch.
type RequestsBulkRejected struct {
	IDs     []int64 `json:"ids"`
	Remarks string  `json:"remarks"`
}

// RequestMessage is a chat-style remark attached to a request. It does
// not change request state; it feeds the unread tracking in the view
// projectors.
type RequestMessage struct {
	RequestID   int64     `json:"request_id"`
	RequesterID int64     `json:"requester_id"`
	Text        string    `json:"text"`
	SentAt      time.Time `json:"sent_at"`
}

func (RequestCreated) requestEvent()       {}
func (RequestUpdated) requestEvent()       {}
func (RequestDeleted) requestEvent()       {}
func (RequestsBulkRejected) requestEvent() {}
func (RequestMessage) requestEvent()       {}

// DecodeRequestEvent normalizes a requests-channel message. Unknown
// event names return an error wrapping ErrUnknownEvent; payloads that
// fail to parse return a plain decode error. Both leave the stream
// usable.
func DecodeRequestEvent(msg Message) (RequestEvent, error) {
	switch msg.Event {
	case "created":
		var request schema.IssueRequest
		if err := decodePayload(msg, &request); err != nil {
			return nil, err
		}
		return RequestCreated{Request: request}, nil
	case "updated":
		var request schema.IssueRequest
		if err := decodePayload(msg, &request); err != nil {
			return nil, err
		}
		return RequestUpdated{Request: request}, nil
	case "deleted":
		var event RequestDeleted
		if err := decodePayload(msg, &event); err != nil {
			return nil, err
		}
		return event, nil
	case "bulk_rejected":
		var event RequestsBulkRejected
		if err := decodePayload(msg, &event); err != nil {
			return nil, err
		}
		return event, nil
	case "message":
		var event RequestMessage
		if err := decodePayload(msg, &event); err != nil {
			return nil, err
		}
		return event, nil
	default:
		return nil, fmt.Errorf("%w: requests channel event %q", ErrUnknownEvent, msg.Event)
	}
}

// InventoryEvent is one normalized event from the inventory channel.
type InventoryEvent interface {
	inventoryEvent()
}

// InventoryUpdated carries the full post-change equipment record
// (availability changes ride on this).
type InventoryUpdated struct {
	Item schema.EquipmentItem
}

func (InventoryUpdated) inventoryEvent() {}

// DecodeInventoryEvent normalizes an inventory-channel message.
func DecodeInventoryEvent(msg Message) (InventoryEvent, error) {
	switch msg.Event {
	case "updated":
		var item schema.EquipmentItem
		if err := decodePayload(msg, &item); err != nil {
			return nil, err
		}
		return InventoryUpdated{Item: item}, nil
	default:
		return nil, fmt.Errorf("%w: inventory channel event %q", ErrUnknownEvent, msg.Event)
	}
}

// BillingEvent is one normalized event from the billing channel, which
// carries both bills and handouts.
type BillingEvent interface {
	billingEvent()
}

// BillCreated announces a new bill in its fiscal-year partition.
type BillCreated struct {
	Bill schema.Bill
}

// BillUpdated carries the full post-change bill.
type BillUpdated struct {
	Bill schema.Bill
}

// BillDeleted announces a removed bill. FinancialYear names the
// partition the removal applies to.
type BillDeleted struct {
	ID            int64  `json:"id"`
	FinancialYear string `json:"financial_year"`
}

// HandoutCreated announces a new handout in its fiscal-year partition.
type HandoutCreated struct {
	Handout schema.Handout
}

// HandoutUpdated carries the full post-change handout.
type HandoutUpdated struct {
	Handout schema.Handout
}

// HandoutDeleted announces a removed handout.
type HandoutDeleted struct {
	ID            int64  `json:"id"`
	FinancialYear string `json:"financial_year"`
}

func (BillCreated) billingEvent()    {}
func (BillUpdated) billingEvent()    {}
func (BillDeleted) billingEvent()    {}
func (HandoutCreated) billingEvent() {}
func (HandoutUpdated) billingEvent() {}
func (HandoutDeleted) billingEvent() {}

// DecodeBillingEvent normalizes a billing-channel message.
func DecodeBillingEvent(msg Message) (BillingEvent, error) {
	switch msg.Event {
	case "bill_created":
		var bill schema.Bill
		if err := decodePayload(msg, &bill); err != nil {
			return nil, err
		}
		return BillCreated{Bill: bill}, nil
	case "bill_updated":
		var bill schema.Bill
		if err := decodePayload(msg, &bill); err != nil {
			return nil, err
		}
		return BillUpdated{Bill: bill}, nil
	case "bill_deleted":
		var event BillDeleted
		if err := decodePayload(msg, &event); err != nil {
			return nil, err
		}
		return event, nil
	case "handout_created":
		var handout schema.Handout
		if err := decodePayload(msg, &handout); err != nil {
			return nil, err
		}
		return HandoutCreated{Handout: handout}, nil
	case "handout_updated":
		var handout schema.Handout
		if err := decodePayload(msg, &handout); err != nil {
			return nil, err
		}
		return HandoutUpdated{Handout: handout}, nil
	case "handout_deleted":
		var event HandoutDeleted
		if err := decodePayload(msg, &event); err != nil {
			return nil, err
		}
		return event, nil
	default:
		return nil, fmt.Errorf("%w: billing channel event %q", ErrUnknownEvent, msg.Event)
	}
}

func decodePayload(msg Message, into any) error {
	if err := json.Unmarshal(msg.Payload, into); err != nil {
		return fmt.Errorf("feed: decoding %q payload: %w", msg.Event, err)
	}
	return nil
}
