// Copyright 2026 The Labsync Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import "fmt"

// EquipmentItem is one piece (or pool) of issuable lab equipment.
type EquipmentItem struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`

	// LabID scopes the item to a lab; partition parameter for the
	// item caches.
	LabID int64 `json:"lab_id,omitempty"`

	// Available is the locally-tracked issuable quantity. The sync
	// engine decrements it optimistically on create and restores it
	// when the create fails; inventory-channel events overwrite it
	// with the authoritative value.
	Available int `json:"available"`

	// MinIssue and MaxIssue bound the quantity of a single request.
	MinIssue int `json:"min_issue_limit"`
	MaxIssue int `json:"max_issue_limit"`

	// Consumable items are auto-submitted server-side on approval,
	// so a client-issued submit call may come back 4xx; that
	// rejection is expected and benign.
	Consumable bool `json:"consumable,omitempty"`
}

// RecordID implements pagecache.Record.
func (i EquipmentItem) RecordID() int64 { return i.ID }

// CheckQuantity validates a requested quantity against the item's
// issue limits and current availability. The returned error is nil
// exactly when a create for this quantity may proceed to the network.
func (i EquipmentItem) CheckQuantity(quantity int) error {
	if quantity < i.MinIssue || (i.MaxIssue > 0 && quantity > i.MaxIssue) {
		return fmt.Errorf("quantity %d outside issue limits [%d, %d] for %q",
			quantity, i.MinIssue, i.MaxIssue, i.Name)
	}
	if quantity > i.Available {
		return fmt.Errorf("quantity %d exceeds available %d for %q",
			quantity, i.Available, i.Name)
	}
	return nil
}
