// Copyright 2026 The Labsync Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import "time"

// RequestStatus is the primary lifecycle state of an issue request.
type RequestStatus string

const (
	// StatusPending is the initial state: submitted by a student,
	// awaiting a staff decision.
	StatusPending RequestStatus = "pending"

	// StatusApproved means staff approved the issuance. Approved
	// requests carry a return deadline and a submission sub-state.
	StatusApproved RequestStatus = "approved"

	// StatusRejected is terminal: staff declined the request.
	StatusRejected RequestStatus = "rejected"
)

// SubmissionStatus is the sub-state of an approved request tracking
// whether the issued equipment has been handed over. It is meaningful
// only when the request status is StatusApproved; for pending and
// rejected requests it is always SubmissionNotRequired.
type SubmissionStatus string

const (
	// SubmissionNotRequired applies to requests that are not
	// approved, and to approved requests of equipment that needs no
	// handover step.
	SubmissionNotRequired SubmissionStatus = "not_required"

	// SubmissionPending means the approved equipment has not yet
	// been handed over.
	SubmissionPending SubmissionStatus = "pending"

	// SubmissionSubmitted is terminal: the equipment was handed
	// over (or consumed, for consumable items).
	SubmissionSubmitted SubmissionStatus = "submitted"
)

// IssueRequest is one equipment issuance request as served by the
// API and reconciled by the sync engine.
//
// A negative ID marks a placeholder: a locally-synthesized record
// standing in for a not-yet-confirmed server-created request. A
// placeholder exists only to give the user immediate feedback and is
// replaced or removed once the authoritative server event or response
// for the same logical operation arrives. Placeholders are never
// written to the durable cache tier.
type IssueRequest struct {
	ID int64 `json:"id"`

	// ItemID and ItemName identify the requested equipment.
	ItemID   int64  `json:"item_id"`
	ItemName string `json:"item_name,omitempty"`

	// RequesterID and RequesterName identify the student.
	RequesterID   int64  `json:"requester_id"`
	RequesterName string `json:"requester_name,omitempty"`

	// Quantity is the number of units requested. Always > 0.
	Quantity int `json:"quantity"`

	Status     RequestStatus    `json:"status"`
	Submission SubmissionStatus `json:"submission_status"`

	CreatedAt   time.Time  `json:"created_at"`
	ApprovedAt  *time.Time `json:"approved_at,omitempty"`
	ReturnBy    *time.Time `json:"return_by,omitempty"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`

	// Remarks is the most recent staff or system remark (rejection
	// reason, approval note, generated submission note).
	Remarks string `json:"remarks,omitempty"`
}

// RecordID implements pagecache.Record.
func (r IssueRequest) RecordID() int64 { return r.ID }

// Placeholder reports whether this is a locally-synthesized record
// awaiting server confirmation.
func (r IssueRequest) Placeholder() bool { return r.ID < 0 }

// Terminal reports whether the request can never change state again:
// rejected, or approved with the handover completed.
func (r IssueRequest) Terminal() bool {
	if r.Status == StatusRejected {
		return true
	}
	return r.Status == StatusApproved && r.Submission == SubmissionSubmitted
}

// EffectiveSubmission returns the submission sub-state with the
// lifecycle invariant applied: anything not approved reports
// SubmissionNotRequired regardless of what the record carries.
func (r IssueRequest) EffectiveSubmission() SubmissionStatus {
	if r.Status != StatusApproved {
		return SubmissionNotRequired
	}
	if r.Submission == "" {
		return SubmissionPending
	}
	return r.Submission
}
