// Copyright 2026 The Labsync Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/labfoundry/labsync/api"
	"github.com/labfoundry/labsync/schema"
)

// ApproveOptions controls an approval. When both ReturnDate and
// ReturnDays are set, ReturnDate wins. MarkSubmitted additionally
// records the handover and issues a second, independent submit call.
type ApproveOptions struct {
	ReturnDays    int
	ReturnDate    *time.Time
	Remark        string
	MarkSubmitted bool
}

// Create submits a new issue request. Quantity is validated against
// the item's limits and availability before any network I/O; failures
// are a *ValidationError. On success the collection holds a
// negative-ID placeholder (pending, availability decremented, upserted
// to the first cached page) until the server confirmation replaces
// it, whether that arrives as the response or as a created event. A failed
// network create removes the placeholder and restores availability.
func (e *Engine) Create(ctx context.Context, itemID int64, quantity int) (schema.IssueRequest, error) {
	e.mu.Lock()
	item, ok := e.items[itemID]
	if !ok {
		e.mu.Unlock()
		return schema.IssueRequest{}, validationf("unknown item %d", itemID)
	}
	if err := item.CheckQuantity(quantity); err != nil {
		e.mu.Unlock()
		return schema.IssueRequest{}, &ValidationError{Reason: err.Error()}
	}

	e.placeholder--
	placeholder := schema.IssueRequest{
		ID:            e.placeholder,
		ItemID:        item.ID,
		ItemName:      item.Name,
		RequesterID:   e.requesterID,
		RequesterName: e.requesterName,
		Quantity:      quantity,
		Status:        schema.StatusPending,
		CreatedAt:     e.clock.Now(),
	}
	e.requests[placeholder.ID] = placeholder
	item.Available -= quantity
	e.items[item.ID] = item
	e.store.UpsertFront(e.firstPageKey(), placeholder, e.pageCap)
	e.mu.Unlock()

	created, err := e.client.CreateIssueRequest(ctx, api.CreateRequestBody{
		ItemID:   itemID,
		Quantity: quantity,
	})
	if err != nil {
		e.rollbackCreate(placeholder.ID, itemID, quantity)
		return schema.IssueRequest{}, fmt.Errorf("engine: create: %w", err)
	}

	e.mu.Lock()
	if e.reconcileLocked(created) {
		e.store.UpsertFront(e.firstPageKey(), created, e.pageCap)
	}
	e.mu.Unlock()
	return created, nil
}

// rollbackCreate undoes a failed optimistic create. If the matching
// created event already retired the placeholder, the create actually
// succeeded server-side and there is nothing to undo.
func (e *Engine) rollbackCreate(placeholderID, itemID int64, quantity int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.requests[placeholderID]; !ok {
		return
	}
	delete(e.requests, placeholderID)
	e.store.RemoveByID(e.firstPageKey(), placeholderID)
	if item, ok := e.items[itemID]; ok {
		item.Available += quantity
		e.items[itemID] = item
	}
}

// Approve approves a pending request, optimistically recording the
// approval and the computed return deadline, then calling the server.
// A failed call is surfaced but never rolled back: the truth arrives
// by event, and un-approving in the meantime only causes flicker.
func (e *Engine) Approve(ctx context.Context, id int64, opts ApproveOptions) error {
	e.mu.Lock()
	record, ok := e.requests[id]
	if !ok {
		e.mu.Unlock()
		return validationf("unknown request %d", id)
	}
	if record.Placeholder() {
		e.mu.Unlock()
		return validationf("request %d is awaiting server confirmation", id)
	}
	if record.Terminal() {
		e.mu.Unlock()
		return validationf("request %d is already settled", id)
	}

	now := e.clock.Now()
	e.approveLocked(&record, now, opts)
	if e.applyLocked(record, "local") {
		e.store.ReplaceByID(e.firstPageKey(), record)
	}
	e.mu.Unlock()

	approveErr := e.approveRemote(ctx, id, opts)
	var submitErr error
	if opts.MarkSubmitted {
		submitErr = e.submitRemote(ctx, id)
	}
	return errors.Join(approveErr, submitErr)
}

// approveLocked applies the optimistic approval to record in place.
// Called with e.mu held.
func (e *Engine) approveLocked(record *schema.IssueRequest, now time.Time, opts ApproveOptions) {
	record.Status = schema.StatusApproved
	record.ApprovedAt = &now
	record.Submission = schema.SubmissionPending
	if deadline, ok := returnDeadline(now, opts); ok {
		record.ReturnBy = &deadline
	}
	if opts.Remark != "" {
		record.Remarks = opts.Remark
	}
	if opts.MarkSubmitted {
		record.Submission = schema.SubmissionSubmitted
		record.SubmittedAt = &now
		record.Remarks = submittedRemark(now)
	}
}

// returnDeadline computes the return deadline. ReturnDate wins over
// ReturnDays when both are set.
func returnDeadline(now time.Time, opts ApproveOptions) (time.Time, bool) {
	if opts.ReturnDate != nil {
		return *opts.ReturnDate, true
	}
	if opts.ReturnDays > 0 {
		return now.AddDate(0, 0, opts.ReturnDays), true
	}
	return time.Time{}, false
}

func submittedRemark(now time.Time) string {
	return "Submitted on " + now.Format("02 Jan 2006 15:04")
}

func (e *Engine) approveRemote(ctx context.Context, id int64, opts ApproveOptions) error {
	body := api.ApproveRequestBody{Remarks: opts.Remark}
	if opts.ReturnDate != nil {
		body.ReturnBy = opts.ReturnDate
	} else if opts.ReturnDays > 0 {
		days := opts.ReturnDays
		body.ReturnDays = &days
	}
	if _, err := e.client.ApproveIssueRequest(ctx, id, body); err != nil {
		return fmt.Errorf("engine: approve %d: %w", id, err)
	}
	return nil
}

// submitRemote issues one submit call. A 4xx rejection is expected for
// consumable items the server auto-submits and is not an error.
func (e *Engine) submitRemote(ctx context.Context, id int64) error {
	_, err := e.client.SubmitIssueRequest(ctx, id, api.SubmitRequestBody{
		NotifyEmail: e.notifyEmail,
	})
	if err == nil {
		return nil
	}
	if api.IsClientRejection(err) {
		e.logger.Debug("submit rejected, server already settled it",
			"request_id", id,
			"error", err,
		)
		return nil
	}
	return fmt.Errorf("engine: submit %d: %w", id, err)
}

// Reject rejects a request. The remark is mandatory; a blank one fails
// with a *ValidationError before any network call. The optimistic
// rejection is never rolled back.
func (e *Engine) Reject(ctx context.Context, id int64, remark string) error {
	if strings.TrimSpace(remark) == "" {
		return validationf("rejection requires a remark")
	}

	e.mu.Lock()
	record, ok := e.requests[id]
	if !ok {
		e.mu.Unlock()
		return validationf("unknown request %d", id)
	}
	if record.Placeholder() {
		e.mu.Unlock()
		return validationf("request %d is awaiting server confirmation", id)
	}
	if record.Terminal() {
		e.mu.Unlock()
		return validationf("request %d is already settled", id)
	}
	e.rejectLocked(&record, remark)
	if e.applyLocked(record, "local") {
		e.store.ReplaceByID(e.firstPageKey(), record)
	}
	e.mu.Unlock()

	if _, err := e.client.RejectIssueRequest(ctx, id, api.RejectRequestBody{Remarks: remark}); err != nil {
		return fmt.Errorf("engine: reject %d: %w", id, err)
	}
	return nil
}

func (e *Engine) rejectLocked(record *schema.IssueRequest, remark string) {
	record.Status = schema.StatusRejected
	record.Submission = schema.SubmissionNotRequired
	record.Remarks = remark
}

// BulkApprove approves a selection in one server call. An empty
// selection means every pending request currently known; a non-empty
// one means exactly that subset. All optimistic transitions land
// before the network call is made. With MarkSubmitted set, the
// approved ids are additionally marked submitted afterwards.
func (e *Engine) BulkApprove(ctx context.Context, ids []int64, opts ApproveOptions) (api.BatchResult, error) {
	e.mu.Lock()
	if len(ids) == 0 {
		ids = e.eligibleLocked(func(r schema.IssueRequest) bool {
			return r.Status == schema.StatusPending && !r.Placeholder()
		})
	}
	now := e.clock.Now()
	applied := ids[:0:0]
	for _, id := range ids {
		record, ok := e.requests[id]
		if !ok || record.Terminal() {
			continue
		}
		e.approveLocked(&record, now, opts)
		if e.applyLocked(record, "local") {
			e.store.ReplaceByID(e.firstPageKey(), record)
			applied = append(applied, id)
		}
	}
	e.mu.Unlock()

	if len(applied) == 0 {
		return api.BatchResult{}, nil
	}

	body := api.BulkApproveBody{IDs: applied, Remarks: opts.Remark}
	if opts.ReturnDate != nil {
		body.ReturnBy = opts.ReturnDate
	} else if opts.ReturnDays > 0 {
		days := opts.ReturnDays
		body.ReturnDays = &days
	}
	result, err := e.client.BulkApproveIssueRequests(ctx, body)
	if err != nil {
		return api.BatchResult{}, fmt.Errorf("engine: bulk approve: %w", err)
	}
	if opts.MarkSubmitted {
		e.submitEach(ctx, applied)
	}
	return result, nil
}

// BulkReject rejects a selection in one server call, with the same
// empty-selection semantics as BulkApprove.
func (e *Engine) BulkReject(ctx context.Context, ids []int64, remark string) (api.BatchResult, error) {
	if strings.TrimSpace(remark) == "" {
		return api.BatchResult{}, validationf("rejection requires a remark")
	}

	e.mu.Lock()
	if len(ids) == 0 {
		ids = e.eligibleLocked(func(r schema.IssueRequest) bool {
			return r.Status == schema.StatusPending && !r.Placeholder()
		})
	}
	applied := ids[:0:0]
	for _, id := range ids {
		record, ok := e.requests[id]
		if !ok || record.Terminal() {
			continue
		}
		e.rejectLocked(&record, remark)
		if e.applyLocked(record, "local") {
			e.store.ReplaceByID(e.firstPageKey(), record)
			applied = append(applied, id)
		}
	}
	e.mu.Unlock()

	if len(applied) == 0 {
		return api.BatchResult{}, nil
	}

	result, err := e.client.BulkRejectIssueRequests(ctx, api.BulkRejectBody{IDs: applied, Remarks: remark})
	if err != nil {
		return api.BatchResult{}, fmt.Errorf("engine: bulk reject: %w", err)
	}
	return result, nil
}

// MarkSubmitted records the handover for a selection of approved
// requests. An empty selection means every approved request still
// awaiting handover. Each id gets its own submit call; failures are
// logged, never surfaced, and never rolled back.
func (e *Engine) MarkSubmitted(ctx context.Context, ids []int64) {
	e.mu.Lock()
	if len(ids) == 0 {
		ids = e.eligibleLocked(func(r schema.IssueRequest) bool {
			return r.Status == schema.StatusApproved &&
				r.EffectiveSubmission() == schema.SubmissionPending &&
				!r.Placeholder()
		})
	}
	now := e.clock.Now()
	applied := ids[:0:0]
	for _, id := range ids {
		record, ok := e.requests[id]
		if !ok || record.Status != schema.StatusApproved || record.Terminal() {
			continue
		}
		record.Submission = schema.SubmissionSubmitted
		record.SubmittedAt = &now
		record.Remarks = submittedRemark(now)
		if e.applyLocked(record, "local") {
			e.store.ReplaceByID(e.firstPageKey(), record)
			applied = append(applied, id)
		}
	}
	e.mu.Unlock()

	e.submitEach(ctx, applied)
}

func (e *Engine) submitEach(ctx context.Context, ids []int64) {
	for _, id := range ids {
		if err := e.submitRemote(ctx, id); err != nil {
			e.logger.Warn("submit call failed, state stands until reconciled",
				"request_id", id,
				"error", err,
			)
		}
	}
}

// eligibleLocked collects the ids matching the predicate, newest
// first. Called with e.mu held.
func (e *Engine) eligibleLocked(match func(schema.IssueRequest) bool) []int64 {
	matched := make([]schema.IssueRequest, 0, len(e.requests))
	for _, r := range e.requests {
		if match(r) {
			matched = append(matched, r)
		}
	}
	sortNewestFirst(matched)
	ids := make([]int64, len(matched))
	for i, r := range matched {
		ids[i] = r.ID
	}
	return ids
}
