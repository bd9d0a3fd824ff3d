// Copyright 2026 The Labsync Authors
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labfoundry/labsync/pagecache"
	"github.com/labfoundry/labsync/schema"
)

// ListPage fetches one page of a paginated collection. The key's
// resource names the endpoint and its parameters become the query
// string, so the cache partition and the server request can never
// disagree about what was fetched.
func ListPage[T pagecache.Record](ctx context.Context, c *Client, key pagecache.Key) (pagecache.Page[T], error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/"+key.Resource(), key.Query(), nil)
	if err != nil {
		return pagecache.Page[T]{}, fmt.Errorf("api: listing %s: %w", key.Resource(), err)
	}
	return decodeInto[pagecache.Page[T]](body, key.Resource())
}

// CreateRequestBody is the payload of POST /issue-requests.
type CreateRequestBody struct {
	ItemID   int64 `json:"item_id"`
	Quantity int   `json:"quantity"`
}

// CreateIssueRequest submits a new issuance request. The server
// responds with the created request, including its assigned ID.
func (c *Client) CreateIssueRequest(ctx context.Context, body CreateRequestBody) (schema.IssueRequest, error) {
	responseBody, err := c.doRequest(ctx, http.MethodPost, "/issue-requests", nil, body)
	if err != nil {
		return schema.IssueRequest{}, fmt.Errorf("api: creating issue request: %w", err)
	}
	return decodeInto[schema.IssueRequest](responseBody, "create")
}

// ApproveRequestBody is the payload of POST /issue-requests/{id}/approve.
// Exactly one of ReturnDays and ReturnBy should be set; the server
// honors ReturnBy when both are present, matching the client's own
// precedence.
type ApproveRequestBody struct {
	ReturnDays *int       `json:"return_days,omitempty"`
	ReturnBy   *time.Time `json:"return_by,omitempty"`
	Remarks    string     `json:"remarks,omitempty"`
}

// ApproveIssueRequest approves a single request.
func (c *Client) ApproveIssueRequest(ctx context.Context, id int64, body ApproveRequestBody) (schema.IssueRequest, error) {
	path := fmt.Sprintf("/issue-requests/%d/approve", id)
	responseBody, err := c.doRequest(ctx, http.MethodPost, path, nil, body)
	if err != nil {
		return schema.IssueRequest{}, fmt.Errorf("api: approving request %d: %w", id, err)
	}
	return decodeInto[schema.IssueRequest](responseBody, "approve")
}

// RejectRequestBody is the payload of POST /issue-requests/{id}/reject.
type RejectRequestBody struct {
	Remarks string `json:"remarks"`
}

// RejectIssueRequest rejects a single request. The server requires a
// remark; the engine validates that before calling here.
func (c *Client) RejectIssueRequest(ctx context.Context, id int64, body RejectRequestBody) (schema.IssueRequest, error) {
	path := fmt.Sprintf("/issue-requests/%d/reject", id)
	responseBody, err := c.doRequest(ctx, http.MethodPost, path, nil, body)
	if err != nil {
		return schema.IssueRequest{}, fmt.Errorf("api: rejecting request %d: %w", id, err)
	}
	return decodeInto[schema.IssueRequest](responseBody, "reject")
}

// BulkApproveBody is the payload of POST /issue-requests/bulk-approve.
type BulkApproveBody struct {
	IDs        []int64    `json:"ids"`
	ReturnDays *int       `json:"return_days,omitempty"`
	ReturnBy   *time.Time `json:"return_by,omitempty"`
	Remarks    string     `json:"remarks,omitempty"`
}

// BulkRejectBody is the payload of POST /issue-requests/bulk-reject.
type BulkRejectBody struct {
	IDs     []int64 `json:"ids"`
	Remarks string  `json:"remarks"`
}

// BatchResult reports the outcome of a bulk operation.
type BatchResult struct {
	Updated int     `json:"updated"`
	Failed  []int64 `json:"failed,omitempty"`
}

// BulkApproveIssueRequests approves the whole id set in one call.
func (c *Client) BulkApproveIssueRequests(ctx context.Context, body BulkApproveBody) (BatchResult, error) {
	responseBody, err := c.doRequest(ctx, http.MethodPost, "/issue-requests/bulk-approve", nil, body)
	if err != nil {
		return BatchResult{}, fmt.Errorf("api: bulk approve: %w", err)
	}
	return decodeInto[BatchResult](responseBody, "bulk-approve")
}

// BulkRejectIssueRequests rejects the whole id set in one call.
func (c *Client) BulkRejectIssueRequests(ctx context.Context, body BulkRejectBody) (BatchResult, error) {
	responseBody, err := c.doRequest(ctx, http.MethodPost, "/issue-requests/bulk-reject", nil, body)
	if err != nil {
		return BatchResult{}, fmt.Errorf("api: bulk reject: %w", err)
	}
	return decodeInto[BatchResult](responseBody, "bulk-reject")
}

// SubmitRequestBody is the payload of POST /issue-requests/{id}/submit.
type SubmitRequestBody struct {
	NotifyEmail string `json:"notify_email,omitempty"`
}

// SubmitIssueRequest marks an approved request's equipment as handed
// over.
func (c *Client) SubmitIssueRequest(ctx context.Context, id int64, body SubmitRequestBody) (schema.IssueRequest, error) {
	path := fmt.Sprintf("/issue-requests/%d/submit", id)
	responseBody, err := c.doRequest(ctx, http.MethodPost, path, nil, body)
	if err != nil {
		return schema.IssueRequest{}, fmt.Errorf("api: submitting request %d: %w", id, err)
	}
	return decodeInto[schema.IssueRequest](responseBody, "submit")
}
