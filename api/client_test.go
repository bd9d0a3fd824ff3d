// Copyright 2026 The Labsync Authors
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labfoundry/labsync/pagecache"
	"github.com/labfoundry/labsync/schema"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(Config{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Fatal("NewClient accepted an empty BaseURL")
	}
}

func TestListPageSendsPartitionQuery(t *testing.T) {
	var gotPath, gotQuery string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query().Encode()
		json.NewEncoder(w).Encode(map[string]any{
			"items":       []map[string]any{{"id": 7, "status": "pending"}},
			"page":        2,
			"total_pages": 5,
			"total":       42,
		})
	}))

	key := pagecache.NewKey("issue-requests", pagecache.Params{"page": "2", "lab": "3"})
	page, err := ListPage[schema.IssueRequest](context.Background(), client, key)
	if err != nil {
		t.Fatalf("ListPage: %v", err)
	}

	if gotPath != "/issue-requests" {
		t.Errorf("path = %q, want /issue-requests", gotPath)
	}
	if gotQuery != "lab=3&page=2" {
		t.Errorf("query = %q, want lab=3&page=2", gotQuery)
	}
	if page.Total != 42 || page.Page != 2 || len(page.Items) != 1 {
		t.Fatalf("page = %+v, want decoded envelope", page)
	}
	if page.Items[0].ID != 7 || page.Items[0].Status != schema.StatusPending {
		t.Fatalf("items = %+v, want decoded request", page.Items)
	}
}

func TestCreateIssueRequest(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/issue-requests" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body CreateRequestBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decoding body: %v", err)
		}
		if body.ItemID != 3 || body.Quantity != 2 {
			t.Errorf("body = %+v, want item 3 quantity 2", body)
		}
		json.NewEncoder(w).Encode(schema.IssueRequest{
			ID: 42, ItemID: 3, Quantity: 2, Status: schema.StatusPending,
		})
	}))

	created, err := client.CreateIssueRequest(context.Background(), CreateRequestBody{ItemID: 3, Quantity: 2})
	if err != nil {
		t.Fatalf("CreateIssueRequest: %v", err)
	}
	if created.ID != 42 {
		t.Fatalf("created.ID = %d, want 42", created.ID)
	}
}

func TestServerRejectionDecodesDetail(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{"detail": "not enough stock"})
	}))

	_, err := client.CreateIssueRequest(context.Background(), CreateRequestBody{ItemID: 1, Quantity: 9})
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *Error", err)
	}
	if apiErr.StatusCode != http.StatusConflict || apiErr.Detail != "not enough stock" {
		t.Fatalf("apiErr = %+v, want 409 / not enough stock", apiErr)
	}
	if !IsClientRejection(err) {
		t.Fatal("IsClientRejection = false for a 409")
	}
}

func TestServerErrorWithoutDetailKeepsBody(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream unavailable"))
	}))

	_, err := client.SubmitIssueRequest(context.Background(), 7, SubmitRequestBody{})
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *Error", err)
	}
	if apiErr.Detail != "upstream unavailable" {
		t.Fatalf("Detail = %q, want raw body text", apiErr.Detail)
	}
	if IsClientRejection(err) {
		t.Fatal("IsClientRejection = true for a 502")
	}
}

func TestTransportFailureIsNotError(t *testing.T) {
	client, err := NewClient(Config{BaseURL: "http://127.0.0.1:1"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	_, err = client.RejectIssueRequest(context.Background(), 7, RejectRequestBody{Remarks: "no"})
	if err == nil {
		t.Fatal("expected a transport error")
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		t.Fatalf("transport failure surfaced as *Error: %v", err)
	}
}

func TestBulkRejectSendsIDList(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/issue-requests/bulk-reject" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var body BulkRejectBody
		json.NewDecoder(r.Body).Decode(&body)
		if len(body.IDs) != 3 || body.Remarks != "semester over" {
			t.Errorf("body = %+v", body)
		}
		json.NewEncoder(w).Encode(BatchResult{Updated: 3})
	}))

	result, err := client.BulkRejectIssueRequests(context.Background(), BulkRejectBody{
		IDs: []int64{1, 2, 3}, Remarks: "semester over",
	})
	if err != nil {
		t.Fatalf("BulkRejectIssueRequests: %v", err)
	}
	if result.Updated != 3 {
		t.Fatalf("Updated = %d, want 3", result.Updated)
	}
}
