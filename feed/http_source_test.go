// Copyright 2026 The Labsync Authors
// SPDX-License-Identifier: Apache-2.0

package feed

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

// feedServer scripts a sequence of poll responses. Each call to the
// handler serves the next entry; a nil entry serves a 500.
type feedServer struct {
	responses []*pollResponse
	calls     int
	cursors   []string
}

func (s *feedServer) handler(w http.ResponseWriter, r *http.Request) {
	s.cursors = append(s.cursors, r.URL.Query().Get("cursor"))
	var response *pollResponse
	if s.calls < len(s.responses) {
		response = s.responses[s.calls]
	}
	s.calls++
	if response == nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(response)
}

func openTestSource(t *testing.T, script *feedServer) *HTTPSource {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(script.handler))
	t.Cleanup(server.Close)

	source, err := OpenSource(context.Background(), SourceConfig{
		BaseURL: server.URL,
		Channel: "requests",
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("OpenSource: %v", err)
	}
	return source
}

func TestSourceAnchorsThenDeliversInOrder(t *testing.T) {
	script := &feedServer{responses: []*pollResponse{
		{Cursor: "c0"}, // anchor
		{Cursor: "c1", Messages: []Message{
			rawMessage("created", `{"id":1}`),
			rawMessage("updated", `{"id":1}`),
		}},
	}}
	source := openTestSource(t, script)

	if source.Cursor() != "c0" {
		t.Fatalf("anchor cursor = %q, want c0", source.Cursor())
	}

	first, err := source.Next(context.Background())
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	second, err := source.Next(context.Background())
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if first.Event != "created" || second.Event != "updated" {
		t.Fatalf("events = %q, %q; want created, updated", first.Event, second.Event)
	}
	// The second message came from the buffer, not a second poll.
	if script.calls != 2 {
		t.Fatalf("server saw %d polls, want 2 (anchor + one batch)", script.calls)
	}
	if script.cursors[1] != "c0" {
		t.Fatalf("batch poll sent cursor %q, want c0", script.cursors[1])
	}
}

func TestSourceSkipsEmptyHolds(t *testing.T) {
	script := &feedServer{responses: []*pollResponse{
		{Cursor: "c0"},
		{Cursor: "c1"}, // hold expired, nothing new
		{Cursor: "c2", Messages: []Message{rawMessage("deleted", `{"id":3}`)}},
	}}
	source := openTestSource(t, script)

	msg, err := source.Next(context.Background())
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if msg.Event != "deleted" {
		t.Fatalf("event = %q, want deleted", msg.Event)
	}
	if source.Cursor() != "c2" {
		t.Fatalf("cursor = %q, want c2", source.Cursor())
	}
}

func TestSourceRetriesTransientFailures(t *testing.T) {
	script := &feedServer{responses: []*pollResponse{
		{Cursor: "c0"},
		nil, // 500
		nil, // 500
		{Cursor: "c1", Messages: []Message{rawMessage("created", `{"id":5}`)}},
	}}
	source := openTestSource(t, script)

	msg, err := source.Next(context.Background())
	if err != nil {
		t.Fatalf("Next after transient failures: %v", err)
	}
	if msg.Event != "created" {
		t.Fatalf("event = %q, want created", msg.Event)
	}
}

func TestSourceGivesUpAfterBoundedRetries(t *testing.T) {
	script := &feedServer{responses: []*pollResponse{{Cursor: "c0"}}}
	source := openTestSource(t, script)

	// Every post-anchor poll serves a 500.
	_, err := source.Next(context.Background())
	if err == nil {
		t.Fatal("Next succeeded against a permanently failing server")
	}
	if script.calls != 1+maxPollRetries+1 {
		t.Fatalf("server saw %d polls, want anchor + %d attempts", script.calls, maxPollRetries+1)
	}
}

func TestSourceStopsOnContextEnd(t *testing.T) {
	script := &feedServer{responses: []*pollResponse{{Cursor: "c0"}}}
	source := openTestSource(t, script)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := source.Next(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Next = %v, want context.Canceled", err)
	}
}
