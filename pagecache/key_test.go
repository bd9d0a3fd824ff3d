// Copyright 2026 The Labsync Authors
// SPDX-License-Identifier: Apache-2.0

package pagecache

import "testing"

func TestNewKeyOrderIndependent(t *testing.T) {
	a := NewKey("issue-requests", Params{"page": "1", "lab": "3", "q": "scope"})
	b := NewKey("issue-requests", Params{"q": "scope", "page": "1", "lab": "3"})
	if a != b {
		t.Fatalf("keys differ for same parameters: %q vs %q", a, b)
	}
}

func TestNewKeyEmptyValueIsAbsent(t *testing.T) {
	a := NewKey("bills", Params{"year": "2025-26", "q": ""})
	b := NewKey("bills", Params{"year": "2025-26"})
	if a != b {
		t.Fatalf("empty parameter changed the key: %q vs %q", a, b)
	}
}

func TestNewKeyNoParams(t *testing.T) {
	if got := NewKey("items", nil); got != Key("items") {
		t.Fatalf("NewKey with no params = %q, want %q", got, "items")
	}
	if got := NewKey("items", Params{"q": ""}); got != Key("items") {
		t.Fatalf("NewKey with only empty params = %q, want %q", got, "items")
	}
}

func TestKeyZeroIntKept(t *testing.T) {
	params := Params{}
	params.SetInt("page", 0)
	a := NewKey("items", params)
	b := NewKey("items", nil)
	if a == b {
		t.Fatal("page=0 collapsed into the no-page partition")
	}
}

func TestKeyResourceAndQuery(t *testing.T) {
	params := Params{"year": "2025-26", "q": "wire & cable"}
	params.SetInt("page", 2)
	key := NewKey("bills", params)

	if got := key.Resource(); got != "bills" {
		t.Fatalf("Resource() = %q, want %q", got, "bills")
	}

	query := key.Query()
	if got := query.Get("q"); got != "wire & cable" {
		t.Fatalf("Query().Get(q) = %q, want %q", got, "wire & cable")
	}
	if got := query.Get("page"); got != "2" {
		t.Fatalf("Query().Get(page) = %q, want %q", got, "2")
	}
}
