// Copyright 2026 The Labsync Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"testing"
	"time"
)

func TestMarshalDeterministic(t *testing.T) {
	type page struct {
		Items []string  `cbor:"items"`
		Total int       `cbor:"total"`
		At    time.Time `cbor:"at"`
	}
	value := page{
		Items: []string{"oscilloscope", "multimeter"},
		Total: 2,
		At:    time.Date(2026, 4, 2, 12, 0, 0, 0, time.UTC),
	}

	first, err := Marshal(value)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	second, err := Marshal(value)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatal("same value produced different encodings")
	}

	var decoded page
	if err := Unmarshal(first, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.Total != 2 || len(decoded.Items) != 2 {
		t.Fatalf("round trip lost data: %+v", decoded)
	}
}

func TestUnmarshalAnyMapKeys(t *testing.T) {
	data, err := Marshal(map[string]any{"status": "pending", "quantity": 2})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded any
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	m, ok := decoded.(map[string]any)
	if !ok {
		t.Fatalf("decoded type = %T, want map[string]any", decoded)
	}
	if m["status"] != "pending" {
		t.Fatalf("status = %v, want pending", m["status"])
	}
}
