// Copyright 2026 The Labsync Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"testing"
	"time"
)

func TestFakeNowAdvances(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	fake := Fake(start)

	if got := fake.Now(); !got.Equal(start) {
		t.Fatalf("Now() = %v, want %v", got, start)
	}

	fake.Advance(90 * time.Second)
	want := start.Add(90 * time.Second)
	if got := fake.Now(); !got.Equal(want) {
		t.Fatalf("Now() after Advance = %v, want %v", got, want)
	}
}

func TestFakeAfterFiresOnAdvance(t *testing.T) {
	fake := Fake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))

	ch := fake.After(time.Minute)
	select {
	case <-ch:
		t.Fatal("After fired before Advance")
	default:
	}

	fake.Advance(59 * time.Second)
	select {
	case <-ch:
		t.Fatal("After fired before its deadline")
	default:
	}

	fake.Advance(time.Second)
	select {
	case <-ch:
	default:
		t.Fatal("After did not fire at its deadline")
	}
}

func TestFakeAfterNonPositive(t *testing.T) {
	fake := Fake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	select {
	case <-fake.After(0):
	default:
		t.Fatal("After(0) did not fire immediately")
	}
	if fake.PendingCount() != 0 {
		t.Fatalf("PendingCount() = %d, want 0", fake.PendingCount())
	}
}

func TestFakePendingCount(t *testing.T) {
	fake := Fake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	fake.After(time.Minute)
	fake.After(2 * time.Minute)
	if fake.PendingCount() != 2 {
		t.Fatalf("PendingCount() = %d, want 2", fake.PendingCount())
	}
	fake.Advance(time.Minute)
	if fake.PendingCount() != 1 {
		t.Fatalf("PendingCount() after Advance = %d, want 1", fake.PendingCount())
	}
}
