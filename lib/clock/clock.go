// Copyright 2026 The Labsync Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts time for testability. Production code
// injects Real(); tests inject Fake() and advance time explicitly.
// Every TTL comparison and generated timestamp in labsync goes
// through an injected Clock so that freshness-boundary tests are
// deterministic.
package clock

import "time"

// Clock provides the time operations labsync needs: current time,
// one-shot waits, and sleeps. Code that calls time.Now or time.Sleep
// directly cannot be tested at TTL boundaries, so it must take a
// Clock instead.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that receives the current time after
	// duration d elapses. If d <= 0 the channel receives
	// immediately.
	After(d time.Duration) <-chan time.Time

	// Sleep pauses the calling goroutine for at least duration d.
	Sleep(d time.Duration)
}

// Real returns a Clock backed by the standard time package.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

func (realClock) Sleep(d time.Duration) { time.Sleep(d) }
