// Copyright 2026 The Labsync Authors
// SPDX-License-Identifier: Apache-2.0

// Package schema defines the wire-level domain types shared by the
// labsync client: equipment items, issue requests, bills, and
// handouts, plus the request lifecycle vocabulary.
//
// Types here mirror the JSON shapes of the lab equipment API. They
// carry no behavior beyond identity, lifecycle predicates, and
// validation helpers; all synchronization logic lives in the engine
// and pagecache packages.
package schema
