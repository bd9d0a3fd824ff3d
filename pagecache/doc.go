// Copyright 2026 The Labsync Authors
// SPDX-License-Identifier: Apache-2.0

// Package pagecache implements a partitioned, paginated cache with
// stale-while-revalidate semantics and a two-tier (memory + durable)
// backing.
//
// A partition is identified by a [Key]: the normalized combination of
// a resource name and its filter/pagination parameters. Each partition
// holds one [Page] of records. The memory tier answers within-session
// reads; the durable tier (see the durable package) hydrates pages
// instantly across restarts, bounded by a longer TTL.
//
// Three idempotent mutation operations — [Store.UpsertFront],
// [Store.ReplaceByID], [Store.RemoveByID] — are the only way cached
// pages change outside of a revalidation. They are sufficient to
// express every create/update/delete reconciliation without a
// refetch, which is what keeps perceived latency near zero.
//
// The [Coordinator] deduplicates background refreshes: at most one
// network fetch is outstanding per key at any time. Failed refreshes
// leave the stale value in place (stale-while-error).
//
// The package knows nothing about domain types beyond the [Record]
// identity interface.
package pagecache
