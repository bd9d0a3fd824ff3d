// Copyright 2026 The Labsync Authors
// SPDX-License-Identifier: Apache-2.0

// Package durable provides implementations of pagecache.DurableStore,
// the best-effort persistence tier that hydrates cached pages across
// restarts.
//
// [SQLite] is the production implementation: a single WAL-mode SQLite
// database holding one row per partition key, with the CBOR payload
// compressed (zstd by default, lz4 or none selectable). SQLite is the
// right shape here because the access pattern is point reads and
// point writes by key with no queries across rows, and a single file
// survives restarts without a server.
//
// [Memory] is a map-backed implementation for tests and for running
// without a configured database path.
//
// Expired rows are not swept proactively: the pagecache treats rows
// older than its durable TTL as absent, and each Set overwrites the
// row in place, so garbage is bounded by the number of distinct
// partitions ever viewed.
package durable
