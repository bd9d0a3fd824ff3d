// Copyright 2026 The Labsync Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import "time"

// Bill is one financial bill tracked per fiscal year.
type Bill struct {
	ID int64 `json:"id"`

	// FinancialYear is the partition the bill belongs to, in the
	// server's "2025-26" notation. Events carrying a bill route to
	// the cache partition for this year, not to whatever partition
	// the client happens to be viewing.
	FinancialYear string `json:"financial_year"`

	Number    string    `json:"number"`
	Vendor    string    `json:"vendor,omitempty"`
	Amount    int64     `json:"amount"` // paise; the server never sends fractions
	Details   string    `json:"details,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// RecordID implements pagecache.Record.
func (b Bill) RecordID() int64 { return b.ID }

// Handout is one lab handout (equipment given out against a bill or
// teaching need), tracked alongside bills on the billing channel.
type Handout struct {
	ID int64 `json:"id"`

	FinancialYear string `json:"financial_year"`

	ItemName  string    `json:"item_name"`
	Quantity  int       `json:"quantity"`
	IssuedTo  string    `json:"issued_to,omitempty"`
	Details   string    `json:"details,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// RecordID implements pagecache.Record.
func (h Handout) RecordID() int64 { return h.ID }
