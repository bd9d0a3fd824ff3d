// Copyright 2026 The Labsync Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"cmp"
	"slices"
	"time"

	"github.com/labfoundry/labsync/schema"
)

// The projectors below are pure functions over a request slice.
// Nothing they compute is stored; every caller recomputes from the
// authoritative collection, so a view can never drift from the truth.

// Tab names one of the staff screens' request filters.
type Tab string

const (
	TabPending   Tab = "pending"
	TabApproved  Tab = "approved"
	TabSubmitted Tab = "submitted"
	TabRejected  Tab = "rejected"
)

// FilterTab selects the requests belonging to a tab, preserving input
// order. The approved tab shows only approvals still awaiting
// handover; approvals that are submitted or need no handover belong to
// the submitted tab.
func FilterTab(requests []schema.IssueRequest, tab Tab) []schema.IssueRequest {
	out := make([]schema.IssueRequest, 0, len(requests))
	for _, r := range requests {
		if matchesTab(r, tab) {
			out = append(out, r)
		}
	}
	return out
}

func matchesTab(r schema.IssueRequest, tab Tab) bool {
	switch tab {
	case TabPending:
		return r.Status == schema.StatusPending
	case TabApproved:
		return r.Status == schema.StatusApproved &&
			r.EffectiveSubmission() == schema.SubmissionPending
	case TabSubmitted:
		return r.Status == schema.StatusApproved &&
			r.EffectiveSubmission() != schema.SubmissionPending
	case TabRejected:
		return r.Status == schema.StatusRejected
	default:
		return false
	}
}

// RequesterGroup summarizes one requester's requests for the grouped
// staff view.
type RequesterGroup struct {
	RequesterID   int64
	RequesterName string

	// Count is the number of requests in the group.
	Count int

	// Latest is the most recent lifecycle timestamp across the group;
	// groups sort by it, newest first.
	Latest time.Time

	// LastRemark is the remark on the most recently active request
	// that carries one.
	LastRemark string

	// Unread marks requesters with push messages not yet seen.
	Unread bool
}

// GroupByRequester folds requests into per-requester summaries, sorted
// newest first. The unread set flags groups with unseen messages.
func GroupByRequester(requests []schema.IssueRequest, unread map[int64]bool) []RequesterGroup {
	byRequester := make(map[int64]*RequesterGroup)
	remarkTime := make(map[int64]time.Time)
	order := make([]int64, 0)

	for _, r := range requests {
		group, ok := byRequester[r.RequesterID]
		if !ok {
			group = &RequesterGroup{
				RequesterID:   r.RequesterID,
				RequesterName: r.RequesterName,
				Unread:        unread[r.RequesterID],
			}
			byRequester[r.RequesterID] = group
			order = append(order, r.RequesterID)
		}
		group.Count++
		at := activityTime(r)
		if at.After(group.Latest) {
			group.Latest = at
			if group.RequesterName == "" {
				group.RequesterName = r.RequesterName
			}
		}
		if r.Remarks != "" && at.After(remarkTime[r.RequesterID]) {
			remarkTime[r.RequesterID] = at
			group.LastRemark = r.Remarks
		}
	}

	groups := make([]RequesterGroup, 0, len(order))
	for _, id := range order {
		groups = append(groups, *byRequester[id])
	}
	sortGroupsNewestFirst(groups)
	return groups
}

func sortGroupsNewestFirst(groups []RequesterGroup) {
	slices.SortFunc(groups, func(a, b RequesterGroup) int {
		if c := b.Latest.Compare(a.Latest); c != 0 {
			return c
		}
		return cmp.Compare(b.RequesterID, a.RequesterID)
	})
}

// PendingView is the pending tab grouped by requester, computed from
// the authoritative collection.
func (e *Engine) PendingView() []RequesterGroup {
	e.mu.Lock()
	defer e.mu.Unlock()

	pending := make([]schema.IssueRequest, 0, len(e.requests))
	for _, r := range e.requests {
		if matchesTab(r, TabPending) {
			pending = append(pending, r)
		}
	}
	return GroupByRequester(pending, e.unreadSnapshotLocked())
}

// TabView returns the requests for one tab, newest first.
func (e *Engine) TabView(tab Tab) []schema.IssueRequest {
	return FilterTab(e.Requests(), tab)
}
