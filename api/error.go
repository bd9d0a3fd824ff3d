// Copyright 2026 The Labsync Authors
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a structured rejection from the server (the 4xx/5xx
// {detail} shape). Transport-level failures are never an *Error.
// Callers extract it with errors.As:
//
//	var apiErr *api.Error
//	if errors.As(err, &apiErr) && apiErr.StatusCode == 409 { ... }
type Error struct {
	// Detail is the human-readable reason from the server.
	Detail string `json:"detail"`
	// StatusCode is the HTTP status of the response.
	StatusCode int `json:"-"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("api: server rejected request (%d): %s", e.StatusCode, e.Detail)
}

// IsClientRejection reports whether err is a server rejection with a
// 4xx status. Used by the engine to classify an expected-and-benign
// submit rejection (consumables auto-submit server-side).
func IsClientRejection(err error) bool {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode >= http.StatusBadRequest && apiErr.StatusCode < http.StatusInternalServerError
}
