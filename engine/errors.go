// Copyright 2026 The Labsync Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import "fmt"

// ValidationError is a client-side precondition failure. It is raised
// synchronously, before any network call, and never changes engine
// state. Callers extract it with errors.As to distinguish it from
// server rejections and transport failures.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "engine: " + e.Reason
}

func validationf(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}
