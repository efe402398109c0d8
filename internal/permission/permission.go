// SPDX-License-Identifier: MIT

// Package permission models the microphone permission prompt that must
// be answered before capture starts.
package permission

import (
	"context"

	"micscope/internal/config"
)

// Checker asks for microphone access.
type Checker interface {
	// Request reports whether capture may start. An error means the
	// question could not be asked; it is treated as a denial.
	Request(ctx context.Context) (bool, error)
}

// Static answers every request with the same decision.
type Static bool

// Request returns the fixed decision unless ctx is already done.
func (s Static) Request(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return bool(s), nil
}

// FromConfig maps the audio.permission setting to a Checker.
func FromConfig(answer string) Checker {
	return Static(answer != config.PermissionDenied)
}

// Func adapts a function to the Checker interface.
type Func func(ctx context.Context) (bool, error)

// Request calls f.
func (f Func) Request(ctx context.Context) (bool, error) {
	return f(ctx)
}
