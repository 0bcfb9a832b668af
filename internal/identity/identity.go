// Package identity exposes the read contract of the handle registry.
//
// The registry itself is an external collaborator: claiming, address updates,
// and validation live outside the payment core. The core relies on the
// registry resolving each claimed handle to exactly one controlling address
// and keeping one level of address history.
package identity

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"
)

// ErrHandleNotFound indicates a handle that no address has claimed.
var ErrHandleNotFound = errors.New("handle is not claimed")

// ErrInvalidHandle indicates a malformed handle.
var ErrInvalidHandle = errors.New("handle is malformed")

// handlePattern matches 1-32 alphanumeric/underscore chars with a leading letter.
var handlePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]{0,31}$`)

// Record describes the address history of a claimed handle.
type Record struct {
	// Current is the controlling address. Never empty for a claimed handle.
	Current string
	// Previous is the address superseded by the most recent change.
	// Empty only when the handle has never changed hands.
	Previous string
	// LastChange is when Current was assigned.
	LastChange time.Time
}

// Registry resolves handles to controlling addresses.
type Registry interface {
	// Resolve returns the current controlling address for handle.
	// Returns ErrHandleNotFound when the handle is unclaimed.
	Resolve(ctx context.Context, handle string) (string, error)
	// HistoryOf returns the one-level address history for handle.
	// Returns ErrHandleNotFound when the handle is unclaimed.
	HistoryOf(ctx context.Context, handle string) (Record, error)
}

// NormalizeHandle trims and validates a handle.
func NormalizeHandle(handle string) (string, error) {
	handle = strings.TrimSpace(handle)
	if !handlePattern.MatchString(handle) {
		return "", ErrInvalidHandle
	}
	return handle, nil
}
