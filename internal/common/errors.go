// Package common defines shared sentinel errors and small helpers used
// across fitshare components. Callers should use errors.Is to match the
// sentinel values.
package common

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// Store-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal = errors.New("internal error")

	// ErrorUnknown reports an unexpected empty or absent store result
	// where one was required, such as a share whose root record is gone.
	ErrorUnknown = errors.New("unknown error")

	// Discovery permission errors. The permission gate fails closed:
	// anything that is not an explicit grant or denial surfaces as
	// ErrUnknownPermissionState.
	ErrInsufficientPermissions = errors.New("insufficient permissions")
	ErrUnknownPermissionState  = errors.New("unknown permission state")

	// Precondition errors (operation invoked out of order).
	ErrShareNotInitialized     = errors.New("share not initialized")
	ErrShareAlreadyInitialized = errors.New("share already initialized")
	ErrProfileNotBootstrapped  = errors.New("profile not bootstrapped")

	// Share errors.
	ErrInvalidShareURL = errors.New("invalid share url")
)

// ResolutionError reports user references whose identity lookup failed
// while the rest of the batch succeeded. The successfully resolved part of
// the batch is not rolled back; callers may re-invoke for the failed subset.
type ResolutionError struct {
	Failed []string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("could not resolve participants: %s", strings.Join(e.Failed, ", "))
}
