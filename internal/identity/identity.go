// Package identity abstracts the platform's contact discovery facility:
// asking the user for consent and resolving the contact book into platform
// identities with optional user record references.
package identity

import (
	"context"

	"github.com/fitshare-app/fitshare/internal/recordstore"
)

// PermissionStatus is the raw consent state reported by the platform.
// Platforms may report values outside the named constants (restricted,
// provisional and the like); callers treat those as unknown.
type PermissionStatus int

const (
	PermissionUnrequested PermissionStatus = iota
	PermissionGranted
	PermissionDenied
)

// Identity is one discovered contact. User is empty when the contact has
// no account on the platform.
type Identity struct {
	Name string
	User recordstore.UserRef
}

// Discovery is the platform contact-discovery contract.
type Discovery interface {
	// RequestPermission prompts the user for discovery consent and
	// returns the resulting status.
	RequestPermission(ctx context.Context) (PermissionStatus, error)
	// PermissionStatus returns the current consent state without
	// prompting.
	PermissionStatus(ctx context.Context) (PermissionStatus, error)
	// DiscoverAll resolves the contact book into platform identities.
	DiscoverAll(ctx context.Context) ([]Identity, error)
}
