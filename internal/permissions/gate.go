// Package permissions normalizes the platform's contact-discovery consent
// into a small state machine usable by the friend components.
package permissions

import (
	"context"
	"fmt"
	"sync"

	"github.com/fitshare-app/fitshare/internal/common"
	"github.com/fitshare-app/fitshare/internal/identity"
)

// State is the normalized consent state.
type State int

const (
	StateUnrequested State = iota
	StateGranted
	StateDenied
)

func (s State) String() string {
	switch s {
	case StateGranted:
		return "granted"
	case StateDenied:
		return "denied"
	default:
		return "unrequested"
	}
}

// Gate wraps the platform consent prompt. Any platform outcome outside
// granted/denied fails closed with ErrUnknownPermissionState; denial is a
// regular false result, never an error.
type Gate struct {
	mu   sync.Mutex
	disc identity.Discovery
}

func NewGate(disc identity.Discovery) *Gate {
	return &Gate{disc: disc}
}

// Request ensures consent has been asked for and reports whether it was
// granted. An already settled state is returned without prompting again.
func (g *Gate) Request(ctx context.Context) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	status, err := g.disc.PermissionStatus(ctx)
	if err != nil {
		return false, fmt.Errorf("permission status: %w", err)
	}
	if status == identity.PermissionUnrequested {
		status, err = g.disc.RequestPermission(ctx)
		if err != nil {
			return false, fmt.Errorf("permission request: %w", err)
		}
	}

	switch status {
	case identity.PermissionGranted:
		return true, nil
	case identity.PermissionDenied:
		return false, nil
	default:
		return false, common.ErrUnknownPermissionState
	}
}

// Status reports the current normalized state. It never prompts.
func (g *Gate) Status(ctx context.Context) (State, error) {
	status, err := g.disc.PermissionStatus(ctx)
	if err != nil {
		return StateUnrequested, fmt.Errorf("permission status: %w", err)
	}
	switch status {
	case identity.PermissionUnrequested:
		return StateUnrequested, nil
	case identity.PermissionGranted:
		return StateGranted, nil
	case identity.PermissionDenied:
		return StateDenied, nil
	default:
		return StateUnrequested, common.ErrUnknownPermissionState
	}
}
