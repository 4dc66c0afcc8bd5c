package permissions

import (
	"context"
	"errors"
	"testing"

	"github.com/fitshare-app/fitshare/internal/common"
	"github.com/fitshare-app/fitshare/internal/identity"
	"github.com/stretchr/testify/require"
)

type fakeDiscovery struct {
	status       identity.PermissionStatus
	statusErr    error
	requestTo    identity.PermissionStatus
	requestErr   error
	requestCalls int
}

func (f *fakeDiscovery) RequestPermission(ctx context.Context) (identity.PermissionStatus, error) {
	f.requestCalls++
	if f.requestErr != nil {
		return 0, f.requestErr
	}
	f.status = f.requestTo
	return f.status, nil
}

func (f *fakeDiscovery) PermissionStatus(ctx context.Context) (identity.PermissionStatus, error) {
	if f.statusErr != nil {
		return 0, f.statusErr
	}
	return f.status, nil
}

func (f *fakeDiscovery) DiscoverAll(ctx context.Context) ([]identity.Identity, error) {
	return nil, nil
}

func TestRequest(t *testing.T) {
	tests := []struct {
		name        string
		disc        fakeDiscovery
		want        bool
		wantErr     error
		wantPrompts int
	}{
		{"prompt then granted", fakeDiscovery{requestTo: identity.PermissionGranted}, true, nil, 1},
		{"prompt then denied", fakeDiscovery{requestTo: identity.PermissionDenied}, false, nil, 1},
		{"already granted skips prompt", fakeDiscovery{status: identity.PermissionGranted}, true, nil, 0},
		{"already denied skips prompt", fakeDiscovery{status: identity.PermissionDenied}, false, nil, 0},
		{"unknown platform outcome fails closed", fakeDiscovery{requestTo: identity.PermissionStatus(42)}, false, common.ErrUnknownPermissionState, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGate(&tt.disc)
			got, err := g.Request(context.Background())
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				require.Equal(t, tt.want, got)
			}
			require.Equal(t, tt.wantPrompts, tt.disc.requestCalls)
		})
	}
}

func TestRequest_PlatformErrorIsNotDenial(t *testing.T) {
	wantErr := errors.New("transport down")
	g := NewGate(&fakeDiscovery{statusErr: wantErr})
	_, err := g.Request(context.Background())
	require.ErrorIs(t, err, wantErr)
}

func TestStatus_NeverPrompts(t *testing.T) {
	disc := &fakeDiscovery{status: identity.PermissionUnrequested}
	g := NewGate(disc)

	got, err := g.Status(context.Background())
	require.NoError(t, err)
	require.Equal(t, StateUnrequested, got)
	require.Zero(t, disc.requestCalls)

	disc.status = identity.PermissionGranted
	got, err = g.Status(context.Background())
	require.NoError(t, err)
	require.Equal(t, StateGranted, got)

	disc.status = identity.PermissionStatus(42)
	_, err = g.Status(context.Background())
	require.ErrorIs(t, err, common.ErrUnknownPermissionState)
	require.Zero(t, disc.requestCalls)
}
