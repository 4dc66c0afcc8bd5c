package cli

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/fitshare-app/fitshare/internal/friends"
	"github.com/fitshare-app/fitshare/internal/identity"
	"github.com/fitshare-app/fitshare/internal/logging"
	"github.com/fitshare-app/fitshare/internal/models"
	"github.com/fitshare-app/fitshare/internal/permissions"
	"github.com/fitshare-app/fitshare/internal/profiles"
	"github.com/fitshare-app/fitshare/internal/recordstore"
	"github.com/fitshare-app/fitshare/internal/recordstore/memory"
	"github.com/stretchr/testify/require"
)

type stubDiscovery struct {
	status identity.PermissionStatus
	ids    []identity.Identity
}

func (d *stubDiscovery) RequestPermission(ctx context.Context) (identity.PermissionStatus, error) {
	return d.status, nil
}

func (d *stubDiscovery) PermissionStatus(ctx context.Context) (identity.PermissionStatus, error) {
	return d.status, nil
}

func (d *stubDiscovery) DiscoverAll(ctx context.Context) ([]identity.Identity, error) {
	return d.ids, nil
}

// newCmdApp wires the command layer over the in-memory backend. The db,
// backend and pictures fields stay nil: no tested command touches them.
func newCmdApp(t *testing.T, b *memory.Backend, user recordstore.UserRef, out *bytes.Buffer) *App {
	t.Helper()
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	disc := &stubDiscovery{status: identity.PermissionGranted}
	store := b.Client(user)
	return &App{
		logger:   logger,
		store:    store,
		friends:  friends.NewService(store, disc, permissions.NewGate(disc), logger),
		profiles: profiles.NewService(store, logger),
		out:      out,
	}
}

func seedUser(t *testing.T, b *memory.Backend, user recordstore.UserRef, name string) {
	t.Helper()
	b.AddIdentity(user)
	p := &models.PrivateProfile{
		ID:       models.PrivateProfileID(user),
		Name:     name,
		Username: strings.ToLower(name),
	}
	require.NoError(t, b.Client(user).Save(context.Background(), recordstore.ScopePrivate, p.Record()))
}

func TestAppShareAndProfile(t *testing.T) {
	b := memory.New("https://store.test", []byte("k"))
	seedUser(t, b, "user-a", "Anna")
	var out bytes.Buffer
	app := newCmdApp(t, b, "user-a", &out)
	ctx := context.Background()

	require.NoError(t, app.Share(ctx))
	require.Contains(t, out.String(), "Sharing established.")

	out.Reset()
	require.NoError(t, app.Profile(ctx))
	got := out.String()
	require.Contains(t, got, "Name:     Anna")
	require.Contains(t, got, "Share:    https://store.test/share/")
	require.Contains(t, got, "Friends:  0")
}

func TestAppInviteRequestsAccept(t *testing.T) {
	b := memory.New("https://store.test", []byte("k"))
	seedUser(t, b, "user-a", "Anna")
	seedUser(t, b, "user-b", "Ben")
	var outA, outB bytes.Buffer
	appA := newCmdApp(t, b, "user-a", &outA)
	appB := newCmdApp(t, b, "user-b", &outB)
	ctx := context.Background()

	require.NoError(t, appA.Share(ctx))
	require.NoError(t, appB.Share(ctx))

	require.NoError(t, appA.Invite(ctx, []string{"user-b"}))
	require.Contains(t, outA.String(), "Invited 1 user(s).")

	outB.Reset()
	require.NoError(t, appB.Requests(ctx, []string{"received"}))
	lines := strings.Split(strings.TrimSpace(outB.String()), "\n")
	require.Len(t, lines, 1)
	require.Contains(t, lines[0], "user-a -> user-b")
	require.Contains(t, lines[0], "[pending]")

	id := strings.Fields(lines[0])[0]
	outB.Reset()
	require.NoError(t, appB.Accept(ctx, []string{id}))
	require.Contains(t, outB.String(), "Accepted friend request from user-a.")

	outB.Reset()
	require.NoError(t, appB.Requests(ctx, []string{"received"}))
	require.Contains(t, outB.String(), "[accepted]")

	outB.Reset()
	require.NoError(t, appB.Friends(ctx))
	require.Contains(t, outB.String(), "Anna (@anna)")

	// Anna folds the acceptance in and sees Ben.
	outA.Reset()
	require.NoError(t, appA.Reconcile(ctx))
	require.NoError(t, appA.Friends(ctx))
	require.Contains(t, outA.String(), "Ben (@ben)")
}

func TestAppInviteUnresolvedUser(t *testing.T) {
	b := memory.New("https://store.test", []byte("k"))
	seedUser(t, b, "user-a", "Anna")
	var out bytes.Buffer
	app := newCmdApp(t, b, "user-a", &out)
	ctx := context.Background()

	require.NoError(t, app.Share(ctx))
	require.NoError(t, app.Invite(ctx, []string{"user-ghost"}))
	require.Contains(t, out.String(), "Could not resolve: [user-ghost]")
}

func TestAppSetAndPublic(t *testing.T) {
	b := memory.New("https://store.test", []byte("k"))
	seedUser(t, b, "user-a", "Anna")
	var out bytes.Buffer
	app := newCmdApp(t, b, "user-a", &out)
	ctx := context.Background()

	// No public projection yet; public bootstraps one.
	require.NoError(t, app.Public(ctx))
	require.Contains(t, out.String(), "Public profile created.")

	out.Reset()
	require.NoError(t, app.Set(ctx, []string{"bio", "long", "distance", "runner"}))
	require.Contains(t, out.String(), "Profile updated.")

	out.Reset()
	require.NoError(t, app.Profile(ctx))
	require.Contains(t, out.String(), "Bio:      long distance runner")

	require.Error(t, app.Set(ctx, []string{"shoesize", "44"}))
	require.Error(t, app.Set(ctx, []string{"bio"}))

	out.Reset()
	require.NoError(t, app.Private(ctx))
	require.Contains(t, out.String(), "Profile is now private.")
}

func TestAppRequestsBadType(t *testing.T) {
	b := memory.New("https://store.test", []byte("k"))
	seedUser(t, b, "user-a", "Anna")
	var out bytes.Buffer
	app := newCmdApp(t, b, "user-a", &out)

	require.Error(t, app.Requests(context.Background(), []string{"bogus"}))
	require.NoError(t, app.Requests(context.Background(), nil))
	require.Contains(t, out.String(), "No friend requests.")
}
