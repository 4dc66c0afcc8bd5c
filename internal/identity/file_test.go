package identity

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFileDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contacts.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"name": "Ben", "user": "user-b"},
		{"name": "No Account", "user": ""}
	]`), 0o600))

	d := NewFileDirectory(path)
	ctx := context.Background()

	status, err := d.PermissionStatus(ctx)
	require.NoError(t, err)
	require.Equal(t, PermissionUnrequested, status)

	_, err = d.DiscoverAll(ctx)
	require.Error(t, err, "discovery before consent must fail")

	status, err = d.RequestPermission(ctx)
	require.NoError(t, err)
	require.Equal(t, PermissionGranted, status)

	ids, err := d.DiscoverAll(ctx)
	require.NoError(t, err)
	require.Len(t, ids, 2)
	require.Equal(t, "Ben", ids[0].Name)
	require.Empty(t, ids[1].User)
}

func TestFileDirectory_NoPathIsDenied(t *testing.T) {
	d := NewFileDirectory("")
	status, err := d.RequestPermission(context.Background())
	require.NoError(t, err)
	require.Equal(t, PermissionDenied, status)
}
