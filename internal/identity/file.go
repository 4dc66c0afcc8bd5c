package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/fitshare-app/fitshare/internal/recordstore"
)

// Unavailable is a Discovery for headless environments without a contact
// book. Consent reports denied and nothing resolves.
type Unavailable struct{}

func (Unavailable) RequestPermission(ctx context.Context) (PermissionStatus, error) {
	return PermissionDenied, nil
}

func (Unavailable) PermissionStatus(ctx context.Context) (PermissionStatus, error) {
	return PermissionDenied, nil
}

func (Unavailable) DiscoverAll(ctx context.Context) ([]Identity, error) {
	return nil, nil
}

type fileContact struct {
	Name string `json:"name"`
	User string `json:"user"`
}

// FileDirectory resolves contacts from a JSON file, standing in for the
// platform contact book. Consent stays unrequested until RequestPermission
// is called; a missing path means the request is denied.
type FileDirectory struct {
	Path string

	mu     sync.Mutex
	status PermissionStatus
}

func NewFileDirectory(path string) *FileDirectory {
	return &FileDirectory{Path: path}
}

func (d *FileDirectory) RequestPermission(ctx context.Context) (PermissionStatus, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Path == "" {
		d.status = PermissionDenied
	} else {
		d.status = PermissionGranted
	}
	return d.status, nil
}

func (d *FileDirectory) PermissionStatus(ctx context.Context) (PermissionStatus, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status, nil
}

func (d *FileDirectory) DiscoverAll(ctx context.Context) ([]Identity, error) {
	d.mu.Lock()
	status := d.status
	d.mu.Unlock()
	if status != PermissionGranted {
		return nil, fmt.Errorf("contacts access not granted")
	}

	data, err := os.ReadFile(d.Path)
	if err != nil {
		return nil, fmt.Errorf("read contacts file: %w", err)
	}
	var contacts []fileContact
	if err := json.Unmarshal(data, &contacts); err != nil {
		return nil, fmt.Errorf("parse contacts file: %w", err)
	}

	out := make([]Identity, 0, len(contacts))
	for _, c := range contacts {
		out = append(out, Identity{Name: c.Name, User: recordstore.UserRef(c.User)})
	}
	return out, nil
}
