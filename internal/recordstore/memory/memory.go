// Package memory implements the recordstore contract in process memory.
// It backs unit tests and local development: one Backend is the shared
// container, and Client returns a handle bound to a single user, mirroring
// how the remote store authenticates callers.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/fitshare-app/fitshare/internal/common"
	"github.com/fitshare-app/fitshare/internal/recordstore"
	"github.com/fitshare-app/fitshare/internal/recordstore/sharetoken"
	"github.com/google/uuid"
)

type subscription struct {
	user  recordstore.UserRef
	scope recordstore.Scope
	query recordstore.Query
	ch    chan struct{}
}

// Backend is a shared in-memory record store container.
//
// The FailNext* fields let tests inject a single failure into the next
// matching operation; they are consumed on use.
type Backend struct {
	mu sync.Mutex

	baseURL string
	secret  []byte

	private    map[recordstore.UserRef]map[recordstore.RecordID]*recordstore.Record
	public     map[recordstore.RecordID]*recordstore.Record
	zones      map[recordstore.UserRef][]string
	shares     map[recordstore.RecordID]*recordstore.Share
	identities map[recordstore.UserRef]struct{}
	subs       []*subscription

	FailNextSave       error
	FailNextSaveAll    error
	FailNextSaveShared error
	FailNextSaveShare  error
}

// New creates an empty backend. Share capability URLs are minted under
// baseURL and signed with secretKey.
func New(baseURL string, secretKey []byte) *Backend {
	return &Backend{
		baseURL:    baseURL,
		secret:     append([]byte(nil), secretKey...),
		private:    make(map[recordstore.UserRef]map[recordstore.RecordID]*recordstore.Record),
		public:     make(map[recordstore.RecordID]*recordstore.Record),
		zones:      make(map[recordstore.UserRef][]string),
		shares:     make(map[recordstore.RecordID]*recordstore.Share),
		identities: make(map[recordstore.UserRef]struct{}),
	}
}

// AddIdentity registers a user reference as discoverable for participant
// lookup. Unregistered references fail resolution.
func (b *Backend) AddIdentity(user recordstore.UserRef) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.identities[user] = struct{}{}
}

// Client returns a store handle bound to the given user.
func (b *Backend) Client(user recordstore.UserRef) recordstore.Store {
	return &client{backend: b, user: user}
}

// ZoneCount returns how many private zones the user has created. Exposed
// for tests guarding against duplicate share zones.
func (b *Backend) ZoneCount(user recordstore.UserRef) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.zones[user])
}

func (b *Backend) bucket(user recordstore.UserRef, scope recordstore.Scope) map[recordstore.RecordID]*recordstore.Record {
	if scope == recordstore.ScopePublic {
		return b.public
	}
	p, ok := b.private[user]
	if !ok {
		p = make(map[recordstore.RecordID]*recordstore.Record)
		b.private[user] = p
	}
	return p
}

// notifyCreated fans a hint out to creation subscriptions matching the
// record. Hints are coalesced: a subscriber that has not drained its
// channel yet does not receive another one.
func (b *Backend) notifyCreated(scope recordstore.Scope, rec *recordstore.Record) {
	for _, sub := range b.subs {
		if sub.scope != scope || !sub.query.Matches(rec) {
			continue
		}
		select {
		case sub.ch <- struct{}{}:
		default:
		}
	}
}

type client struct {
	backend *Backend
	user    recordstore.UserRef
}

func (c *client) User() recordstore.UserRef { return c.user }

func (c *client) CreateZone(ctx context.Context, name string) (string, error) {
	b := c.backend
	b.mu.Lock()
	defer b.mu.Unlock()

	zoneID := fmt.Sprintf("%s-%s", name, uuid.NewString())
	b.zones[c.user] = append(b.zones[c.user], zoneID)
	return zoneID, nil
}

func (c *client) Save(ctx context.Context, scope recordstore.Scope, rec *recordstore.Record) error {
	b := c.backend
	b.mu.Lock()
	if err := b.FailNextSave; err != nil {
		b.FailNextSave = nil
		b.mu.Unlock()
		return err
	}
	bucket := b.bucket(c.user, scope)
	_, existed := bucket[rec.ID]
	bucket[rec.ID] = rec.Clone()
	if !existed {
		b.notifyCreated(scope, rec)
	}
	b.mu.Unlock()
	return nil
}

func (c *client) SaveAll(ctx context.Context, scope recordstore.Scope, recs ...*recordstore.Record) error {
	b := c.backend
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.FailNextSaveAll; err != nil {
		b.FailNextSaveAll = nil
		return err
	}

	// All-or-none: validate first, then apply.
	for _, rec := range recs {
		if rec.ID == "" {
			return fmt.Errorf("record without id: %w", common.ErrorInternal)
		}
	}
	bucket := b.bucket(c.user, scope)
	for _, rec := range recs {
		_, existed := bucket[rec.ID]
		bucket[rec.ID] = rec.Clone()
		if !existed {
			b.notifyCreated(scope, rec)
		}
	}
	return nil
}

func (c *client) Fetch(ctx context.Context, scope recordstore.Scope, id recordstore.RecordID) (*recordstore.Record, error) {
	b := c.backend
	b.mu.Lock()
	defer b.mu.Unlock()

	rec, ok := b.bucket(c.user, scope)[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return rec.Clone(), nil
}

func (c *client) Query(ctx context.Context, scope recordstore.Scope, q recordstore.Query) ([]*recordstore.Record, error) {
	b := c.backend
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []*recordstore.Record
	for _, rec := range b.bucket(c.user, scope) {
		if q.Matches(rec) {
			out = append(out, rec.Clone())
		}
	}
	return out, nil
}

func (c *client) Delete(ctx context.Context, scope recordstore.Scope, id recordstore.RecordID) error {
	b := c.backend
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.bucket(c.user, scope), id)
	return nil
}

func (c *client) Subscribe(ctx context.Context, scope recordstore.Scope, q recordstore.Query) (<-chan struct{}, error) {
	b := c.backend
	b.mu.Lock()
	sub := &subscription{user: c.user, scope: scope, query: q, ch: make(chan struct{}, 1)}
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		for i, s := range b.subs {
			if s == sub {
				b.subs = append(b.subs[:i], b.subs[i+1:]...)
				break
			}
		}
		b.mu.Unlock()
		close(sub.ch)
	}()

	return sub.ch, nil
}

func (c *client) SaveShared(ctx context.Context, root *recordstore.Record, share *recordstore.Share) error {
	b := c.backend
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.FailNextSaveShared; err != nil {
		b.FailNextSaveShared = nil
		return err
	}
	if share.RootID != root.ID {
		return fmt.Errorf("share root mismatch: %w", common.ErrorInternal)
	}

	url, err := sharetoken.MintURL(b.baseURL, string(share.ID), b.secret)
	if err != nil {
		return err
	}

	// Root and share land together or not at all.
	saved := *share
	saved.Owner = c.user
	saved.URL = url
	b.bucket(c.user, recordstore.ScopePrivate)[root.ID] = root.Clone()
	b.shares[share.ID] = &saved

	share.Owner = saved.Owner
	share.URL = saved.URL
	return nil
}

func (c *client) SaveShare(ctx context.Context, share *recordstore.Share) error {
	b := c.backend
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.FailNextSaveShare; err != nil {
		b.FailNextSaveShare = nil
		return err
	}
	stored, ok := b.shares[share.ID]
	if !ok {
		return common.ErrorNotFound
	}
	if stored.Owner != c.user {
		return common.ErrInsufficientPermissions
	}

	saved := *share
	saved.Owner = stored.Owner
	saved.URL = stored.URL
	saved.Participants = append([]recordstore.Participant(nil), share.Participants...)
	b.shares[share.ID] = &saved
	return nil
}

func (c *client) FetchParticipants(ctx context.Context, users []recordstore.UserRef) ([]recordstore.Participant, error) {
	b := c.backend
	b.mu.Lock()
	defer b.mu.Unlock()

	var participants []recordstore.Participant
	var failed []string
	for _, u := range users {
		if _, ok := b.identities[u]; !ok {
			failed = append(failed, string(u))
			continue
		}
		participants = append(participants, recordstore.Participant{User: u})
	}
	if len(failed) > 0 {
		return participants, &common.ResolutionError{Failed: failed}
	}
	return participants, nil
}

func (c *client) ResolveShare(ctx context.Context, url string) (*recordstore.ShareMetadata, error) {
	b := c.backend
	b.mu.Lock()
	defer b.mu.Unlock()

	shareID, err := sharetoken.ParseURL(url, b.secret)
	if err != nil {
		return nil, err
	}
	share, ok := b.shares[recordstore.RecordID(shareID)]
	if !ok {
		return nil, common.ErrorNotFound
	}

	copied := *share
	copied.Participants = append([]recordstore.Participant(nil), share.Participants...)
	meta := &recordstore.ShareMetadata{Share: &copied}

	// The URL itself is the capability: any holder resolves the metadata,
	// root record included.
	root, ok := b.private[share.Owner][share.RootID]
	if !ok {
		return nil, fmt.Errorf("share %s has no root record: %w", share.ID, common.ErrorUnknown)
	}
	meta.Root = root.Clone()
	return meta, nil
}

func (c *client) AcceptShare(ctx context.Context, meta *recordstore.ShareMetadata) error {
	b := c.backend
	b.mu.Lock()
	defer b.mu.Unlock()

	share, ok := b.shares[meta.Share.ID]
	if !ok {
		return common.ErrorNotFound
	}
	for i, p := range share.Participants {
		if p.User == c.user {
			// Accepting twice is a no-op.
			share.Participants[i].Accepted = true
			return nil
		}
	}
	return common.ErrInsufficientPermissions
}
