// Package friends implements the invitation state machine: establishing a
// user's shareable data root, granting counterparties read access, publishing
// and consuming the public invitation index, and reconciling accepted
// invitations into the durable friend list.
package friends

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/fitshare-app/fitshare/internal/common"
	"github.com/fitshare-app/fitshare/internal/identity"
	"github.com/fitshare-app/fitshare/internal/logging"
	"github.com/fitshare-app/fitshare/internal/models"
	"github.com/fitshare-app/fitshare/internal/permissions"
	"github.com/fitshare-app/fitshare/internal/recordstore"
	"github.com/google/uuid"
)

// RequestType selects which side of the invitation index to fetch.
type RequestType int

const (
	RequestsAll RequestType = iota
	RequestsSent
	RequestsReceived
)

// Service owns the friend graph of the store handle's user. Share
// mutations (BeginSharing, Invite) are serialized by an internal mutex;
// everything else may run concurrently.
type Service struct {
	shareMu sync.Mutex

	store recordstore.Store
	disc  identity.Discovery
	gate  *permissions.Gate
	log   logging.Logger
}

func NewService(store recordstore.Store, disc identity.Discovery, gate *permissions.Gate, log logging.Logger) *Service {
	return &Service{
		store: store,
		disc:  disc,
		gate:  gate,
		log:   log.With("component", "friends"),
	}
}

func (s *Service) loadProfile(ctx context.Context) (*models.PrivateProfile, error) {
	rec, err := s.store.Fetch(ctx, recordstore.ScopePrivate, models.PrivateProfileID(s.store.User()))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrProfileNotBootstrapped
		}
		return nil, fmt.Errorf("fetch private profile: %w", err)
	}
	return models.PrivateProfileFromRecord(rec), nil
}

func (s *Service) saveProfile(ctx context.Context, p *models.PrivateProfile) error {
	if err := s.store.Save(ctx, recordstore.ScopePrivate, p.Record()); err != nil {
		return fmt.Errorf("save private profile: %w", err)
	}
	return nil
}

// BeginSharing lazily establishes the user's share: a dedicated zone, a
// shared profile root copying the current display fields, and a share over
// that root with public permission none. The root and the share are saved
// atomically, and only after that does the capability URL land on the
// private profile. A second call fails with ErrShareAlreadyInitialized and
// never creates a second zone.
func (s *Service) BeginSharing(ctx context.Context) error {
	s.shareMu.Lock()
	defer s.shareMu.Unlock()

	profile, err := s.loadProfile(ctx)
	if err != nil {
		return err
	}
	if profile.ShareURL != "" {
		return common.ErrShareAlreadyInitialized
	}

	zoneID, err := s.store.CreateZone(ctx, "friend-share")
	if err != nil {
		return fmt.Errorf("create share zone: %w", err)
	}

	root := (&models.SharedProfile{
		ID:         recordstore.RecordID(uuid.NewString()),
		Zone:       zoneID,
		Name:       profile.Name,
		Username:   profile.Username,
		Bio:        profile.Bio,
		PictureURL: profile.PictureURL,
	}).Record()
	share := recordstore.NewShare(root)

	if err := s.store.SaveShared(ctx, root, share); err != nil {
		return fmt.Errorf("save share: %w", err)
	}

	profile.ShareURL = share.URL
	if err := s.saveProfile(ctx, profile); err != nil {
		return err
	}
	s.log.Info(ctx, "sharing established", "zone", zoneID, "share", share.ID)
	return nil
}

// Invite grants each user read access to the caller's share and then
// publishes one invitation per invitee into the public index. The grant
// save strictly precedes invitation visibility. Identity lookups that fail
// do not abort the batch: resolved users are granted and invited, and the
// failures are reported through a *common.ResolutionError alongside.
// Grants already made are not rolled back when later steps fail.
func (s *Service) Invite(ctx context.Context, users []recordstore.UserRef) error {
	s.shareMu.Lock()
	defer s.shareMu.Unlock()

	profile, err := s.loadProfile(ctx)
	if err != nil {
		return err
	}
	if profile.ShareURL == "" {
		return common.ErrShareNotInitialized
	}

	meta, err := s.store.ResolveShare(ctx, profile.ShareURL)
	if err != nil {
		return fmt.Errorf("resolve own share: %w", err)
	}
	share := meta.Share

	participants, resErr := s.store.FetchParticipants(ctx, users)
	if resErr != nil {
		var re *common.ResolutionError
		if !errors.As(resErr, &re) {
			return fmt.Errorf("resolve participants: %w", resErr)
		}
		s.log.Warn(ctx, "some participants did not resolve", "failed", re.Failed)
	}
	if len(participants) == 0 {
		return resErr
	}

	for _, p := range participants {
		p.Permission = recordstore.PermissionReadOnly
		share.AddParticipant(p)
	}
	if err := s.store.SaveShare(ctx, share); err != nil {
		return fmt.Errorf("save participant grants: %w", err)
	}

	for _, p := range participants {
		inv := &models.Invitation{
			ID:              recordstore.RecordID(uuid.NewString()),
			Inviter:         s.store.User(),
			InviterPublicID: profile.PublicProfileID,
			Invitee:         p.User,
			InviterShareURL: profile.ShareURL,
		}
		if err := s.store.Save(ctx, recordstore.ScopePublic, inv.Record()); err != nil {
			// The grant stays; the inviter re-invites the failed subset.
			return fmt.Errorf("publish invitation for %s: %w", p.User, err)
		}
	}
	return resErr
}

// FetchFriendRequests returns the invitation records visible to this user:
// sent (inviter is self), received (invitee is self) or an unfiltered scan.
// Order is unspecified.
func (s *Service) FetchFriendRequests(ctx context.Context, typ RequestType) ([]*models.Invitation, error) {
	q := recordstore.Query{Type: models.TypeInvitation}
	switch typ {
	case RequestsSent:
		q.Filters = []recordstore.Filter{{Field: models.FieldInviter, Value: string(s.store.User())}}
	case RequestsReceived:
		q.Filters = []recordstore.Filter{{Field: models.FieldInvitee, Value: string(s.store.User())}}
	}

	recs, err := s.store.Query(ctx, recordstore.ScopePublic, q)
	if err != nil {
		return nil, fmt.Errorf("query invitations: %w", err)
	}
	out := make([]*models.Invitation, 0, len(recs))
	for _, rec := range recs {
		out = append(out, models.InvitationFromRecord(rec))
	}
	return out, nil
}

// AcceptFriendRequest accepts the inviter's share, appends its URL to the
// invitee's accepted set, and then marks the invitation accepted with the
// invitee's own share URL stamped on it. The invitee must have begun
// sharing first: an accepted invitation always carries a non-empty
// invitee share URL, otherwise reconciliation has nothing to fold in.
// The share accept is idempotent, so re-running a half-finished accept
// converges.
func (s *Service) AcceptFriendRequest(ctx context.Context, inv *models.Invitation) error {
	profile, err := s.loadProfile(ctx)
	if err != nil {
		return err
	}
	if profile.ShareURL == "" {
		return common.ErrShareNotInitialized
	}

	meta, err := s.store.ResolveShare(ctx, inv.InviterShareURL)
	if err != nil {
		return fmt.Errorf("resolve inviter share: %w", err)
	}
	if err := s.store.AcceptShare(ctx, meta); err != nil {
		return fmt.Errorf("accept share: %w", err)
	}

	profile, err = s.loadProfile(ctx)
	if err != nil {
		return err
	}
	profile.AddFriendURL(inv.InviterShareURL)
	if err := s.saveProfile(ctx, profile); err != nil {
		return err
	}

	inv.Accepted = true
	inv.InviteeShareURL = profile.ShareURL
	if err := s.store.Save(ctx, recordstore.ScopePublic, inv.Record()); err != nil {
		return fmt.Errorf("mark invitation accepted: %w", err)
	}
	return nil
}

// ReconcileAcceptedInvitations folds accepted invitations sent by this
// user into the durable friend list. Each invitation is deleted only after
// its URL is appended and saved, so an interruption loses no friend link
// and a re-run converges.
func (s *Service) ReconcileAcceptedInvitations(ctx context.Context) error {
	recs, err := s.store.Query(ctx, recordstore.ScopePublic, recordstore.Query{
		Type: models.TypeInvitation,
		Filters: []recordstore.Filter{
			{Field: models.FieldInviter, Value: string(s.store.User())},
			{Field: models.FieldAccepted, Value: "true"},
		},
	})
	if err != nil {
		return fmt.Errorf("query accepted invitations: %w", err)
	}

	for _, rec := range recs {
		inv := models.InvitationFromRecord(rec)
		if inv.InviteeShareURL == "" {
			s.log.Warn(ctx, "accepted invitation without invitee share url", "invitation", inv.ID)
			continue
		}

		profile, err := s.loadProfile(ctx)
		if err != nil {
			return err
		}
		profile.AddFriendURL(inv.InviteeShareURL)
		if err := s.saveProfile(ctx, profile); err != nil {
			return err
		}
		if err := s.store.Delete(ctx, recordstore.ScopePublic, inv.ID); err != nil {
			return fmt.Errorf("retire invitation %s: %w", inv.ID, err)
		}
		s.log.Info(ctx, "invitation reconciled", "invitation", inv.ID, "invitee", inv.Invitee)
	}
	return nil
}

// SubscribeToFriendRequests registers a creation hint channel for
// invitations addressed to this user. Hints carry no payload and are
// at-least-once; consumers re-poll FetchFriendRequests on every hint.
func (s *Service) SubscribeToFriendRequests(ctx context.Context) (<-chan struct{}, error) {
	return s.store.Subscribe(ctx, recordstore.ScopePublic, recordstore.Query{
		Type:    models.TypeInvitation,
		Filters: []recordstore.Filter{{Field: models.FieldInvitee, Value: string(s.store.User())}},
	})
}

// DiscoverFriends resolves the contact book into candidate friends with a
// public profile. It requires discovery consent; a contact without an
// account or without a resolvable public profile is skipped silently.
func (s *Service) DiscoverFriends(ctx context.Context) ([]*models.Friend, error) {
	granted, err := s.gate.Request(ctx)
	if err != nil {
		return nil, err
	}
	if !granted {
		return nil, common.ErrInsufficientPermissions
	}

	ids, err := s.disc.DiscoverAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("discover contacts: %w", err)
	}

	var out []*models.Friend
	for _, id := range ids {
		if id.User == "" {
			continue
		}
		recs, err := s.store.Query(ctx, recordstore.ScopePublic, recordstore.Query{
			Type:    models.TypePublicProfile,
			Filters: []recordstore.Filter{{Field: models.FieldOwner, Value: string(id.User)}},
		})
		if err != nil {
			return nil, fmt.Errorf("lookup public profile: %w", err)
		}
		if len(recs) == 0 {
			continue
		}
		pub := models.PublicProfileFromRecord(recs[0])
		out = append(out, &models.Friend{
			Name:       pub.Name,
			Username:   pub.Username,
			Bio:        pub.Bio,
			PictureURL: pub.PictureURL,
		})
	}
	return out, nil
}

// FetchFriends rebuilds the friend list by resolving every accepted share
// URL into its root record. The result is an ephemeral projection; a URL
// that no longer resolves surfaces as an error rather than a silent gap.
func (s *Service) FetchFriends(ctx context.Context) ([]*models.Friend, error) {
	profile, err := s.loadProfile(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]*models.Friend, 0, len(profile.FriendShareURLs))
	for _, url := range profile.FriendShareURLs {
		meta, err := s.store.ResolveShare(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("resolve friend share: %w", err)
		}
		root := models.SharedProfileFromRecord(meta.Root)
		out = append(out, &models.Friend{
			Name:       root.Name,
			Username:   root.Username,
			Bio:        root.Bio,
			PictureURL: root.PictureURL,
			ShareURL:   url,
			RootID:     meta.Root.ID,
		})
	}
	return out, nil
}
