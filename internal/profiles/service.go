// Package profiles keeps a user's private profile record and its public
// projection consistent: sparse dual writes, visibility toggling, and
// last-fetch-wins refresh of the locally cached copies.
package profiles

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/fitshare-app/fitshare/internal/common"
	"github.com/fitshare-app/fitshare/internal/logging"
	"github.com/fitshare-app/fitshare/internal/models"
	"github.com/fitshare-app/fitshare/internal/recordstore"
	"github.com/google/uuid"
)

// Field is one entry of a sparse update: Set false means leave unchanged,
// Set true assigns Value, empty string included.
type Field struct {
	Set   bool
	Value string
}

// Assign returns a set field.
func Assign(v string) Field { return Field{Set: true, Value: v} }

// Patch is a sparse update of the profile's display fields.
type Patch struct {
	Name       Field
	Username   Field
	Bio        Field
	PictureURL Field
}

func (p Patch) apply(name, username, bio, pictureURL *string) {
	if p.Name.Set {
		*name = p.Name.Value
	}
	if p.Username.Set {
		*username = p.Username.Value
	}
	if p.Bio.Set {
		*bio = p.Bio.Value
	}
	if p.PictureURL.Set {
		*pictureURL = p.PictureURL.Value
	}
}

// Service synchronizes one user's private profile with its public
// projection. Mutations are serialized by an internal mutex; each one
// works on a freshly fetched record, and the cached copies follow the
// last successful fetch or write.
type Service struct {
	mu    sync.Mutex
	store recordstore.Store
	log   logging.Logger

	profile *models.PrivateProfile
	public  *models.PublicProfile
}

func NewService(store recordstore.Store, log logging.Logger) *Service {
	return &Service{store: store, log: log.With("component", "profiles")}
}

func (s *Service) fetchProfile(ctx context.Context) (*models.PrivateProfile, error) {
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
	s.profile = p
	return nil
}

func (s *Service) savePublic(ctx context.Context, p *models.PublicProfile) error {
	if err := s.store.Save(ctx, recordstore.ScopePublic, p.Record()); err != nil {
		return fmt.Errorf("save public profile: %w", err)
	}
	s.public = p
	return nil
}

func (s *Service) fetchPublic(ctx context.Context, profile *models.PrivateProfile) (*models.PublicProfile, error) {
	if profile.PublicProfileID == "" {
		return nil, fmt.Errorf("no public profile yet: %w", common.ErrProfileNotBootstrapped)
	}
	rec, err := s.store.Fetch(ctx, recordstore.ScopePublic, profile.PublicProfileID)
	if err != nil {
		return nil, fmt.Errorf("fetch public profile: %w", err)
	}
	return models.PublicProfileFromRecord(rec), nil
}

// Profile returns the cached private profile, nil before the first
// successful refresh or mutation.
func (s *Service) Profile() *models.PrivateProfile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile
}

// RefreshProfile re-fetches the private profile and overwrites the cached
// copy. No merging: the store's version wins.
func (s *Service) RefreshProfile(ctx context.Context) (*models.PrivateProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	profile, err := s.fetchProfile(ctx)
	if err != nil {
		return nil, err
	}
	s.profile = profile
	return profile, nil
}

// RefreshPublicProjection re-fetches the public projection, overwriting
// the cached copy.
func (s *Service) RefreshPublicProjection(ctx context.Context) (*models.PublicProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	profile, err := s.fetchProfile(ctx)
	if err != nil {
		return nil, err
	}
	pub, err := s.fetchPublic(ctx, profile)
	if err != nil {
		return nil, err
	}
	s.public = pub
	return pub, nil
}

// CreatePublicProfile mints the public projection: a fresh identifier is
// stamped into the private profile, which is persisted first, and only
// then is the projection itself written.
func (s *Service) CreatePublicProfile(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	profile, err := s.fetchProfile(ctx)
	if err != nil {
		return err
	}
	if profile.PublicProfileID != "" {
		s.log.Warn(ctx, "public profile already exists", "id", profile.PublicProfileID)
		return nil
	}

	profile.PublicProfileID = recordstore.RecordID(uuid.NewString())
	if err := s.saveProfile(ctx, profile); err != nil {
		return err
	}

	pub := &models.PublicProfile{
		ID:         profile.PublicProfileID,
		Owner:      s.store.User(),
		PrivateID:  profile.ID,
		Name:       profile.Name,
		Username:   profile.Username,
		Bio:        profile.Bio,
		PictureURL: profile.PictureURL,
	}
	return s.savePublic(ctx, pub)
}

// Set applies the sparse patch to the private profile and persists it.
// With alsoPublic the same fields are mirrored onto the projection, but
// only after the private save succeeded.
func (s *Service) Set(ctx context.Context, patch Patch, alsoPublic bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	profile, err := s.fetchProfile(ctx)
	if err != nil {
		return err
	}
	patch.apply(&profile.Name, &profile.Username, &profile.Bio, &profile.PictureURL)
	if err := s.saveProfile(ctx, profile); err != nil {
		return err
	}

	if !alsoPublic {
		return nil
	}
	pub, err := s.fetchPublic(ctx, profile)
	if err != nil {
		return err
	}
	patch.apply(&pub.Name, &pub.Username, &pub.Bio, &pub.PictureURL)
	return s.savePublic(ctx, pub)
}

// MakePublic copies every display field from the private profile onto the
// projection.
func (s *Service) MakePublic(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	profile, err := s.fetchProfile(ctx)
	if err != nil {
		return err
	}
	pub, err := s.fetchPublic(ctx, profile)
	if err != nil {
		return err
	}
	pub.Name = profile.Name
	pub.Username = profile.Username
	pub.Bio = profile.Bio
	pub.PictureURL = profile.PictureURL
	return s.savePublic(ctx, pub)
}

// MakePrivate clears the projection's display fields to empty strings.
// The record and its back-reference stay so that holders of the
// projection reference keep resolving it.
func (s *Service) MakePrivate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	profile, err := s.fetchProfile(ctx)
	if err != nil {
		return err
	}
	pub, err := s.fetchPublic(ctx, profile)
	if err != nil {
		return err
	}
	pub.Name = ""
	pub.Username = ""
	pub.Bio = ""
	pub.PictureURL = ""
	return s.savePublic(ctx, pub)
}
