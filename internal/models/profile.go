// Package models defines the record schemas stored in the record store and
// the codecs between them and Go structs. All field values are strings;
// booleans encode as "true"/"false" and URL lists as newline-joined blocks.
package models

import (
	"strings"

	"github.com/fitshare-app/fitshare/internal/recordstore"
)

// Record type names.
const (
	TypePrivateProfile = "PrivateProfile"
	TypePublicProfile  = "PublicProfile"
	TypeSharedProfile  = "SharedProfile"
	TypeInvitation     = "FriendInvitation"
)

// Field keys used in query predicates.
const (
	FieldOwner    = "owner"
	FieldInviter  = "inviter"
	FieldInvitee  = "invitee"
	FieldAccepted = "accepted"
)

// PrivateProfile is the owner-only profile record. Exactly one exists per
// user, at the well-known ID returned by PrivateProfileID.
type PrivateProfile struct {
	ID              recordstore.RecordID
	Name            string
	Username        string
	Bio             string
	PictureURL      string
	PublicProfileID recordstore.RecordID
	ShareURL        string
	FriendShareURLs []string
}

// PrivateProfileID returns the fixed private-profile record ID for a user.
func PrivateProfileID(user recordstore.UserRef) recordstore.RecordID {
	return recordstore.RecordID("profile-" + string(user))
}

func (p *PrivateProfile) Record() *recordstore.Record {
	rec := &recordstore.Record{ID: p.ID, Type: TypePrivateProfile}
	rec.Set("name", p.Name)
	rec.Set("username", p.Username)
	rec.Set("bio", p.Bio)
	rec.Set("pictureURL", p.PictureURL)
	rec.Set("publicProfileID", string(p.PublicProfileID))
	rec.Set("shareURL", p.ShareURL)
	rec.Set("friendShareURLs", joinURLs(p.FriendShareURLs))
	return rec
}

func PrivateProfileFromRecord(rec *recordstore.Record) *PrivateProfile {
	return &PrivateProfile{
		ID:              rec.ID,
		Name:            rec.Get("name"),
		Username:        rec.Get("username"),
		Bio:             rec.Get("bio"),
		PictureURL:      rec.Get("pictureURL"),
		PublicProfileID: recordstore.RecordID(rec.Get("publicProfileID")),
		ShareURL:        rec.Get("shareURL"),
		FriendShareURLs: splitURLs(rec.Get("friendShareURLs")),
	}
}

// HasFriendURL reports whether the accepted-URL set already holds url.
func (p *PrivateProfile) HasFriendURL(url string) bool {
	for _, u := range p.FriendShareURLs {
		if u == url {
			return true
		}
	}
	return false
}

// AddFriendURL appends url to the accepted-URL set unless already present.
func (p *PrivateProfile) AddFriendURL(url string) {
	if !p.HasFriendURL(url) {
		p.FriendShareURLs = append(p.FriendShareURLs, url)
	}
}

// PublicProfile is the publicly queryable projection of a private profile.
// Going private clears the display fields to empty strings; the record and
// its back-references stay in place.
type PublicProfile struct {
	ID         recordstore.RecordID
	Owner      recordstore.UserRef
	PrivateID  recordstore.RecordID
	Name       string
	Username   string
	Bio        string
	PictureURL string
}

func (p *PublicProfile) Record() *recordstore.Record {
	rec := &recordstore.Record{ID: p.ID, Type: TypePublicProfile}
	rec.Set(FieldOwner, string(p.Owner))
	rec.Set("privateProfileID", string(p.PrivateID))
	rec.Set("name", p.Name)
	rec.Set("username", p.Username)
	rec.Set("bio", p.Bio)
	rec.Set("pictureURL", p.PictureURL)
	return rec
}

func PublicProfileFromRecord(rec *recordstore.Record) *PublicProfile {
	return &PublicProfile{
		ID:         rec.ID,
		Owner:      recordstore.UserRef(rec.Get(FieldOwner)),
		PrivateID:  recordstore.RecordID(rec.Get("privateProfileID")),
		Name:       rec.Get("name"),
		Username:   rec.Get("username"),
		Bio:        rec.Get("bio"),
		PictureURL: rec.Get("pictureURL"),
	}
}

// SharedProfile is the share root record living in the owner's share zone.
// It mirrors the display fields intended for friends only.
type SharedProfile struct {
	ID         recordstore.RecordID
	Zone       string
	Name       string
	Username   string
	Bio        string
	PictureURL string
}

func (p *SharedProfile) Record() *recordstore.Record {
	rec := &recordstore.Record{ID: p.ID, Type: TypeSharedProfile, Zone: p.Zone}
	rec.Set("name", p.Name)
	rec.Set("username", p.Username)
	rec.Set("bio", p.Bio)
	rec.Set("pictureURL", p.PictureURL)
	return rec
}

func SharedProfileFromRecord(rec *recordstore.Record) *SharedProfile {
	return &SharedProfile{
		ID:         rec.ID,
		Zone:       rec.Zone,
		Name:       rec.Get("name"),
		Username:   rec.Get("username"),
		Bio:        rec.Get("bio"),
		PictureURL: rec.Get("pictureURL"),
	}
}

func joinURLs(urls []string) string {
	return strings.Join(urls, "\n")
}

func splitURLs(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
