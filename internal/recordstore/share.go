package recordstore

import "github.com/google/uuid"

// Permission is the access level granted by a share.
type Permission int

const (
	// PermissionNone grants nothing. Used as the public permission of
	// every share so that only explicit participants can read the data.
	PermissionNone Permission = iota
	// PermissionReadOnly grants read access to the shared subtree.
	PermissionReadOnly
)

// Participant is an identity granted a permission on a share.
type Participant struct {
	User       UserRef
	Permission Permission
	Accepted   bool
}

// Share is a capability object over a root record. It is constructed
// client-side with NewShare and receives its URL from the store on the
// first save. The URL is the capability token: anyone holding it resolves
// the share's metadata and root record, while further records in the
// shared zone stay participant-only.
type Share struct {
	ID               RecordID
	RootID           RecordID
	Owner            UserRef
	URL              string
	PublicPermission Permission
	Participants     []Participant
}

// NewShare builds an unsaved share over the given root record with public
// permission None.
func NewShare(root *Record) *Share {
	return &Share{
		ID:               RecordID(uuid.NewString()),
		RootID:           root.ID,
		PublicPermission: PermissionNone,
	}
}

// AddParticipant appends a participant, replacing a previous entry for the
// same user. The public permission is never upgraded by adding participants.
func (s *Share) AddParticipant(p Participant) {
	for i, existing := range s.Participants {
		if existing.User == p.User {
			s.Participants[i].Permission = p.Permission
			return
		}
	}
	s.Participants = append(s.Participants, p)
}

// HasParticipant reports whether the user is on the participant list.
func (s *Share) HasParticipant(user UserRef) bool {
	for _, p := range s.Participants {
		if p.User == user {
			return true
		}
	}
	return false
}

// ShareMetadata is what resolving a capability URL yields: the share and a
// copy of its root record.
type ShareMetadata struct {
	Share *Share
	Root  *Record
}
