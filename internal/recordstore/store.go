// Package recordstore defines the contract between fitshare services and the
// remote record store: typed records in two logical scopes (private and
// public), zones, equality queries, creation-triggered subscriptions, and a
// sharing primitive that grants named participants read access to a record
// subtree through an unguessable capability URL.
package recordstore

import "context"

// Scope selects one of the store's two logical partitions.
type Scope int

const (
	// ScopePrivate holds records visible only to their owner.
	ScopePrivate Scope = iota
	// ScopePublic holds records queryable by any authenticated user.
	ScopePublic
)

// RecordID is an opaque record identifier.
type RecordID string

// UserRef is an opaque reference to a user record, as handed out by the
// platform's identity facilities.
type UserRef string

// Record is a bag of named string fields identified by an opaque ID.
// Zone is only meaningful in the private scope; an empty zone means the
// default zone.
type Record struct {
	ID     RecordID
	Type   string
	Zone   string
	Fields map[string]string
}

// Get returns the named field or an empty string when absent.
func (r *Record) Get(key string) string {
	if r.Fields == nil {
		return ""
	}
	return r.Fields[key]
}

// Set assigns the named field, allocating the field map when needed.
func (r *Record) Set(key, value string) {
	if r.Fields == nil {
		r.Fields = make(map[string]string)
	}
	r.Fields[key] = value
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	c := &Record{ID: r.ID, Type: r.Type, Zone: r.Zone}
	if r.Fields != nil {
		c.Fields = make(map[string]string, len(r.Fields))
		for k, v := range r.Fields {
			c.Fields[k] = v
		}
	}
	return c
}

// Filter matches records whose named field equals the given value.
// Boolean fields are stored as "true"/"false".
type Filter struct {
	Field string
	Value string
}

// Query selects records of one type whose fields match every filter
// (logical AND). An empty filter list is an unrestricted scan of the type.
type Query struct {
	Type    string
	Filters []Filter
}

// Matches reports whether the record satisfies the query.
func (q Query) Matches(r *Record) bool {
	if r.Type != q.Type {
		return false
	}
	for _, f := range q.Filters {
		if r.Get(f.Field) != f.Value {
			return false
		}
	}
	return true
}

// Store is a handle to the record store bound to one authenticated user.
// Multi-record saves are atomic per call; there is no cross-call
// transaction. Implementations surface transport failures as-is and map a
// missing record to common.ErrorNotFound.
type Store interface {
	// User returns the user reference this handle operates as.
	User() UserRef

	// CreateZone creates a dedicated zone in the private scope and returns
	// its identifier.
	CreateZone(ctx context.Context, name string) (string, error)

	// Save persists a single record in the given scope, creating or
	// overwriting it.
	Save(ctx context.Context, scope Scope, rec *Record) error

	// SaveAll persists all records in one atomic operation: either every
	// record is saved or none is.
	SaveAll(ctx context.Context, scope Scope, recs ...*Record) error

	// Fetch returns the record with the given ID.
	Fetch(ctx context.Context, scope Scope, id RecordID) (*Record, error)

	// Query returns all records matching q, in no particular order.
	Query(ctx context.Context, scope Scope, q Query) ([]*Record, error)

	// Delete removes the record with the given ID. Deleting an absent
	// record is not an error.
	Delete(ctx context.Context, scope Scope, id RecordID) error

	// Subscribe registers a creation-triggered subscription for records
	// matching q. Deliveries are payload-free, at-least-once hints; the
	// consumer is expected to re-query. The channel is closed when ctx is
	// done.
	Subscribe(ctx context.Context, scope Scope, q Query) (<-chan struct{}, error)

	// SaveShared atomically saves the share root record and the share
	// itself. On success the share has been assigned its capability URL.
	SaveShared(ctx context.Context, root *Record, share *Share) error

	// SaveShare persists participant-list mutations of a previously saved
	// share.
	SaveShare(ctx context.Context, share *Share) error

	// FetchParticipants resolves user references into share participants
	// using the platform identity lookup. Lookups that fail do not abort
	// the batch: the resolved participants are returned together with a
	// *common.ResolutionError naming the failed references.
	FetchParticipants(ctx context.Context, users []UserRef) ([]Participant, error)

	// ResolveShare returns share metadata, root record included, to
	// anyone holding the capability URL. Access to further records in
	// the shared zone requires being a participant.
	ResolveShare(ctx context.Context, url string) (*ShareMetadata, error)

	// AcceptShare records the bound user's acceptance of the share.
	// Accepting twice is a no-op, never an error.
	AcceptShare(ctx context.Context, meta *ShareMetadata) error
}
