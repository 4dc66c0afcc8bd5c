package models

import (
	"strconv"

	"github.com/fitshare-app/fitshare/internal/recordstore"
)

// Invitation is the public-index work item carrying one friend request
// from inviter to invitee. The invitee flips Accepted and stamps its own
// share URL on accept; the inviter's reconciliation deletes the record
// once the URL is folded into its friend list.
type Invitation struct {
	ID              recordstore.RecordID
	Inviter         recordstore.UserRef
	InviterPublicID recordstore.RecordID
	Invitee         recordstore.UserRef
	InviterShareURL string
	InviteeShareURL string
	Accepted        bool
}

func (i *Invitation) Record() *recordstore.Record {
	rec := &recordstore.Record{ID: i.ID, Type: TypeInvitation}
	rec.Set(FieldInviter, string(i.Inviter))
	rec.Set("inviterPublicID", string(i.InviterPublicID))
	rec.Set(FieldInvitee, string(i.Invitee))
	rec.Set("inviterShareURL", i.InviterShareURL)
	rec.Set("inviteeShareURL", i.InviteeShareURL)
	rec.Set(FieldAccepted, strconv.FormatBool(i.Accepted))
	return rec
}

func InvitationFromRecord(rec *recordstore.Record) *Invitation {
	return &Invitation{
		ID:              rec.ID,
		Inviter:         recordstore.UserRef(rec.Get(FieldInviter)),
		InviterPublicID: recordstore.RecordID(rec.Get("inviterPublicID")),
		Invitee:         recordstore.UserRef(rec.Get(FieldInvitee)),
		InviterShareURL: rec.Get("inviterShareURL"),
		InviteeShareURL: rec.Get("inviteeShareURL"),
		Accepted:        rec.Get(FieldAccepted) == "true",
	}
}

// Friend is the ephemeral view of one accepted relationship, rebuilt from
// a share root on every fetch. It is never persisted.
type Friend struct {
	Name       string
	Username   string
	Bio        string
	PictureURL string
	ShareURL   string
	RootID     recordstore.RecordID
}
