// Package postgres implements the recordstore contract on PostgreSQL.
// Record fields live in a JSONB column so equality queries map to JSONB
// containment, multi-record saves run in one transaction, and creation
// hints travel over a Notifier (redis pub/sub in production).
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fitshare-app/fitshare/internal/common"
	"github.com/fitshare-app/fitshare/internal/dbx"
	"github.com/fitshare-app/fitshare/internal/logging"
	"github.com/fitshare-app/fitshare/internal/recordstore"
	"github.com/fitshare-app/fitshare/internal/recordstore/postgres/migrations"
	"github.com/fitshare-app/fitshare/internal/recordstore/sharetoken"
	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// Backend is a shared postgres-backed record store container.
type Backend struct {
	db       *sql.DB
	notifier Notifier
	baseURL  string
	secret   []byte
	log      logging.Logger
}

func New(db *sql.DB, notifier Notifier, baseURL string, secretKey []byte, log logging.Logger) *Backend {
	// Own copy of the key: callers are free to wipe theirs after wiring.
	return &Backend{
		db:       db,
		notifier: notifier,
		baseURL:  baseURL,
		secret:   append([]byte(nil), secretKey...),
		log:      log.With("component", "recordstore"),
	}
}

// Open connects to PostgreSQL through the pgx stdlib driver.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded migrations and applies them.
func (b *Backend) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return gooseUpContext(ctx, b.db, ".")
}

// AddIdentity registers a user reference as resolvable for participant
// lookup. Adding an existing reference is a no-op.
func (b *Backend) AddIdentity(ctx context.Context, user recordstore.UserRef) error {
	query := `INSERT INTO identities (user_ref) VALUES ($1) ON CONFLICT (user_ref) DO NOTHING`
	if _, err := b.db.ExecContext(ctx, query, string(user)); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Client returns a store handle bound to the given user.
func (b *Backend) Client(user recordstore.UserRef) recordstore.Store {
	return &client{backend: b, user: user}
}

type client struct {
	backend *Backend
	user    recordstore.UserRef
}

func (c *client) User() recordstore.UserRef { return c.user }

// scopeOwner returns the owner column value: public records share one
// partition, private records are partitioned per user.
func (c *client) scopeOwner(scope recordstore.Scope) string {
	if scope == recordstore.ScopePublic {
		return ""
	}
	return string(c.user)
}

// wireRecord is the notifier payload for a created record.
type wireRecord struct {
	ID     string            `json:"id"`
	Type   string            `json:"type"`
	Zone   string            `json:"zone,omitempty"`
	Fields map[string]string `json:"fields"`
}

func marshalFields(rec *recordstore.Record) ([]byte, error) {
	fields := rec.Fields
	if fields == nil {
		fields = map[string]string{}
	}
	return json.Marshal(fields)
}

// saveOne upserts a record and reports whether the row was created rather
// than updated.
func (c *client) saveOne(ctx context.Context, db dbx.DBTX, scope recordstore.Scope, rec *recordstore.Record) (bool, error) {
	if rec.ID == "" {
		return false, fmt.Errorf("record without id: %w", common.ErrorInternal)
	}
	fields, err := marshalFields(rec)
	if err != nil {
		return false, fmt.Errorf("marshal fields: %w", err)
	}

	query := `
		INSERT INTO records (scope, owner, id, type, zone, fields)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (scope, owner, id)
		DO UPDATE SET type = EXCLUDED.type, zone = EXCLUDED.zone, fields = EXCLUDED.fields
		RETURNING (xmax = 0) AS inserted
	`
	var created bool
	err = db.QueryRowContext(ctx, query,
		int(scope), c.scopeOwner(scope), string(rec.ID), rec.Type, rec.Zone, fields).Scan(&created)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return created, nil
}

// publishCreated sends an at-least-once creation hint. A failed publish is
// logged and swallowed: consumers also re-poll on a timer.
func (c *client) publishCreated(ctx context.Context, scope recordstore.Scope, rec *recordstore.Record) {
	payload, err := json.Marshal(wireRecord{
		ID:     string(rec.ID),
		Type:   rec.Type,
		Zone:   rec.Zone,
		Fields: rec.Fields,
	})
	if err != nil {
		c.backend.log.Warn(ctx, "marshal creation hint", "error", err)
		return
	}
	if err := c.backend.notifier.Publish(ctx, channelName(scope, c.user), payload); err != nil {
		c.backend.log.Warn(ctx, "publish creation hint", "error", err, "record", rec.ID)
	}
}

func (c *client) Save(ctx context.Context, scope recordstore.Scope, rec *recordstore.Record) error {
	created, err := c.saveOne(ctx, c.backend.db, scope, rec)
	if err != nil {
		return err
	}
	if created {
		c.publishCreated(ctx, scope, rec)
	}
	return nil
}

func (c *client) SaveAll(ctx context.Context, scope recordstore.Scope, recs ...*recordstore.Record) error {
	var created []*recordstore.Record
	err := dbx.WithTx(ctx, c.backend.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		created = created[:0]
		for _, rec := range recs {
			ins, err := c.saveOne(ctx, tx, scope, rec)
			if err != nil {
				return err
			}
			if ins {
				created = append(created, rec)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, rec := range created {
		c.publishCreated(ctx, scope, rec)
	}
	return nil
}

func (c *client) Fetch(ctx context.Context, scope recordstore.Scope, id recordstore.RecordID) (*recordstore.Record, error) {
	query := `SELECT type, zone, fields FROM records WHERE scope = $1 AND owner = $2 AND id = $3`
	var (
		typ, zone string
		fields    []byte
	)
	err := c.backend.db.QueryRowContext(ctx, query, int(scope), c.scopeOwner(scope), string(id)).
		Scan(&typ, &zone, &fields)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	rec := &recordstore.Record{ID: id, Type: typ, Zone: zone}
	if err := json.Unmarshal(fields, &rec.Fields); err != nil {
		return nil, fmt.Errorf("unmarshal fields: %w", err)
	}
	return rec, nil
}

func (c *client) Query(ctx context.Context, scope recordstore.Scope, q recordstore.Query) ([]*recordstore.Record, error) {
	query := `SELECT id, type, zone, fields FROM records WHERE scope = $1 AND owner = $2 AND type = $3`
	args := []any{int(scope), c.scopeOwner(scope), q.Type}

	if len(q.Filters) > 0 {
		want := make(map[string]string, len(q.Filters))
		for _, f := range q.Filters {
			want[f.Field] = f.Value
		}
		filter, err := json.Marshal(want)
		if err != nil {
			return nil, fmt.Errorf("marshal filter: %w", err)
		}
		query += ` AND fields @> $4`
		args = append(args, filter)
	}

	rows, err := c.backend.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []*recordstore.Record
	for rows.Next() {
		var (
			id, typ, zone string
			fields        []byte
		)
		if err := rows.Scan(&id, &typ, &zone, &fields); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		rec := &recordstore.Record{ID: recordstore.RecordID(id), Type: typ, Zone: zone}
		if err := json.Unmarshal(fields, &rec.Fields); err != nil {
			return nil, fmt.Errorf("unmarshal fields: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}

func (c *client) Delete(ctx context.Context, scope recordstore.Scope, id recordstore.RecordID) error {
	query := `DELETE FROM records WHERE scope = $1 AND owner = $2 AND id = $3`
	if _, err := c.backend.db.ExecContext(ctx, query, int(scope), c.scopeOwner(scope), string(id)); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (c *client) Subscribe(ctx context.Context, scope recordstore.Scope, q recordstore.Query) (<-chan struct{}, error) {
	raw, err := c.backend.notifier.Subscribe(ctx, channelName(scope, c.user))
	if err != nil {
		return nil, err
	}

	hints := make(chan struct{}, 1)
	go func() {
		defer close(hints)
		for payload := range raw {
			var w wireRecord
			if err := json.Unmarshal(payload, &w); err != nil {
				c.backend.log.Warn(ctx, "bad creation hint payload", "error", err)
				continue
			}
			rec := &recordstore.Record{ID: recordstore.RecordID(w.ID), Type: w.Type, Zone: w.Zone, Fields: w.Fields}
			if !q.Matches(rec) {
				continue
			}
			select {
			case hints <- struct{}{}:
			default:
			}
		}
	}()
	return hints, nil
}

func (c *client) CreateZone(ctx context.Context, name string) (string, error) {
	zoneID := fmt.Sprintf("%s-%s", name, uuid.NewString())
	query := `INSERT INTO zones (id, owner, name) VALUES ($1, $2, $3)`
	if _, err := c.backend.db.ExecContext(ctx, query, zoneID, string(c.user), name); err != nil {
		return "", fmt.Errorf("db error: %w", err)
	}
	return zoneID, nil
}

func (c *client) SaveShared(ctx context.Context, root *recordstore.Record, share *recordstore.Share) error {
	if share.RootID != root.ID {
		return fmt.Errorf("share root mismatch: %w", common.ErrorInternal)
	}
	url, err := sharetoken.MintURL(c.backend.baseURL, string(share.ID), c.backend.secret)
	if err != nil {
		return err
	}

	err = dbx.WithTx(ctx, c.backend.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := c.saveOne(ctx, tx, recordstore.ScopePrivate, root); err != nil {
			return err
		}
		query := `INSERT INTO shares (id, root_id, owner, url, public_permission) VALUES ($1, $2, $3, $4, $5)`
		if _, err := tx.ExecContext(ctx, query,
			string(share.ID), string(share.RootID), string(c.user), url, int(share.PublicPermission)); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	share.Owner = c.user
	share.URL = url
	return nil
}

func (c *client) SaveShare(ctx context.Context, share *recordstore.Share) error {
	return dbx.WithTx(ctx, c.backend.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var owner string
		err := tx.QueryRowContext(ctx, `SELECT owner FROM shares WHERE id = $1`, string(share.ID)).Scan(&owner)
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrorNotFound
		}
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		if owner != string(c.user) {
			return common.ErrInsufficientPermissions
		}

		query := `
			INSERT INTO share_participants (share_id, user_ref, permission)
			VALUES ($1, $2, $3)
			ON CONFLICT (share_id, user_ref)
			DO UPDATE SET permission = EXCLUDED.permission
		`
		for _, p := range share.Participants {
			if _, err := tx.ExecContext(ctx, query, string(share.ID), string(p.User), int(p.Permission)); err != nil {
				return fmt.Errorf("db error: %w", err)
			}
		}
		return nil
	})
}

func (c *client) FetchParticipants(ctx context.Context, users []recordstore.UserRef) ([]recordstore.Participant, error) {
	var participants []recordstore.Participant
	var failed []string
	for _, u := range users {
		var known bool
		err := c.backend.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM identities WHERE user_ref = $1)`, string(u)).Scan(&known)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		if !known {
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
	shareID, err := sharetoken.ParseURL(url, c.backend.secret)
	if err != nil {
		return nil, err
	}

	share := &recordstore.Share{ID: recordstore.RecordID(shareID)}
	var rootID, owner string
	err = c.backend.db.QueryRowContext(ctx,
		`SELECT root_id, owner, url, public_permission FROM shares WHERE id = $1`, shareID).
		Scan(&rootID, &owner, &share.URL, &share.PublicPermission)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	share.RootID = recordstore.RecordID(rootID)
	share.Owner = recordstore.UserRef(owner)

	rows, err := c.backend.db.QueryContext(ctx,
		`SELECT user_ref, permission, accepted FROM share_participants WHERE share_id = $1 ORDER BY user_ref`, shareID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var p recordstore.Participant
		var userRef string
		if err := rows.Scan(&userRef, &p.Permission, &p.Accepted); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		p.User = recordstore.UserRef(userRef)
		share.Participants = append(share.Participants, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	// The root lives in the owner's private partition; any URL holder may
	// read it through the share.
	root, err := (&client{backend: c.backend, user: share.Owner}).Fetch(ctx, recordstore.ScopePrivate, share.RootID)
	if errors.Is(err, common.ErrorNotFound) {
		return nil, fmt.Errorf("share %s has no root record: %w", share.ID, common.ErrorUnknown)
	}
	if err != nil {
		return nil, err
	}
	return &recordstore.ShareMetadata{Share: share, Root: root}, nil
}

func (c *client) AcceptShare(ctx context.Context, meta *recordstore.ShareMetadata) error {
	query := `UPDATE share_participants SET accepted = TRUE WHERE share_id = $1 AND user_ref = $2`
	res, err := c.backend.db.ExecContext(ctx, query, string(meta.Share.ID), string(c.user))
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrInsufficientPermissions
	}
	return nil
}
