// Package cli implements the interactive fitshare client: a small REPL
// over the friend graph and profile services.
package cli

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/fitshare-app/fitshare/internal/cli/config"
	"github.com/fitshare-app/fitshare/internal/common"
	"github.com/fitshare-app/fitshare/internal/friends"
	"github.com/fitshare-app/fitshare/internal/identity"
	"github.com/fitshare-app/fitshare/internal/logging"
	"github.com/fitshare-app/fitshare/internal/models"
	"github.com/fitshare-app/fitshare/internal/permissions"
	"github.com/fitshare-app/fitshare/internal/pictures"
	"github.com/fitshare-app/fitshare/internal/profiles"
	"github.com/fitshare-app/fitshare/internal/recordstore"
	"github.com/fitshare-app/fitshare/internal/recordstore/postgres"
	"github.com/redis/go-redis/v9"
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	db       *sql.DB
	backend  *postgres.Backend
	store    recordstore.Store
	friends  *friends.Service
	profiles *profiles.Service
	pictures *pictures.Service
	out      io.Writer
}

func NewApp(c *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	if c.UserRef == "" {
		return nil, errors.New("user record reference is required (-u)")
	}

	secret := []byte(c.SecretKey)
	if len(secret) == 0 {
		s, err := GetSecret(os.Stdout, "Share secret key")
		if err != nil {
			return nil, fmt.Errorf("read secret: %w", err)
		}
		secret = s
	}

	db, err := postgres.Open(c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: c.RedisAddr})
	backend := postgres.New(db, postgres.NewRedisNotifier(rdb), c.ShareBaseURL, secret, logger)
	common.WipeByteArray(secret)

	store := backend.Client(recordstore.UserRef(c.UserRef))
	disc := identity.NewFileDirectory(c.ContactsFile)

	return &App{
		config:   c,
		logger:   logger,
		db:       db,
		backend:  backend,
		store:    store,
		friends:  friends.NewService(store, disc, permissions.NewGate(disc), logger),
		profiles: profiles.NewService(store, logger),
		pictures: pictures.NewService(pictures.Config{
			Region:       c.S3Region,
			AccessKey:    c.S3AccessKey,
			SecretKey:    c.S3SecretKey,
			BaseEndpoint: c.S3BaseEndpoint,
			Bucket:       c.S3Bucket,
		}),
		out: os.Stdout,
	}, nil
}

func (a *App) Run(ctx context.Context) {
	defer a.db.Close()

	if err := a.backend.RunMigrations(ctx); err != nil {
		printlnFn("Error:", err.Error())
		return
	}
	if err := a.backend.AddIdentity(ctx, a.store.User()); err != nil {
		printlnFn("Error:", err.Error())
		return
	}
	if err := a.ensureProfile(ctx); err != nil {
		printlnFn("Error:", err.Error())
		return
	}

	runREPL(ctx, a, bufio.NewScanner(os.Stdin))
}

func (a *App) Share(ctx context.Context) error {
	if err := a.friends.BeginSharing(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Sharing established.")
	return nil
}

func (a *App) Invite(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: invite USER [USER...]")
	}
	users := make([]recordstore.UserRef, 0, len(args))
	for _, arg := range args {
		users = append(users, recordstore.UserRef(arg))
	}

	err := a.friends.Invite(ctx, users)
	var re *common.ResolutionError
	if errors.As(err, &re) {
		fmt.Fprintf(a.out, "Could not resolve: %v. The rest were invited.\n", re.Failed)
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Invited %d user(s).\n", len(users))
	return nil
}

func (a *App) Requests(ctx context.Context, args []string) error {
	typ := friends.RequestsAll
	if len(args) > 0 {
		switch args[0] {
		case "sent":
			typ = friends.RequestsSent
		case "received":
			typ = friends.RequestsReceived
		case "all":
		default:
			return fmt.Errorf("unknown request type %q (sent, received, all)", args[0])
		}
	}

	invs, err := a.friends.FetchFriendRequests(ctx, typ)
	if err != nil {
		return err
	}
	if len(invs) == 0 {
		fmt.Fprintln(a.out, "No friend requests.")
		return nil
	}
	for _, inv := range invs {
		state := "pending"
		if inv.Accepted {
			state = "accepted"
		}
		fmt.Fprintf(a.out, "%s  %s -> %s  [%s]\n", inv.ID, inv.Inviter, inv.Invitee, state)
	}
	return nil
}

func (a *App) Accept(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: accept REQUEST_ID")
	}

	invs, err := a.friends.FetchFriendRequests(ctx, friends.RequestsReceived)
	if err != nil {
		return err
	}
	for _, inv := range invs {
		if string(inv.ID) == args[0] {
			if err := a.friends.AcceptFriendRequest(ctx, inv); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Accepted friend request from %s.\n", inv.Inviter)
			return nil
		}
	}
	return fmt.Errorf("no received request with id %s", args[0])
}

func (a *App) Friends(ctx context.Context) error {
	list, err := a.friends.FetchFriends(ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(a.out, "No friends yet.")
		return nil
	}
	for _, f := range list {
		fmt.Fprintf(a.out, "%s (@%s)  %s\n", f.Name, f.Username, f.Bio)
	}
	return nil
}

func (a *App) Discover(ctx context.Context) error {
	list, err := a.friends.DiscoverFriends(ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(a.out, "No contacts with a profile found.")
		return nil
	}
	for _, f := range list {
		fmt.Fprintf(a.out, "%s (@%s)\n", f.Name, f.Username)
	}
	return nil
}

func (a *App) Profile(ctx context.Context) error {
	p, err := a.profiles.RefreshProfile(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Name:     %s\nUsername: %s\nBio:      %s\nPicture:  %s\n", p.Name, p.Username, p.Bio, p.PictureURL)
	if p.ShareURL != "" {
		fmt.Fprintf(a.out, "Share:    %s\n", p.ShareURL)
	}
	fmt.Fprintf(a.out, "Friends:  %d\n", len(p.FriendShareURLs))
	return nil
}

func (a *App) Set(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return errors.New("usage: set FIELD VALUE... (fields: name, username, bio)")
	}
	value := ""
	for i, arg := range args[1:] {
		if i > 0 {
			value += " "
		}
		value += arg
	}

	var patch profiles.Patch
	switch args[0] {
	case "name":
		patch.Name = profiles.Assign(value)
	case "username":
		patch.Username = profiles.Assign(value)
	case "bio":
		patch.Bio = profiles.Assign(value)
	default:
		return fmt.Errorf("unknown field %q (name, username, bio)", args[0])
	}

	if err := a.profiles.Set(ctx, patch, true); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Profile updated.")
	return nil
}

func (a *App) Public(ctx context.Context) error {
	if err := a.profiles.MakePublic(ctx); err != nil {
		if errors.Is(err, common.ErrProfileNotBootstrapped) {
			if err := a.profiles.CreatePublicProfile(ctx); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Public profile created.")
			return nil
		}
		return err
	}
	fmt.Fprintln(a.out, "Profile is now public.")
	return nil
}

func (a *App) Private(ctx context.Context) error {
	if err := a.profiles.MakePrivate(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Profile is now private.")
	return nil
}

func (a *App) SetPicture(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: setpicture PATH")
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read picture: %w", err)
	}

	key, url, err := a.pictures.PresignPut(ctx)
	if err != nil {
		return fmt.Errorf("presign upload: %w", err)
	}
	if err := pictures.Upload(url, data); err != nil {
		return err
	}

	objectURL := a.pictures.ObjectURL(key)
	if err := a.profiles.Set(ctx, profiles.Patch{PictureURL: profiles.Assign(objectURL)}, true); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Picture uploaded: %s\n", objectURL)
	return nil
}

func (a *App) Reconcile(ctx context.Context) error {
	if err := a.friends.ReconcileAcceptedInvitations(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Reconciled accepted invitations.")
	return nil
}

// ensureProfile bootstraps an empty private profile for first-time users.
func (a *App) ensureProfile(ctx context.Context) error {
	id := models.PrivateProfileID(a.store.User())
	_, err := a.store.Fetch(ctx, recordstore.ScopePrivate, id)
	if err == nil {
		return nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return err
	}
	p := &models.PrivateProfile{ID: id}
	return a.store.Save(ctx, recordstore.ScopePrivate, p.Record())
}
