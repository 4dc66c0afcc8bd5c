// Package agent runs the background sync process: it keeps the user's
// friend list reconciled by watching friend-request hints and by a
// periodic sweep, and shuts down gracefully on OS signals.
package agent

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fitshare-app/fitshare/internal/agent/config"
	"github.com/fitshare-app/fitshare/internal/friends"
	"github.com/fitshare-app/fitshare/internal/identity"
	"github.com/fitshare-app/fitshare/internal/logging"
	"github.com/fitshare-app/fitshare/internal/permissions"
	"github.com/fitshare-app/fitshare/internal/recordstore"
	"github.com/fitshare-app/fitshare/internal/recordstore/postgres"
	"github.com/redis/go-redis/v9"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	backend *postgres.Backend
	friends *friends.Service
}

func NewApp(c *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	if c.UserRef == "" {
		return nil, errors.New("user record reference is required (-u)")
	}

	db, err := postgres.Open(c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: c.RedisAddr})
	backend := postgres.New(db, postgres.NewRedisNotifier(rdb), c.ShareBaseURL, []byte(c.SecretKey), logger)

	store := backend.Client(recordstore.UserRef(c.UserRef))
	disc := identity.Unavailable{}
	svc := friends.NewService(store, disc, permissions.NewGate(disc), logger)

	return &App{config: c, logger: logger, db: db, backend: backend, friends: svc}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// runWatcher reconciles accepted invitations whenever a friend-request
// hint arrives and on every tick regardless. Hints are only a nudge; the
// reconcile scan itself decides what is left to do.
func (app *App) runWatcher(ctx context.Context) {
	hints, err := app.friends.SubscribeToFriendRequests(ctx)
	if err != nil {
		app.logger.Error(ctx, "subscribe to friend requests", "error", err)
		hints = nil
	}

	ticker := time.NewTicker(app.config.ReconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-hints:
			if !ok {
				hints = nil
				continue
			}
			app.logger.Info(ctx, "friend request hint received")
		case <-ticker.C:
		}

		if err := app.friends.ReconcileAcceptedInvitations(ctx); err != nil {
			app.logger.Error(ctx, "reconcile accepted invitations", "error", err)
		}
	}
}

func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "starting sync agent", "user", app.config.UserRef)

	if err := app.backend.RunMigrations(ctx); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	if err := app.backend.AddIdentity(ctx, recordstore.UserRef(app.config.UserRef)); err != nil {
		return fmt.Errorf("register identity: %w", err)
	}

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		app.runWatcher(ctx)
	}()
	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Warn(ctx, "close database", "error", err)
	}
	app.logger.Info(ctx, "sync agent stopped")
	return nil
}
