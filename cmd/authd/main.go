package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/marketplace/edge/internal/config"
	"github.com/marketplace/edge/internal/credential"
	"github.com/marketplace/edge/internal/issuer"
	pkglog "github.com/marketplace/edge/pkg/log"
	"github.com/marketplace/edge/pkg/metrics"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("authd failed: %v", err)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.LoadIssuer()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	defer func() {
		if syncErr := pkglog.Sync(); syncErr != nil {
			log.Printf("logger sync failed: %v", syncErr)
		}
	}()

	store, cleanup, err := buildStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	srv := issuer.NewServer(cfg, store, metrics.NewRegistry())

	if err := srv.Start(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
	return nil
}

// buildStore picks the sqlite store when USERS_DB is set, seeding it with
// the development accounts on first run, and falls back to the in-memory
// store otherwise.
func buildStore(ctx context.Context, cfg config.IssuerConfig) (credential.Store, func(), error) {
	if cfg.UsersDB == "" {
		return credential.SeededStore(), func() {}, nil
	}

	store, err := credential.OpenSQLStore(cfg.UsersDB)
	if err != nil {
		return nil, nil, fmt.Errorf("open users db: %w", err)
	}

	userHash, err := credential.HashPassword("user")
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	adminHash, err := credential.HashPassword("admin")
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}

	err = store.Seed(ctx,
		credential.Record{Username: "user", PasswordHash: userHash, Roles: []string{"USER"}},
		credential.Record{Username: "admin", PasswordHash: adminHash, Roles: []string{"USER", "ADMIN"}},
	)
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}

	return store, func() { _ = store.Close() }, nil
}
