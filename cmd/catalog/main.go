package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/marketplace/edge/internal/catalog"
	"github.com/marketplace/edge/internal/config"
	pkglog "github.com/marketplace/edge/pkg/log"
	"github.com/marketplace/edge/pkg/metrics"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("catalog failed: %v", err)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.LoadCatalog()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	defer func() {
		if syncErr := pkglog.Sync(); syncErr != nil {
			log.Printf("logger sync failed: %v", syncErr)
		}
	}()

	store, err := catalog.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	srv := catalog.NewServer(cfg, store, metrics.NewRegistry())

	if err := srv.Start(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
	return nil
}
