package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/marketplace/edge/internal/config"
	"github.com/marketplace/edge/internal/gateway"
	"github.com/marketplace/edge/internal/openapi"
	"github.com/marketplace/edge/internal/platform/health"
	pkglog "github.com/marketplace/edge/pkg/log"
	"github.com/marketplace/edge/pkg/metrics"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("gateway failed: %v", err)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	defer func() {
		if syncErr := pkglog.Sync(); syncErr != nil {
			log.Printf("logger sync failed: %v", syncErr)
		}
	}()

	docs, err := openapi.NewService()
	if err != nil {
		return fmt.Errorf("openapi document: %w", err)
	}

	upstreams := make([]health.Upstream, 0, len(cfg.Upstreams))
	for _, u := range cfg.Upstreams {
		upstreams = append(upstreams, health.Upstream{
			Name:       u.Name,
			BaseURL:    u.BaseURL,
			HealthPath: u.HealthPath,
		})
	}
	checker := health.NewChecker(http.DefaultClient, upstreams, cfg.ReadinessTimeout, cfg.ReadinessUserAgent)

	srv := gateway.NewServer(cfg, checker, metrics.NewRegistry(), docs)

	if err := srv.Start(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
	return nil
}
