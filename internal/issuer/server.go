package issuer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/marketplace/edge/internal/config"
	"github.com/marketplace/edge/internal/credential"
	pkglog "github.com/marketplace/edge/pkg/log"
	"github.com/marketplace/edge/pkg/metrics"
	"github.com/marketplace/edge/pkg/problem"
)

// Server hosts the issuer's HTTP surface: the login route plus the
// operational endpoints every service in the fleet exposes.
type Server struct {
	cfg        config.IssuerConfig
	router     *http.ServeMux
	httpServer *http.Server
	bootTime   time.Time
}

// NewServer constructs an issuer server over the given principal store.
func NewServer(cfg config.IssuerConfig, store credential.Store, registry *metrics.Registry) *Server {
	mux := http.NewServeMux()

	s := &Server{
		cfg:      cfg,
		router:   mux,
		bootTime: time.Now().UTC(),
	}

	login := NewHandler(credential.NewVerifier(store), cfg.Security, registry)

	mux.Handle(cfg.Security.LoginURI, login)
	mux.HandleFunc("/health", s.handleHealth)
	if registry != nil {
		mux.Handle("/metrics", registry.Handler())
	}
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		problem.Write(w, http.StatusNotFound, "Not Found", "", r.Header.Get("X-Trace-Id"), r.URL.Path)
	})

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: mux,
	}

	return s
}

// Handler exposes the routing table for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start serves HTTP until the context is cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		pkglog.Logger().Infow("issuer listening", "addr", s.httpServer.Addr, "loginUri", s.cfg.Security.LoginURI)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			pkglog.Logger().Errorw("issuer shutdown failed", "error", err)
			return err
		}
		return ctx.Err()
	case err := <-errCh:
		if err != nil {
			pkglog.Logger().Errorw("issuer stopped with error", "error", err)
		}
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	response := struct {
		Status    string  `json:"status"`
		Uptime    float64 `json:"uptime"`
		Timestamp string  `json:"timestamp"`
		Version   string  `json:"version,omitempty"`
	}{
		Status:    "ok",
		Uptime:    time.Since(s.bootTime).Seconds(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   s.cfg.Version,
	}

	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(response)
}
