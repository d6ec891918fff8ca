// Package catalog is the product service the gateway fronts. It trusts the
// identity headers the gateway injects and performs no authentication of
// its own.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/marketplace/edge/internal/config"
	pkglog "github.com/marketplace/edge/pkg/log"
	"github.com/marketplace/edge/pkg/metrics"
	"github.com/marketplace/edge/pkg/problem"
)

// Server hosts the catalog's HTTP surface.
type Server struct {
	cfg        config.CatalogConfig
	store      *Store
	router     *http.ServeMux
	httpServer *http.Server
	bootTime   time.Time
}

// NewServer constructs a catalog server over the given store.
func NewServer(cfg config.CatalogConfig, store *Store, registry *metrics.Registry) *Server {
	mux := http.NewServeMux()

	s := &Server{
		cfg:      cfg,
		store:    store,
		router:   mux,
		bootTime: time.Now().UTC(),
	}

	mux.HandleFunc("/health", s.handleHealth)
	if registry != nil {
		mux.Handle("/metrics", registry.Handler())
	}
	mux.HandleFunc("/api/products", s.handleCollection)
	mux.HandleFunc("/api/products/", s.handleItem)

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
		pkglog.Logger().Infow("catalog listening", "addr", s.httpServer.Addr, "db", s.cfg.DBPath)
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
			pkglog.Logger().Errorw("catalog shutdown failed", "error", err)
			return err
		}
		return ctx.Err()
	case err := <-errCh:
		if err != nil {
			pkglog.Logger().Errorw("catalog stopped with error", "error", err)
		}
		return err
	}
}

func (s *Server) handleCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleSearch(w, r)
	case http.MethodPost:
		s.handleCreate(w, r)
	default:
		problem.Write(w, http.StatusMethodNotAllowed, "Method Not Allowed", "", traceID(r), r.URL.Path)
	}
}

func (s *Server) handleItem(w http.ResponseWriter, r *http.Request) {
	idStr := strings.TrimPrefix(r.URL.Path, "/api/products/")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		problem.Write(w, http.StatusNotFound, "Not Found", "", traceID(r), r.URL.Path)
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.handleGet(w, r, id)
	case http.MethodPut:
		s.handleUpdate(w, r, id)
	case http.MethodDelete:
		s.handleDelete(w, r, id)
	default:
		problem.Write(w, http.StatusMethodNotAllowed, "Method Not Allowed", "", traceID(r), r.URL.Path)
	}
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := Filter{
		ProductID:   q.Get("productId"),
		Title:       q.Get("title"),
		Description: q.Get("description"),
		Brand:       q.Get("brand"),
		Color:       q.Get("color"),
	}

	page, _ := strconv.Atoi(q.Get("page"))
	size, _ := strconv.Atoi(q.Get("size"))

	products, err := s.store.Search(r.Context(), filter, page, size)
	if err != nil {
		pkglog.Logger().Errorw("product search failed", "error", err)
		problem.Write(w, http.StatusInternalServerError, "Internal Server Error", "", traceID(r), r.URL.Path)
		return
	}

	writeJSON(w, http.StatusOK, products)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var p Product
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		problem.Write(w, http.StatusBadRequest, "Bad Request", "Invalid product payload", traceID(r), r.URL.Path)
		return
	}
	if p.ProductID == "" || p.Title == "" {
		problem.Write(w, http.StatusBadRequest, "Bad Request", "productId and title are required", traceID(r), r.URL.Path)
		return
	}

	exists, err := s.store.ExistsByProductID(r.Context(), p.ProductID)
	if err != nil {
		pkglog.Logger().Errorw("product existence check failed", "error", err)
		problem.Write(w, http.StatusInternalServerError, "Internal Server Error", "", traceID(r), r.URL.Path)
		return
	}
	if exists {
		problem.Write(w, http.StatusConflict, "Conflict", fmt.Sprintf("Product %s already exists", p.ProductID), traceID(r), r.URL.Path)
		return
	}

	created, err := s.store.Create(r.Context(), p)
	if err != nil {
		pkglog.Logger().Errorw("product create failed", "error", err)
		problem.Write(w, http.StatusInternalServerError, "Internal Server Error", "", traceID(r), r.URL.Path)
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request, id int64) {
	p, err := s.store.Get(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		problem.Write(w, http.StatusNotFound, "Not Found", "", traceID(r), r.URL.Path)
		return
	}
	if err != nil {
		pkglog.Logger().Errorw("product fetch failed", "error", err, "id", id)
		problem.Write(w, http.StatusInternalServerError, "Internal Server Error", "", traceID(r), r.URL.Path)
		return
	}

	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request, id int64) {
	var p Product
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		problem.Write(w, http.StatusBadRequest, "Bad Request", "Invalid product payload", traceID(r), r.URL.Path)
		return
	}

	updated, err := s.store.Update(r.Context(), id, p)
	if errors.Is(err, ErrNotFound) {
		problem.Write(w, http.StatusNotFound, "Not Found", "", traceID(r), r.URL.Path)
		return
	}
	if err != nil {
		pkglog.Logger().Errorw("product update failed", "error", err, "id", id)
		problem.Write(w, http.StatusInternalServerError, "Internal Server Error", "", traceID(r), r.URL.Path)
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request, id int64) {
	err := s.store.Delete(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		problem.Write(w, http.StatusNotFound, "Not Found", "", traceID(r), r.URL.Path)
		return
	}
	if err != nil {
		pkglog.Logger().Errorw("product delete failed", "error", err, "id", id)
		problem.Write(w, http.StatusInternalServerError, "Internal Server Error", "", traceID(r), r.URL.Path)
		return
	}

	w.WriteHeader(http.StatusNoContent)
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

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func traceID(r *http.Request) string {
	return r.Header.Get("X-Trace-Id")
}
