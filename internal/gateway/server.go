// Package gateway implements the enforcement point every marketplace
// request passes through: token validation establishes who the caller is,
// the authorization table decides whether they may proceed, and permitted
// requests are forwarded to the backing service untouched.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/cors"

	"github.com/marketplace/edge/internal/authz"
	"github.com/marketplace/edge/internal/config"
	"github.com/marketplace/edge/internal/gateway/proxy"
	"github.com/marketplace/edge/internal/platform/health"
	pkglog "github.com/marketplace/edge/pkg/log"
	"github.com/marketplace/edge/pkg/metrics"
	"github.com/marketplace/edge/pkg/problem"
)

type readinessReporter interface {
	Readiness(ctx context.Context) health.Report
}

// DocumentProvider serves the edge API contract.
type DocumentProvider interface {
	Handler() http.Handler
}

// Server coordinates the gateway's HTTP routes and lifecycle.
type Server struct {
	cfg            config.Config
	router         *http.ServeMux
	httpServer     *http.Server
	healthChecker  readinessReporter
	registry       *metrics.Registry
	engine         *authz.Engine
	limiter        *rateLimiter
	authHandler    http.Handler
	catalogHandler http.Handler
	bootTime       time.Time
	clock          func() time.Time
}

// NewServer constructs a gateway server with its pipeline assembled from
// configuration. The rule table and security settings are fixed for the
// process lifetime; request handling shares no mutable state.
func NewServer(cfg config.Config, checker readinessReporter, registry *metrics.Registry, docs DocumentProvider) *Server {
	mux := http.NewServeMux()

	s := &Server{
		cfg:           cfg,
		router:        mux,
		healthChecker: checker,
		registry:      registry,
		engine:        authz.NewEngine(rulesFromConfig(cfg.Rules)),
		limiter:       newRateLimiter(cfg.RateLimit.Window, cfg.RateLimit.Max),
		bootTime:      time.Now().UTC(),
	}

	s.initProxies()
	s.mountRoutes(docs)

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

// Start begins serving HTTP requests until the context is cancelled or an
// error occurs.
func (s *Server) Start(ctx context.Context) error {
	if s.httpServer == nil {
		return errors.New("http server not initialised")
	}

	errCh := make(chan error, 1)
	go func() {
		pkglog.Logger().Infow("gateway listening", "addr", s.httpServer.Addr)
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
			pkglog.Logger().Errorw("gateway shutdown failed", "error", err)
			return err
		}
		return ctx.Err()
	case err := <-errCh:
		if err != nil {
			pkglog.Logger().Errorw("gateway stopped with error", "error", err)
		}
		return err
	}
}

func rulesFromConfig(rules []config.RuleConfig) []authz.Rule {
	out := make([]authz.Rule, 0, len(rules))
	for _, r := range rules {
		out = append(out, authz.Rule{
			Method:       r.Method,
			PathPattern:  r.Path,
			RequiredRole: r.Role,
		})
	}
	return out
}

func (s *Server) initProxies() {
	for _, upstream := range s.cfg.Upstreams {
		handler, err := proxy.New(proxy.Options{
			Target:   upstream.BaseURL,
			Upstream: upstream.Name,
			Registry: s.registry,
		})
		if err != nil {
			pkglog.Logger().Errorw("failed to build proxy", "error", err, "upstream", upstream.Name)
			continue
		}

		switch upstream.Name {
		case "auth":
			s.authHandler = handler
		case "catalog":
			s.catalogHandler = handler
		}
	}
}

func (s *Server) mountRoutes(docs DocumentProvider) {
	s.router.HandleFunc("/health", s.handleHealth)
	s.router.HandleFunc("/readyz", s.handleReadiness)
	s.router.HandleFunc("/readiness", s.handleReadiness)
	if s.registry != nil {
		s.router.Handle("/metrics", s.registry.Handler())
	}
	if docs != nil {
		s.router.Handle("/openapi.json", docs.Handler())
	}

	s.router.Handle("/", s.buildPipeline())
}

// buildPipeline composes the per-request stages as an explicit ordered
// chain constructed once at startup.
func (s *Server) buildPipeline() http.Handler {
	var h http.Handler = http.HandlerFunc(s.routeUpstream)
	h = s.authorize(h)
	h = s.tokenValidation(h)
	h = s.rateLimit(h)
	if len(s.cfg.CorsAllowedOrigins) > 0 {
		h = cors.New(cors.Options{
			AllowedOrigins: s.cfg.CorsAllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{s.cfg.Security.Header, "Content-Type", "X-Request-Id", "X-Trace-Id"},
			ExposedHeaders: []string{s.cfg.Security.Header, "X-Request-Id"},
		}).Handler(h)
	}
	h = s.requestMetadata(h)
	return h
}

func (s *Server) requestMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req, requestID, _ := ensureRequestIDs(r)
		w.Header().Set("X-Request-Id", requestID)
		next.ServeHTTP(w, req)
	})
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.allow(clientAddress(r), time.Now()) {
			problem.Write(w, http.StatusTooManyRequests, "Too Many Requests", "Request rate limit exceeded", traceIDFrom(r.Context()), r.URL.Path)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// authorize evaluates the rule table against the request and the security
// context established by token validation. Rejections surface here and
// nowhere else; validation failures upstream have already been collapsed
// into an anonymous caller.
func (s *Server) authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject := SubjectFrom(r.Context())
		decision := s.engine.Evaluate(r.Method, r.URL.Path, subject)
		s.registry.ObserveAuthzDecision(decision.String())

		switch decision {
		case authz.Permit:
			s.forwardIdentity(r, subject)
			next.ServeHTTP(w, r)
		case authz.Forbidden:
			pkglog.Logger().Infow("request forbidden", "subject", subject.Name, "method", r.Method, "path", r.URL.Path)
			problem.Write(w, http.StatusForbidden, "Forbidden", "Insufficient role", traceIDFrom(r.Context()), r.URL.Path)
		default:
			problem.WriteUnauthorized(w, "", traceIDFrom(r.Context()), r.URL.Path)
		}
	})
}

// forwardIdentity strips the caller's token and replaces inbound identity
// headers with the validated subject, so backends can only ever see
// identity the gateway vouched for.
func (s *Server) forwardIdentity(r *http.Request, subject authz.Subject) {
	r.Header.Del(s.cfg.Security.Header)
	r.Header.Del("X-Auth-Subject")
	r.Header.Del("X-Auth-Roles")

	if !subject.Anonymous() {
		r.Header.Set("X-Auth-Subject", subject.Name)
		r.Header.Set("X-Auth-Roles", strings.Join(subject.Roles, ","))
	}
}

func (s *Server) routeUpstream(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	switch {
	case s.authHandler != nil && path == s.cfg.Security.LoginURI:
		s.authHandler.ServeHTTP(w, r)
	case s.catalogHandler != nil && (path == "/api" || strings.HasPrefix(path, "/api/")):
		s.catalogHandler.ServeHTTP(w, r)
	default:
		problem.Write(w, http.StatusNotFound, "Not Found", "", traceIDFrom(r.Context()), path)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	_, requestID, _ := ensureRequestIDs(r)
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-Id", requestID)

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

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	var requestID, traceID string
	r, requestID, traceID = ensureRequestIDs(r)
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-Id", requestID)

	report := health.Report{Status: "ready", CheckedAt: time.Now().UTC()}
	if s.healthChecker != nil {
		report = s.healthChecker.Readiness(r.Context())
	}

	statusCode := http.StatusOK
	if report.Status != "ready" {
		statusCode = http.StatusServiceUnavailable
	}

	response := struct {
		Status    string                  `json:"status"`
		CheckedAt time.Time               `json:"checkedAt"`
		Upstreams []health.UpstreamReport `json:"upstreams"`
		RequestID string                  `json:"requestId,omitempty"`
		TraceID   string                  `json:"traceId,omitempty"`
	}{
		Status:    report.Status,
		CheckedAt: report.CheckedAt,
		Upstreams: report.Upstreams,
		RequestID: requestID,
		TraceID:   traceID,
	}

	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(response)
}
