package issuer

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/marketplace/edge/internal/config"
	"github.com/marketplace/edge/internal/credential"
	"github.com/marketplace/edge/pkg/metrics"
)

func newTestServer() *Server {
	cfg := config.IssuerConfig{
		HTTPPort:        0,
		ShutdownTimeout: time.Second,
		Security:        testSecurity(),
	}
	return NewServer(cfg, credential.SeededStore(), metrics.NewRegistry())
}

func TestServerMountsLoginRoute(t *testing.T) {
	srv := newTestServer()

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"username":"user","password":"user"}`))
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if rr.Header().Get("Authorization") == "" {
		t.Fatalf("expected token header on login route")
	}
}

func TestServerHealth(t *testing.T) {
	srv := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	var payload struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode health payload: %v", err)
	}
	if payload.Status != "ok" {
		t.Fatalf("unexpected status: %s", payload.Status)
	}
}

func TestServerUnknownRouteIs404(t *testing.T) {
	srv := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestServerExposesMetrics(t *testing.T) {
	srv := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}
