package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHandlerServesRegisteredCounters(t *testing.T) {
	registry := NewRegistry()

	registry.ObserveAuthzDecision("permit")
	registry.ObserveTokenValidation("expired")
	registry.ObserveLoginAttempt("denied")
	registry.ObserveProxyDuration("catalog", 25*time.Millisecond)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	registry.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	body := rr.Body.String()
	for _, metric := range []string{
		`gateway_authz_decisions_total{decision="permit"} 1`,
		`gateway_token_validation_total{outcome="expired"} 1`,
		`auth_login_attempts_total{outcome="denied"} 1`,
		"gateway_proxy_duration_seconds",
	} {
		if !strings.Contains(body, metric) {
			t.Fatalf("expected metric %q in output", metric)
		}
	}
}

func TestNilRegistryIsSafe(t *testing.T) {
	var registry *Registry

	registry.ObserveAuthzDecision("permit")
	registry.ObserveTokenValidation("valid")
	registry.ObserveLoginAttempt("success")
	registry.ObserveProxyDuration("auth", time.Millisecond)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	registry.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 from nil registry handler, got %d", rr.Code)
	}
}
