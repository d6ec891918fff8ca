package config

import (
	"errors"
	"testing"
	"time"
)

func setGatewayEnv(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET", "supersecret")
	t.Setenv("AUTH_API_URL", "https://auth.example.com")
	t.Setenv("CATALOG_API_URL", "https://catalog.example.com")
}

func TestLoadFromEnvSuccess(t *testing.T) {
	setGatewayEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("SHUTDOWN_TIMEOUT_MS", "7000")
	t.Setenv("READINESS_TIMEOUT_MS", "1500")
	t.Setenv("GIT_SHA", "def456")
	t.Setenv("JWT_HEADER", "X-Access-Token")
	t.Setenv("JWT_PREFIX", "Token ")
	t.Setenv("JWT_EXPIRATION_SECONDS", "3600")
	t.Setenv("LOGIN_URI", "/login")
	t.Setenv("AUTH_HEALTH_PATH", "/status/live")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("RATE_LIMIT_WINDOW_MS", "30000")
	t.Setenv("RATE_LIMIT_MAX", "50")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected successful load, got error: %v", err)
	}

	if cfg.HTTPPort != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.HTTPPort)
	}
	if cfg.ShutdownTimeout != 7000*time.Millisecond {
		t.Fatalf("unexpected shutdown timeout: %v", cfg.ShutdownTimeout)
	}
	if cfg.ReadinessTimeout != 1500*time.Millisecond {
		t.Fatalf("unexpected readiness timeout: %v", cfg.ReadinessTimeout)
	}
	if cfg.Version != "def456" {
		t.Fatalf("unexpected version: %s", cfg.Version)
	}
	if cfg.Security.Secret != "supersecret" {
		t.Fatalf("unexpected secret: %s", cfg.Security.Secret)
	}
	if cfg.Security.Header != "X-Access-Token" || cfg.Security.Prefix != "Token " {
		t.Fatalf("unexpected header config: %q %q", cfg.Security.Header, cfg.Security.Prefix)
	}
	if cfg.Security.Expiration != time.Hour {
		t.Fatalf("unexpected expiration: %v", cfg.Security.Expiration)
	}
	if cfg.Security.LoginURI != "/login" {
		t.Fatalf("unexpected login uri: %s", cfg.Security.LoginURI)
	}
	if len(cfg.Upstreams) != 2 {
		t.Fatalf("expected 2 upstreams, got %d", len(cfg.Upstreams))
	}
	if cfg.Upstreams[0].Name != "auth" || cfg.Upstreams[0].HealthPath != "/status/live" {
		t.Fatalf("unexpected auth upstream: %+v", cfg.Upstreams[0])
	}
	if cfg.Upstreams[1].BaseURL != "https://catalog.example.com" {
		t.Fatalf("unexpected catalog upstream: %+v", cfg.Upstreams[1])
	}
	if len(cfg.CorsAllowedOrigins) != 2 {
		t.Fatalf("unexpected origins: %#v", cfg.CorsAllowedOrigins)
	}
	if cfg.RateLimit.Window != 30*time.Second || cfg.RateLimit.Max != 50 {
		t.Fatalf("unexpected rate limit: %+v", cfg.RateLimit)
	}
	// The default table must follow the configured login URI.
	if cfg.Rules[0].Path != "/login" {
		t.Fatalf("default rules ignore LOGIN_URI: %+v", cfg.Rules[0])
	}
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("AUTH_API_URL", "https://auth.example.com")
	t.Setenv("CATALOG_API_URL", "https://catalog.example.com")

	if _, err := Load(); !errors.Is(err, errMissingSecret) {
		t.Fatalf("expected missing secret error, got %v", err)
	}
}

func TestLoadRequiresUpstreams(t *testing.T) {
	t.Setenv("JWT_SECRET", "supersecret")
	t.Setenv("AUTH_API_URL", "")
	t.Setenv("CATALOG_API_URL", "https://catalog.example.com")

	if _, err := Load(); !errors.Is(err, errMissingAuthURL) {
		t.Fatalf("expected missing auth url error, got %v", err)
	}

	t.Setenv("AUTH_API_URL", "https://auth.example.com")
	t.Setenv("CATALOG_API_URL", "")

	if _, err := Load(); !errors.Is(err, errMissingCatalogURL) {
		t.Fatalf("expected missing catalog url error, got %v", err)
	}
}

func TestLoadValidatesURLs(t *testing.T) {
	t.Setenv("JWT_SECRET", "supersecret")
	t.Setenv("AUTH_API_URL", "not-a-url")
	t.Setenv("CATALOG_API_URL", "https://catalog.example.com")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for invalid AUTH_API_URL")
	}
}

func TestLoadCustomRules(t *testing.T) {
	setGatewayEnv(t)
	t.Setenv("AUTH_RULES", `[
		{"method":"POST","path":"/auth/login"},
		{"method":"*","path":"/api/**","role":"USER"}
	]`)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(cfg.Rules) != 2 {
		t.Fatalf("expected 2 rules, got %d", len(cfg.Rules))
	}
	if cfg.Rules[1].Method != "*" || cfg.Rules[1].Role != "USER" {
		t.Fatalf("rule order or fields lost: %+v", cfg.Rules)
	}
}

func TestLoadRejectsBadRules(t *testing.T) {
	setGatewayEnv(t)

	t.Setenv("AUTH_RULES", `{not json}`)
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for malformed AUTH_RULES")
	}

	t.Setenv("AUTH_RULES", `[]`)
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for empty AUTH_RULES")
	}
}

func TestLoadRejectsBadExpiration(t *testing.T) {
	setGatewayEnv(t)
	t.Setenv("JWT_EXPIRATION_SECONDS", "-5")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for negative expiration")
	}
}

func TestLoadIssuer(t *testing.T) {
	t.Setenv("JWT_SECRET", "supersecret")
	t.Setenv("USERS_DB", "/tmp/users.db")
	t.Setenv("PORT", "4001")

	cfg, err := LoadIssuer()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTPPort != 4001 {
		t.Fatalf("unexpected port: %d", cfg.HTTPPort)
	}
	if cfg.UsersDB != "/tmp/users.db" {
		t.Fatalf("unexpected users db: %s", cfg.UsersDB)
	}
	if cfg.Security.Secret != "supersecret" {
		t.Fatalf("unexpected secret: %s", cfg.Security.Secret)
	}
}

func TestLoadIssuerRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	if _, err := LoadIssuer(); !errors.Is(err, errMissingSecret) {
		t.Fatalf("expected missing secret error, got %v", err)
	}
}

func TestLoadCatalog(t *testing.T) {
	t.Setenv("CATALOG_DB", "/tmp/catalog.db")
	t.Setenv("PORT", "4002")

	cfg, err := LoadCatalog()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTPPort != 4002 {
		t.Fatalf("unexpected port: %d", cfg.HTTPPort)
	}
	if cfg.DBPath != "/tmp/catalog.db" {
		t.Fatalf("unexpected db path: %s", cfg.DBPath)
	}
}

func TestDefaultRulesMirrorPolicy(t *testing.T) {
	rules := DefaultRules("/auth/login")

	if len(rules) != 5 {
		t.Fatalf("expected 5 default rules, got %d", len(rules))
	}
	if rules[0].Method != "POST" || rules[0].Path != "/auth/login" || rules[0].Role != "" {
		t.Fatalf("unexpected login rule: %+v", rules[0])
	}
	if rules[1].Method != "DELETE" || rules[1].Role != "ADMIN" {
		t.Fatalf("unexpected delete rule: %+v", rules[1])
	}
	if rules[4].Method != "GET" || rules[4].Role != "" {
		t.Fatalf("unexpected read rule: %+v", rules[4])
	}
}
