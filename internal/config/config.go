package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// SecurityConfig captures the token-signing surface shared by the issuer
// and the gateway. Both sides must agree on every field.
type SecurityConfig struct {
	Secret     string
	Header     string
	Prefix     string
	Expiration time.Duration
	LoginURI   string
}

// UpstreamConfig defines a backend service the gateway fronts.
type UpstreamConfig struct {
	Name       string
	BaseURL    string
	HealthPath string
}

// RateLimitConfig captures throttling settings applied at the gateway edge.
type RateLimitConfig struct {
	Window time.Duration
	Max    int
}

// RuleConfig is one entry of the ordered authorization table. An empty Role
// makes the rule public.
type RuleConfig struct {
	Method string `json:"method"`
	Path   string `json:"path"`
	Role   string `json:"role,omitempty"`
}

// Config captures runtime configuration for the gateway.
type Config struct {
	HTTPPort           int
	ShutdownTimeout    time.Duration
	ReadinessTimeout   time.Duration
	ReadinessUserAgent string
	Version            string
	Security           SecurityConfig
	Upstreams          []UpstreamConfig
	Rules              []RuleConfig
	CorsAllowedOrigins []string
	RateLimit          RateLimitConfig
}

// IssuerConfig captures runtime configuration for the token issuer.
type IssuerConfig struct {
	HTTPPort        int
	ShutdownTimeout time.Duration
	Version         string
	Security        SecurityConfig
	UsersDB         string
}

// CatalogConfig captures runtime configuration for the catalog service.
type CatalogConfig struct {
	HTTPPort        int
	ShutdownTimeout time.Duration
	Version         string
	DBPath          string
}

var (
	errMissingSecret     = errors.New("JWT_SECRET must be provided")
	errMissingAuthURL    = errors.New("AUTH_API_URL must be provided")
	errMissingCatalogURL = errors.New("CATALOG_API_URL must be provided")
)

const (
	defaultHTTPPort           = 8080
	defaultShutdownTimeout    = 15 * time.Second
	defaultReadinessTimeout   = 2 * time.Second
	defaultReadinessUserAgent = "marketplace-edge/readyz"
	defaultHealthPath         = "/health"
	defaultTokenHeader        = "Authorization"
	defaultTokenPrefix        = "Bearer "
	defaultExpiration         = 24 * time.Hour
	defaultLoginURI           = "/auth/login"
	defaultRateLimitWindow    = 60 * time.Second
	defaultRateLimitMax       = 120
)

// DefaultSecurity returns the token settings every service starts from.
func DefaultSecurity() SecurityConfig {
	return SecurityConfig{
		Header:     defaultTokenHeader,
		Prefix:     defaultTokenPrefix,
		Expiration: defaultExpiration,
		LoginURI:   defaultLoginURI,
	}
}

// DefaultRules returns the built-in authorization table: login and reads are
// public, writes need USER, deletes need ADMIN. Order matters; there is no
// trailing catch-all, so anything unmatched is denied.
func DefaultRules(loginURI string) []RuleConfig {
	return []RuleConfig{
		{Method: "POST", Path: loginURI},
		{Method: "DELETE", Path: "/api/**", Role: "ADMIN"},
		{Method: "PUT", Path: "/api/**", Role: "USER"},
		{Method: "POST", Path: "/api/**", Role: "USER"},
		{Method: "GET", Path: "/api/**"},
	}
}

// Default returns baseline gateway configuration values.
func Default() Config {
	return Config{
		HTTPPort:           defaultHTTPPort,
		ShutdownTimeout:    defaultShutdownTimeout,
		ReadinessTimeout:   defaultReadinessTimeout,
		ReadinessUserAgent: defaultReadinessUserAgent,
		Version:            os.Getenv("GIT_SHA"),
		Security:           DefaultSecurity(),
		Upstreams: []UpstreamConfig{
			{Name: "auth", BaseURL: "http://localhost:4001", HealthPath: defaultHealthPath},
			{Name: "catalog", BaseURL: "http://localhost:4002", HealthPath: defaultHealthPath},
		},
		Rules: DefaultRules(defaultLoginURI),
		RateLimit: RateLimitConfig{
			Window: defaultRateLimitWindow,
			Max:    defaultRateLimitMax,
		},
	}
}

// Load constructs gateway configuration from environment variables, falling
// back to defaults.
func Load() (Config, error) {
	cfg := Default()

	if err := loadCommon(&cfg.HTTPPort, &cfg.ShutdownTimeout, &cfg.Version); err != nil {
		return cfg, err
	}

	if readinessMs := os.Getenv("READINESS_TIMEOUT_MS"); readinessMs != "" {
		timeout, err := parsePositiveDuration(readinessMs)
		if err != nil {
			return cfg, fmt.Errorf("invalid READINESS_TIMEOUT_MS: %w", err)
		}
		cfg.ReadinessTimeout = timeout
	}

	if ua := os.Getenv("READINESS_USER_AGENT"); ua != "" {
		cfg.ReadinessUserAgent = ua
	}

	security, err := loadSecurity()
	if err != nil {
		return cfg, err
	}
	cfg.Security = security
	cfg.Rules = DefaultRules(security.LoginURI)

	if rulesJSON := strings.TrimSpace(os.Getenv("AUTH_RULES")); rulesJSON != "" {
		var rules []RuleConfig
		if err := json.Unmarshal([]byte(rulesJSON), &rules); err != nil {
			return cfg, fmt.Errorf("invalid AUTH_RULES: %w", err)
		}
		if len(rules) == 0 {
			return cfg, errors.New("AUTH_RULES must declare at least one rule")
		}
		cfg.Rules = rules
	}

	if origins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS")); origins != "" {
		cfg.CorsAllowedOrigins = splitAndTrim(origins)
	}

	if windowMs := os.Getenv("RATE_LIMIT_WINDOW_MS"); windowMs != "" {
		window, err := parsePositiveDuration(windowMs)
		if err != nil {
			return cfg, fmt.Errorf("invalid RATE_LIMIT_WINDOW_MS: %w", err)
		}
		cfg.RateLimit.Window = window
	}

	if maxStr := strings.TrimSpace(os.Getenv("RATE_LIMIT_MAX")); maxStr != "" {
		max, err := strconv.Atoi(maxStr)
		if err != nil || max <= 0 {
			return cfg, fmt.Errorf("invalid RATE_LIMIT_MAX: %s", maxStr)
		}
		cfg.RateLimit.Max = max
	}

	auth, err := loadUpstreamConfig("auth", "AUTH_API_URL", "AUTH_HEALTH_PATH", errMissingAuthURL)
	if err != nil {
		return cfg, err
	}

	catalog, err := loadUpstreamConfig("catalog", "CATALOG_API_URL", "CATALOG_HEALTH_PATH", errMissingCatalogURL)
	if err != nil {
		return cfg, err
	}

	cfg.Upstreams = []UpstreamConfig{auth, catalog}

	return cfg, nil
}

// LoadIssuer constructs issuer configuration from environment variables.
func LoadIssuer() (IssuerConfig, error) {
	cfg := IssuerConfig{
		HTTPPort:        defaultHTTPPort,
		ShutdownTimeout: defaultShutdownTimeout,
		Version:         os.Getenv("GIT_SHA"),
		Security:        DefaultSecurity(),
		UsersDB:         os.Getenv("USERS_DB"),
	}

	if err := loadCommon(&cfg.HTTPPort, &cfg.ShutdownTimeout, &cfg.Version); err != nil {
		return cfg, err
	}

	security, err := loadSecurity()
	if err != nil {
		return cfg, err
	}
	cfg.Security = security

	return cfg, nil
}

// LoadCatalog constructs catalog configuration from environment variables.
func LoadCatalog() (CatalogConfig, error) {
	cfg := CatalogConfig{
		HTTPPort:        defaultHTTPPort,
		ShutdownTimeout: defaultShutdownTimeout,
		Version:         os.Getenv("GIT_SHA"),
		DBPath:          "catalog.db",
	}

	if err := loadCommon(&cfg.HTTPPort, &cfg.ShutdownTimeout, &cfg.Version); err != nil {
		return cfg, err
	}

	if path := strings.TrimSpace(os.Getenv("CATALOG_DB")); path != "" {
		cfg.DBPath = path
	}

	return cfg, nil
}

func loadCommon(port *int, shutdown *time.Duration, version *string) error {
	if portStr := os.Getenv("PORT"); portStr != "" {
		p, err := strconv.Atoi(portStr)
		if err != nil || p <= 0 {
			return fmt.Errorf("invalid PORT value: %s", portStr)
		}
		*port = p
	}

	if shutdownMs := os.Getenv("SHUTDOWN_TIMEOUT_MS"); shutdownMs != "" {
		timeout, err := parsePositiveDuration(shutdownMs)
		if err != nil {
			return fmt.Errorf("invalid SHUTDOWN_TIMEOUT_MS: %w", err)
		}
		*shutdown = timeout
	}

	if v := os.Getenv("GIT_SHA"); v != "" {
		*version = v
	}

	return nil
}

func loadSecurity() (SecurityConfig, error) {
	cfg := DefaultSecurity()

	cfg.Secret = os.Getenv("JWT_SECRET")
	if cfg.Secret == "" {
		return cfg, errMissingSecret
	}

	if header := strings.TrimSpace(os.Getenv("JWT_HEADER")); header != "" {
		cfg.Header = header
	}

	// Deliberately not trimmed: the conventional prefix carries a trailing
	// space ("Bearer ").
	if prefix := os.Getenv("JWT_PREFIX"); prefix != "" {
		cfg.Prefix = prefix
	}

	if expStr := strings.TrimSpace(os.Getenv("JWT_EXPIRATION_SECONDS")); expStr != "" {
		seconds, err := strconv.Atoi(expStr)
		if err != nil || seconds <= 0 {
			return cfg, fmt.Errorf("invalid JWT_EXPIRATION_SECONDS: %s", expStr)
		}
		cfg.Expiration = time.Duration(seconds) * time.Second
	}

	if uri := strings.TrimSpace(os.Getenv("LOGIN_URI")); uri != "" {
		if !strings.HasPrefix(uri, "/") {
			return cfg, fmt.Errorf("LOGIN_URI must be an absolute path: %s", uri)
		}
		cfg.LoginURI = uri
	}

	return cfg, nil
}

func loadUpstreamConfig(name, urlKey, pathKey string, missing error) (UpstreamConfig, error) {
	upstream := UpstreamConfig{Name: name, HealthPath: defaultHealthPath}

	baseURL := os.Getenv(urlKey)
	if baseURL == "" {
		return upstream, missing
	}

	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return upstream, fmt.Errorf("invalid %s: %w", urlKey, err)
	}

	upstream.BaseURL = baseURL

	if path := os.Getenv(pathKey); path != "" {
		upstream.HealthPath = path
	}

	return upstream, nil
}

func parsePositiveDuration(ms string) (time.Duration, error) {
	val, err := strconv.Atoi(ms)
	if err != nil {
		return 0, err
	}
	if val <= 0 {
		return 0, fmt.Errorf("value must be positive: %d", val)
	}
	return time.Duration(val) * time.Millisecond, nil
}

func splitAndTrim(value string) []string {
	parts := strings.FieldsFunc(value, func(r rune) bool {
		return r == ',' || r == ' '
	})
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
