package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry wraps a Prometheus registry together with the collectors the
// edge services share.
type Registry struct {
	registry *prometheus.Registry

	authzDecisions   *prometheus.CounterVec
	tokenValidations *prometheus.CounterVec
	loginAttempts    *prometheus.CounterVec
	proxyDuration    *prometheus.HistogramVec
}

// NewRegistry creates a registry preloaded with default collectors and the
// edge-specific counters.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{
		registry: reg,
		authzDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_authz_decisions_total",
			Help: "Authorization decisions by outcome.",
		}, []string{"decision"}),
		tokenValidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_token_validation_total",
			Help: "Token validation outcomes, including failures recovered as anonymous.",
		}, []string{"outcome"}),
		loginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_login_attempts_total",
			Help: "Login attempts by outcome.",
		}, []string{"outcome"}),
		proxyDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gateway_proxy_duration_seconds",
			Help:    "Time spent forwarding permitted requests upstream.",
			Buckets: prometheus.DefBuckets,
		}, []string{"upstream"}),
	}

	reg.MustRegister(r.authzDecisions, r.tokenValidations, r.loginAttempts, r.proxyDuration)

	return r
}

// Handler returns an HTTP handler that exposes Prometheus metrics.
func (r *Registry) Handler() http.Handler {
	if r == nil || r.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Register allows callers to register custom collectors.
func (r *Registry) Register(c prometheus.Collector) {
	if r == nil || r.registry == nil {
		return
	}
	r.registry.MustRegister(c)
}

// ObserveAuthzDecision counts one authorization decision.
func (r *Registry) ObserveAuthzDecision(decision string) {
	if r == nil {
		return
	}
	r.authzDecisions.WithLabelValues(decision).Inc()
}

// ObserveTokenValidation counts one token validation outcome.
func (r *Registry) ObserveTokenValidation(outcome string) {
	if r == nil {
		return
	}
	r.tokenValidations.WithLabelValues(outcome).Inc()
}

// ObserveLoginAttempt counts one login attempt outcome.
func (r *Registry) ObserveLoginAttempt(outcome string) {
	if r == nil {
		return
	}
	r.loginAttempts.WithLabelValues(outcome).Inc()
}

// ObserveProxyDuration records how long an upstream forward took.
func (r *Registry) ObserveProxyDuration(upstream string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.proxyDuration.WithLabelValues(upstream).Observe(elapsed.Seconds())
}
