// Package issuer implements the login endpoint that exchanges valid
// credentials for a signed access token carried in a response header.
package issuer

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/marketplace/edge/internal/config"
	"github.com/marketplace/edge/internal/credential"
	"github.com/marketplace/edge/internal/token"
	pkglog "github.com/marketplace/edge/pkg/log"
	"github.com/marketplace/edge/pkg/metrics"
	"github.com/marketplace/edge/pkg/problem"
)

// Credentials bound from 1 MiB keeps oversized bodies from tying up the
// decoder; real login payloads are tiny.
const maxBodyBytes = 1 << 20

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Handler serves POST <login URI>. It is an open route; reachability of any
// other path is the gateway's authorization table's concern.
type Handler struct {
	verifier *credential.Verifier
	security config.SecurityConfig
	registry *metrics.Registry
	now      func() time.Time
}

// NewHandler constructs the login handler.
func NewHandler(verifier *credential.Verifier, security config.SecurityConfig, registry *metrics.Registry) *Handler {
	return &Handler{
		verifier: verifier,
		security: security,
		registry: registry,
		now:      time.Now,
	}
}

// ServeHTTP implements the login contract: 200 with the token header and an
// empty body on success, 401 with a generic problem document otherwise.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	traceID := r.Header.Get("X-Trace-Id")

	if r.Method != http.MethodPost {
		problem.Write(w, http.StatusMethodNotAllowed, "Method Not Allowed", "Login requires POST", traceID, r.URL.Path)
		return
	}

	var creds loginRequest
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(&creds); err != nil {
		// Unreadable credentials get the same answer as wrong ones.
		h.reject(w, r, traceID)
		return
	}

	principal, err := h.verifier.Authenticate(r.Context(), creds.Username, creds.Password)
	if err != nil {
		h.reject(w, r, traceID)
		return
	}

	now := h.now().UTC()
	claims := token.Claims{
		Subject:     principal.Username,
		Authorities: principal.Roles,
		IssuedAt:    now,
		ExpiresAt:   now.Add(h.security.Expiration),
	}

	signed, err := token.Sign(claims, []byte(h.security.Secret))
	if err != nil {
		pkglog.Logger().Errorw("token signing failed", "error", err, "subject", principal.Username)
		h.registry.ObserveLoginAttempt("error")
		problem.Write(w, http.StatusInternalServerError, "Internal Server Error", "", traceID, r.URL.Path)
		return
	}

	h.registry.ObserveLoginAttempt("success")
	pkglog.Logger().Infow("issued token", "subject", principal.Username, "expiresAt", claims.ExpiresAt)

	w.Header().Set(h.security.Header, h.security.Prefix+signed)
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request, traceID string) {
	h.registry.ObserveLoginAttempt("denied")
	problem.WriteUnauthorized(w, credential.ErrInvalidCredentials.Error(), traceID, r.URL.Path)
}
