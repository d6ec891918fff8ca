package gateway

import (
	"context"

	"github.com/marketplace/edge/internal/authz"
)

type contextKey string

const securityContextKey contextKey = "securityContext"

// WithSubject returns a context carrying the validated caller identity.
// Token validation calls this at most once per request; the value is
// discarded with the request and never shared.
func WithSubject(ctx context.Context, subject authz.Subject) context.Context {
	return context.WithValue(ctx, securityContextKey, subject)
}

// SubjectFrom extracts the caller identity from the request context. The
// zero Subject means the caller is anonymous.
func SubjectFrom(ctx context.Context) authz.Subject {
	if subject, ok := ctx.Value(securityContextKey).(authz.Subject); ok {
		return subject
	}
	return authz.Subject{}
}
