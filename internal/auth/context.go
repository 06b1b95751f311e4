package auth

import (
	"context"
	"net/http"
)

type contextKey string

const (
	identityKey contextKey = "identity"
	failureKey  contextKey = "auth-failure"
)

// WithIdentity returns a copy of ctx carrying the authenticated identity.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// FromContext returns the identity attached by the auth middleware.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	if !ok || id.ID == "" {
		return Identity{}, false
	}
	return id, true
}

// FailureFromContext returns why the request carries no identity.
// Requests that never passed through Middleware report ErrMissingCredential.
func FailureFromContext(ctx context.Context) error {
	if err, ok := ctx.Value(failureKey).(error); ok {
		return err
	}
	return ErrMissingCredential
}

// Middleware verifies the bearer token, when present, and attaches either
// the identity or the verification failure to the request context. It
// never rejects a request; routes that need a caller enforce it themselves.
func (i *Issuer) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := i.VerifyRequest(r)
		ctx := r.Context()
		if err != nil {
			ctx = context.WithValue(ctx, failureKey, err)
		} else {
			ctx = WithIdentity(ctx, id)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
