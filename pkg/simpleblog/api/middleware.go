package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/tendant/simple-blog/pkg/simpleblog"
)

type contextKey string

const identityKey contextKey = "identity"

// Sessions issues, clears and resolves the session credential. *session.Issuer implements it.
type Sessions interface {
	Issue(w http.ResponseWriter, id uuid.UUID) error
	Revoke(w http.ResponseWriter)
	Resolve(r *http.Request) (uuid.UUID, error)
}

// WithIdentity stores the authenticated identity in ctx
func WithIdentity(ctx context.Context, identity *simpleblog.Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFromContext returns the identity set by RequireIdentity
func IdentityFromContext(ctx context.Context) (*simpleblog.Identity, bool) {
	identity, ok := ctx.Value(identityKey).(*simpleblog.Identity)
	return identity, ok && identity != nil
}

// RequireIdentity admits a request only when it carries a valid credential naming an
// existing identity. The identity is reloaded on every request so deleted accounts lose access.
func (h *Handler) RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := h.sessions.Resolve(r)
		if err != nil {
			renderError(w, r, "resolve session", simpleblog.ErrUnauthenticated)
			return
		}

		identity, err := h.service.CurrentIdentity(r.Context(), id)
		if err != nil {
			if errors.Is(err, simpleblog.ErrIdentityNotFound) {
				renderError(w, r, "resolve session", simpleblog.ErrUnauthenticated)
				return
			}
			renderError(w, r, "load identity", err)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
	})
}
