package server

import (
	"context"
	"net/http"

	"github.com/pkg/errors"

	"github.com/platformedge/gateway/auth"
	"github.com/platformedge/gateway/platform"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeyPrincipal stores the authenticated principal
	ContextKeyPrincipal ContextKey = "principal"
)

// PrincipalFromContext returns the principal placed by RequireSession.
func PrincipalFromContext(ctx context.Context) (*auth.Principal, bool) {
	p, ok := ctx.Value(ContextKeyPrincipal).(*auth.Principal)
	return p, ok
}

// RequireSession validates the session cookie, resolves the principal and
// injects it into the request context. Any request passing here counts as an
// activity signal for session extension.
func (s *Server) RequireSession() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(sessionCookieName)
			if err != nil || cookie.Value == "" {
				writeJSONError(w, http.StatusUnauthorized, "missing session")
				return
			}

			principal, err := s.deps.Auth.CurrentUser(r.Context(), cookie.Value)
			if err != nil {
				if errors.Is(err, platform.ErrUnauthenticated) {
					s.ClearSessionCookie(w, r)
					writeJSONError(w, http.StatusUnauthorized, "session expired")
					return
				}
				writeJSONError(w, http.StatusBadGateway, "profile fetch failed")
				return
			}

			if s.deps.Extender != nil {
				s.deps.Extender.Activity(cookie.Value)
			}

			ctx := context.WithValue(r.Context(), ContextKeyPrincipal, principal)
			next(w, r.WithContext(ctx))
		}
	}
}
