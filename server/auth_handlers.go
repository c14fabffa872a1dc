package server

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/platformedge/gateway/callback"
	"github.com/platformedge/gateway/server/authflowrepo"
	"github.com/platformedge/gateway/sessions"
)

// LoginHandler starts a sign-in: it records a one-time state value and sends
// the browser to the identity provider's authorization endpoint.
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		oauthCfg, err := s.oidcConfig(r.Context())
		if err != nil {
			log.Error().Err(err).Msg("identity provider discovery failed")
			http.Error(w, "identity provider unavailable", http.StatusBadGateway)
			return
		}

		state := generateRandomString(32)
		if err := s.deps.AuthState.Upsert(state, &authflowrepo.AuthFlowState{
			ReturnURL: r.URL.Query().Get("return_to"),
			CreatedAt: time.Now(),
		}); err != nil {
			http.Error(w, "failed to start sign-in", http.StatusInternalServerError)
			return
		}

		http.Redirect(w, r, oauthCfg.AuthCodeURL(state), http.StatusFound)
	}
}

// exchange is the Flow's single point of contact with the auth service. A
// fresh session ID is minted per exchange; the Flow guarantees this runs at
// most once per distinct code.
func (s *Server) exchange(ctx context.Context, code string) (*sessions.Session, error) {
	sessionID := uuid.New().String()
	return s.deps.Auth.ExchangeCode(ctx, sessionID, code, s.config.GetCallbackURL())
}

// CallbackHandler consumes the identity provider redirect. The state record
// is deleted on first use, so a reloaded or replayed redirect fails state
// validation instead of re-reading the code; duplicate deliveries that do
// reach the flow are suppressed by its recorded-codes set.
func (s *Server) CallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Parse form to support both GET (query params) and POST (form_post response mode)
		if err := r.ParseForm(); err != nil {
			http.Error(w, "malformed callback request", http.StatusBadRequest)
			return
		}

		var returnURL string
		if state := r.Form.Get("state"); state != "" {
			authState, err := s.deps.AuthState.Get(state)
			if err != nil {
				redirectWithError(w, r, s.config.GetLoginReturnURL(), "Sign-in attempt not recognised. Please log in again.")
				return
			}
			returnURL = authState.ReturnURL
			// Clean up state after use
			_ = s.deps.AuthState.Delete(state)
		}

		result := s.flow.Run(r.Context(), r.Form)

		switch result.State {
		case callback.StateSucceeded:
			session := result.Session
			maxAge := int(time.Until(session.Expiry).Seconds())
			s.SetSessionCookie(w, r, session.ID, maxAge)
			s.loadOrganisationContext(r.Context(), session.ID)

			if returnURL == "" || returnURL == "/" {
				returnURL = RouteDashboard
			}
			http.Redirect(w, r, returnURL, http.StatusSeeOther)

		case callback.StateExchanging:
			// Duplicate delivery while the original attempt is in flight; no
			// second exchange was issued.
			http.Redirect(w, r, RouteDashboard, http.StatusSeeOther)

		default:
			if s.deps.AuditLog != nil && result.Err != nil {
				s.deps.AuditLog.RecordCallbackFailure(r.Context(), "", result.Err.Error())
			}
			if result.Reason == callback.ReasonRunawayLoop {
				http.Error(w, result.Message, http.StatusInternalServerError)
				return
			}
			redirectWithError(w, r, s.config.GetLoginReturnURL(), result.Message)
		}
	}
}

// loadOrganisationContext primes the accessible-organisation set right after
// sign-in so the first dashboard request finds it. Failure is non-fatal; the
// context is loaded lazily on demand.
func (s *Server) loadOrganisationContext(ctx context.Context, sessionID string) {
	principal, err := s.deps.Auth.CurrentUser(ctx, sessionID)
	if err != nil {
		log.Warn().Str("session_id", sessionID).Err(err).Msg("profile fetch after sign-in failed")
		return
	}
	if _, err := s.deps.Orgs.Load(ctx, principal); err != nil {
		log.Warn().Str("session_id", sessionID).Err(err).Msg("organisation context load failed")
	}
}

// LogoutHandler destroys the session, its organisation context and any
// pending extension signal, then clears the cookie.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cookie, err := r.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
			if err := s.deps.Auth.Logout(r.Context(), cookie.Value); err != nil {
				log.Error().Err(err).Msg("logout failed")
			}
			if s.deps.Extender != nil {
				s.deps.Extender.Forget(cookie.Value)
			}
			s.deps.Orgs.Unload(cookie.Value)
		}

		s.ClearSessionCookie(w, r)
		http.Redirect(w, r, s.config.GetLoginReturnURL(), http.StatusSeeOther)
	}
}
