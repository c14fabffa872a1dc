package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/platformedge/gateway/auth"
	"github.com/platformedge/gateway/organisations"
	"github.com/platformedge/gateway/platform"
)

const dashboardCacheTTL = time.Minute

// DashboardFetcher is the slice of the backend client the dashboard proxy
// needs. *platform.Client satisfies it.
type DashboardFetcher interface {
	Dashboard(ctx context.Context, accessToken, orgID, tool string) (*platform.Dashboard, error)
}

// MeHandler returns the authenticated principal.
func (s *Server) MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := PrincipalFromContext(r.Context())
		if !ok {
			writeJSONError(w, http.StatusUnauthorized, "missing principal")
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"user":         principal.User,
			"organisation": principal.Organisation,
			"permissions":  principal.Permissions,
		})
	}
}

// OrganisationsHandler lists the accessible organisations and the current one.
func (s *Server) OrganisationsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := PrincipalFromContext(r.Context())
		if !ok {
			writeJSONError(w, http.StatusUnauthorized, "missing principal")
			return
		}

		orgCtx, err := s.organisationContext(r.Context(), principal)
		if err != nil {
			writeJSONError(w, http.StatusBadGateway, "failed to load organisations")
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"current":    orgCtx.Current(),
			"accessible": orgCtx.Accessible(),
		})
	}
}

// SwitchOrganisationHandler changes the organisation in focus for the session.
func (s *Server) SwitchOrganisationHandler() http.HandlerFunc {
	type switchRequest struct {
		OrganisationID string `json:"organisation_id"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := PrincipalFromContext(r.Context())
		if !ok {
			writeJSONError(w, http.StatusUnauthorized, "missing principal")
			return
		}

		var req switchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OrganisationID == "" {
			writeJSONError(w, http.StatusBadRequest, "organisation_id is required")
			return
		}

		if _, err := s.organisationContext(r.Context(), principal); err != nil {
			writeJSONError(w, http.StatusBadGateway, "failed to load organisations")
			return
		}

		org, err := s.deps.Orgs.Switch(r.Context(), principal.SessionID, req.OrganisationID)
		switch {
		case errors.Is(err, organisations.ErrAccessDenied):
			writeJSONError(w, http.StatusForbidden, "organisation not accessible")
			return
		case err != nil:
			log.Error().Str("session_id", principal.SessionID).Err(err).Msg("organisation switch failed")
			writeJSONError(w, http.StatusInternalServerError, "organisation switch failed")
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{"current": org})
	}
}

// DashboardHandler proxies organisation-scoped dashboard payloads through the
// per-organisation cache, so a tenant switch leaves nothing stale behind.
func (s *Server) DashboardHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := PrincipalFromContext(r.Context())
		if !ok {
			writeJSONError(w, http.StatusUnauthorized, "missing principal")
			return
		}
		tool := r.PathValue("tool")

		orgCtx, err := s.organisationContext(r.Context(), principal)
		if err != nil {
			writeJSONError(w, http.StatusBadGateway, "failed to load organisations")
			return
		}
		org := orgCtx.Current()
		if org == nil {
			writeJSONError(w, http.StatusConflict, "no organisation selected")
			return
		}

		cacheKey := fmt.Sprintf("dashboard:%s", tool)
		if cached, hit, err := s.deps.Cache.Get(r.Context(), org.ID, cacheKey); err == nil && hit {
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			_, _ = w.Write(cached)
			return
		}

		session, err := s.deps.Sessions.Load(r.Context(), principal.SessionID)
		if err != nil {
			writeJSONError(w, http.StatusUnauthorized, "session expired")
			return
		}

		dashboard, err := s.deps.Dashboard.Dashboard(r.Context(), session.AccessToken, org.ID, tool)
		if err != nil {
			log.Error().Str("tool", tool).Err(err).Msg("dashboard fetch failed")
			writeJSONError(w, http.StatusBadGateway, "dashboard fetch failed")
			return
		}

		body, err := json.Marshal(dashboard)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, "dashboard encode failed")
			return
		}
		if err := s.deps.Cache.Set(r.Context(), org.ID, cacheKey, body, dashboardCacheTTL); err != nil {
			log.Warn().Err(err).Msg("dashboard cache write failed")
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_, _ = w.Write(body)
	}
}

// AuditHandler lists recent security events. Requires the audit permission or
// a super-admin role.
func (s *Server) AuditHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := PrincipalFromContext(r.Context())
		if !ok {
			writeJSONError(w, http.StatusUnauthorized, "missing principal")
			return
		}
		if !principal.HasPermission("read:audit") && !principal.IsSuperAdmin() {
			writeJSONError(w, http.StatusForbidden, "audit access denied")
			return
		}

		events, err := s.deps.AuditLog.List(r.Context(), 100)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, "failed to list audit events")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"events": events})
	}
}

func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// organisationContext returns the session's organisation context, loading it
// on first use after sign-in.
func (s *Server) organisationContext(ctx context.Context, principal *auth.Principal) (*organisations.Context, error) {
	orgCtx, err := s.deps.Orgs.Get(principal.SessionID)
	if err == nil {
		return orgCtx, nil
	}
	if !errors.Is(err, organisations.ErrContextNotLoaded) {
		return nil, err
	}
	return s.deps.Orgs.Load(ctx, principal)
}
