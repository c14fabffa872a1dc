package server_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/platformedge/gateway/audit"
	"github.com/platformedge/gateway/audit/repofake"
	"github.com/platformedge/gateway/auth"
	"github.com/platformedge/gateway/internal/config"
	"github.com/platformedge/gateway/organisations"
	"github.com/platformedge/gateway/organisations/orgcache"
	"github.com/platformedge/gateway/platform"
	"github.com/platformedge/gateway/server"
	"github.com/platformedge/gateway/server/authflowrepo"
	"github.com/platformedge/gateway/sessions"
)

const sessionCookieName = "platform_session_id"

// testConfig overrides the environment-derived values the tests care about.
type testConfig struct {
	config.EnvVars
	config.Cors
	config.Identity
	config.Session
	config.Redis

	apiBaseURL string
	issuerURL  string
}

func (c testConfig) GetAPIBaseURL() string { return c.apiBaseURL }
func (c testConfig) GetEnv() string        { return "TEST" }

func (c testConfig) GetIdentityIssuerURL() string {
	if c.issuerURL != "" {
		return c.issuerURL
	}
	return c.Identity.GetIdentityIssuerURL()
}

func (c testConfig) GetIdentityClientID() string { return "test-client-id" }

// fakePlatformBackend is an httptest server speaking the backend API. Login
// succeeds once per code; a replayed code gets 400 like the real backend.
type fakePlatformBackend struct {
	*httptest.Server
	usedCodes map[string]bool
}

func newFakePlatformBackend(t *testing.T) *fakePlatformBackend {
	t.Helper()
	backend := &fakePlatformBackend{usedCodes: make(map[string]bool)}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		code := body["code"]
		if code == "" || backend.usedCodes[code] {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"detail": "invalid authorization code"})
			return
		}
		backend.usedCodes[code] = true

		_ = json.NewEncoder(w).Encode(platform.TokenResponse{
			AccessToken:  "access-token",
			RefreshToken: "refresh-token",
			TokenType:    "Bearer",
			ExpiresIn:    1800,
			User:         &platform.User{ID: "user-1", Role: auth.RoleAnalyst, OrganisationID: "org-alpha"},
		})
	})
	mux.HandleFunc("GET /auth/me", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(platform.MeResponse{
			User:         platform.User{ID: "user-1", Role: auth.RoleAnalyst, OrganisationID: "org-alpha"},
			Organisation: &platform.Organisation{ID: "org-alpha", Name: "Alpha Ltd"},
			Permissions:  []string{"read:data"},
		})
	})
	mux.HandleFunc("GET /organisations/accessible", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]platform.Organisation{
			{ID: "org-alpha", Name: "Alpha Ltd"},
			{ID: "org-beta", Name: "Beta Ltd"},
		})
	})
	mux.HandleFunc("POST /organisations/switch-audit", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /organisations/{org}/dashboards/{tool}", func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprintf(w, `{"rows": ["%s"]}`, r.PathValue("tool"))
	})

	backend.Server = httptest.NewServer(mux)
	t.Cleanup(backend.Close)
	return backend
}

type serverFixture struct {
	server    *server.Server
	backend   *fakePlatformBackend
	sessions  sessions.Repo
	authState authflowrepo.Repo
	auditRepo *repofake.FakeAuditRepo
}

func newServerFixture(t *testing.T) *serverFixture {
	return newServerFixtureWithIssuer(t, "")
}

func newServerFixtureWithIssuer(t *testing.T, issuer string) *serverFixture {
	t.Helper()

	backend := newFakePlatformBackend(t)
	client := platform.NewClient(backend.URL)
	sessionRepo := sessions.NewInMemoryRepo()
	cache := orgcache.NewInMemoryCache()
	auditRepo := repofake.NewFakeAuditRepo()
	auditLog := audit.NewLog(auditRepo)

	authService, err := auth.NewService(auth.Deps{Sessions: sessionRepo, API: client, Audit: auditLog})
	require.NoError(t, err)

	orgManager, err := organisations.NewManager(organisations.Deps{
		API:      client,
		Sessions: sessionRepo,
		Cache:    cache,
		Audit:    auditLog,
	})
	require.NoError(t, err)

	extender := auth.NewExtender(sessionRepo, time.Minute, 30*time.Minute)
	authState := authflowrepo.NewInMemoryRepo()

	srv, err := server.New(testConfig{apiBaseURL: backend.URL, issuerURL: issuer}, server.Deps{
		Auth:      authService,
		Orgs:      orgManager,
		Sessions:  sessionRepo,
		Cache:     cache,
		Extender:  extender,
		AuditLog:  auditLog,
		AuthState: authState,
		Dashboard: client,
	})
	require.NoError(t, err)

	return &serverFixture{
		server:    srv,
		backend:   backend,
		sessions:  sessionRepo,
		authState: authState,
		auditRepo: auditRepo,
	}
}

func (f *serverFixture) seedState(t *testing.T, state, returnURL string) {
	t.Helper()
	require.NoError(t, f.authState.Upsert(state, &authflowrepo.AuthFlowState{
		ReturnURL: returnURL,
		CreatedAt: time.Now(),
	}))
}

func (f *serverFixture) callback(t *testing.T, query url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/auth/callback?"+query.Encode(), nil)
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	return rec
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == sessionCookieName {
			return cookie
		}
	}
	t.Fatal("session cookie not set")
	return nil
}

func TestCallbackSuccessEstablishesSession(t *testing.T) {
	fixture := newServerFixture(t)
	fixture.seedState(t, "state-1", "")

	rec := fixture.callback(t, url.Values{
		"code":  []string{"auth-code"},
		"state": []string{"state-1"},
	})

	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/api/me", rec.Header().Get("Location"))

	cookie := sessionCookie(t, rec)
	require.NotEmpty(t, cookie.Value)
	require.True(t, cookie.HttpOnly)
	require.Positive(t, cookie.MaxAge)

	stored, err := fixture.sessions.Load(t.Context(), cookie.Value)
	require.NoError(t, err)
	require.Equal(t, "access-token", stored.AccessToken)
	require.Equal(t, "user-1", stored.UserID)
}

func TestCallbackHonoursReturnURL(t *testing.T) {
	fixture := newServerFixture(t)
	fixture.seedState(t, "state-1", "/api/dashboards/market-edge")

	rec := fixture.callback(t, url.Values{
		"code":  []string{"auth-code"},
		"state": []string{"state-1"},
	})

	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/api/dashboards/market-edge", rec.Header().Get("Location"))
}

func TestCallbackReplayedStateIsRejected(t *testing.T) {
	fixture := newServerFixture(t)
	fixture.seedState(t, "state-1", "")

	first := fixture.callback(t, url.Values{
		"code":  []string{"auth-code"},
		"state": []string{"state-1"},
	})
	require.Equal(t, http.StatusSeeOther, first.Code)

	// A reload re-delivers the same redirect; the state record is gone so
	// no second exchange is attempted.
	replay := fixture.callback(t, url.Values{
		"code":  []string{"auth-code"},
		"state": []string{"state-1"},
	})
	require.Equal(t, http.StatusSeeOther, replay.Code)
	location, err := url.Parse(replay.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "/auth/login", location.Path)
	require.Contains(t, location.Query().Get("error"), "not recognised")
}

func TestCallbackProviderErrorRedirectsToLogin(t *testing.T) {
	fixture := newServerFixture(t)
	fixture.seedState(t, "state-1", "")

	rec := fixture.callback(t, url.Values{
		"state":             []string{"state-1"},
		"error":             []string{"access_denied"},
		"error_description": []string{"user cancelled"},
	})

	require.Equal(t, http.StatusSeeOther, rec.Code)
	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "/auth/login", location.Path)
	require.NotEmpty(t, location.Query().Get("error"))

	// The failure is recorded for the security log.
	events, err := fixture.auditRepo.List(t.Context(), 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, audit.KindCallbackFailure, events[0].Kind)
}

func TestCallbackSpentCodeRedirectsWithReLoginMessage(t *testing.T) {
	fixture := newServerFixture(t)
	fixture.backend.usedCodes["stale-code"] = true
	fixture.seedState(t, "state-1", "")

	rec := fixture.callback(t, url.Values{
		"code":  []string{"stale-code"},
		"state": []string{"state-1"},
	})

	require.Equal(t, http.StatusSeeOther, rec.Code)
	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "/auth/login", location.Path)
	require.Contains(t, location.Query().Get("error"), "log in again")
}

func TestLoginRedirectsToIdentityProvider(t *testing.T) {
	// A minimal OIDC discovery document is enough for the login redirect.
	var issuer string
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/.well-known/openid-configuration", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"issuer":                 issuer,
			"authorization_endpoint": issuer + "/authorize",
			"token_endpoint":         issuer + "/oauth/token",
			"jwks_uri":               issuer + "/.well-known/jwks.json",
		})
	}))
	defer provider.Close()
	issuer = provider.URL

	fixture := newServerFixtureWithIssuer(t, issuer)

	req := httptest.NewRequest(http.MethodGet, "/auth/login?return_to=/api/me", nil)
	rec := httptest.NewRecorder()
	fixture.server.ServeHTTP(rec, req)

	require.Equal(t, http.StatusFound, rec.Code)
	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(location.String(), issuer+"/authorize"))
	require.Equal(t, "test-client-id", location.Query().Get("client_id"))

	// The state parameter is recorded for one-time validation on callback.
	state := location.Query().Get("state")
	require.NotEmpty(t, state)
	flowState, err := fixture.authState.Get(state)
	require.NoError(t, err)
	require.Equal(t, "/api/me", flowState.ReturnURL)
}

func TestLogoutClearsSessionAndCookie(t *testing.T) {
	fixture := newServerFixture(t)
	fixture.seedState(t, "state-1", "")

	signIn := fixture.callback(t, url.Values{
		"code":  []string{"auth-code"},
		"state": []string{"state-1"},
	})
	cookie := sessionCookie(t, signIn)

	req := httptest.NewRequest(http.MethodGet, "/auth/logout", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	fixture.server.ServeHTTP(rec, req)

	require.Equal(t, http.StatusSeeOther, rec.Code)
	cleared := sessionCookie(t, rec)
	require.Empty(t, cleared.Value)
	require.Negative(t, cleared.MaxAge)

	_, err := fixture.sessions.Load(t.Context(), cookie.Value)
	require.ErrorIs(t, err, sessions.ErrSessionNotFound)

	// Authenticated endpoints reject the old cookie.
	apiReq := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	apiReq.AddCookie(cookie)
	apiRec := httptest.NewRecorder()
	fixture.server.ServeHTTP(apiRec, apiReq)
	require.Equal(t, http.StatusUnauthorized, apiRec.Code)
}

func TestAPIRequiresSessionCookie(t *testing.T) {
	fixture := newServerFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	rec := httptest.NewRecorder()
	fixture.server.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSwitchOrganisationEndToEnd(t *testing.T) {
	fixture := newServerFixture(t)
	fixture.seedState(t, "state-1", "")

	signIn := fixture.callback(t, url.Values{
		"code":  []string{"auth-code"},
		"state": []string{"state-1"},
	})
	cookie := sessionCookie(t, signIn)

	req := httptest.NewRequest(http.MethodPost, "/api/organisations/switch",
		strings.NewReader(`{"organisation_id": "org-beta"}`))
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	fixture.server.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Current platform.Organisation `json:"current"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Equal(t, "org-beta", body.Current.ID)

	// Denied target organisations leave the focus untouched.
	deniedReq := httptest.NewRequest(http.MethodPost, "/api/organisations/switch",
		strings.NewReader(`{"organisation_id": "org-unknown"}`))
	deniedReq.AddCookie(cookie)
	deniedRec := httptest.NewRecorder()
	fixture.server.ServeHTTP(deniedRec, deniedReq)
	require.Equal(t, http.StatusForbidden, deniedRec.Code)
}

func TestDashboardIsServedAndCachedPerOrganisation(t *testing.T) {
	fixture := newServerFixture(t)
	fixture.seedState(t, "state-1", "")

	signIn := fixture.callback(t, url.Values{
		"code":  []string{"auth-code"},
		"state": []string{"state-1"},
	})
	cookie := sessionCookie(t, signIn)

	req := httptest.NewRequest(http.MethodGet, "/api/dashboards/market-edge", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	fixture.server.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var dashboard platform.Dashboard
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&dashboard))
	require.Equal(t, "market-edge", dashboard.Tool)
	require.JSONEq(t, `{"rows": ["market-edge"]}`, string(dashboard.Payload))
}

func TestHealthEndpoint(t *testing.T) {
	fixture := newServerFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	fixture.server.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status": "ok"}`, rec.Body.String())
}
