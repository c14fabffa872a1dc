// Package auth holds the authentication business logic above raw session
// storage: the one-time code exchange, profile fetch and caching, refresh,
// role/permission checks, and activity-based session extension.
package auth

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/platformedge/gateway/platform"
	"github.com/platformedge/gateway/sessions"
)

// PlatformAPI is the slice of the backend client the service needs.
type PlatformAPI interface {
	Login(ctx context.Context, code, redirectURI string) (*platform.TokenResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*platform.TokenResponse, error)
	Me(ctx context.Context, accessToken string) (*platform.MeResponse, error)
}

// Recorder receives best-effort audit events. Implementations must never
// fail the primary operation; the service logs and continues regardless.
type Recorder interface {
	RecordLogin(ctx context.Context, sessionID, userID string)
	RecordLogout(ctx context.Context, sessionID, userID string)
	RecordRefresh(ctx context.Context, sessionID, userID string)
}

// Deps holds the collaborator dependencies for the Service.
type Deps struct {
	Sessions sessions.Repo // Session material store
	API      PlatformAPI   // Platform backend client
	Audit    Recorder      // Optional best-effort audit sink
}

// Service owns the session lifecycle. Session material is written only here;
// every other component reads it.
type Service struct {
	deps          Deps
	profileTTL    time.Duration
	maxSessionAge time.Duration
	nowTime       func() time.Time // nowTime function (injectable for testing)

	mu         sync.RWMutex
	principals map[string]*Principal // sessionID -> cached principal
}

// ServiceOption defines a function type to modify the Service instance.
type ServiceOption func(*Service)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ServiceOption {
	return func(s *Service) {
		s.nowTime = nowFunc
	}
}

// WithProfileTTL sets how long a fetched profile is served from cache.
func WithProfileTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		s.profileTTL = ttl
	}
}

// WithMaxSessionAge sets the fallback session lifetime used when the backend
// supplies no expiry and the access token carries no exp claim.
func WithMaxSessionAge(age time.Duration) ServiceOption {
	return func(s *Service) {
		s.maxSessionAge = age
	}
}

func NewService(deps Deps, options ...ServiceOption) (*Service, error) {
	if deps.Sessions == nil {
		return nil, errors.New("[NewService] Sessions repo is required")
	}
	if deps.API == nil {
		return nil, errors.New("[NewService] platform API client is required")
	}

	s := &Service{
		deps:          deps,
		profileTTL:    time.Minute,
		maxSessionAge: 30 * time.Minute,
		nowTime:       time.Now,
		principals:    make(map[string]*Principal),
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// ExchangeCode performs the one-time authorization-code exchange and persists
// the resulting session under sessionID. The exchange is never retried here:
// platform.ErrInvalidCode is terminal for the code, platform.ErrServerError
// is surfaced for the caller to decide.
func (s *Service) ExchangeCode(ctx context.Context, sessionID, code, redirectURI string) (*sessions.Session, error) {
	tr, err := s.deps.API.Login(ctx, code, redirectURI)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.ExchangeCode] Login")
	}

	now := s.nowTime()
	session := &sessions.Session{
		ID:           sessionID,
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		TokenType:    tr.TokenType,
		Expiry:       s.tokenExpiry(tr, now),
		CreatedAt:    now,
	}

	principal := &Principal{
		SessionID:   sessionID,
		Permissions: tokenPermissions(tr.AccessToken),
		fetchedAt:   now,
	}
	if tr.User != nil {
		session.UserID = tr.User.ID
		session.OrganisationID = tr.User.OrganisationID
		principal.User = *tr.User
	}

	if err := s.deps.Sessions.Save(ctx, sessionID, session); err != nil {
		return nil, errors.Wrap(err, "[Service.ExchangeCode] Save session")
	}

	s.mu.Lock()
	s.principals[sessionID] = principal
	s.mu.Unlock()

	if s.deps.Audit != nil {
		s.deps.Audit.RecordLogin(ctx, sessionID, session.UserID)
	}
	return session, nil
}

// CurrentUser returns the principal for the session, fetching and caching the
// profile when the cache is stale. A missing or expired session fails with
// platform.ErrUnauthenticated after clearing the stored material.
func (s *Service) CurrentUser(ctx context.Context, sessionID string) (*Principal, error) {
	session, err := s.deps.Sessions.Load(ctx, sessionID)
	if err != nil {
		s.dropPrincipal(sessionID)
		if errors.Is(err, sessions.ErrSessionNotFound) {
			return nil, errors.Wrap(platform.ErrUnauthenticated, "no session")
		}
		return nil, errors.Wrap(err, "[Service.CurrentUser] Load session")
	}

	if session.Expired(s.nowTime()) {
		s.clearSession(ctx, sessionID)
		return nil, errors.Wrap(platform.ErrUnauthenticated, "session expired")
	}

	if p := s.cachedPrincipal(sessionID); p != nil && p.Organisation != nil &&
		s.nowTime().Sub(p.fetchedAt) < s.profileTTL {
		return p, nil
	}

	me, err := s.deps.API.Me(ctx, session.AccessToken)
	if err != nil {
		if errors.Is(err, platform.ErrUnauthenticated) {
			s.clearSession(ctx, sessionID)
		}
		return nil, errors.Wrap(err, "[Service.CurrentUser] Me")
	}

	principal := &Principal{
		SessionID:    sessionID,
		User:         me.User,
		Organisation: me.Organisation,
		Permissions:  me.Permissions,
		fetchedAt:    s.nowTime(),
	}
	s.mu.Lock()
	s.principals[sessionID] = principal
	s.mu.Unlock()
	return principal, nil
}

// Refresh exchanges the refresh token for a new token pair. On any failure
// the session is void: it is cleared before ErrRefreshFailed is returned.
func (s *Service) Refresh(ctx context.Context, sessionID string) (*sessions.Session, error) {
	session, err := s.deps.Sessions.Load(ctx, sessionID)
	if err != nil {
		s.dropPrincipal(sessionID)
		return nil, errors.Wrap(ErrRefreshFailed, "no session to refresh")
	}

	tr, err := s.deps.API.Refresh(ctx, session.RefreshToken)
	if err != nil {
		s.clearSession(ctx, sessionID)
		log.Warn().Str("session_id", sessionID).Err(err).Msg("refresh grant rejected, session cleared")
		return nil, errors.Wrap(ErrRefreshFailed, err.Error())
	}

	now := s.nowTime()
	refreshed := &sessions.Session{
		ID:             sessionID,
		AccessToken:    tr.AccessToken,
		RefreshToken:   tr.RefreshToken,
		TokenType:      tr.TokenType,
		Expiry:         s.tokenExpiry(tr, now),
		UserID:         session.UserID,
		OrganisationID: session.OrganisationID,
		CreatedAt:      session.CreatedAt,
	}
	if refreshed.RefreshToken == "" {
		refreshed.RefreshToken = session.RefreshToken
	}

	if err := s.deps.Sessions.Save(ctx, sessionID, refreshed); err != nil {
		return nil, errors.Wrap(err, "[Service.Refresh] Save session")
	}

	if s.deps.Audit != nil {
		s.deps.Audit.RecordRefresh(ctx, sessionID, refreshed.UserID)
	}
	return refreshed, nil
}

// Logout destroys the session and the cached principal. Idempotent.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	var userID string
	if p := s.cachedPrincipal(sessionID); p != nil {
		userID = p.User.ID
	}

	s.clearSession(ctx, sessionID)

	if s.deps.Audit != nil {
		s.deps.Audit.RecordLogout(ctx, sessionID, userID)
	}
	return nil
}

// HasPermission is a pure lookup against the cached principal.
func (s *Service) HasPermission(sessionID, name string) bool {
	return s.cachedPrincipal(sessionID).HasPermission(name)
}

// HasRole is a pure lookup against the cached principal.
func (s *Service) HasRole(sessionID, name string) bool {
	return s.cachedPrincipal(sessionID).HasRole(name)
}

func (s *Service) cachedPrincipal(sessionID string) *Principal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.principals[sessionID]
}

func (s *Service) dropPrincipal(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.principals, sessionID)
}

func (s *Service) clearSession(ctx context.Context, sessionID string) {
	if err := s.deps.Sessions.Clear(ctx, sessionID); err != nil {
		log.Error().Str("session_id", sessionID).Err(err).Msg("failed to clear session")
	}
	s.dropPrincipal(sessionID)
}

// tokenExpiry derives the session expiry: the backend's expires_in when
// present, otherwise the access token's exp claim, otherwise the configured
// fallback lifetime.
func (s *Service) tokenExpiry(tr *platform.TokenResponse, now time.Time) time.Time {
	if tr.ExpiresIn > 0 {
		return now.Add(time.Duration(tr.ExpiresIn) * time.Second)
	}
	if exp := tokenExpClaim(tr.AccessToken); !exp.IsZero() {
		return exp
	}
	return now.Add(s.maxSessionAge)
}
