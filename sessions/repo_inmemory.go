package sessions

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// InMemoryRepo is a thread-safe in-memory implementation of Repo. It is the
// single-instance deployment store; multi-instance deployments use the Redis
// implementation.
type InMemoryRepo struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

var _ Repo = (*InMemoryRepo)(nil)

func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{
		sessions: make(map[string]*Session),
	}
}

func (r *InMemoryRepo) Save(_ context.Context, sessionID string, session *Session) error {
	if sessionID == "" {
		return errors.New("sessionID cannot be empty")
	}
	if session == nil {
		return errors.New("session cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Store a copy to prevent external modifications
	copied := *session
	r.sessions[sessionID] = &copied
	return nil
}

func (r *InMemoryRepo) Load(_ context.Context, sessionID string) (*Session, error) {
	if sessionID == "" {
		return nil, errors.New("sessionID cannot be empty")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	session, exists := r.sessions[sessionID]
	if !exists {
		return nil, ErrSessionNotFound
	}

	copied := *session
	return &copied, nil
}

func (r *InMemoryRepo) Clear(_ context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, sessionID)
	return nil
}

func (r *InMemoryRepo) SetOrganisation(_ context.Context, sessionID, organisationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, exists := r.sessions[sessionID]
	if !exists {
		return ErrSessionNotFound
	}
	session.OrganisationID = organisationID
	return nil
}

func (r *InMemoryRepo) Extend(_ context.Context, sessionID string, expiry time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, exists := r.sessions[sessionID]
	if !exists {
		return ErrSessionNotFound
	}
	if expiry.After(session.Expiry) {
		session.Expiry = expiry
	}
	return nil
}
