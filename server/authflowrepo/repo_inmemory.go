package authflowrepo

import (
	"sync"
	"time"

	"github.com/pkg/errors"
)

// stateTTL bounds how long a login attempt may sit between the redirect to
// the provider and the callback. Older state records fail validation.
const stateTTL = 10 * time.Minute

// ErrStateNotFound covers both unknown and already-consumed state values.
var ErrStateNotFound = errors.New("auth flow state not found")

// InMemoryRepo is a thread-safe in-memory implementation of Repo. Login
// attempts are short-lived and instance-local, so unlike sessions they never
// need a shared store.
type InMemoryRepo struct {
	mu      sync.Mutex
	states  map[string]*AuthFlowState
	nowTime func() time.Time
}

var _ Repo = (*InMemoryRepo)(nil)

func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{
		states:  make(map[string]*AuthFlowState),
		nowTime: time.Now,
	}
}

func (r *InMemoryRepo) Upsert(state string, authState *AuthFlowState) error {
	if state == "" {
		return errors.New("state cannot be empty")
	}
	if authState == nil {
		return errors.New("authState cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.pruneLocked()

	copied := *authState
	r.states[state] = &copied
	return nil
}

func (r *InMemoryRepo) Get(state string) (*AuthFlowState, error) {
	if state == "" {
		return nil, errors.New("state cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	authState, exists := r.states[state]
	if !exists {
		return nil, ErrStateNotFound
	}
	if r.nowTime().Sub(authState.CreatedAt) > stateTTL {
		delete(r.states, state)
		return nil, ErrStateNotFound
	}

	copied := *authState
	return &copied, nil
}

func (r *InMemoryRepo) Delete(state string) error {
	if state == "" {
		return errors.New("state cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.states, state)
	return nil
}

// pruneLocked drops expired login attempts so abandoned sign-ins do not
// accumulate. Caller holds the lock.
func (r *InMemoryRepo) pruneLocked() {
	cutoff := r.nowTime().Add(-stateTTL)
	for state, authState := range r.states {
		if authState.CreatedAt.Before(cutoff) {
			delete(r.states, state)
		}
	}
}
