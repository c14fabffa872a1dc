package sessions

import (
	"context"
	"errors"
	"time"
)

// ErrSessionNotFound is returned by Load when no session exists for the ID.
var ErrSessionNotFound = errors.New("session not found")

// Repo is durable storage for session material. Implementations hold tokens
// only; all validation logic lives above the store.
type Repo interface {
	// Save persists the session, overwriting any prior session for the ID.
	Save(ctx context.Context, sessionID string, session *Session) error

	// Load returns the stored session or ErrSessionNotFound. It does not
	// validate expiry.
	Load(ctx context.Context, sessionID string) (*Session, error)

	// Clear removes all persisted material for the ID. Idempotent.
	Clear(ctx context.Context, sessionID string) error

	// SetOrganisation records the organisation currently in focus for the
	// session without touching the token pair.
	SetOrganisation(ctx context.Context, sessionID, organisationID string) error

	// Extend pushes the session expiry out. Advisory housekeeping driven by
	// user activity; a missing session is reported as ErrSessionNotFound.
	Extend(ctx context.Context, sessionID string, expiry time.Time) error
}
