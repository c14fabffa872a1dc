package sessions

import "time"

// Session is the token pair plus the derived fields the gateway keys its
// behaviour on. Created on a successful code exchange, mutated by refresh,
// destroyed on logout or refresh failure. At most one active session exists
// per session ID; Save overwrites any prior value.
type Session struct {
	ID             string    `json:"id"`
	AccessToken    string    `json:"access_token"`
	RefreshToken   string    `json:"refresh_token"`
	TokenType      string    `json:"token_type"`
	Expiry         time.Time `json:"expiry"`
	UserID         string    `json:"user_id"`
	OrganisationID string    `json:"organisation_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Expired reports whether the session's access token lifetime has passed.
// The store itself never validates expiry; that call belongs to the callers.
func (s *Session) Expired(now time.Time) bool {
	return !s.Expiry.IsZero() && s.Expiry.Before(now)
}
