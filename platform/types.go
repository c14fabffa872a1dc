package platform

import "encoding/json"

// User is the backend's view of an authenticated user. Read-only from the
// gateway's perspective; refreshed on demand via Me.
type User struct {
	ID             string `json:"id"`
	Email          string `json:"email"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Role           string `json:"role"`
	OrganisationID string `json:"organisation_id"`
	IsActive       bool   `json:"is_active"`
}

// Organisation is a tenant of the platform.
type Organisation struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Industry         string `json:"industry"`
	SubscriptionPlan string `json:"subscription_plan"`
}

// TokenResponse is returned by the login and refresh endpoints.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
	User         *User  `json:"user,omitempty"`
}

// MeResponse is returned by the current-user endpoint: the user, the
// organisation currently attached to them, and their permission names.
type MeResponse struct {
	User         User          `json:"user"`
	Organisation *Organisation `json:"organisation,omitempty"`
	Permissions  []string      `json:"permissions"`
}

// Dashboard is an opaque organisation-scoped payload for a dashboard tool
// (market-edge, causal-edge). The gateway caches and forwards it unparsed.
type Dashboard struct {
	Tool    string          `json:"tool"`
	Payload json.RawMessage `json:"payload"`
}
