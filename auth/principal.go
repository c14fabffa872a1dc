package auth

import (
	"time"

	"github.com/platformedge/gateway/platform"
)

// Principal is the cached identity attached to a session: the user, the
// organisation currently in focus, and the permission names. Role and
// permission checks are pure lookups against this value; no network access.
type Principal struct {
	SessionID    string
	User         platform.User
	Organisation *platform.Organisation
	Permissions  []string

	fetchedAt time.Time
}

func (p *Principal) HasRole(name string) bool {
	return p != nil && p.User.Role == name
}

func (p *Principal) HasPermission(name string) bool {
	if p == nil {
		return false
	}
	for _, perm := range p.Permissions {
		if perm == name {
			return true
		}
	}
	return false
}

// IsSuperAdmin reports whether the principal may act in any organisation.
func (p *Principal) IsSuperAdmin() bool {
	return p.HasRole(RoleSuperAdmin)
}

// Role names issued by the platform backend.
const (
	RoleSuperAdmin = "super_admin"
	RoleAdmin      = "admin"
	RoleAnalyst    = "analyst"
	RoleViewer     = "viewer"
)
