package config

import "time"

type SessionConfig interface {
	GetMaxSessionAge() time.Duration
	GetSessionExtension() time.Duration
	GetExtensionInterval() time.Duration
	GetProfileCacheTTL() time.Duration
	GetAuditDBPath() string
}

type Session struct{}

var _ SessionConfig = Session{}

func (Session) GetMaxSessionAge() time.Duration {
	return 30 * time.Minute
}

// GetSessionExtension is how much lifetime an activity-driven extension adds.
func (Session) GetSessionExtension() time.Duration {
	return 30 * time.Minute
}

func (Session) GetExtensionInterval() time.Duration {
	return 5 * time.Minute
}

func (Session) GetProfileCacheTTL() time.Duration {
	return 1 * time.Minute
}

func (Session) GetAuditDBPath() string {
	return GetEnv("AUDIT_DB_PATH", "./data/audit.db")
}
