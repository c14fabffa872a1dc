// Package audit records security-relevant gateway events: logins, logouts,
// refreshes, organisation switches and failed callbacks. Recording is always
// best-effort; a failed write is logged and never fails the operation that
// produced the event.
package audit

import "time"

type Kind string

const (
	KindLogin           Kind = "login"
	KindLogout          Kind = "logout"
	KindRefresh         Kind = "refresh"
	KindOrgSwitch       Kind = "org_switch"
	KindCallbackFailure Kind = "callback_failure"
)

type Event struct {
	ID        string    `json:"id"`
	At        time.Time `json:"at"`
	Kind      Kind      `json:"kind"`
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id,omitempty"`
	FromOrgID string    `json:"from_organisation_id,omitempty"`
	ToOrgID   string    `json:"to_organisation_id,omitempty"`
	Detail    string    `json:"detail,omitempty"`
}
