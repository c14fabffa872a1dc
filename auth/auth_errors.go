package auth

import "errors"

var (
	// ErrRefreshFailed means the refresh grant was rejected; the session is
	// void and has already been cleared when this error is returned.
	ErrRefreshFailed = errors.New("session refresh failed")
)
