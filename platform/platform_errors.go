package platform

import "errors"

var (
	// ErrInvalidCode is terminal for the code that produced it; callers must
	// not retry the exchange with the same code.
	ErrInvalidCode = errors.New("invalid or expired authorization code")

	// ErrRateLimited maps HTTP 429; the caller may retry after a delay.
	ErrRateLimited = errors.New("rate limited")

	// ErrUnauthenticated means no valid session/token backed the request.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrServerError maps HTTP 5xx; transient from the client's perspective.
	ErrServerError = errors.New("server error")

	// ErrNetwork covers transport failures before any HTTP status arrived.
	ErrNetwork = errors.New("network error")
)
