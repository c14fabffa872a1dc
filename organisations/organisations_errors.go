package organisations

import "errors"

var (
	// ErrAccessDenied means the target organisation is not in the caller's
	// accessible set. The current organisation is left unchanged.
	ErrAccessDenied = errors.New("access to organisation denied")

	// ErrContextNotLoaded means no organisation context exists for the
	// session; Load must run after authentication.
	ErrContextNotLoaded = errors.New("organisation context not loaded")
)
