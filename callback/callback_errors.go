package callback

import "errors"

var (
	// ErrRunawayLoop means the flow saw too many entries in a short window
	// and halted all further processing for this instance.
	ErrRunawayLoop = errors.New("runaway callback loop detected")

	// ErrMissingCode means the redirect carried neither a code nor an error
	// parameter.
	ErrMissingCode = errors.New("missing authorization code")

	// ErrProviderError means the identity provider redirected back with an
	// explicit error parameter; no exchange is attempted.
	ErrProviderError = errors.New("identity provider returned an error")
)
