package authflowrepo

import "time"

// AuthFlowState is the per-login-attempt record keyed by the state parameter
// sent to the identity provider. Deleting it after one use is what makes a
// replayed redirect (reload, history navigation) fail state validation
// instead of reaching the exchange.
type AuthFlowState struct {
	ReturnURL string
	CreatedAt time.Time
}

type Repo interface {
	Upsert(state string, authState *AuthFlowState) error
	Get(state string) (*AuthFlowState, error)
	Delete(state string) error
}
