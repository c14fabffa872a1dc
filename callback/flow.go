// Package callback implements the one-shot consumption of the identity
// provider redirect. The provider delivers an authorization code exactly
// once, but the delivery handler can run more than once (browser retry,
// double navigation, proxy replay); the Flow guarantees that exactly one
// exchange request is issued per distinct code value for its lifetime.
package callback

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/platformedge/gateway/platform"
	"github.com/platformedge/gateway/sessions"
)

// State is the flow's position in Idle -> Extracting -> Exchanging ->
// {Succeeded, Failed}.
type State int

const (
	StateIdle State = iota
	StateExtracting
	StateExchanging
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateExtracting:
		return "extracting"
	case StateExchanging:
		return "exchanging"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Reason classifies terminal results for user-facing messaging.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonProviderError
	ReasonMissingCode
	ReasonInvalidCode
	ReasonTransient
	ReasonGeneric
	ReasonRunawayLoop
)

// User-facing messages per terminal reason.
const (
	msgProviderError = "Sign-in was not completed. Please log in again."
	msgMissingCode   = "The sign-in response was incomplete. Please log in again."
	msgInvalidCode   = "Your sign-in link has expired. Please log in again."
	msgTransient     = "The service is temporarily unavailable. Please try again shortly."
	msgGeneric       = "Something went wrong during sign-in. Please log in again."
	msgRunawayLoop   = "Sign-in could not be completed. Please refresh the page and retry."
)

// Result is the observable outcome of a Run invocation.
type Result struct {
	State   State
	Reason  Reason
	Message string
	Session *sessions.Session
	Err     error
}

// ExchangeFunc performs the actual code exchange. The Flow calls it at most
// once per distinct code.
type ExchangeFunc func(ctx context.Context, code string) (*sessions.Session, error)

// Defensive bound on flow entries: more than maxEntries Run calls inside
// entryWindow is treated as a runaway loop and halts the instance.
const (
	defaultMaxEntries  = 8
	defaultEntryWindow = 5 * time.Second
)

// outcome tracks a recorded code. done is closed once the original attempt
// settles; until then duplicates observe the Exchanging state.
type outcome struct {
	done   chan struct{}
	result Result
}

// Flow is the per-instance exchange state machine. The recorded-codes set is
// part of its own state and is the single authoritative dedup mechanism; it
// is scoped to this instance, not persisted.
type Flow struct {
	exchange    ExchangeFunc
	clearQuery  func() // invoked after a code is recorded, before the exchange
	maxEntries  int
	entryWindow time.Duration
	nowTime     func() time.Time

	mu      sync.Mutex
	state   State
	codes   map[string]*outcome
	entries []time.Time
	halted  bool
}

// FlowOption modifies a Flow during construction.
type FlowOption func(*Flow)

// WithClearQuery sets the hook that erases the code from its carrier (the
// redirect URL) so a replayed navigation cannot re-read it. It runs after the
// code is recorded and strictly before the exchange request is issued.
func WithClearQuery(clear func()) FlowOption {
	return func(f *Flow) {
		f.clearQuery = clear
	}
}

// WithEntryGuard overrides the runaway-loop bound (primarily for testing).
func WithEntryGuard(maxEntries int, window time.Duration) FlowOption {
	return func(f *Flow) {
		f.maxEntries = maxEntries
		f.entryWindow = window
	}
}

// WithFlowNowTime sets the now time function (primarily for testing)
func WithFlowNowTime(nowFunc func() time.Time) FlowOption {
	return func(f *Flow) {
		f.nowTime = nowFunc
	}
}

func NewFlow(exchange ExchangeFunc, options ...FlowOption) *Flow {
	f := &Flow{
		exchange:    exchange,
		clearQuery:  func() {},
		maxEntries:  defaultMaxEntries,
		entryWindow: defaultEntryWindow,
		nowTime:     time.Now,
		state:       StateIdle,
		codes:       make(map[string]*outcome),
	}
	for _, opt := range options {
		opt(f)
	}
	return f
}

// State returns the flow's current state.
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Run consumes one redirect delivery. The query is read exactly once; an
// error parameter or a missing code terminates without any exchange call. A
// code already recorded (settled or in flight) never issues a second
// exchange: the caller observes the original attempt's result instead.
func (f *Flow) Run(ctx context.Context, query url.Values) Result {
	f.mu.Lock()

	if f.tripGuardLocked() {
		f.mu.Unlock()
		return Result{
			State:   StateFailed,
			Reason:  ReasonRunawayLoop,
			Message: msgRunawayLoop,
			Err:     ErrRunawayLoop,
		}
	}

	f.state = StateExtracting
	code := query.Get("code")
	errParam := query.Get("error")
	errDesc := query.Get("error_description")

	if errParam != "" {
		f.state = StateFailed
		f.mu.Unlock()
		return Result{
			State:   StateFailed,
			Reason:  ReasonProviderError,
			Message: msgProviderError,
			Err:     errors.Wrap(ErrProviderError, fmt.Sprintf("%s: %s", errParam, errDesc)),
		}
	}

	if code == "" {
		f.state = StateFailed
		f.mu.Unlock()
		return Result{
			State:   StateFailed,
			Reason:  ReasonMissingCode,
			Message: msgMissingCode,
			Err:     ErrMissingCode,
		}
	}

	if o, seen := f.codes[code]; seen {
		f.mu.Unlock()
		select {
		case <-o.done:
			return o.result
		default:
			// Original attempt still in flight; no duplicate request.
			return Result{State: StateExchanging}
		}
	}

	// Record the code before the network call is issued: a second entry that
	// reaches the check above can no longer trigger an exchange.
	o := &outcome{done: make(chan struct{})}
	f.codes[code] = o
	f.state = StateExchanging
	f.mu.Unlock()

	f.clearQuery()

	session, err := f.exchange(ctx, code)
	result := classify(session, err)

	f.mu.Lock()
	o.result = result
	close(o.done)
	f.state = result.State
	f.mu.Unlock()

	return result
}

// tripGuardLocked records an entry and reports whether the runaway bound has
// been exceeded. Once tripped the flow stays halted.
func (f *Flow) tripGuardLocked() bool {
	if f.halted {
		return true
	}

	now := f.nowTime()
	cutoff := now.Add(-f.entryWindow)
	kept := f.entries[:0]
	for _, t := range f.entries {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	f.entries = append(kept, now)

	if len(f.entries) > f.maxEntries {
		f.halted = true
		f.state = StateFailed
		return true
	}
	return false
}

func classify(session *sessions.Session, err error) Result {
	switch {
	case err == nil:
		return Result{State: StateSucceeded, Session: session}
	case errors.Is(err, platform.ErrInvalidCode):
		return Result{State: StateFailed, Reason: ReasonInvalidCode, Message: msgInvalidCode, Err: err}
	case errors.Is(err, platform.ErrRateLimited),
		errors.Is(err, platform.ErrServerError),
		errors.Is(err, platform.ErrNetwork):
		return Result{State: StateFailed, Reason: ReasonTransient, Message: msgTransient, Err: err}
	default:
		return Result{State: StateFailed, Reason: ReasonGeneric, Message: msgGeneric, Err: err}
	}
}
