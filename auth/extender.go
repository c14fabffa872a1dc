package auth

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/platformedge/gateway/sessions"
)

// Extender pushes session expiry out on a fixed interval for sessions that
// showed user activity since the last tick. Advisory housekeeping only: an
// extension failure is logged and dropped, never surfaced.
//
// Run must be torn down on shutdown and sessions must be Forgotten on logout,
// otherwise the ticker keeps firing against cleared sessions.
type Extender struct {
	store     sessions.Repo
	interval  time.Duration
	extension time.Duration
	nowTime   func() time.Time

	mu     sync.Mutex
	active map[string]struct{} // sessions with activity since the last tick

	stopOnce sync.Once
	stopped  chan struct{}
}

// ExtenderOption modifies an Extender during construction.
type ExtenderOption func(*Extender)

// WithExtenderNowTime sets the now time function (primarily for testing)
func WithExtenderNowTime(nowFunc func() time.Time) ExtenderOption {
	return func(e *Extender) {
		e.nowTime = nowFunc
	}
}

func NewExtender(store sessions.Repo, interval, extension time.Duration, options ...ExtenderOption) *Extender {
	e := &Extender{
		store:     store,
		interval:  interval,
		extension: extension,
		nowTime:   time.Now,
		active:    make(map[string]struct{}),
		stopped:   make(chan struct{}),
	}
	for _, opt := range options {
		opt(e)
	}
	return e
}

// Activity records an activity signal (pointer/keyboard traffic forwarded by
// the UI, or any authenticated request) for the session.
func (e *Extender) Activity(sessionID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.active[sessionID] = struct{}{}
}

// Forget drops any pending activity for the session. Called on logout so a
// cleared session is never re-extended.
func (e *Extender) Forget(sessionID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.active, sessionID)
}

// Run blocks, extending active sessions every interval, until the context is
// cancelled or Stop is called.
func (e *Extender) Run(ctx context.Context) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.stopped:
			return
		case <-ticker.C:
			e.extendActive(ctx)
		}
	}
}

// Stop terminates Run. Idempotent.
func (e *Extender) Stop() {
	e.stopOnce.Do(func() {
		close(e.stopped)
	})
}

func (e *Extender) extendActive(ctx context.Context) {
	e.mu.Lock()
	batch := e.active
	e.active = make(map[string]struct{})
	e.mu.Unlock()

	expiry := e.nowTime().Add(e.extension)
	for sessionID := range batch {
		if err := e.store.Extend(ctx, sessionID, expiry); err != nil {
			log.Debug().Str("session_id", sessionID).Err(err).Msg("session extension skipped")
		}
	}
}
