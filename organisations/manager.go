// Package organisations maintains, per authenticated session, the active
// organisation and the set of organisations the user may switch into, and
// provides atomic switching with cache invalidation and change notification.
package organisations

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/platformedge/gateway/auth"
	"github.com/platformedge/gateway/organisations/orgcache"
	"github.com/platformedge/gateway/platform"
	"github.com/platformedge/gateway/sessions"
)

// Organisation is the tenant currently in focus or available for focus.
type Organisation = platform.Organisation

// API is the slice of the backend client the manager needs.
type API interface {
	Organisations(ctx context.Context, accessToken string) ([]platform.Organisation, error)
	AccessibleOrganisations(ctx context.Context, accessToken string) ([]platform.Organisation, error)
	RecordOrganisationSwitch(ctx context.Context, accessToken, fromOrgID, toOrgID string) error
}

// Recorder receives best-effort local audit events for switches.
type Recorder interface {
	RecordSwitch(ctx context.Context, sessionID, userID, fromOrgID, toOrgID string)
}

// SwitchEvent is published after a successful switch, strictly after cache
// invalidation for the previous organisation has completed.
type SwitchEvent struct {
	SessionID string
	UserID    string
	FromOrgID string
	ToOrgID   string
}

// Context is the organisation state for one session: the accessible set and
// the organisation currently in focus (nil until chosen for super-admins).
type Context struct {
	SessionID  string
	accessible map[string]Organisation
	order      []string
	current    *Organisation
}

// Current returns the organisation in focus, or nil if none is chosen yet.
func (c *Context) Current() *Organisation {
	if c == nil || c.current == nil {
		return nil
	}
	copied := *c.current
	return &copied
}

// Accessible lists the organisations the session's user may switch into, in
// the order the backend returned them.
func (c *Context) Accessible() []Organisation {
	if c == nil {
		return nil
	}
	orgs := make([]Organisation, 0, len(c.order))
	for _, id := range c.order {
		orgs = append(orgs, c.accessible[id])
	}
	return orgs
}

// CanAccess reports whether the organisation is in the accessible set.
func (c *Context) CanAccess(orgID string) bool {
	if c == nil {
		return false
	}
	_, ok := c.accessible[orgID]
	return ok
}

// Deps holds the collaborator dependencies for the Manager.
type Deps struct {
	API      API
	Sessions sessions.Repo
	Cache    orgcache.Cache
	Audit    Recorder // Optional best-effort audit sink
}

// Manager owns the per-session organisation contexts and the switch
// notification fan-out.
type Manager struct {
	deps Deps

	mu       sync.RWMutex
	contexts map[string]*Context // sessionID -> context

	subsMu sync.Mutex
	subs   map[uuid.UUID]chan SwitchEvent
}

func NewManager(deps Deps) (*Manager, error) {
	if deps.API == nil {
		return nil, errors.New("[NewManager] platform API client is required")
	}
	if deps.Sessions == nil {
		return nil, errors.New("[NewManager] Sessions repo is required")
	}
	if deps.Cache == nil {
		return nil, errors.New("[NewManager] organisation cache is required")
	}

	return &Manager{
		deps:     deps,
		contexts: make(map[string]*Context),
		subs:     make(map[uuid.UUID]chan SwitchEvent),
	}, nil
}

// Load computes the accessible organisation set for the principal and the
// current organisation: every organisation for a super-admin (current unset
// until chosen), the explicit accessible list and home organisation for
// regular users. It replaces any previously loaded context for the session.
func (m *Manager) Load(ctx context.Context, principal *auth.Principal) (*Context, error) {
	session, err := m.deps.Sessions.Load(ctx, principal.SessionID)
	if err != nil {
		return nil, errors.Wrap(err, "[Manager.Load] session load")
	}

	var orgs []Organisation
	if principal.IsSuperAdmin() {
		orgs, err = m.deps.API.Organisations(ctx, session.AccessToken)
	} else {
		orgs, err = m.deps.API.AccessibleOrganisations(ctx, session.AccessToken)
	}
	if err != nil {
		return nil, errors.Wrap(err, "[Manager.Load] organisation list")
	}

	orgCtx := &Context{
		SessionID:  principal.SessionID,
		accessible: make(map[string]Organisation, len(orgs)),
		order:      make([]string, 0, len(orgs)),
	}
	for _, org := range orgs {
		orgCtx.accessible[org.ID] = org
		orgCtx.order = append(orgCtx.order, org.ID)
	}

	// A previously persisted tab choice wins over the user's home
	// organisation; super-admins have no home and start unset.
	currentID := session.OrganisationID
	if currentID == "" && !principal.IsSuperAdmin() {
		currentID = principal.User.OrganisationID
	}
	if org, ok := orgCtx.accessible[currentID]; ok {
		copied := org
		orgCtx.current = &copied
	}

	m.mu.Lock()
	m.contexts[principal.SessionID] = orgCtx
	m.mu.Unlock()

	return orgCtx, nil
}

// Get returns the loaded context for the session.
func (m *Manager) Get(sessionID string) (*Context, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	orgCtx, ok := m.contexts[sessionID]
	if !ok {
		return nil, ErrContextNotLoaded
	}
	return orgCtx, nil
}

// Unload drops the context for a session. Called on logout.
func (m *Manager) Unload(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.contexts, sessionID)
}

// Switch makes targetID the organisation in focus for the session. Strictly
// ordered: cache entries for the previous organisation are purged before the
// new organisation becomes visible and before the change notification is
// emitted, so no subscriber can observe the notification alongside stale
// data. The audit record is best-effort and never rolls back the switch.
func (m *Manager) Switch(ctx context.Context, sessionID, targetID string) (*Organisation, error) {
	m.mu.Lock()
	orgCtx, ok := m.contexts[sessionID]
	if !ok {
		m.mu.Unlock()
		return nil, ErrContextNotLoaded
	}

	target, ok := orgCtx.accessible[targetID]
	if !ok {
		m.mu.Unlock()
		return nil, errors.Wrap(ErrAccessDenied, targetID)
	}

	var previousID string
	if orgCtx.current != nil {
		previousID = orgCtx.current.ID
	}
	m.mu.Unlock()

	if previousID != "" && previousID != targetID {
		if err := m.deps.Cache.PurgeOrganisation(ctx, previousID); err != nil {
			return nil, errors.Wrap(err, "[Manager.Switch] cache purge")
		}
	}

	m.mu.Lock()
	copied := target
	orgCtx.current = &copied
	m.mu.Unlock()

	if err := m.deps.Sessions.SetOrganisation(ctx, sessionID, targetID); err != nil {
		return nil, errors.Wrap(err, "[Manager.Switch] persist organisation choice")
	}

	session, err := m.deps.Sessions.Load(ctx, sessionID)
	if err != nil {
		return nil, errors.Wrap(err, "[Manager.Switch] session load")
	}

	m.publish(SwitchEvent{
		SessionID: sessionID,
		UserID:    session.UserID,
		FromOrgID: previousID,
		ToOrgID:   targetID,
	})

	// Best-effort audit; failure must not roll back or block the switch.
	if err := m.deps.API.RecordOrganisationSwitch(ctx, session.AccessToken, previousID, targetID); err != nil {
		log.Warn().Str("session_id", sessionID).Err(err).Msg("organisation switch audit post failed")
	}
	if m.deps.Audit != nil {
		m.deps.Audit.RecordSwitch(ctx, sessionID, session.UserID, previousID, targetID)
	}

	copiedOut := target
	return &copiedOut, nil
}

// Subscribe registers for switch notifications. The returned cancel function
// removes the subscription and closes the channel.
func (m *Manager) Subscribe() (<-chan SwitchEvent, func()) {
	id := uuid.New()
	ch := make(chan SwitchEvent, 16)

	m.subsMu.Lock()
	m.subs[id] = ch
	m.subsMu.Unlock()

	cancel := func() {
		m.subsMu.Lock()
		defer m.subsMu.Unlock()
		if existing, ok := m.subs[id]; ok {
			delete(m.subs, id)
			close(existing)
		}
	}
	return ch, cancel
}

func (m *Manager) publish(event SwitchEvent) {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()

	for _, ch := range m.subs {
		select {
		case ch <- event:
		default:
			// Slow subscriber; dropping beats blocking the switch.
			log.Warn().Str("session_id", event.SessionID).Msg("switch notification dropped")
		}
	}
}
