package repofake

import (
	"context"
	"sync"

	"github.com/platformedge/gateway/audit"
)

// FakeAuditRepo is a thread-safe in-memory implementation of audit.Repo for
// testing.
type FakeAuditRepo struct {
	mu     sync.Mutex
	events []audit.Event
}

var _ audit.Repo = (*FakeAuditRepo)(nil)

func NewFakeAuditRepo() *FakeAuditRepo {
	return &FakeAuditRepo{}
}

func (r *FakeAuditRepo) Insert(_ context.Context, event *audit.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, *event)
	return nil
}

func (r *FakeAuditRepo) List(_ context.Context, limit int) ([]audit.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]audit.Event, 0, len(r.events))
	for i := len(r.events) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, r.events[i])
	}
	return out, nil
}
