package audit

import "context"

type Repo interface {
	// Insert stores one event.
	Insert(ctx context.Context, event *Event) error

	// List returns the most recent events, newest first.
	List(ctx context.Context, limit int) ([]Event, error)
}
