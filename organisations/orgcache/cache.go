// Package orgcache is the organisation-scoped data cache. Every entry is
// keyed by an organisation ID so that a tenant switch can purge all data
// attributable to the previous tenant in one call.
package orgcache

import (
	"context"
	"time"
)

type Cache interface {
	// Get returns the cached value and whether it was present and fresh.
	Get(ctx context.Context, orgID, key string) ([]byte, bool, error)

	// Set stores a value under the organisation's namespace.
	Set(ctx context.Context, orgID, key string, value []byte, ttl time.Duration) error

	// PurgeOrganisation removes every entry keyed by the organisation. After
	// it returns no data for that organisation is readable.
	PurgeOrganisation(ctx context.Context, orgID string) error
}
