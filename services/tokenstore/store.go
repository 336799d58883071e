// Package tokenstore keeps track of revoked auth tokens until they expire.
package tokenstore

import (
	"context"
	"time"
)

// Store records revoked token IDs.
type Store interface {
	// Revoke marks id as revoked until the given time.
	Revoke(ctx context.Context, id string, until time.Time) error
	IsRevoked(ctx context.Context, id string) (bool, error)
}
