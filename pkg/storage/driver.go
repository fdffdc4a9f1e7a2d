// Package storage defines the record store used by the portal: named
// collections of JSON records queried by column equality.
package storage

import (
	"context"
)

// Driver persists and queries records in a storage backend. Row level access
// control is the backend's concern and is not enforced by drivers.
type Driver interface {
	// Insert stores rec in collection and returns the stored copy. An "id"
	// (UUID) and "created_at" timestamp are assigned when rec lacks them.
	Insert(ctx context.Context, collection string, rec Record) (Record, error)

	// Select returns the records matching q.
	Select(ctx context.Context, q Query) ([]Record, error)

	// Single returns the only record matching q. It fails with NotFoundError
	// when nothing matches and ErrMultipleRows when more than one does.
	Single(ctx context.Context, q Query) (Record, error)

	// Update merges patch into every record matching q and returns how many
	// records changed. The "id" column cannot be patched.
	Update(ctx context.Context, q Query, patch Record) (int, error)

	// Delete removes every record matching q and returns how many were removed.
	Delete(ctx context.Context, q Query) (int, error)

	// Close releases any resources held by the driver.
	Close() error
}
