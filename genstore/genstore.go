// Package genstore holds the generation counters that version cached
// resolutions. The fetch engine keeps one counter per operation kind;
// bumping it makes every record written under the old value stale.
package genstore

import (
	"context"
	"time"
)

// GenStore is where the per-operation counters live. LocalGenStore suits a
// single process; RedisGenStore lets processes sharing one resolution store
// flush each other's records.
type GenStore interface {
	// Snapshot reads a counter. Unknown keys are at 0.
	Snapshot(ctx context.Context, key string) (uint64, error)
	// Bump increments a counter and returns its new value.
	Bump(ctx context.Context, key string) (uint64, error)
	// BumpMany increments several counters, in one round trip if the
	// backend allows it.
	BumpMany(ctx context.Context, keys []string) error
	// Cleanup forgets idle counters where the backend keeps them in memory.
	Cleanup(retention time.Duration)
	Close(ctx context.Context) error
}
