// Package metadata is a small key/value collection for engine bookkeeping
// such as the time of the last finished drain.
package metadata

import (
	"context"
)

type Repository interface {
	// Get returns (nil, nil) when the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}
