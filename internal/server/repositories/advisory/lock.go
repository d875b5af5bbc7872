// Package advisory provides a cluster-wide mutual-exclusion capability:
// non-blocking try-acquire plus guaranteed release, keyed by a job name.
package advisory

import "context"

// Lock is the minimal capability the sweeper needs. TryAcquire never blocks:
// a held lock simply returns false.
type Lock interface {
	TryAcquire(ctx context.Context, name string) (bool, error)
	Release(ctx context.Context, name string) error
}
