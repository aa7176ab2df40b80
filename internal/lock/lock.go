// Package lock provides the root-level mutual-exclusion lock from §4.5:
// every mutating store operation (install, uninstall, use) holds
// R/.lock for its duration so concurrent govm invocations serialize
// instead of corrupting the version store. Grounded on the teacher's use
// of file-based coordination being absent entirely (the teacher has no
// concurrent-writer story); the gofrs/flock API here follows the
// package's own documented TryLockContext pattern.
package lock

import (
	"context"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gofrs/flock"

	"github.com/govm-project/govm/internal/govmerr"
)

const lockFileName = ".lock"

// Root guards R/.lock for the lifetime of one mutating operation.
type Root struct {
	fl *flock.Flock
}

// Open returns a Root bound to rootDir/.lock without acquiring it.
func Open(rootDir string) *Root {
	return &Root{fl: flock.New(filepath.Join(rootDir, lockFileName))}
}

// Acquire blocks (bounded by a short grace period with exponential
// backoff, per §4.5) until the lock is obtained or ctx is done. Returns a
// Concurrency-kind error if the grace period elapses with the lock still
// held elsewhere.
func (r *Root) Acquire(ctx context.Context) (func(), error) {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 50 * time.Millisecond
	eb.MaxInterval = 1 * time.Second
	eb.MaxElapsedTime = 10 * time.Second
	policy := backoff.WithContext(eb, ctx)

	op := func() error {
		ok, err := r.fl.TryLock()
		if err != nil {
			return backoff.Permanent(govmerr.New(govmerr.IO, r.fl.Path(), err))
		}
		if !ok {
			return govmerr.Newf(govmerr.Concurrency, r.fl.Path(), "%w", govmerr.ErrLockHeld)
		}
		return nil
	}

	if err := backoff.Retry(op, policy); err != nil {
		if ctx.Err() != nil {
			return nil, govmerr.New(govmerr.Cancelled, r.fl.Path(), ctx.Err())
		}
		return nil, err
	}

	return func() {
		_ = r.fl.Unlock()
	}, nil
}
