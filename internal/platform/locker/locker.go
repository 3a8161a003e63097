package locker

import (
	"context"
	"sync"
	"time"

	"github.com/craftbridge/catalog-backend/internal/pkg/errors"
)

// Locker serializes finalize+dispatch for a single tracking id across
// process instances. TryAcquire is non-blocking: a held lock means some
// other caller is completing the same session right now, which the
// manager surfaces as a retryable condition.
type Locker interface {
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (release func(), acquired bool, err error)
}

// MemoryLocker covers single-process deployments and tests.
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: map[string]struct{}{}}
}

func (l *MemoryLocker) TryAcquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return nil, false, nil
	}
	l.held[key] = struct{}{}
	release := func() {
		l.mu.Lock()
		delete(l.held, key)
		l.mu.Unlock()
	}
	return release, true, nil
}

var _ Locker = (*MemoryLocker)(nil)

// ErrLockUnavailable is what operations blocked behind a held lock
// should surface: the winner will finish, so retrying is correct.
func ErrLockUnavailable(key string) error {
	return errors.Newf(errors.KindTransientDependency, "completion already in progress for %s", key)
}
