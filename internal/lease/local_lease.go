package lease

import (
	"context"
	"sync"
)

// LocalLease is an in-process Lease for single-instance deployments and
// tests. It has no TTL; a holder that never releases blocks forever, which is
// acceptable because the scheduler always releases in a defer.
type LocalLease struct {
	mu   sync.Mutex
	held bool
}

func NewLocalLease() *LocalLease {
	return &LocalLease{}
}

func (l *LocalLease) Acquire(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.held {
		return ErrLeaseHeld
	}
	l.held = true
	return nil
}

func (l *LocalLease) Release(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.held = false
	return nil
}
