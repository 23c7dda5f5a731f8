package lease

import (
	"context"
	"errors"
)

// Lease guards the deadline scan so at most one holder runs it at a time,
// including across processes when backed by redis. The TTL bounds how long a
// crashed holder can block other scanners.
type Lease interface {
	Acquire(ctx context.Context) error

	Release(ctx context.Context) error
}

var ErrLeaseHeld = errors.New("scan lease is held by another holder")
