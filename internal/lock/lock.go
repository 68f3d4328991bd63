// Package lock provides per-slot mutual exclusion around mutating queue
// operations. Locks are scoped to a single slot ID, so operations on
// different slots run fully in parallel.
package lock

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotAcquired is returned when the slot lock could not be obtained within
// the acquisition timeout. It is transient; callers should retry.
var ErrNotAcquired = errors.New("slot lock not acquired")

// Provider is used by the allocation service to guard critical sections per
// slot. fn runs only while the lock is held.
type Provider interface {
	WithSlotLock(ctx context.Context, slotID uuid.UUID, fn func(ctx context.Context) error) error
}
