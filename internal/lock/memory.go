package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryProvider struct {
	wait time.Duration

	mu    sync.Mutex
	slots map[uuid.UUID]chan struct{}
}

// NewMemoryProvider creates an in-process Provider: one semaphore per slot ID
// with a bounded acquisition wait. Suitable for single-process deployments and
// tests; a crashed process releases everything by dying, so no hold timeout
// is needed.
func NewMemoryProvider(wait time.Duration) Provider {
	return &memoryProvider{
		wait:  wait,
		slots: make(map[uuid.UUID]chan struct{}),
	}
}

func (m *memoryProvider) sem(slotID uuid.UUID) chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.slots[slotID]
	if !ok {
		s = make(chan struct{}, 1)
		m.slots[slotID] = s
	}
	return s
}

func (m *memoryProvider) WithSlotLock(ctx context.Context, slotID uuid.UUID, fn func(ctx context.Context) error) error {
	sem := m.sem(slotID)

	timer := time.NewTimer(m.wait)
	defer timer.Stop()

	select {
	case sem <- struct{}{}:
	case <-timer.C:
		return ErrNotAcquired
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-sem }()

	return fn(ctx)
}
