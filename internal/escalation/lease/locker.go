package lease

import (
	"context"
	"sync"
)

// MemoryLocker serializes per-ticket evaluation within one process.
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewMemoryLocker constructs a locker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]struct{})}
}

// TryAcquire takes the ticket lease without blocking. The release func is
// idempotent.
func (l *MemoryLocker) TryAcquire(ctx context.Context, ticketID string) (func(), bool, error) {
	_ = ctx
	if l == nil || ticketID == "" {
		return nil, false, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, taken := l.held[ticketID]; taken {
		return nil, false, nil
	}
	l.held[ticketID] = struct{}{}

	var once sync.Once
	release := func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, ticketID)
			l.mu.Unlock()
		})
	}
	return release, true, nil
}
