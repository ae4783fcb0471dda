package service

import (
	"sync"

	"github.com/google/uuid"
)

// orderLocks serializes engine events per order. A cascade reads and writes
// many cards and must observe a consistent graph snapshot, so two events for
// the same order never interleave; events for different orders run in
// parallel.
type orderLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func newOrderLocks() *orderLocks {
	return &orderLocks{
		locks: make(map[uuid.UUID]*sync.Mutex),
	}
}

// lock acquires the order's mutex and returns its unlock function
func (l *orderLocks) lock(orderID uuid.UUID) func() {
	l.mu.Lock()
	m, ok := l.locks[orderID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[orderID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
