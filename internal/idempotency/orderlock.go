package idempotency

import "sync"

// OrderLocks serializes units of work touching the same order within this
// process. Webhook deliveries are keyed by notification identity for
// deduplication, so a manual cancel and a racing payment confirmation carry
// different guard keys; this lock is what keeps them from interleaving on
// one order. Cross-process races are caught by the repository's optimistic
// update.
type OrderLocks struct {
	mu    sync.Mutex
	locks map[string]*orderLock
}

type orderLock struct {
	mu   sync.Mutex
	refs int
}

func NewOrderLocks() *OrderLocks {
	return &OrderLocks{locks: make(map[string]*orderLock)}
}

// Lock blocks until the order is free and returns the unlock function.
func (l *OrderLocks) Lock(orderNo string) func() {
	l.mu.Lock()
	lock, ok := l.locks[orderNo]
	if !ok {
		lock = &orderLock{}
		l.locks[orderNo] = lock
	}
	lock.refs++
	l.mu.Unlock()

	lock.mu.Lock()

	return func() {
		lock.mu.Unlock()

		l.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(l.locks, orderNo)
		}
		l.mu.Unlock()
	}
}
