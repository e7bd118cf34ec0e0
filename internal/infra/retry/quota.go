package retry

import (
	"errors"
	"sync"
)

// ErrQuotaExhausted is returned by Reserve when no retry tokens remain.
var ErrQuotaExhausted = errors.New("retry quota exhausted")

// Quota is a bounded counter of remaining retry attempts shared by every
// call issued through one Strategy. It is safe for concurrent use.
type Quota struct {
	mu        sync.Mutex
	capacity  int
	remaining int
}

// NewQuota creates a quota holding capacity tokens.
func NewQuota(capacity int) *Quota {
	if capacity < 0 {
		capacity = 0
	}
	return &Quota{capacity: capacity, remaining: capacity}
}

// HasTokens reports whether at least one retry token remains.
func (q *Quota) HasTokens() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.remaining > 0
}

// Reserve takes exactly one token and returns the remaining capacity.
// It must be called before a retry attempt, never before the first attempt.
func (q *Quota) Reserve() (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.remaining <= 0 {
		return 0, ErrQuotaExhausted
	}
	q.remaining--
	return q.remaining, nil
}

// Release returns amount tokens, never exceeding the initial capacity.
// Non-positive amounts are ignored.
func (q *Quota) Release(amount int) {
	if amount <= 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	q.remaining = min(q.remaining+amount, q.capacity)
}

// Remaining returns the number of tokens left.
func (q *Quota) Remaining() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.remaining
}

// Capacity returns the initial number of tokens.
func (q *Quota) Capacity() int {
	return q.capacity
}
