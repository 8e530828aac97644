package core

import (
	"fmt"
	"sync"
)

// Budget enforces a per-run ceiling on model calls. A breach is a pause
// trigger, not a failure: the run suspends and asks the user to raise the
// ceiling or abandon.
type Budget struct {
	mu    sync.Mutex
	max   int
	count int
}

// NewBudget creates a budget with the given ceiling. Zero means unlimited.
func NewBudget(max int) *Budget {
	return &Budget{max: max}
}

// Spend records one model call and returns an error once the ceiling is
// exceeded.
func (b *Budget) Spend() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.count++
	if b.max > 0 && b.count > b.max {
		return fmt.Errorf("model call budget exceeded: %d calls, ceiling %d", b.count, b.max)
	}
	return nil
}

// Raise lifts the ceiling by n additional calls.
func (b *Budget) Raise(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.max > 0 && n > 0 {
		b.max += n
	}
}

// Count returns the number of calls recorded so far.
func (b *Budget) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Remaining returns calls left before the ceiling, or -1 when unlimited.
func (b *Budget) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.max == 0 {
		return -1
	}
	return b.max - b.count
}
