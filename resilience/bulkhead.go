package resilience

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// BulkheadConfig configures a per-method bulkhead.
type BulkheadConfig struct {
	// MaxConcurrent is the maximum number of concurrently admitted requests.
	// Default: 10
	MaxConcurrent int

	// MaxQueue is the maximum number of requests waiting for admission.
	// Default: 20
	MaxQueue int

	// QueueTimeout is how long a queued request waits before it is rejected.
	// Default: 10 seconds
	QueueTimeout time.Duration
}

func (c BulkheadConfig) withDefaults() BulkheadConfig {
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 10
	}
	if c.MaxQueue <= 0 {
		c.MaxQueue = 20
	}
	if c.QueueTimeout <= 0 {
		c.QueueTimeout = 10 * time.Second
	}
	return c
}

// waiter is a queued admission request. admitted and removed are guarded
// by the owning bulkhead's mutex; ready is closed exactly once, by
// whichever of admission or removal happens first.
type waiter struct {
	ready    chan struct{}
	admitted bool
	removed  bool
}

// Bulkhead is per-method admission control: a concurrency cap plus a
// bounded FIFO wait queue with a per-waiter deadline. Rejections carry
// a reason (capacity vs queue_timeout) so callers can distinguish load
// shedding from slow drainage.
type Bulkhead struct {
	method string
	config BulkheadConfig

	mu            sync.Mutex
	active        int
	waiters       *list.List
	rejected      int64
	queueTimeouts int64
}

// NewBulkhead creates a bulkhead for the named method.
func NewBulkhead(method string, config BulkheadConfig) *Bulkhead {
	return &Bulkhead{
		method:  method,
		config:  config.withDefaults(),
		waiters: list.New(),
	}
}

// Method returns the method this bulkhead guards.
func (b *Bulkhead) Method() string {
	return b.method
}

// Acquire admits the request or returns a *BulkheadError. A request that
// cannot run immediately queues FIFO for up to QueueTimeout; queue
// overflow rejects at once. Context cancellation removes the waiter and
// returns ctx.Err().
//
// Every successful Acquire must be matched by exactly one Release.
func (b *Bulkhead) Acquire(ctx context.Context) error {
	b.mu.Lock()

	if b.active < b.config.MaxConcurrent {
		b.active++
		b.mu.Unlock()
		return nil
	}

	if b.waiters.Len() >= b.config.MaxQueue {
		b.rejected++
		b.mu.Unlock()
		return &BulkheadError{Method: b.method, Reason: ReasonCapacity}
	}

	w := &waiter{ready: make(chan struct{})}
	elem := b.waiters.PushBack(w)
	b.mu.Unlock()

	timer := time.NewTimer(b.config.QueueTimeout)
	defer timer.Stop()

	select {
	case <-w.ready:
		return nil

	case <-timer.C:
		if b.abandon(elem, w) {
			b.mu.Lock()
			b.queueTimeouts++
			b.mu.Unlock()
			return &BulkheadError{Method: b.method, Reason: ReasonQueueTimeout}
		}
		// Admission won the race with the timer.
		return nil

	case <-ctx.Done():
		if b.abandon(elem, w) {
			return ctx.Err()
		}
		return nil
	}
}

// abandon removes a waiter from the queue. It returns false when the
// waiter was already admitted, in which case the caller holds a permit.
func (b *Bulkhead) abandon(elem *list.Element, w *waiter) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if w.admitted {
		return false
	}
	if !w.removed {
		b.waiters.Remove(elem)
		w.removed = true
	}
	return true
}

// Release returns a permit. If waiters are queued the permit transfers
// to the queue head without the active count ever dipping.
func (b *Bulkhead) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if elem := b.waiters.Front(); elem != nil {
		w := b.waiters.Remove(elem).(*waiter)
		w.admitted = true
		close(w.ready)
		return
	}

	if b.active > 0 {
		b.active--
	}
}

// Execute runs the operation within the bulkhead.
func (b *Bulkhead) Execute(ctx context.Context, op func(context.Context) error) error {
	if err := b.Acquire(ctx); err != nil {
		return err
	}
	defer b.Release()

	return op(ctx)
}

// Metrics returns current bulkhead statistics.
func (b *Bulkhead) Metrics() BulkheadMetrics {
	b.mu.Lock()
	defer b.mu.Unlock()

	return BulkheadMetrics{
		Active:        b.active,
		Queued:        b.waiters.Len(),
		MaxConcurrent: b.config.MaxConcurrent,
		MaxQueue:      b.config.MaxQueue,
		Rejected:      b.rejected,
		QueueTimeouts: b.queueTimeouts,
	}
}

// BulkheadMetrics contains bulkhead statistics.
type BulkheadMetrics struct {
	Active        int
	Queued        int
	MaxConcurrent int
	MaxQueue      int
	Rejected      int64
	QueueTimeouts int64
}
