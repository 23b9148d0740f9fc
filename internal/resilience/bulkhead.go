package resilience

import (
	"context"
	"errors"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

var ErrBulkheadFull = errors.New("bulkhead full")

// Bulkhead caps concurrent calls to a dependency. Acquisition never waits.
type Bulkhead struct {
	name     string
	capacity int64
	sem      *semaphore.Weighted
	inFlight atomic.Int64
	metrics  *Metrics
}

func NewBulkhead(name string, capacity int, opts ...Option) *Bulkhead {
	if capacity < 1 {
		capacity = 1
	}
	o := buildOptions(opts)
	return &Bulkhead{
		name:     name,
		capacity: int64(capacity),
		sem:      semaphore.NewWeighted(int64(capacity)),
		metrics:  o.metrics,
	}
}

// TryAcquire takes a permit if one is free.
func (b *Bulkhead) TryAcquire() bool {
	if !b.sem.TryAcquire(1) {
		b.metrics.bulkheadRejection(b.name)
		return false
	}
	b.metrics.setInFlight(b.name, b.inFlight.Add(1))
	return true
}

// Release returns a permit. Releasing more than was acquired panics.
func (b *Bulkhead) Release() {
	n := b.inFlight.Add(-1)
	if n < 0 {
		b.inFlight.Add(1)
		panic("resilience: bulkhead released more than acquired")
	}
	b.sem.Release(1)
	b.metrics.setInFlight(b.name, n)
}

// Do runs fn under a permit, or returns ErrBulkheadFull without running it.
func (b *Bulkhead) Do(ctx context.Context, fn func(context.Context) error) error {
	if !b.TryAcquire() {
		return ErrBulkheadFull
	}
	defer b.Release()
	return fn(ctx)
}

func (b *Bulkhead) InFlight() int {
	return int(b.inFlight.Load())
}

func (b *Bulkhead) Capacity() int {
	return int(b.capacity)
}

func (b *Bulkhead) Name() string {
	return b.name
}
