package resilience

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBulkhead_TryAcquireRelease(t *testing.T) {
	b := NewBulkhead("payment", 2)

	require.True(t, b.TryAcquire())
	require.True(t, b.TryAcquire())
	assert.False(t, b.TryAcquire(), "third acquire must be rejected")
	assert.Equal(t, 2, b.InFlight())

	b.Release()
	assert.Equal(t, 1, b.InFlight())
	assert.True(t, b.TryAcquire())

	b.Release()
	b.Release()
	assert.Equal(t, 0, b.InFlight())
}

func TestBulkhead_ReleaseWithoutAcquirePanics(t *testing.T) {
	b := NewBulkhead("payment", 1)
	assert.Panics(t, func() { b.Release() })
	assert.Equal(t, 0, b.InFlight())
	assert.True(t, b.TryAcquire(), "permit must still be usable after the bad release")
}

func TestBulkhead_RandomSequenceStaysWithinBounds(t *testing.T) {
	const capacity = 3
	b := NewBulkhead("payment", capacity)
	r := rand.New(rand.NewSource(42))
	held := 0

	for i := 0; i < 5000; i++ {
		if r.Intn(2) == 0 {
			if b.TryAcquire() {
				held++
			}
		} else if held > 0 {
			b.Release()
			held--
		}
		require.GreaterOrEqual(t, b.InFlight(), 0)
		require.LessOrEqual(t, b.InFlight(), capacity)
		require.Equal(t, held, b.InFlight())
	}
}

func TestBulkhead_ConcurrentNeverExceedsCapacity(t *testing.T) {
	const capacity = 4
	b := NewBulkhead("payment", capacity)

	var (
		wg      sync.WaitGroup
		current atomic.Int64
		peak    atomic.Int64
	)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				if !b.TryAcquire() {
					continue
				}
				n := current.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				current.Add(-1)
				b.Release()
			}
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int64(capacity))
	assert.Equal(t, 0, b.InFlight())
}

func TestBulkhead_Do(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	b := NewBulkhead("payment", 1, WithMetrics(m))

	release := make(chan struct{})
	started := make(chan struct{})
	done := make(chan error)
	go func() {
		done <- b.Do(context.Background(), func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	err := b.Do(context.Background(), func(context.Context) error {
		t.Fatal("must not run while full")
		return nil
	})
	assert.True(t, errors.Is(err, ErrBulkheadFull))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.bulkheadRejected.WithLabelValues("payment")))

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, 0, b.InFlight())

	assert.Panics(t, func() {
		_ = b.Do(context.Background(), func(context.Context) error { panic("boom") })
	})
	assert.Equal(t, 0, b.InFlight(), "permit must be returned on panic")
}
