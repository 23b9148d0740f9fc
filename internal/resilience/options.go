package resilience

import "time"

type options struct {
	now       func() time.Time
	metrics   *Metrics
	isFailure func(error) bool
}

// Option configures a Bulkhead, CircuitBreaker or RateLimiter.
type Option func(*options)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithFailurePredicate decides which errors count against a CircuitBreaker.
// Errors it rejects are treated as a healthy round trip.
func WithFailurePredicate(fn func(error) bool) Option {
	return func(o *options) {
		if fn != nil {
			o.isFailure = fn
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		now:       time.Now,
		isFailure: func(err error) bool { return err != nil },
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
