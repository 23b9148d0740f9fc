package resilience

import (
	"context"
	"hash/fnv"
	"sync"
	"time"
)

const limiterShards = 64

type RateLimiterConfig struct {
	Limit  int
	Window time.Duration
}

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

type fixedWindow struct {
	start time.Time
	count int
}

type limiterShard struct {
	mu      sync.Mutex
	windows map[string]*fixedWindow
}

// RateLimiter admits at most Limit requests per key in each fixed Window.
// A window starts with the first request for a key and resets only once it
// has fully elapsed.
type RateLimiter struct {
	cfg     RateLimiterConfig
	now     func() time.Time
	metrics *Metrics
	shards  [limiterShards]*limiterShard
}

func NewRateLimiter(cfg RateLimiterConfig, opts ...Option) *RateLimiter {
	if cfg.Limit < 1 {
		cfg.Limit = 1
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	o := buildOptions(opts)
	rl := &RateLimiter{cfg: cfg, now: o.now, metrics: o.metrics}
	for i := range rl.shards {
		rl.shards[i] = &limiterShard{windows: make(map[string]*fixedWindow)}
	}
	return rl
}

func (rl *RateLimiter) shard(key string) *limiterShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return rl.shards[h.Sum32()%limiterShards]
}

func (rl *RateLimiter) Admit(key string) Decision {
	now := rl.now()
	sh := rl.shard(key)

	sh.mu.Lock()
	w, ok := sh.windows[key]
	if !ok || now.Sub(w.start) >= rl.cfg.Window {
		w = &fixedWindow{start: now}
		sh.windows[key] = w
	}
	d := Decision{Limit: rl.cfg.Limit, ResetAt: w.start.Add(rl.cfg.Window)}
	if w.count < rl.cfg.Limit {
		w.count++
		d.Allowed = true
		d.Remaining = rl.cfg.Limit - w.count
	}
	sh.mu.Unlock()

	rl.metrics.rateLimitDecision(d.Allowed)
	return d
}

func (rl *RateLimiter) Allow(key string) bool {
	return rl.Admit(key).Allowed
}

// Sweep drops expired windows and returns how many were removed.
func (rl *RateLimiter) Sweep() int {
	now := rl.now()
	removed := 0
	for _, sh := range rl.shards {
		sh.mu.Lock()
		for k, w := range sh.windows {
			if now.Sub(w.start) >= rl.cfg.Window {
				delete(sh.windows, k)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed
}

// Run sweeps every interval until ctx is done.
func (rl *RateLimiter) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = rl.cfg.Window
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.Sweep()
		}
	}
}

func (rl *RateLimiter) Config() RateLimiterConfig {
	return rl.cfg
}

// Keys reports how many clients currently hold a window.
func (rl *RateLimiter) Keys() int {
	n := 0
	for _, sh := range rl.shards {
		sh.mu.Lock()
		n += len(sh.windows)
		sh.mu.Unlock()
	}
	return n
}
