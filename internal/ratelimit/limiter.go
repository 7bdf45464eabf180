package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

type LimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// Limiter throttles outbound backend calls per route class.
type Limiter struct {
	enabled bool
	limits  map[string]LimitConfig
	local   map[string]*rate.Limiter
	mu      sync.Mutex
}

func NewLimiter(requestsPerSecond float64, burst int, enabled bool) *Limiter {
	return &Limiter{
		enabled: enabled,
		limits: map[string]LimitConfig{
			"default":  {RequestsPerSecond: requestsPerSecond, Burst: burst},
			"message":  {RequestsPerSecond: 5, Burst: 10},
			"presence": {RequestsPerSecond: 1, Burst: 2},
		},
		local: make(map[string]*rate.Limiter),
	}
}

func (l *Limiter) SetLimit(key string, cfg LimitConfig) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.limits[key] = cfg
	delete(l.local, key)
}

func (l *Limiter) limiter(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, ok := l.local[key]
	if !ok {
		cfg, known := l.limits[key]
		if !known {
			cfg = l.limits["default"]
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst)
		l.local[key] = limiter
	}
	return limiter
}

func (l *Limiter) Allow(key string) bool {
	if l == nil || !l.enabled {
		return true
	}
	return l.limiter(key).Allow()
}

// Wait blocks until key has a token or ctx is done.
func (l *Limiter) Wait(ctx context.Context, key string) error {
	if l == nil || !l.enabled {
		return nil
	}
	return l.limiter(key).Wait(ctx)
}

func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	delete(l.local, key)
	l.mu.Unlock()
}
