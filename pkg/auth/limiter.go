package auth

import (
	"sync"

	"golang.org/x/time/rate"
)

// limiterPool hands out one token bucket per client key. The rate is
// resolved once at construction; buckets are created on first sight of a
// key and kept for the life of the process.
type limiterPool struct {
	limit rate.Limit
	burst int

	mu sync.Mutex
	m  map[string]*rate.Limiter
}

func newLimiterPool(cfg SecConfig) *limiterPool {
	return &limiterPool{
		limit: rate.Limit(cfg.RPS),
		burst: cfg.Burst,
		m:     make(map[string]*rate.Limiter),
	}
}

func (p *limiterPool) Allow(key string) bool {
	p.mu.Lock()
	l, ok := p.m[key]
	if !ok {
		l = rate.NewLimiter(p.limit, p.burst)
		p.m[key] = l
	}
	p.mu.Unlock()
	return l.Allow()
}
