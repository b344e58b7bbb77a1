package rate

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// MemoryLimiter es un token bucket por key: ráfaga de Max y recarga de
// Max por Window. Las keys sin uso por más de dos ventanas se descartan.
type MemoryLimiter struct {
	policy Policy
	now    func() time.Time

	mu       sync.Mutex
	limiters map[string]*entry
	lastGC   time.Time
}

type entry struct {
	lim  *rate.Limiter
	seen time.Time
}

func NewMemoryLimiter(p Policy) *MemoryLimiter {
	return &MemoryLimiter{
		policy:   p,
		now:      time.Now,
		limiters: make(map[string]*entry),
	}
}

func (m *MemoryLimiter) get(key string, now time.Time) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()

	if now.Sub(m.lastGC) > m.policy.Window {
		for k, e := range m.limiters {
			if now.Sub(e.seen) > 2*m.policy.Window {
				delete(m.limiters, k)
			}
		}
		m.lastGC = now
	}

	e, ok := m.limiters[key]
	if !ok {
		every := m.policy.Window / time.Duration(max(m.policy.Max, 1))
		e = &entry{lim: rate.NewLimiter(rate.Every(every), m.policy.Max)}
		m.limiters[key] = e
	}
	e.seen = now
	return e.lim
}

func (m *MemoryLimiter) Allow(_ context.Context, key string) (Result, error) {
	now := m.now()
	lim := m.get(key, now)

	res := Result{Limit: int64(m.policy.Max), ResetIn: m.policy.Window}
	r := lim.ReserveN(now, 1)
	if d := r.DelayFrom(now); !r.OK() || d > 0 {
		r.CancelAt(now)
		res.RetryAfter = d
		if res.RetryAfter <= 0 {
			res.RetryAfter = m.policy.Window
		}
		return res, nil
	}
	res.Allowed = true
	res.Remaining = max(int64(lim.TokensAt(now)), 0)
	return res, nil
}
