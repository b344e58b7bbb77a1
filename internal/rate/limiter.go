// Package rate limita requests por key (grupo + ip + tenant). Hay dos
// backends: RedisLimiter (ventana fija compartida entre instancias, un
// script atómico por hit) y MemoryLimiter (token bucket por proceso,
// golang.org/x/time/rate).
package rate

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Result de un Allow. ResetIn es lo que falta para que la ventana se
// renueve; RetryAfter sólo se completa cuando Allowed es false.
type Result struct {
	Allowed    bool
	Limit      int64
	Remaining  int64
	ResetIn    time.Duration
	RetryAfter time.Duration
}

type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

// Policy es un límite: Max requests por Window.
type Policy struct {
	Max    int
	Window time.Duration
}

func (p Policy) String() string { return fmt.Sprintf("%d/%s", p.Max, p.Window) }

// Pool entrega un Limiter por Policy, creándolo la primera vez. Permite que
// cada módulo declare su propio límite sobre el mismo backend.
type Pool struct {
	build func(Policy) Limiter

	mu       sync.RWMutex
	limiters map[Policy]Limiter
}

func NewPool(build func(Policy) Limiter) *Pool {
	return &Pool{build: build, limiters: make(map[Policy]Limiter)}
}

// For retorna el limiter de la policy indicada.
func (p *Pool) For(policy Policy) Limiter {
	p.mu.RLock()
	l, ok := p.limiters[policy]
	p.mu.RUnlock()
	if ok {
		return l
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if l, ok = p.limiters[policy]; !ok {
		l = p.build(policy)
		p.limiters[policy] = l
	}
	return l
}
