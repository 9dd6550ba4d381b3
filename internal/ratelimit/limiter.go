// Package ratelimit - ограничение частоты запросов по ключу (пользователь или IP).
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type Config struct {
	// PerMinute - устойчивая скорость на ключ.
	PerMinute int
	Burst     int
	// IdleTTL - через сколько неактивный ключ забывается.
	IdleTTL time.Duration
}

func DefaultConfig() Config {
	return Config{PerMinute: 30, Burst: 10, IdleTTL: 10 * time.Minute}
}

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter - набор token bucket лимитеров по ключу.
type Limiter struct {
	cfg   Config
	limit rate.Limit
	now   func() time.Time

	mu          sync.Mutex
	keys        map[string]*entry
	lastCleanup time.Time
}

func New(cfg Config) *Limiter {
	return NewWithClock(cfg, time.Now)
}

func NewWithClock(cfg Config, now func() time.Time) *Limiter {
	def := DefaultConfig()
	if cfg.PerMinute <= 0 {
		cfg.PerMinute = def.PerMinute
	}
	if cfg.Burst <= 0 {
		cfg.Burst = def.Burst
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = def.IdleTTL
	}
	return &Limiter{
		cfg:         cfg,
		limit:       rate.Limit(float64(cfg.PerMinute) / 60),
		now:         now,
		keys:        make(map[string]*entry),
		lastCleanup: now(),
	}
}

// Allow расходует один токен ключа.
func (l *Limiter) Allow(key string) bool {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.keys[key]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(l.limit, l.cfg.Burst)}
		l.keys[key] = e
	}
	e.lastSeen = now
	allowed := e.limiter.AllowN(now, 1)

	l.maybeCleanup(now)
	return allowed
}

// Len - число отслеживаемых ключей.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.keys)
}

// вызывается под l.mu
func (l *Limiter) maybeCleanup(now time.Time) {
	if now.Sub(l.lastCleanup) < l.cfg.IdleTTL {
		return
	}
	for key, e := range l.keys {
		if now.Sub(e.lastSeen) >= l.cfg.IdleTTL {
			delete(l.keys, key)
		}
	}
	l.lastCleanup = now
}
