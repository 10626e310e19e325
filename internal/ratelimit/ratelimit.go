// Package ratelimit implements a per-caller token bucket throttle that the
// request pipeline applies ahead of the match stage.
package ratelimit

import (
	"sync"
	"time"
)

// Limiter implements token bucket rate limiting.
type Limiter struct {
	tokens     float64
	maxTokens  float64
	refillRate float64 // tokens per second
	lastRefill time.Time
	mu         sync.Mutex
}

// NewLimiter creates a new rate limiter.
func NewLimiter(maxTokens, refillRate float64) *Limiter {
	return &Limiter{
		tokens:     maxTokens,
		maxTokens:  maxTokens,
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

// Allow reports whether a single request may proceed.
func (l *Limiter) Allow() bool {
	return l.AllowN(1)
}

// AllowN reports whether n requests may proceed.
func (l *Limiter) AllowN(n int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refill()

	if l.tokens >= float64(n) {
		l.tokens -= float64(n)
		return true
	}
	return false
}

func (l *Limiter) refill() {
	now := time.Now()
	elapsed := now.Sub(l.lastRefill).Seconds()

	l.tokens += elapsed * l.refillRate
	if l.tokens > l.maxTokens {
		l.tokens = l.maxTokens
	}
	l.lastRefill = now
}

// Reset restores the limiter to a full bucket.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tokens = l.maxTokens
	l.lastRefill = time.Now()
}

// entityEntry wraps a limiter with its last access time, for cleanup.
type entityEntry struct {
	limiter    *Limiter
	lastAccess time.Time
}

// EntityLimiter keys independent token buckets by an arbitrary caller key,
// so one noisy caller cannot starve another's allowance. internal/gateway
// keys it by the caller's remote IP address.
type EntityLimiter struct {
	entities      map[string]*entityEntry
	maxTokens     float64
	refillRate    float64
	mu            sync.RWMutex
	cleanupPeriod time.Duration
	maxAge        time.Duration
	stopCh        chan struct{}
}

// NewEntityLimiter creates a per-entity limiter; every distinct entity gets
// its own bucket sized maxTokens/refillRate.
func NewEntityLimiter(maxTokens, refillRate float64) *EntityLimiter {
	el := &EntityLimiter{
		entities:      make(map[string]*entityEntry),
		maxTokens:     maxTokens,
		refillRate:    refillRate,
		cleanupPeriod: 5 * time.Minute,
		maxAge:        30 * time.Minute,
		stopCh:        make(chan struct{}),
	}
	go el.cleanup()
	return el
}

// Stop terminates the background cleanup goroutine.
func (el *EntityLimiter) Stop() {
	close(el.stopCh)
}

func (el *EntityLimiter) cleanup() {
	ticker := time.NewTicker(el.cleanupPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-el.stopCh:
			return
		case <-ticker.C:
			el.mu.Lock()
			now := time.Now()
			for entity, entry := range el.entities {
				if now.Sub(entry.lastAccess) > el.maxAge {
					delete(el.entities, entity)
				}
			}
			el.mu.Unlock()
		}
	}
}

// Allow reports whether entity may make one more request right now.
func (el *EntityLimiter) Allow(entity string) bool {
	return el.getLimiter(entity).Allow()
}

func (el *EntityLimiter) getLimiter(entity string) *Limiter {
	el.mu.RLock()
	entry, ok := el.entities[entity]
	el.mu.RUnlock()
	if ok {
		entry.lastAccess = time.Now()
		return entry.limiter
	}

	el.mu.Lock()
	defer el.mu.Unlock()
	if entry, ok = el.entities[entity]; ok {
		entry.lastAccess = time.Now()
		return entry.limiter
	}

	entry = &entityEntry{
		limiter:    NewLimiter(el.maxTokens, el.refillRate),
		lastAccess: time.Now(),
	}
	el.entities[entity] = entry
	return entry.limiter
}
