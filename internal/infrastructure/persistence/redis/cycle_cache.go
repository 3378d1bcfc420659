package redis

import (
	"context"
	"errors"
	"time"

	"github.com/valores-hub/nominations/internal/domain/cycle"
	"github.com/valores-hub/nominations/pkg/circuitbreaker"
)

// CycleCache caches the active cycle. Nominations resolve it on every
// request while it changes a few times a year.
type CycleCache struct {
	cache   *Cache
	ttl     time.Duration
	breaker *circuitbreaker.CircuitBreaker
}

// CycleCacheOption customizes NewCycleCache.
type CycleCacheOption func(*CycleCache)

// WithBreaker guards reads and writes with b. Invalidate always reaches
// Redis so an activation is never lost behind an open breaker.
func WithBreaker(b *circuitbreaker.CircuitBreaker) CycleCacheOption {
	return func(c *CycleCache) { c.breaker = b }
}

// NewCycleCache creates a CycleCache. A non-positive ttl uses TTLActiveCycle.
func NewCycleCache(cache *Cache, ttl time.Duration, opts ...CycleCacheOption) *CycleCache {
	if ttl <= 0 {
		ttl = TTLActiveCycle
	}
	c := &CycleCache{cache: cache, ttl: ttl}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *CycleCache) guard(ctx context.Context, fn func(context.Context) error) error {
	if c.breaker == nil {
		return fn(ctx)
	}
	return c.breaker.Execute(ctx, fn)
}

type cachedCycle struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	StartsOn  *time.Time `json:"starts_on,omitempty"`
	EndsOn    *time.Time `json:"ends_on,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// GetActive returns the cached active cycle, or nil on a miss.
func (c *CycleCache) GetActive(ctx context.Context) (*cycle.Cycle, error) {
	var (
		cc  cachedCycle
		hit bool
	)
	err := c.guard(ctx, func(ctx context.Context) error {
		err := c.cache.Get(ctx, ActiveCycleKey(), &cc)
		if errors.Is(err, ErrCacheMiss) {
			return nil
		}
		hit = err == nil
		return err
	})
	if err != nil || !hit {
		return nil, err
	}
	return &cycle.Cycle{
		ID:        cc.ID,
		Name:      cc.Name,
		Active:    true,
		StartsOn:  cc.StartsOn,
		EndsOn:    cc.EndsOn,
		CreatedAt: cc.CreatedAt,
	}, nil
}

// SetActive caches c as the active cycle.
func (c *CycleCache) SetActive(ctx context.Context, cy *cycle.Cycle) error {
	entry := cachedCycle{
		ID:        cy.ID,
		Name:      cy.Name,
		StartsOn:  cy.StartsOn,
		EndsOn:    cy.EndsOn,
		CreatedAt: cy.CreatedAt,
	}
	return c.guard(ctx, func(ctx context.Context) error {
		return c.cache.Set(ctx, ActiveCycleKey(), entry, c.ttl)
	})
}

// Invalidate drops the cached active cycle.
func (c *CycleCache) Invalidate(ctx context.Context) error {
	return c.cache.Delete(ctx, ActiveCycleKey())
}
