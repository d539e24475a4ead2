package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTimeout bounds a single dependency check
const DefaultTimeout = 2 * time.Second

// Checker is a health check function that returns an error if unhealthy
type Checker func(ctx context.Context) error

// Pinger is anything that can be pinged, such as *pgxpool.Pool or *sql.DB via PingContext
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingChecker returns a checker that pings p within timeout
func PingChecker(name string, p Pinger, timeout time.Duration) Checker {
	return WithTimeout(func(ctx context.Context) error {
		if p == nil {
			return fmt.Errorf("%s connection is nil", name)
		}
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("%s ping failed: %w", name, err)
		}
		return nil
	}, timeout)
}

// RedisChecker returns a health check function for Redis
func RedisChecker(client redis.Cmdable, timeout time.Duration) Checker {
	return WithTimeout(func(ctx context.Context) error {
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping failed: %w", err)
		}
		return nil
	}, timeout)
}

// WithTimeout bounds checker by timeout. A non-positive timeout uses DefaultTimeout.
func WithTimeout(checker Checker, timeout time.Duration) Checker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return checker(ctx)
	}
}

// CachedChecker caches the result of a health check for a given duration
type CachedChecker struct {
	checker  Checker
	cacheTTL time.Duration
	now      func() time.Time

	mu         sync.Mutex
	lastCheck  time.Time
	lastResult error
}

// NewCachedChecker creates a new cached health checker
func NewCachedChecker(checker Checker, cacheTTL time.Duration) *CachedChecker {
	return &CachedChecker{
		checker:  checker,
		cacheTTL: cacheTTL,
		now:      time.Now,
	}
}

// Check runs the health check, using cached result if still valid
func (c *CachedChecker) Check(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if !c.lastCheck.IsZero() && now.Sub(c.lastCheck) < c.cacheTTL {
		return c.lastResult
	}

	c.lastResult = c.checker(ctx)
	c.lastCheck = now
	return c.lastResult
}
