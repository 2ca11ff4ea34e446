// Package quotes provides the per-cycle quote cache.
package quotes

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	apperrors "mstock-trader/internal/errors"
	"mstock-trader/internal/models"
)

// Getter is the slice of the broker the cache needs.
type Getter interface {
	GetQuote(ctx context.Context, symbol string, exchange models.Exchange) (*models.Quote, error)
}

// waitTimeout bounds how long a caller waits on another caller's in-flight
// fetch before giving up for this cycle.
const waitTimeout = 200 * time.Millisecond

// Cache deduplicates quote fetches within one engine cycle. The first
// caller for a key performs the fetch; concurrent callers for the same key
// wait for that result instead of issuing their own. Results are memoized,
// failures included, until ResetCycle.
type Cache struct {
	getter  Getter
	logger  zerolog.Logger
	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	done  chan struct{}
	quote *models.Quote
	err   error
}

// NewCache creates a quote cache backed by getter.
func NewCache(getter Getter, logger zerolog.Logger) *Cache {
	return &Cache{
		getter:  getter,
		logger:  logger,
		entries: make(map[string]*entry),
	}
}

// Fetch returns the cycle's quote for (symbol, exchange), fetching at most
// once per key per cycle. A quote without a usable last price memoizes as
// ErrBadQuote so later callers in the same cycle skip the symbol cheaply.
func (c *Cache) Fetch(ctx context.Context, symbol string, exchange models.Exchange) (*models.Quote, error) {
	key := models.QuoteKey(symbol, exchange)

	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		c.mu.Unlock()
		return c.await(ctx, key, e)
	}
	e := &entry{done: make(chan struct{})}
	c.entries[key] = e
	c.mu.Unlock()

	quote, err := c.getter.GetQuote(ctx, symbol, exchange)
	if err == nil && (quote == nil || !quote.HasPrice()) {
		quote = nil
		err = apperrors.Wrapf(apperrors.ErrBadQuote, "%s", key)
	}
	e.quote, e.err = quote, err
	close(e.done)
	return e.quote, e.err
}

func (c *Cache) await(ctx context.Context, key string, e *entry) (*models.Quote, error) {
	timer := time.NewTimer(waitTimeout)
	defer timer.Stop()

	select {
	case <-e.done:
		return e.quote, e.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		c.logger.Debug().Str("key", key).Msg("Quote fetch still in flight, giving up for this cycle")
		return nil, apperrors.Wrapf(apperrors.ErrBadQuote, "quote fetch for %s still in flight", key)
	}
}

// ResetCycle drops all memoized results. The engine calls it at the top of
// every cycle.
func (c *Cache) ResetCycle() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
}
