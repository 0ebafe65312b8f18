package pricefeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/tradevault/platform/internal/app/domain/pricefeed"
)

// QuoteCache keeps the latest quote per pair in Redis so dashboard spot
// lookups avoid the database. All methods are no-ops on a nil cache.
type QuoteCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewQuoteCache wraps a Redis client. ttl bounds how stale a cached quote
// may be served.
func NewQuoteCache(rdb *redis.Client, ttl time.Duration) *QuoteCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &QuoteCache{rdb: rdb, ttl: ttl}
}

func quoteKey(pair string) string {
	return "quote:" + strings.ToUpper(pair)
}

// Put stores the quote under its pair key.
func (c *QuoteCache) Put(ctx context.Context, q pricefeed.Quote) error {
	if c == nil || c.rdb == nil {
		return nil
	}
	data, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("encode quote: %w", err)
	}
	return c.rdb.Set(ctx, quoteKey(q.Pair), data, c.ttl).Err()
}

// Get returns the cached quote for a pair. The second return is false on a
// cache miss.
func (c *QuoteCache) Get(ctx context.Context, pair string) (pricefeed.Quote, bool, error) {
	if c == nil || c.rdb == nil {
		return pricefeed.Quote{}, false, nil
	}
	data, err := c.rdb.Get(ctx, quoteKey(pair)).Bytes()
	if errors.Is(err, redis.Nil) {
		return pricefeed.Quote{}, false, nil
	}
	if err != nil {
		return pricefeed.Quote{}, false, err
	}

	var q pricefeed.Quote
	if err := json.Unmarshal(data, &q); err != nil {
		return pricefeed.Quote{}, false, fmt.Errorf("decode cached quote: %w", err)
	}
	return q, true, nil
}
