package market

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stocksim/stocksim-api/internal/types"
)

// quoteTTL keeps served quotes bounded-stale; price updates invalidate
// eagerly anyway.
const quoteTTL = 15 * time.Second

// QuoteCache is an optional redis layer in front of quote lookups. A nil
// cache is valid and turns every operation into a no-op.
type QuoteCache struct {
	client *redis.Client
}

// NewQuoteCache connects to redis at addr. Empty addr disables caching.
func NewQuoteCache(addr, password string) (*QuoteCache, error) {
	if addr == "" {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}

	return &QuoteCache{client: client}, nil
}

func quoteKey(symbol string) string {
	return fmt.Sprintf("quote:%s", symbol)
}

// GetQuote returns the cached quote for symbol, or nil on a miss.
func (c *QuoteCache) GetQuote(ctx context.Context, symbol string) (*types.StockQuote, error) {
	if c == nil {
		return nil, nil
	}

	data, err := c.client.Get(ctx, quoteKey(symbol)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get error: %w", err)
	}

	var quote types.StockQuote
	if err := json.Unmarshal(data, &quote); err != nil {
		return nil, fmt.Errorf("json unmarshal error: %w", err)
	}
	return &quote, nil
}

// SetQuote caches a quote with the standard TTL.
func (c *QuoteCache) SetQuote(ctx context.Context, quote *types.StockQuote) error {
	if c == nil {
		return nil
	}

	data, err := json.Marshal(quote)
	if err != nil {
		return fmt.Errorf("json marshal error: %w", err)
	}
	return c.client.Set(ctx, quoteKey(quote.Symbol), data, quoteTTL).Err()
}

// InvalidateQuote drops the cached quote for symbol.
func (c *QuoteCache) InvalidateQuote(ctx context.Context, symbol string) error {
	if c == nil {
		return nil
	}
	return c.client.Del(ctx, quoteKey(symbol)).Err()
}

// Close releases the redis connection.
func (c *QuoteCache) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}
