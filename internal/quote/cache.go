package quote

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"papertrade-enginev1/internal/model"
)

const (
	cacheKeyPrefix  = "quote:"
	defaultCacheTTL = 5 * time.Second
)

// CacheConfig configures the Redis quote cache.
type CacheConfig struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int
	TTL      time.Duration // zero means defaultCacheTTL
}

// Cache is a read-through quote cache in front of another provider. Cache
// errors degrade to direct provider calls; Redis being down never makes
// quotes unavailable.
type Cache struct {
	inner  model.QuoteProvider
	client *goredis.Client
	ttl    time.Duration
}

// NewCache connects to Redis and wraps the given provider.
func NewCache(cfg CacheConfig, inner model.QuoteProvider) (*Cache, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}

	log.Printf("[quotecache] connected to %s (ttl=%v)", cfg.Addr, ttl)
	return &Cache{inner: inner, client: client, ttl: ttl}, nil
}

// GetQuote serves from Redis when a fresh entry exists, otherwise asks the
// inner provider and writes the result back with a TTL.
func (c *Cache) GetQuote(ctx context.Context, symbol string) (model.Quote, error) {
	key := cacheKeyPrefix + symbol

	if data, err := c.client.Get(ctx, key).Bytes(); err == nil {
		var q model.Quote
		if err := json.Unmarshal(data, &q); err == nil {
			return q, nil
		}
		// Corrupt entry: fall through and overwrite.
	}

	q, err := c.inner.GetQuote(ctx, symbol)
	if err != nil {
		return model.Quote{}, err
	}

	if data, err := json.Marshal(q); err == nil {
		if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
			log.Printf("[quotecache] set %s: %v", symbol, err)
		}
	}
	return q, nil
}

// Close releases the Redis client.
func (c *Cache) Close() error {
	return c.client.Close()
}
