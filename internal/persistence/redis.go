package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/mydentalfly/quote-backend/internal/quote"
)

// SessionCache is the subset of the redis client used for quote sessions.
type SessionCache interface {
	QuoteSessionKey(quoteKey string) string
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	GetJSON(ctx context.Context, key string, dst any) (bool, error)
	Del(ctx context.Context, keys ...string) error
}

// Redis stores quote sessions with a sliding TTL refreshed on every save.
type Redis struct {
	cache SessionCache
	ttl   time.Duration
}

func NewRedis(cache SessionCache, ttl time.Duration) (*Redis, error) {
	if cache == nil {
		return nil, fmt.Errorf("session cache required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("session ttl must be positive")
	}
	return &Redis{cache: cache, ttl: ttl}, nil
}

func (r *Redis) Backend() string { return "redis" }

func (r *Redis) Load(ctx context.Context, key string) (*quote.State, error) {
	var st quote.State
	found, err := r.cache.GetJSON(ctx, r.cache.QuoteSessionKey(key), &st)
	if err != nil {
		return nil, fmt.Errorf("load quote session %s: %w", key, err)
	}
	if !found {
		return nil, nil
	}
	return &st, nil
}

func (r *Redis) Save(ctx context.Context, key string, state quote.State) error {
	if err := r.cache.SetJSON(ctx, r.cache.QuoteSessionKey(key), state, r.ttl); err != nil {
		return fmt.Errorf("save quote session %s: %w", key, err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.cache.Del(ctx, r.cache.QuoteSessionKey(key)); err != nil {
		return fmt.Errorf("delete quote session %s: %w", key, err)
	}
	return nil
}
