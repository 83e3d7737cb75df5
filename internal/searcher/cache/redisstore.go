package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/Adithya-Monish-Kumar-K/retrieval-engine/internal/searcher/ranker"
	pkgredis "github.com/Adithya-Monish-Kumar-K/retrieval-engine/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/retrieval-engine/pkg/resilience"
)

const redisKeyPrefix = "rcache:"

// RedisStore shares results between searcher processes. Calls go through a
// circuit breaker so an unavailable Redis degrades to memory-only caching
// instead of adding latency to every query.
type RedisStore struct {
	client  *pkgredis.Client
	ttl     time.Duration
	breaker *resilience.CircuitBreaker
}

// NewRedisStore wraps client. A zero ttl keeps entries until purged.
func NewRedisStore(client *pkgredis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client: client,
		ttl:    ttl,
		breaker: resilience.NewCircuitBreaker("redis-result-store", resilience.CircuitBreakerConfig{
			FailureThreshold: 5,
			ResetTimeout:     10 * time.Second,
		}),
	}
}

func (s *RedisStore) Get(ctx context.Context, key string) (ranker.RankedResult, bool, error) {
	var (
		data  []byte
		found bool
	)
	err := s.breaker.Execute(func() error {
		var err error
		data, found, err = s.client.GetBytes(ctx, redisKeyPrefix+key)
		return err
	})
	if err != nil {
		return ranker.RankedResult{}, false, fmt.Errorf("redis get: %w", err)
	}
	if !found {
		return ranker.RankedResult{}, false, nil
	}
	v, err := decodeResult(data)
	if err != nil {
		return ranker.RankedResult{}, false, err
	}
	return v, true, nil
}

func (s *RedisStore) Put(ctx context.Context, key string, v ranker.RankedResult) error {
	data, err := encodeResult(v)
	if err != nil {
		return err
	}
	return s.breaker.Execute(func() error {
		return s.client.Set(ctx, redisKeyPrefix+key, data, s.ttl)
	})
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.breaker.Execute(func() error {
		return s.client.Del(ctx, redisKeyPrefix+key)
	})
}

// Purge is operator-initiated, so it bypasses an open breaker and closes it
// again once Redis answers.
func (s *RedisStore) Purge(ctx context.Context) error {
	if _, err := s.client.FlushByPattern(ctx, redisKeyPrefix+"*"); err != nil {
		return err
	}
	s.breaker.Reset()
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
