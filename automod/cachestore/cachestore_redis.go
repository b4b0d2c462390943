package cachestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/cache/v9"
	"github.com/redis/go-redis/v9"
)

const redisCachePrefix = "spotter/cache/"

// RedisCacheStore keeps entries in redis, fronted by a small in-process TinyLFU so that hot classifier responses skip the network round trip.
type RedisCacheStore struct {
	entries *cache.Cache
	ttl     time.Duration
}

var _ CacheStore = (*RedisCacheStore)(nil)

func NewRedisCacheStore(redisURL string, ttl time.Duration) (*RedisCacheStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return NewRedisCacheStoreFromClient(rdb, ttl, 10_000), nil
}

// Shares an existing client. localSize bounds the in-process front cache; zero disables it.
func NewRedisCacheStoreFromClient(rdb *redis.Client, ttl time.Duration, localSize int) *RedisCacheStore {
	opts := &cache.Options{Redis: rdb}
	if localSize > 0 {
		// local entries must not outlive the redis ones
		opts.LocalCache = cache.NewTinyLFU(localSize, ttl)
	}
	return &RedisCacheStore{entries: cache.New(opts), ttl: ttl}
}

func (s *RedisCacheStore) Get(ctx context.Context, name, key string) (string, bool, error) {
	var val string
	switch err := s.entries.Get(ctx, redisCachePrefix+name+"/"+key, &val); {
	case errors.Is(err, cache.ErrCacheMiss):
		return "", false, nil
	case err != nil:
		return "", false, err
	}
	return val, true, nil
}

func (s *RedisCacheStore) Set(ctx context.Context, name, key string, val string) error {
	return s.entries.Set(&cache.Item{
		Ctx:   ctx,
		Key:   redisCachePrefix + name + "/" + key,
		Value: val,
		TTL:   s.ttl,
	})
}

func (s *RedisCacheStore) Purge(ctx context.Context, name, key string) error {
	if err := s.entries.Delete(ctx, redisCachePrefix+name+"/"+key); err != nil && !errors.Is(err, cache.ErrCacheMiss) {
		return err
	}
	return nil
}
