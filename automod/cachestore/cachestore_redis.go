package cachestore

import (
	"context"
	"time"

	"github.com/go-redis/cache/v9"
	"github.com/redis/go-redis/v9"
)

// RedisCacheStore keeps decisions in redis with a TTL, plus a small local
// TinyLFU layer in front. Lets decisions survive process restarts.
type RedisCacheStore struct {
	Data *cache.Cache
	TTL  time.Duration
}

var _ CacheStore = (*RedisCacheStore)(nil)

func NewRedisCacheStore(redisURL string, ttl time.Duration, localSize int) (*RedisCacheStore, error) {
	ctx := context.Background()
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	// check redis connection
	_, err = rdb.Ping(ctx).Result()
	if err != nil {
		return nil, err
	}
	data := cache.New(&cache.Options{
		Redis:      rdb,
		LocalCache: cache.NewTinyLFU(localSize, ttl),
	})
	return &RedisCacheStore{
		Data: data,
		TTL:  ttl,
	}, nil
}

func redisCacheKey(fingerprint string) string {
	return "decision/" + fingerprint
}

func (s RedisCacheStore) Get(ctx context.Context, fingerprint string) (*Decision, error) {
	var d Decision
	err := s.Data.Get(ctx, redisCacheKey(fingerprint), &d)
	if err == cache.ErrCacheMiss {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s RedisCacheStore) Set(ctx context.Context, fingerprint string, d Decision) error {
	return s.Data.Set(&cache.Item{
		Ctx:   ctx,
		Key:   redisCacheKey(fingerprint),
		Value: d,
		TTL:   s.TTL,
	})
}

func (s RedisCacheStore) Purge(ctx context.Context, fingerprint string) error {
	err := s.Data.Delete(ctx, redisCacheKey(fingerprint))
	if err == cache.ErrCacheMiss {
		return nil
	}
	return err
}
