package cachestore

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// MemCacheStore is an in-process decision cache with a hard capacity bound
// and per-entry TTL. When full, the entry touched least recently is evicted
// first, which under the pipeline's write-mostly access pattern is the
// oldest-inserted entry.
type MemCacheStore struct {
	Data *expirable.LRU[string, Decision]
}

var _ CacheStore = (*MemCacheStore)(nil)

func NewMemCacheStore(capacity int, ttl time.Duration) MemCacheStore {
	return MemCacheStore{
		Data: expirable.NewLRU[string, Decision](capacity, nil, ttl),
	}
}

func (s MemCacheStore) Get(ctx context.Context, fingerprint string) (*Decision, error) {
	v, ok := s.Data.Get(fingerprint)
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (s MemCacheStore) Set(ctx context.Context, fingerprint string, d Decision) error {
	s.Data.Add(fingerprint, d)
	return nil
}

func (s MemCacheStore) Purge(ctx context.Context, fingerprint string) error {
	s.Data.Remove(fingerprint)
	return nil
}
