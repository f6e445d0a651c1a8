package cachestore

import (
	"context"
)

// Decision is a cached classification outcome for one message fingerprint.
type Decision struct {
	Classification string  `json:"classification"`
	Score          float64 `json:"score"`
}

// CacheStore maps message fingerprints to previously-computed decisions, so
// identical texts seen within the TTL never hit the classifier twice.
//
// Get returns nil (and no error) on a miss. Implementations must never
// return an entry past its expiry.
type CacheStore interface {
	Get(ctx context.Context, fingerprint string) (*Decision, error)
	Set(ctx context.Context, fingerprint string, d Decision) error
	Purge(ctx context.Context, fingerprint string) error
}
