package ledger

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

var redisLedgerPrefix = "ledger/"

// RedisLedger persists violation records in redis so repeat-offender state
// survives process restarts. Keys expire on their own after maxAge, which is
// the ledger's garbage collection.
type RedisLedger struct {
	Client *redis.Client
	MaxAge time.Duration
}

var _ Ledger = (*RedisLedger)(nil)

func NewRedisLedger(redisURL string, maxAge time.Duration) (*RedisLedger, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	// check redis connection
	_, err = rdb.Ping(context.TODO()).Result()
	if err != nil {
		return nil, err
	}
	return &RedisLedger{
		Client: rdb,
		MaxAge: maxAge,
	}, nil
}

func (s *RedisLedger) Get(ctx context.Context, userID string) (ViolationRecord, error) {
	raw, err := s.Client.Get(ctx, redisLedgerPrefix+userID).Bytes()
	if err == redis.Nil {
		return ViolationRecord{}, nil
	} else if err != nil {
		return ViolationRecord{}, err
	}
	var rec ViolationRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		// corrupt record: reset to a safe default rather than poisoning the
		// pipeline for this user
		slog.Error("corrupt ledger record, resetting", "user", userID, "err", err)
		_ = s.Client.Del(ctx, redisLedgerPrefix+userID).Err()
		return ViolationRecord{}, nil
	}
	return rec, nil
}

func (s *RedisLedger) RecordViolation(ctx context.Context, userID string, at time.Time, resetWindow time.Duration) (ViolationRecord, error) {
	rec, err := s.Get(ctx, userID)
	if err != nil {
		return ViolationRecord{}, err
	}
	rec = applyViolation(rec, at, resetWindow)
	if err := s.put(ctx, userID, rec); err != nil {
		return ViolationRecord{}, err
	}
	return rec, nil
}

func (s *RedisLedger) MarkActioned(ctx context.Context, userID string, at time.Time) error {
	rec, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}
	rec.LastActionAt = at
	return s.put(ctx, userID, rec)
}

func (s *RedisLedger) Reset(ctx context.Context, userID string) error {
	return s.Client.Del(ctx, redisLedgerPrefix+userID).Err()
}

func (s *RedisLedger) put(ctx context.Context, userID string, rec ViolationRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.Client.Set(ctx, redisLedgerPrefix+userID, raw, s.MaxAge).Err()
}
