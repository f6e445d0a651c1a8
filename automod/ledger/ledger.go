// Per-user rolling violation state: how many times, and how recently, a user
// has triggered a moderation action. Backs the cooldown and clean-slate reset
// rules of the moderation engine.
//
// Includes an interface and implementations using redis and in-process memory.
package ledger

import (
	"context"
	"time"
)

// ViolationRecord tracks one user's recent moderation history. The zero
// value means "no violations on file".
type ViolationRecord struct {
	Count           int       `json:"count"`
	LastViolationAt time.Time `json:"last_violation_at"`
	LastActionAt    time.Time `json:"last_action_at"`
}

// Ledger stores violation records keyed by userID. Records are created
// lazily on first violation. Callers pass the current time explicitly so
// cooldown and reset logic stays deterministic under test.
//
// The engine serializes all calls per user; implementations only need to be
// safe for concurrent access across distinct users.
type Ledger interface {
	// Get returns the record for a user; zero record when absent.
	Get(ctx context.Context, userID string) (ViolationRecord, error)

	// RecordViolation bumps the user's violation count at time `at`. If the
	// previous violation is older than resetWindow the count restarts at 1
	// (clean slate). The returned record has the updated count and
	// LastViolationAt, with LastActionAt untouched so the caller can apply
	// its cooldown check.
	RecordViolation(ctx context.Context, userID string, at time.Time, resetWindow time.Duration) (ViolationRecord, error)

	// MarkActioned records that a remediation sequence started at time `at`.
	MarkActioned(ctx context.Context, userID string, at time.Time) error

	// Reset wipes a user's record.
	Reset(ctx context.Context, userID string) error
}

func applyViolation(rec ViolationRecord, at time.Time, resetWindow time.Duration) ViolationRecord {
	if rec.Count == 0 || at.Sub(rec.LastViolationAt) > resetWindow {
		rec.Count = 1
	} else {
		rec.Count++
	}
	rec.LastViolationAt = at
	return rec
}
