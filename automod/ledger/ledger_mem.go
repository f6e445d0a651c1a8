package ledger

import (
	"context"
	"sync"
	"time"
)

type MemLedger struct {
	lk      sync.Mutex
	records map[string]ViolationRecord
}

var _ Ledger = (*MemLedger)(nil)

func NewMemLedger() *MemLedger {
	return &MemLedger{
		records: make(map[string]ViolationRecord),
	}
}

func (s *MemLedger) Get(ctx context.Context, userID string) (ViolationRecord, error) {
	s.lk.Lock()
	defer s.lk.Unlock()
	return s.records[userID], nil
}

func (s *MemLedger) RecordViolation(ctx context.Context, userID string, at time.Time, resetWindow time.Duration) (ViolationRecord, error) {
	s.lk.Lock()
	defer s.lk.Unlock()
	rec := applyViolation(s.records[userID], at, resetWindow)
	s.records[userID] = rec
	return rec, nil
}

func (s *MemLedger) MarkActioned(ctx context.Context, userID string, at time.Time) error {
	s.lk.Lock()
	defer s.lk.Unlock()
	rec := s.records[userID]
	rec.LastActionAt = at
	s.records[userID] = rec
	return nil
}

func (s *MemLedger) Reset(ctx context.Context, userID string) error {
	s.lk.Lock()
	defer s.lk.Unlock()
	delete(s.records, userID)
	return nil
}

// Sweep drops records whose last violation is older than maxAge. Optional
// housekeeping; correctness does not depend on it.
func (s *MemLedger) Sweep(now time.Time, maxAge time.Duration) int {
	s.lk.Lock()
	defer s.lk.Unlock()
	var n int
	for user, rec := range s.records {
		if now.Sub(rec.LastViolationAt) > maxAge {
			delete(s.records, user)
			n++
		}
	}
	return n
}
