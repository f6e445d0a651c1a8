package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemLedgerViolationCounting(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	s := NewMemLedger()
	t0 := time.Date(2024, 3, 1, 20, 0, 0, 0, time.UTC)
	window := time.Hour

	rec, err := s.Get(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(ViolationRecord{}, rec)

	rec, err = s.RecordViolation(ctx, "bob", t0, window)
	require.NoError(t, err)
	assert.Equal(1, rec.Count)
	assert.Equal(t0, rec.LastViolationAt)
	assert.True(rec.LastActionAt.IsZero())

	// second violation inside the window increments
	rec, err = s.RecordViolation(ctx, "bob", t0.Add(10*time.Minute), window)
	require.NoError(t, err)
	assert.Equal(2, rec.Count)

	// a quiet period longer than the window restarts the count at one
	rec, err = s.RecordViolation(ctx, "bob", t0.Add(2*time.Hour), window)
	require.NoError(t, err)
	assert.Equal(1, rec.Count)
}

func TestMemLedgerMarkActioned(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	s := NewMemLedger()
	t0 := time.Date(2024, 3, 1, 20, 0, 0, 0, time.UTC)

	_, err := s.RecordViolation(ctx, "bob", t0, time.Hour)
	require.NoError(t, err)
	require.NoError(t, s.MarkActioned(ctx, "bob", t0))

	// RecordViolation must not disturb LastActionAt
	rec, err := s.RecordViolation(ctx, "bob", t0.Add(time.Minute), time.Hour)
	require.NoError(t, err)
	assert.Equal(2, rec.Count)
	assert.Equal(t0, rec.LastActionAt)

	require.NoError(t, s.Reset(ctx, "bob"))
	rec, err = s.Get(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(ViolationRecord{}, rec)
}

func TestMemLedgerSweep(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	s := NewMemLedger()
	t0 := time.Date(2024, 3, 1, 20, 0, 0, 0, time.UTC)

	_, err := s.RecordViolation(ctx, "old", t0, time.Hour)
	require.NoError(t, err)
	_, err = s.RecordViolation(ctx, "fresh", t0.Add(23*time.Hour), time.Hour)
	require.NoError(t, err)

	n := s.Sweep(t0.Add(24*time.Hour), 12*time.Hour)
	assert.Equal(1, n)

	rec, err := s.Get(ctx, "fresh")
	require.NoError(t, err)
	assert.Equal(1, rec.Count)
	rec, err = s.Get(ctx, "old")
	require.NoError(t, err)
	assert.Equal(0, rec.Count)
}
