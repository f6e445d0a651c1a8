package automod

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserSchedulerOrdering(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	var lk sync.Mutex
	perUser := make(map[string][]string)

	sched := newUserScheduler(4, slog.Default(), func(evt MessageEvent) {
		lk.Lock()
		defer lk.Unlock()
		perUser[evt.UserID] = append(perUser[evt.UserID], evt.Text)
	})

	users := []string{"alice", "bob", "carol"}
	for i := 0; i < 30; i++ {
		u := users[i%len(users)]
		require.NoError(t, sched.AddWork(ctx, u, MessageEvent{UserID: u, Text: string(rune('a' + i))}))
	}
	sched.Shutdown()

	for _, u := range users {
		msgs := perUser[u]
		assert.Len(msgs, 10)
		// submission order preserved per user
		for i := 1; i < len(msgs); i++ {
			assert.Less(msgs[i-1], msgs[i])
		}
	}
}

func TestUserSchedulerSingleWorkerDrains(t *testing.T) {
	ctx := context.Background()

	var lk sync.Mutex
	var n int
	sched := newUserScheduler(1, slog.Default(), func(evt MessageEvent) {
		lk.Lock()
		n++
		lk.Unlock()
	})

	for i := 0; i < 20; i++ {
		require.NoError(t, sched.AddWork(ctx, "bob", MessageEvent{UserID: "bob"}))
	}
	sched.Shutdown()

	assert.Equal(t, 20, n)
}
