package updates_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"go.mau.fi/tgsync/schema"
	"go.mau.fi/tgsync/updates"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func someUpdates(n int) []schema.Update {
	out := make([]schema.Update, n)
	for i := range out {
		out[i] = schema.NonSequencedUpdate{Payload: i}
	}
	return out
}

func TestUpdateQueueExtendAndPop(t *testing.T) {
	q := updates.NewUpdateQueue(updates.Config{}.WithDefaults())
	chatMap := updates.NewChatMap(schema.Entities{})

	q.Extend(someUpdates(3), chatMap)
	require.Equal(t, 3, q.Len())

	for i := 0; i < 3; i++ {
		entry, ok := q.Pop()
		require.True(t, ok)
		require.Equal(t, i, entry.Update.(schema.NonSequencedUpdate).Payload)
	}
	_, ok := q.Pop()
	require.False(t, ok)
}

func TestUpdateQueueDropsNewestOnOverflow(t *testing.T) {
	limit := 5
	q := updates.NewUpdateQueue(updates.Config{UpdateQueueLimit: &limit}.WithDefaults())
	chatMap := updates.NewChatMap(schema.Entities{})

	q.Extend(someUpdates(8), chatMap)

	require.Equal(t, 5, q.Len())
	require.Equal(t, uint64(3), q.Dropped())

	for i := 0; i < 5; i++ {
		entry, ok := q.Pop()
		require.True(t, ok)
		require.Equal(t, i, entry.Update.(schema.NonSequencedUpdate).Payload)
	}
}

func TestUpdateQueueWarningRateLimited(t *testing.T) {
	limit := 1
	clock := &fakeClock{now: time.Unix(0, 0)}
	core, logs := observer.New(zap.WarnLevel)
	q := updates.NewUpdateQueue(updates.Config{
		UpdateQueueLimit:     &limit,
		Clock:                clock,
		OverflowWarnCooldown: time.Minute,
		Logger:               zap.New(core),
	}.WithDefaults())
	chatMap := updates.NewChatMap(schema.Entities{})

	q.Extend(someUpdates(3), chatMap)
	require.Equal(t, uint64(2), q.Dropped())
	require.Equal(t, 1, logs.Len())

	clock.now = clock.now.Add(30 * time.Second)
	q.Extend(someUpdates(3), chatMap)
	require.Equal(t, uint64(5), q.Dropped())
	require.Equal(t, 1, logs.Len())
}
