package updates

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"go.mau.fi/tgsync/schema"
)

func TestBoxApplyInOrder(t *testing.T) {
	now := time.Unix(0, 0)
	b := newChannelBox(1, 10, time.Minute, now)

	res := b.route(now, 11, 1, schema.PtsUpdate{ChannelID: 1, PtsNow: 11, PtsCount: 1}, schema.Entities{}, 500*time.Millisecond)
	require.False(t, res.Gapped)
	require.Len(t, res.Flushed, 1)
	require.Equal(t, 11, b.pts)
}

func TestBoxApplyStaleDropped(t *testing.T) {
	now := time.Unix(0, 0)
	b := newChannelBox(1, 10, time.Minute, now)

	res := b.route(now, 10, 1, schema.PtsUpdate{ChannelID: 1, PtsNow: 10, PtsCount: 1}, schema.Entities{}, 500*time.Millisecond)
	require.False(t, res.Gapped)
	require.Empty(t, res.Flushed)
	require.Equal(t, 10, b.pts)
}

func TestBoxApplyGapBuffersThenFlushesOnArrival(t *testing.T) {
	now := time.Unix(0, 0)
	b := newChannelBox(1, 10, time.Minute, now)
	gapWindow := 500 * time.Millisecond

	res := b.route(now, 13, 1, schema.PtsUpdate{ChannelID: 1, PtsNow: 13, PtsCount: 1}, schema.Entities{}, gapWindow)
	require.True(t, res.Gapped)
	require.Equal(t, 10, b.pts)
	require.False(t, b.gapUntil.IsZero())

	res = b.route(now, 11, 1, schema.PtsUpdate{ChannelID: 1, PtsNow: 11, PtsCount: 1}, schema.Entities{}, gapWindow)
	require.False(t, res.Gapped)
	require.Len(t, res.Flushed, 1)
	require.Equal(t, 11, b.pts)

	res = b.route(now, 12, 1, schema.PtsUpdate{ChannelID: 1, PtsNow: 12, PtsCount: 1}, schema.Entities{}, gapWindow)
	require.False(t, res.Gapped)
	require.Len(t, res.Flushed, 2)
	require.Equal(t, 13, b.pts)
	require.True(t, b.gapUntil.IsZero())
}

func TestBoxCheckDeadlineFiresOnStalledGap(t *testing.T) {
	now := time.Unix(0, 0)
	b := newChannelBox(1, 10, time.Minute, now)
	gapWindow := 500 * time.Millisecond

	b.route(now, 13, 1, schema.PtsUpdate{ChannelID: 1, PtsNow: 13, PtsCount: 1}, schema.Entities{}, gapWindow)
	require.False(t, b.checkDeadline(now))

	later := now.Add(600 * time.Millisecond)
	require.True(t, b.checkDeadline(later))
}

func TestBoxFreezesWhileGettingDiffAndReplays(t *testing.T) {
	now := time.Unix(0, 0)
	b := newChannelBox(1, 10, time.Minute, now)
	gapWindow := 500 * time.Millisecond

	b.beginGettingDiff()
	require.True(t, b.gettingDiff.Load())

	res := b.route(now, 11, 1, schema.PtsUpdate{ChannelID: 1, PtsNow: 11, PtsCount: 1}, schema.Entities{}, gapWindow)
	require.True(t, res.Gapped)
	require.Equal(t, 10, b.pts)
	require.Len(t, b.frozen, 1)

	b.endGettingDiff(now)
	flushed := b.replayFrozen(now, gapWindow)
	require.Len(t, flushed, 1)
	require.Equal(t, 11, b.pts)
}

func TestBoxBeginGettingDiffMergesPendingIntoFrozen(t *testing.T) {
	now := time.Unix(0, 0)
	b := newChannelBox(1, 10, time.Minute, now)
	gapWindow := 500 * time.Millisecond

	b.route(now, 13, 1, schema.PtsUpdate{ChannelID: 1, PtsNow: 13, PtsCount: 1}, schema.Entities{}, gapWindow)
	require.Len(t, b.pending, 1)

	b.beginGettingDiff()
	require.Empty(t, b.pending)
	require.Len(t, b.frozen, 1)
	require.True(t, b.gapUntil.IsZero())
}
