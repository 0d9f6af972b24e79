package sequencer_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"go.mau.fi/tgsync/internal/testutil"
	"go.mau.fi/tgsync/schema"
	"go.mau.fi/tgsync/sequencer"
	"go.mau.fi/tgsync/transport"
	"go.mau.fi/tgsync/updates"
)

func TestSequencerProcessSocketUpdatesDeliversInOrder(t *testing.T) {
	fake := transport.NewFake()
	seq := sequencer.New(updates.Config{
		CommonDeadline:  time.Hour,
		ChannelDeadline: time.Hour,
	}, updates.Snapshot{}, fake, nil, 1)

	seq.ProcessSocketUpdates(context.Background(), []schema.Updates{{
		List: []schema.Update{schema.PtsUpdate{PtsNow: 1, PtsCount: 1}},
	}})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	entry, err := seq.NextRawUpdate(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, entry.Update.(schema.PtsUpdate).PtsNow)
}

func TestSequencerDropsContainerWithUnknownChannelHash(t *testing.T) {
	fake := transport.NewFake()
	seq := sequencer.New(updates.Config{
		CommonDeadline:  time.Hour,
		ChannelDeadline: time.Hour,
	}, updates.Snapshot{}, fake, nil, 1)

	seq.ProcessSocketUpdates(context.Background(), []schema.Updates{{
		List: []schema.Update{schema.PtsUpdate{ChannelID: 99, PtsNow: 1, PtsCount: 1}},
	}})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := seq.NextRawUpdate(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSequencerCatchUpFetchesDifference(t *testing.T) {
	fake := transport.NewFake()
	fake.OnGetDifference(func(ctx context.Context, req schema.GetDifferenceRequest) (schema.DifferenceResponse, error) {
		return schema.DifferenceResponse{
			Kind:         schema.DifferenceFinal,
			OtherUpdates: []schema.Update{schema.NonSequencedUpdate{Payload: "hi"}},
			State:        schema.State{Pts: 1},
		}, nil
	})

	seq := sequencer.New(updates.Config{
		CommonDeadline:  time.Millisecond,
		ChannelDeadline: time.Hour,
		CatchUp:         true,
	}, updates.Snapshot{}, fake, nil, 1)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	entry, err := seq.NextRawUpdate(ctx)
	require.NoError(t, err)
	require.Equal(t, "hi", entry.Update.(schema.NonSequencedUpdate).Payload)

	snap := seq.SessionState()
	require.Equal(t, 1, snap.Pts)
}

func TestSequencerSyncStatePersists(t *testing.T) {
	fake := transport.NewFake()
	storage := testutil.NewMemStorage()
	seq := sequencer.New(updates.Config{
		CommonDeadline:  time.Hour,
		ChannelDeadline: time.Hour,
	}, updates.Snapshot{}, fake, storage, 42)

	require.NoError(t, seq.SyncState(context.Background()))

	snap, found, err := storage.Load(context.Background(), 42)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, 0, snap.Pts)
}
