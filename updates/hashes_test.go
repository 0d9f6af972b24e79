package updates_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"go.mau.fi/tgsync/schema"
	"go.mau.fi/tgsync/updates"
)

func TestPeerHashTableMinNeverOverwritesFull(t *testing.T) {
	table := updates.NewPeerHashTable()

	table.Extend(schema.Entities{Channels: []schema.Channel{{ID: 1, AccessHash: 111, Min: false}}})
	table.Extend(schema.Entities{Channels: []schema.Channel{{ID: 1, AccessHash: 222, Min: true}}})

	h, ok := table.GetChannel(1)
	require.True(t, ok)
	require.Equal(t, int64(111), h.Value)
	require.False(t, h.Min)
}

func TestPeerHashTableFullOverwritesMin(t *testing.T) {
	table := updates.NewPeerHashTable()

	table.Extend(schema.Entities{Channels: []schema.Channel{{ID: 1, AccessHash: 111, Min: true}}})
	table.Extend(schema.Entities{Channels: []schema.Channel{{ID: 1, AccessHash: 222, Min: false}}})

	h, ok := table.GetChannel(1)
	require.True(t, ok)
	require.Equal(t, int64(222), h.Value)
	require.False(t, h.Min)
}

func TestEnsureKnownMissingChannelHash(t *testing.T) {
	table := updates.NewPeerHashTable()

	err := table.EnsureKnown(schema.Updates{
		List: []schema.Update{schema.PtsUpdate{ChannelID: 42, PtsNow: 5, PtsCount: 1}},
	})
	require.Error(t, err)

	var unknown *updates.ErrUnknownPeer
	require.ErrorAs(t, err, &unknown)
	require.Equal(t, int64(42), unknown.ChannelID)
}

func TestEnsureKnownFromOwnEntities(t *testing.T) {
	table := updates.NewPeerHashTable()

	err := table.EnsureKnown(schema.Updates{
		List:     []schema.Update{schema.PtsUpdate{ChannelID: 42, PtsNow: 5, PtsCount: 1}},
		Entities: schema.Entities{Channels: []schema.Channel{{ID: 42, AccessHash: 99}}},
	})
	require.NoError(t, err)

	h, ok := table.GetChannel(42)
	require.True(t, ok)
	require.Equal(t, int64(99), h.Value)
}

func TestEnsureKnownCommonBoxNeedsNoHash(t *testing.T) {
	table := updates.NewPeerHashTable()
	err := table.EnsureKnown(schema.Updates{
		List: []schema.Update{schema.PtsUpdate{ChannelID: 0, PtsNow: 5, PtsCount: 1}},
	})
	require.NoError(t, err)
}
