package rpcerr_test

import (
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/require"

	"go.mau.fi/tgsync/rpcerr"
)

func TestError(t *testing.T) {
	t.Run("FLOOD_WAIT_0", func(t *testing.T) {
		require.Equal(t, "rpc error code 420: FLOOD_WAIT (0)", rpcerr.New(420, "FLOOD_WAIT_0").Error())
	})
	t.Run("FLOOD_WAIT", func(t *testing.T) {
		require.Equal(t, "rpc error code 420: FLOOD_WAIT", rpcerr.New(420, "FLOOD_WAIT").Error())
	})
	t.Run("PERSISTENT_TIMESTAMP_OUTDATED", func(t *testing.T) {
		require.Equal(t, "rpc error code 500: PERSISTENT_TIMESTAMP_OUTDATED", rpcerr.New(500, "PERSISTENT_TIMESTAMP_OUTDATED").Error())
	})
}

func TestErrorParse(t *testing.T) {
	t.Run("FLOOD_WAIT", func(t *testing.T) {
		require.Equal(t, &rpcerr.Error{
			Code:     420,
			Message:  "FLOOD_WAIT_359",
			Type:     "FLOOD_WAIT",
			Argument: 359,
		}, rpcerr.New(420, "FLOOD_WAIT_359"))
	})
	t.Run("Middle", func(t *testing.T) {
		require.Equal(t, &rpcerr.Error{
			Code:     169,
			Message:  "GO_1337_METERS_AWAY",
			Type:     "GO_METERS_AWAY",
			Argument: 1337,
		}, rpcerr.New(169, "GO_1337_METERS_AWAY"))
	})
}

func TestHelpers(t *testing.T) {
	err := func() error {
		return rpcerr.New(400, "CHANNEL_PRIVATE")
	}()

	t.Run("Type", func(t *testing.T) {
		require.True(t, rpcerr.Is(err, "CHANNEL_PRIVATE"))
		require.True(t, rpcerr.Is(err, "FOO", "CHANNEL_PRIVATE"))
		require.False(t, rpcerr.Is(err, "NOPE"))

		rpcErr, ok := rpcerr.AsType(err, "CHANNEL_PRIVATE")
		require.True(t, ok)
		require.NotNil(t, rpcErr)

		_, ok = rpcerr.AsType(err, "NOPE")
		require.False(t, ok)
	})

	t.Run("Code", func(t *testing.T) {
		require.True(t, rpcerr.IsCode(err, 400))
		require.True(t, rpcerr.IsCode(err, 1, 400))
		require.False(t, rpcerr.IsCode(err, 168))
	})

	t.Run("Wrapped", func(t *testing.T) {
		wrapped := errors.Wrap(rpcerr.New(500, "PERSISTENT_TIMESTAMP_OUTDATED"), "get channel difference")
		require.True(t, rpcerr.Is(wrapped, "PERSISTENT_TIMESTAMP_OUTDATED"))
		require.True(t, rpcerr.IsCode(wrapped, 500))
	})

	t.Run("Nil", func(t *testing.T) {
		require.False(t, rpcerr.Is(nil, "ANYTHING"))
		require.False(t, rpcerr.IsCode(nil, 1))
		_, ok := rpcerr.As(nil)
		require.False(t, ok)
	})
}
