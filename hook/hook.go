// Package hook contains update hook middleware, adapted from the
// teacher's pkg/gotd/telegram/updates/hook package: instead of wrapping a
// tg.Invoker and unwrapping a tg.UpdatesBox, it wraps an RPC call that
// reports an optional schema.Updates alongside its result and harvests any
// container the response carried, feeding it to a Sequencer.
package hook

import (
	"context"

	"github.com/go-faster/errors"

	"go.mau.fi/tgsync/schema"
	"go.mau.fi/tgsync/sequencer"
)

// UpdateHook is called with every container embedded in an RPC response,
// before the call returns to its original caller.
type UpdateHook func(ctx context.Context, u schema.Updates) error

// Handle wraps an RPC call so that any schema.Updates riding along with a
// normal response is still routed through h. Most MTProto responses that
// are not themselves update-fetching calls can still carry an updates
// envelope (e.g. messages.sendMessage echoes an Updates back); this is
// where that passive harvesting happens, mirroring the teacher's
// UpdateHook.Handle around tg.Invoker.
func (h UpdateHook) Handle(next func(ctx context.Context) (schema.Updates, bool, error)) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		u, ok, err := next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := h(ctx, u); err != nil {
			return errors.Wrap(err, "hook")
		}
		return nil
	}
}

// ForSequencer returns an UpdateHook that feeds every harvested container
// into seq.ProcessSocketUpdates.
func ForSequencer(seq *sequencer.Sequencer) UpdateHook {
	return func(ctx context.Context, u schema.Updates) error {
		seq.ProcessSocketUpdates(ctx, []schema.Updates{u})
		return nil
	}
}
