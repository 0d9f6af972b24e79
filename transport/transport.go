// Package transport defines the boundary between the update-sequencing
// core and whatever speaks MTProto on the wire. The core never imports a
// socket, a TL codec, or a retry policy directly: it only ever calls
// through this interface, at its two suspension points (difference RPC
// invocation, and the deadline-vs-arrival race).
package transport

import (
	"context"

	"go.mau.fi/tgsync/schema"
)

// Invoker issues the two difference RPCs the sequencing core needs.
// Implementations are expected to apply their own retry/backoff policy
// internally: the core itself never retries, and treats every call here
// as a single attempt whose result is final.
type Invoker interface {
	GetDifference(ctx context.Context, req schema.GetDifferenceRequest) (schema.DifferenceResponse, error)
	GetChannelDifference(ctx context.Context, req schema.GetChannelDifferenceRequest) (schema.ChannelDifferenceResponse, error)
}

// Stepper blocks until either a new container arrives off the wire (in
// which case the caller should expect ProcessSocketUpdates to have been
// invoked as a side effect before Step returns) or ctx is done, whichever
// happens first. This mirrors grammers' Client::step, which reads exactly
// one message from the MTProto connection.
type Stepper interface {
	Step(ctx context.Context) error
}

// Transport is the full boundary a Sequencer depends on.
type Transport interface {
	Invoker
	Stepper
}
