package updates

import "fmt"

// TransportError wraps a failed difference RPC (getDifference or
// getChannelDifference) at the transport boundary so the core never has to
// know anything about sockets, TCP, or MTProto framing. Errors from the
// transport's Step are returned to the caller unwrapped.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
