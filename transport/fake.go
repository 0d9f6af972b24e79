package transport

import (
	"context"
	"sync"
	"time"

	"go.mau.fi/tgsync/schema"
)

// Fake is a deterministic, in-memory Transport for tests: it never touches
// a socket and its Step only ever unblocks when the test calls Signal (or
// ctx is done), so tests can assert exact ordering without sleeps.
type Fake struct {
	mu sync.Mutex

	diffFn        func(ctx context.Context, req schema.GetDifferenceRequest) (schema.DifferenceResponse, error)
	channelDiffFn func(ctx context.Context, req schema.GetChannelDifferenceRequest) (schema.ChannelDifferenceResponse, error)

	stepSignal chan struct{}
}

// NewFake returns a Fake whose Step blocks until Signal is called or ctx is
// done.
func NewFake() *Fake {
	return &Fake{stepSignal: make(chan struct{}, 1)}
}

// OnGetDifference installs the handler GetDifference delegates to.
func (f *Fake) OnGetDifference(fn func(ctx context.Context, req schema.GetDifferenceRequest) (schema.DifferenceResponse, error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.diffFn = fn
}

// OnGetChannelDifference installs the handler GetChannelDifference
// delegates to.
func (f *Fake) OnGetChannelDifference(fn func(ctx context.Context, req schema.GetChannelDifferenceRequest) (schema.ChannelDifferenceResponse, error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channelDiffFn = fn
}

func (f *Fake) GetDifference(ctx context.Context, req schema.GetDifferenceRequest) (schema.DifferenceResponse, error) {
	f.mu.Lock()
	fn := f.diffFn
	f.mu.Unlock()
	if fn == nil {
		return schema.DifferenceResponse{Kind: schema.DifferenceEmpty}, nil
	}
	return fn(ctx, req)
}

func (f *Fake) GetChannelDifference(ctx context.Context, req schema.GetChannelDifferenceRequest) (schema.ChannelDifferenceResponse, error) {
	f.mu.Lock()
	fn := f.channelDiffFn
	f.mu.Unlock()
	if fn == nil {
		return schema.ChannelDifferenceResponse{Final: true, Pts: req.Pts}, nil
	}
	return fn(ctx, req)
}

// Step blocks until Signal is called or ctx is done.
func (f *Fake) Step(ctx context.Context) error {
	select {
	case <-f.stepSignal:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Signal unblocks one pending or future Step call, the way a real
// transport's Step would return once a packet arrives off the wire.
func (f *Fake) Signal() {
	select {
	case f.stepSignal <- struct{}{}:
	default:
	}
}

var _ Transport = (*Fake)(nil)

// StaticClock is a Clock that only advances when Advance is called,
// letting tests control deadlines and the possible-gap window without
// real sleeps.
type StaticClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewStaticClock returns a StaticClock starting at t.
func NewStaticClock(t time.Time) *StaticClock {
	return &StaticClock{now: t}
}

func (c *StaticClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *StaticClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
