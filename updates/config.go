package updates

import (
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Default timing knobs. The 0.5s possible-gap buffer and the 5-minute
// overflow-warning cooldown aren't part of any wire protocol document, so
// both are exposed on Config rather than hardcoded.
const (
	DefaultCommonDeadline       = 15 * time.Minute
	DefaultChannelDeadline      = 10 * time.Minute
	DefaultPossibleGapWindow    = 500 * time.Millisecond
	DefaultOverflowWarnCooldown = 5 * time.Minute
)

// Clock abstracts time so tests can control deadlines and the
// possible-gap window deterministically, without real sleeps.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Config holds the knobs the sequencing core recognizes.
type Config struct {
	// UpdateQueueLimit bounds the UpdateQueue. Nil means unbounded.
	UpdateQueueLimit *int

	// CatchUp, if true, makes NewMessageBox flip the common box and every
	// channel box restored from its Snapshot into getting_diff at
	// construction, to replay missed events. This happens whether or not the
	// Snapshot is empty.
	CatchUp bool

	CommonDeadline       time.Duration
	ChannelDeadline      time.Duration
	PossibleGapWindow    time.Duration
	OverflowWarnCooldown time.Duration

	Clock Clock

	Logger *zap.Logger
	Tracer trace.Tracer
}

// WithDefaults returns a copy of c with zero-valued fields replaced by
// their defaults.
func (c Config) WithDefaults() Config {
	if c.CommonDeadline == 0 {
		c.CommonDeadline = DefaultCommonDeadline
	}
	if c.ChannelDeadline == 0 {
		c.ChannelDeadline = DefaultChannelDeadline
	}
	if c.PossibleGapWindow == 0 {
		c.PossibleGapWindow = DefaultPossibleGapWindow
	}
	if c.OverflowWarnCooldown == 0 {
		c.OverflowWarnCooldown = DefaultOverflowWarnCooldown
	}
	if c.Clock == nil {
		c.Clock = realClock{}
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	if c.Tracer == nil {
		c.Tracer = otel.Tracer("go.mau.fi/tgsync/updates")
	}
	return c
}
