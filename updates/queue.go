package updates

import (
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"go.mau.fi/tgsync/schema"
)

// QueueEntry is one (raw update, chat-map snapshot) pair.
type QueueEntry struct {
	Update  schema.Update
	ChatMap *ChatMap
}

// UpdateQueue is a bounded FIFO of QueueEntry values. On overflow it drops
// the *newest* updates in excess, not the oldest, because older updates
// are more likely to have caused state the client is about to query. This
// mirrors grammers' extend_update_queue (lib/grammers-client/src/client/
// updates.rs), including its monotonic-clock rate limit on the overflow
// warning.
type UpdateQueue struct {
	limit *int

	overflowCooldown time.Duration
	clock            Clock
	lastWarn         time.Time

	log *zap.Logger

	entries []QueueEntry

	// dropped counts updates discarded to overflow, so tests can assert
	// on it.
	dropped atomic.Uint64
}

// NewUpdateQueue builds an UpdateQueue from cfg's limit, clock and logger.
func NewUpdateQueue(cfg Config) *UpdateQueue {
	return &UpdateQueue{
		limit:            cfg.UpdateQueueLimit,
		overflowCooldown: cfg.OverflowWarnCooldown,
		clock:            cfg.Clock,
		log:              cfg.Logger,
	}
}

// Extend appends a batch of updates sharing one ChatMap snapshot,
// truncating the tail of the batch if it would exceed the configured
// limit.
func (q *UpdateQueue) Extend(batch []schema.Update, chatMap *ChatMap) {
	if len(batch) == 0 {
		return
	}

	if q.limit != nil {
		limit := *q.limit
		total := len(q.entries) + len(batch)
		if total > limit {
			exceeds := total - limit
			if exceeds > len(batch) {
				exceeds = len(batch)
			}
			batch = batch[:len(batch)-exceeds]
			q.dropped.Add(uint64(exceeds))

			now := q.clock.Now()
			if q.lastWarn.IsZero() || now.Sub(q.lastWarn) > q.overflowCooldown {
				q.log.Warn("updates dropped: queue limit exceeded",
					zap.Int("exceeds", exceeds),
					zap.Int("limit", limit),
				)
				q.lastWarn = now
			}
		}
	}

	for _, u := range batch {
		q.entries = append(q.entries, QueueEntry{Update: u, ChatMap: chatMap})
	}
}

// Pop removes and returns the head entry, if any.
func (q *UpdateQueue) Pop() (QueueEntry, bool) {
	if len(q.entries) == 0 {
		return QueueEntry{}, false
	}
	head := q.entries[0]
	q.entries[0] = QueueEntry{}
	q.entries = q.entries[1:]
	return head, true
}

// Len reports the current queue depth.
func (q *UpdateQueue) Len() int { return len(q.entries) }

// Dropped reports how many updates have been discarded due to overflow.
func (q *UpdateQueue) Dropped() uint64 { return q.dropped.Load() }
