package updates

import (
	"sort"
	"time"

	"go.uber.org/atomic"

	"go.mau.fi/tgsync/schema"
)

// pendingGapUpdate is one update buffered either in a box's possible-gap
// window or, while a difference is outstanding, in its frozen buffer.
type pendingGapUpdate struct {
	ptsNow   int
	ptsCount int
	raw      schema.Update
	ents     schema.Entities
}

// box is the per-stream pts state machine shared by the common box and
// every channel box; qts/seq/date are only meaningful on the common box
// (channelID == 0).
type box struct {
	channelID int64 // 0 for the common box

	pts  int
	qts  int
	seq  int
	date int

	deadline         time.Time
	deadlineInterval time.Duration

	gettingDiff atomic.Bool

	// gapUntil/pending implement the 0.5s possible-gap buffer: updates
	// that arrived ahead of the box's pts are held briefly in case the
	// missing predecessor shows up.
	gapUntil time.Time
	pending  []pendingGapUpdate

	// frozen holds every update routed to this box while getting_diff is
	// true: the box buffers new containers instead of applying them, and
	// re-examines them once the difference lands.
	frozen []pendingGapUpdate

	// lastDiffRequestAt is set each time GetChannelDifference selects
	// this box, used to break round-robin ties deterministically: boxes
	// are sorted by last-request time, then by channel id.
	lastDiffRequestAt time.Time
}

func newCommonBox(state State, interval time.Duration, now time.Time) *box {
	b := &box{
		pts:              state.Pts,
		qts:              state.Qts,
		seq:              state.Seq,
		date:             state.Date,
		deadlineInterval: interval,
	}
	b.resetDeadline(now)
	return b
}

func newChannelBox(channelID int64, pts int, interval time.Duration, now time.Time) *box {
	b := &box{
		channelID:        channelID,
		pts:              pts,
		deadlineInterval: interval,
	}
	b.resetDeadline(now)
	return b
}

func (b *box) resetDeadline(now time.Time) {
	b.deadline = now.Add(b.deadlineInterval)
}

// applyResult is what applying one pts-bearing update against a box
// yields.
type applyResult struct {
	// Flushed holds updates that are now ready to deliver, in increasing
	// pts order: possibly the just-applied update plus any previously
	// buffered possible-gap updates that became contiguous.
	Flushed []pendingGapUpdate
	// Gapped is true if this update was buffered (either in the
	// possible-gap window or frozen pending a difference) rather than
	// applied or dropped.
	Gapped bool
}

// route is the entry point for a pts-bearing update arriving live from the
// transport. While a difference is outstanding it freezes the update
// untouched; otherwise it runs the ordinary apply algorithm below.
func (b *box) route(now time.Time, ptsNow, ptsCount int, raw schema.Update, ents schema.Entities, gapWindow time.Duration) applyResult {
	if b.gettingDiff.Load() {
		b.frozen = append(b.frozen, pendingGapUpdate{ptsNow: ptsNow, ptsCount: ptsCount, raw: raw, ents: ents})
		return applyResult{Gapped: true}
	}
	return b.apply(now, ptsNow, ptsCount, raw, ents, gapWindow)
}

// apply classifies one pts-bearing update as stale, in-order, or a gap
// against the box's current pts, assuming getting_diff is not set.
func (b *box) apply(now time.Time, ptsNow, ptsCount int, raw schema.Update, ents schema.Entities, gapWindow time.Duration) applyResult {
	applying := ptsNow - ptsCount

	switch {
	case applying < b.pts:
		// Stale: already applied. Drop silently.
		return applyResult{}

	case applying == b.pts:
		// In order.
		b.pts = ptsNow
		b.resetDeadline(now)
		flushed := []pendingGapUpdate{{ptsNow: ptsNow, ptsCount: ptsCount, raw: raw, ents: ents}}
		flushed = append(flushed, b.drainPending(now)...)
		return applyResult{Flushed: flushed}

	default:
		// Gap: buffer and wait for the missing predecessor.
		b.pending = append(b.pending, pendingGapUpdate{ptsNow: ptsNow, ptsCount: ptsCount, raw: raw, ents: ents})
		if b.gapUntil.IsZero() {
			b.gapUntil = now.Add(gapWindow)
		}
		return applyResult{Gapped: true}
	}
}

// drainPending repeatedly looks for the next contiguous or stale buffered
// update after an in-order apply, flushing anything in the possible-gap
// buffer that has now become in-order or stale.
func (b *box) drainPending(now time.Time) []pendingGapUpdate {
	var flushed []pendingGapUpdate
	progressed := true
	for progressed {
		progressed = false
		remaining := b.pending[:0:0]
		for _, p := range b.pending {
			applying := p.ptsNow - p.ptsCount
			switch {
			case applying < b.pts:
				// Now stale; drop.
				progressed = true
			case applying == b.pts:
				b.pts = p.ptsNow
				b.resetDeadline(now)
				flushed = append(flushed, p)
				progressed = true
			default:
				remaining = append(remaining, p)
			}
		}
		b.pending = remaining
	}
	if len(b.pending) == 0 {
		b.gapUntil = time.Time{}
	}
	return flushed
}

// checkDeadline reports whether this box should flip into getting_diff:
// either its no-update timeout fired, or its possible-gap window elapsed
// with updates still buffered.
func (b *box) checkDeadline(now time.Time) (due bool) {
	if b.gettingDiff.Load() {
		return false
	}
	if !now.Before(b.deadline) {
		return true
	}
	if !b.gapUntil.IsZero() && len(b.pending) > 0 && !now.Before(b.gapUntil) {
		return true
	}
	return false
}

// beginGettingDiff flips the box into getting_diff. Anything already
// buffered in the possible-gap window carries over into the frozen
// buffer: it is still ahead of pts and will be re-examined once the
// difference lands.
func (b *box) beginGettingDiff() {
	b.gettingDiff.Store(true)
	b.frozen = append(b.frozen, b.pending...)
	b.pending = nil
	b.gapUntil = time.Time{}
}

// endGettingDiff clears getting_diff and resets the deadline. Callers
// must separately call replayFrozen to re-examine anything buffered while
// the difference was outstanding.
func (b *box) endGettingDiff(now time.Time) {
	b.gettingDiff.Store(false)
	b.resetDeadline(now)
}

// replayFrozen re-runs every update buffered while getting_diff was set
// through the ordinary apply algorithm, in ptsNow order, now that the box
// has an authoritative pts from a difference response.
func (b *box) replayFrozen(now time.Time, gapWindow time.Duration) []pendingGapUpdate {
	items := b.frozen
	b.frozen = nil
	sort.Slice(items, func(i, j int) bool { return items[i].ptsNow < items[j].ptsNow })

	var flushed []pendingGapUpdate
	for _, it := range items {
		res := b.apply(now, it.ptsNow, it.ptsCount, it.raw, it.ents, gapWindow)
		flushed = append(flushed, res.Flushed...)
	}
	return flushed
}
