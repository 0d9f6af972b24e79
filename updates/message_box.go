package updates

import (
	"context"
	"sort"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"go.mau.fi/tgsync/schema"
)

// AppliedBatch is the ordered list of updates one operation produced, plus
// the entities a caller should extend its ChatMap with.
type AppliedBatch struct {
	Updates  []schema.Update
	Entities schema.Entities
}

func (b *AppliedBatch) append(u schema.Update) {
	b.Updates = append(b.Updates, u)
}

func (b *AppliedBatch) appendAll(items []pendingGapUpdate) {
	for _, it := range items {
		b.Updates = append(b.Updates, it.raw)
		b.Entities.Merge(it.ents)
	}
}

// DefaultChannelDifferenceLimit is the page size every
// updates.getChannelDifference request built by GetChannelDifference carries.
const DefaultChannelDifferenceLimit = 100

// PrematureEndReason is why a channel difference was aborted before
// completion.
type PrematureEndReason int

const (
	// TemporaryServerIssues leaves pts untouched: the same request will
	// naturally be retried on the next gap or deadline.
	TemporaryServerIssues PrematureEndReason = iota
	// Banned removes the channel's box entirely.
	Banned
)

// MessageBox owns the common box and every channel box, routes inbound
// containers to them, and produces/applies difference requests. It does
// not own the PeerHashTable or UpdateQueue: those are passed in explicitly
// by the caller, the way grammers' MessageBox borrows `&mut chat_hashes`
// rather than owning it, keeping the single coupled lock at the Sequencer
// layer.
type MessageBox struct {
	cfg Config

	common   *box
	channels map[int64]*box

	log    *zap.Logger
	tracer trace.Tracer
}

// NewMessageBox creates a MessageBox from a restored snapshot. An empty
// Snapshot is a valid starting point for a brand new session.
func NewMessageBox(cfg Config, snapshot Snapshot) *MessageBox {
	cfg = cfg.WithDefaults()
	now := cfg.Clock.Now()

	mb := &MessageBox{
		cfg:      cfg,
		common:   newCommonBox(snapshot.State, cfg.CommonDeadline, now),
		channels: make(map[int64]*box, len(snapshot.Channels)),
		log:      cfg.Logger,
		tracer:   cfg.Tracer,
	}
	for id, pts := range snapshot.Channels {
		mb.channels[id] = newChannelBox(id, pts, cfg.ChannelDeadline, now)
	}
	if cfg.CatchUp {
		mb.common.beginGettingDiff()
		for _, cb := range mb.channels {
			cb.beginGettingDiff()
		}
	}
	return mb
}

func (mb *MessageBox) channelOrCreate(id int64, now time.Time) *box {
	cb, ok := mb.channels[id]
	if !ok {
		cb = newChannelBox(id, 0, mb.cfg.ChannelDeadline, now)
		mb.channels[id] = cb
	}
	return cb
}

// ProcessUpdates routes one container's updates to the appropriate boxes
// and returns the updates now ready for delivery. Callers
// must have already validated peer hashes via PeerHashTable.EnsureKnown;
// ProcessUpdates assumes that has happened and focuses purely on pts/qts/
// seq bookkeeping.
func (mb *MessageBox) ProcessUpdates(ctx context.Context, u schema.Updates) (AppliedBatch, error) {
	_, span := mb.tracer.Start(ctx, "MessageBox.ProcessUpdates")
	defer span.End()

	now := mb.cfg.Clock.Now()
	var batch AppliedBatch
	batch.Entities.Merge(u.Entities)

	if u.TooLong {
		mb.common.beginGettingDiff()
		return batch, nil
	}

	list := append([]schema.Update(nil), u.List...)
	sortUpdatesByPts(list)

	for _, upd := range list {
		switch v := upd.(type) {
		case schema.ChannelTooLong:
			cb := mb.channelOrCreate(v.ChannelID, now)
			cb.beginGettingDiff()

		case schema.PtsUpdate:
			if v.ChannelID == 0 {
				res := mb.common.route(now, v.PtsNow, v.PtsCount, upd, u.Entities, mb.cfg.PossibleGapWindow)
				batch.appendAll(res.Flushed)
			} else {
				cb := mb.channelOrCreate(v.ChannelID, now)
				res := cb.route(now, v.PtsNow, v.PtsCount, upd, u.Entities, mb.cfg.PossibleGapWindow)
				batch.appendAll(res.Flushed)
			}

		case schema.QtsUpdate:
			if v.Qts > mb.common.qts {
				mb.common.qts = v.Qts
			}
			batch.append(upd)

		case schema.NonSequencedUpdate:
			batch.append(upd)
		}
	}

	if u.Seq != 0 {
		if u.SeqStart > mb.common.seq+1 {
			mb.log.Debug("seq gap detected, fetching difference",
				zap.Int("have_seq", mb.common.seq),
				zap.Int("seq_start", u.SeqStart),
			)
			mb.common.beginGettingDiff()
		} else {
			mb.common.seq = u.Seq
			if u.Date > mb.common.date {
				mb.common.date = u.Date
			}
		}
	}

	return batch, nil
}

// ProcessSocketUpdates is the push path from the transport demultiplexer.
// It mirrors grammers' process_socket_updates: each
// container is checked and routed independently, so one container with an
// unknown peer hash (already filtered out by the caller before this is
// reached) never blocks the rest of the batch; a genuine processing error
// is unexpected and aborts the remaining containers.
func (mb *MessageBox) ProcessSocketUpdates(ctx context.Context, batch []schema.Updates) (AppliedBatch, error) {
	var result AppliedBatch
	for _, u := range batch {
		applied, err := mb.ProcessUpdates(ctx, u)
		if err != nil {
			return result, err
		}
		result.Updates = append(result.Updates, applied.Updates...)
		result.Entities.Merge(applied.Entities)
	}
	return result, nil
}

// CheckDeadlines returns the earliest deadline across all boxes, flipping
// any box whose deadline (or elapsed possible-gap window) has passed into
// getting_diff.
//
// A box already in getting_diff is excluded from the earliest computation:
// its deadline is stale and frozen until the difference resolves, and
// folding it in would make the caller busy-spin once that box can no
// longer progress on its own — e.g. a channel box with no known access
// hash, which GetChannelDifference can never select (spec.md §4.1), so its
// getting_diff state persists until some other container supplies the
// hash. If every box is currently stuck this way, there is nothing left to
// take the earliest deadline from, so fall back to a fixed re-check
// cadence instead of returning a zero or already-elapsed time.
func (mb *MessageBox) CheckDeadlines() time.Time {
	now := mb.cfg.Clock.Now()
	var earliest time.Time

	if mb.common.checkDeadline(now) {
		mb.common.beginGettingDiff()
	}
	if !mb.common.gettingDiff.Load() {
		earliest = mb.common.deadline
	}

	for _, cb := range mb.channels {
		if cb.checkDeadline(now) {
			cb.beginGettingDiff()
		}
		if cb.gettingDiff.Load() {
			continue
		}
		if earliest.IsZero() || cb.deadline.Before(earliest) {
			earliest = cb.deadline
		}
	}

	if earliest.IsZero() {
		earliest = now.Add(mb.cfg.ChannelDeadline)
	}
	return earliest
}

// GetDifference produces updates.getDifference's request if the common
// box is in getting_diff.
func (mb *MessageBox) GetDifference() (schema.GetDifferenceRequest, bool) {
	if !mb.common.gettingDiff.Load() {
		return schema.GetDifferenceRequest{}, false
	}
	return schema.GetDifferenceRequest{
		Pts:  mb.common.pts,
		Date: mb.common.date,
		Qts:  mb.common.qts,
	}, true
}

// GetChannelDifference picks one channel box in getting_diff whose
// channel has a known hash and yields its request. Selection is
// deterministic round-robin: sorted by last-request time, then channel id,
// so repeatedly calling this drains every pending channel in turn instead
// of starving later ones.
func (mb *MessageBox) GetChannelDifference(hashes *PeerHashTable) (schema.GetChannelDifferenceRequest, bool) {
	type candidate struct {
		id   int64
		box  *box
		hash Hash
	}
	var candidates []candidate
	for id, cb := range mb.channels {
		if !cb.gettingDiff.Load() {
			continue
		}
		h, ok := hashes.GetChannel(id)
		if !ok {
			continue
		}
		candidates = append(candidates, candidate{id: id, box: cb, hash: h})
	}
	if len(candidates) == 0 {
		return schema.GetChannelDifferenceRequest{}, false
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if !a.box.lastDiffRequestAt.Equal(b.box.lastDiffRequestAt) {
			return a.box.lastDiffRequestAt.Before(b.box.lastDiffRequestAt)
		}
		return a.id < b.id
	})

	chosen := candidates[0]
	chosen.box.lastDiffRequestAt = mb.cfg.Clock.Now()

	return schema.GetChannelDifferenceRequest{
		ChannelID:  chosen.id,
		AccessHash: chosen.hash.Value,
		Pts:        chosen.box.pts,
		Limit:      DefaultChannelDifferenceLimit,
	}, true
}

func synthesizeNewMessage(payload any) schema.Update {
	return schema.PtsUpdate{Payload: payload}
}

// ApplyDifference applies one of the three updates.getDifference response
// shapes to the common box, extending hashes with any entities the
// response carried (mirrors access_hash_feeder.go's saveChannelHashes/
// saveUserHashes, called from handleDifference).
func (mb *MessageBox) ApplyDifference(resp schema.DifferenceResponse, hashes *PeerHashTable) AppliedBatch {
	now := mb.cfg.Clock.Now()
	hashes.Extend(resp.Entities)

	var batch AppliedBatch
	batch.Entities.Merge(resp.Entities)
	for _, nm := range resp.NewMessages {
		batch.append(synthesizeNewMessage(nm))
	}
	batch.Updates = append(batch.Updates, resp.OtherUpdates...)

	mb.common.pts = resp.State.Pts
	mb.common.qts = resp.State.Qts
	mb.common.seq = resp.State.Seq
	mb.common.date = resp.State.Date

	if resp.Kind != schema.DifferenceSlice {
		mb.common.endGettingDiff(now)
		flushed := mb.common.replayFrozen(now, mb.cfg.PossibleGapWindow)
		batch.appendAll(flushed)
	}

	return batch
}

// ApplyChannelDifference applies a single channel's getChannelDifference
// response.
func (mb *MessageBox) ApplyChannelDifference(req schema.GetChannelDifferenceRequest, resp schema.ChannelDifferenceResponse, hashes *PeerHashTable) AppliedBatch {
	now := mb.cfg.Clock.Now()
	hashes.Extend(resp.Entities)

	var batch AppliedBatch
	cb, ok := mb.channels[req.ChannelID]
	if !ok {
		return batch
	}

	batch.Entities.Merge(resp.Entities)
	for _, nm := range resp.NewMessages {
		batch.append(synthesizeNewMessage(nm))
	}
	batch.Updates = append(batch.Updates, resp.OtherUpdates...)

	cb.pts = resp.Pts

	if resp.Final {
		cb.endGettingDiff(now)
		flushed := cb.replayFrozen(now, mb.cfg.PossibleGapWindow)
		batch.appendAll(flushed)
	}

	return batch
}

// EndChannelDifference aborts a channel's outstanding difference request.
// Anything frozen while the request was outstanding is replayed against
// the unchanged pts, since freezing happens unconditionally while
// getting_diff is set and some of it may already be deliverable.
func (mb *MessageBox) EndChannelDifference(req schema.GetChannelDifferenceRequest, reason PrematureEndReason) AppliedBatch {
	var batch AppliedBatch
	now := mb.cfg.Clock.Now()
	cb, ok := mb.channels[req.ChannelID]
	if !ok {
		return batch
	}

	switch reason {
	case TemporaryServerIssues:
		// pts is left untouched; the same request is retried on the next
		// gap or deadline.
		cb.endGettingDiff(now)
		flushed := cb.replayFrozen(now, mb.cfg.PossibleGapWindow)
		batch.appendAll(flushed)
	case Banned:
		delete(mb.channels, req.ChannelID)
	}
	return batch
}

// SessionState returns a snapshot of every box's state.
func (mb *MessageBox) SessionState() Snapshot {
	snap := Snapshot{
		State:    State{Pts: mb.common.pts, Qts: mb.common.qts, Seq: mb.common.seq, Date: mb.common.date},
		Channels: make(map[int64]int, len(mb.channels)),
	}
	for id, cb := range mb.channels {
		snap.Channels[id] = cb.pts
	}
	return snap
}

// HasChannel reports whether a channel box currently exists.
func (mb *MessageBox) HasChannel(id int64) bool {
	_, ok := mb.channels[id]
	return ok
}

// sortUpdatesByPts orders a container's updates so that pts-bearing
// updates are applied in ascending pts order, the way state_apply.go
// calls sortUpdatesByPts before iterating comb.Updates.
func sortUpdatesByPts(list []schema.Update) {
	sort.SliceStable(list, func(i, j int) bool {
		pi, oki := ptsOf(list[i])
		pj, okj := ptsOf(list[j])
		if !oki || !okj {
			return false
		}
		return pi < pj
	})
}

func ptsOf(u schema.Update) (int, bool) {
	if p, ok := u.(schema.PtsUpdate); ok {
		return p.PtsNow, true
	}
	return 0, false
}
