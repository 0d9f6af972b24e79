// Package sequencer glues the updates core (MessageBox, PeerHashTable,
// UpdateQueue) to a transport, reproducing the event loop grammers'
// Client::next_raw_update implements over grammers-session's MessageBox
// (lib/grammers-client/src/client/updates.rs).
package sequencer

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"go.mau.fi/tgsync/rpcerr"
	"go.mau.fi/tgsync/schema"
	"go.mau.fi/tgsync/transport"
	"go.mau.fi/tgsync/updates"
)

var errDeadlinePassed = errors.New("sequencer: deadline passed")

// Sequencer owns the single lock spanning MessageBox, PeerHashTable and
// UpdateQueue. The three are so tightly coupled (a pts advance can
// immediately need a hash lookup and a queue push) that per-component
// locks would only buy ABA hazards, not real concurrency.
type Sequencer struct {
	mu sync.RWMutex

	box    *updates.MessageBox
	hashes *updates.PeerHashTable
	queue  *updates.UpdateQueue

	cfg       updates.Config
	transport transport.Transport
	storage   updates.StateStorage
	userID    int64

	log    *zap.Logger
	tracer trace.Tracer
}

// New builds a Sequencer from a restored snapshot. storage may be nil if
// the caller never persists session state.
func New(cfg updates.Config, snapshot updates.Snapshot, tp transport.Transport, storage updates.StateStorage, userID int64) *Sequencer {
	cfg = cfg.WithDefaults()
	return &Sequencer{
		box:       updates.NewMessageBox(cfg, snapshot),
		hashes:    updates.NewPeerHashTable(),
		queue:     updates.NewUpdateQueue(cfg),
		cfg:       cfg,
		transport: tp,
		storage:   storage,
		userID:    userID,
		log:       cfg.Logger,
		tracer:    cfg.Tracer,
	}
}

// NextRawUpdate returns the next update ready for delivery, blocking on
// the transport as needed to resolve gaps and bans. It is not safe to call
// concurrently from multiple goroutines; callers run one delivery loop.
func (s *Sequencer) NextRawUpdate(ctx context.Context) (updates.QueueEntry, error) {
	for {
		entry, deadline, diffReq, hasDiff, chanReq, hasChanReq := s.popOrPlan()
		if entry != nil {
			return *entry, nil
		}

		if hasDiff {
			if err := s.resolveDifference(ctx, diffReq); err != nil {
				return updates.QueueEntry{}, err
			}
			continue
		}

		if hasChanReq {
			if err := s.resolveChannelDifference(ctx, chanReq); err != nil {
				return updates.QueueEntry{}, err
			}
			continue
		}

		if err := s.raceDeadline(ctx, deadline); err != nil && !errors.Is(err, errDeadlinePassed) {
			return updates.QueueEntry{}, err
		}
	}
}

// popOrPlan is the single critical section per loop iteration: pop the
// queue if non-empty, else snapshot what would need to happen next.
func (s *Sequencer) popOrPlan() (entry *updates.QueueEntry, deadline time.Time, diffReq schema.GetDifferenceRequest, hasDiff bool, chanReq schema.GetChannelDifferenceRequest, hasChanReq bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.queue.Pop(); ok {
		return &e, time.Time{}, schema.GetDifferenceRequest{}, false, schema.GetChannelDifferenceRequest{}, false
	}

	deadline = s.box.CheckDeadlines()
	diffReq, hasDiff = s.box.GetDifference()
	chanReq, hasChanReq = s.box.GetChannelDifference(s.hashes)
	return nil, deadline, diffReq, hasDiff, chanReq, hasChanReq
}

func (s *Sequencer) resolveDifference(ctx context.Context, req schema.GetDifferenceRequest) error {
	ctx, span := s.tracer.Start(ctx, "Sequencer.getDifference")
	defer span.End()

	resp, err := s.transport.GetDifference(ctx, req)
	if err != nil {
		return &updates.TransportError{Op: "getDifference", Err: err}
	}

	s.mu.Lock()
	batch := s.box.ApplyDifference(resp, s.hashes)
	s.extendQueueLocked(batch)
	s.mu.Unlock()
	return nil
}

func (s *Sequencer) resolveChannelDifference(ctx context.Context, req schema.GetChannelDifferenceRequest) error {
	ctx, span := s.tracer.Start(ctx, "Sequencer.getChannelDifference")
	defer span.End()

	resp, err := s.transport.GetChannelDifference(ctx, req)
	if err != nil {
		return s.handleChannelDifferenceError(req, err)
	}

	s.mu.Lock()
	batch := s.box.ApplyChannelDifference(req, resp, s.hashes)
	s.extendQueueLocked(batch)
	s.mu.Unlock()
	return nil
}

// handleChannelDifferenceError classifies a getChannelDifference failure
// the way grammers' next_raw_update does: PERSISTENT_TIMESTAMP_OUTDATED
// and RPC status 500 are treated as transient server trouble that leaves
// pts untouched for a later retry, CHANNEL_PRIVATE means the account was
// banned from the channel, and anything else propagates to the caller.
func (s *Sequencer) handleChannelDifferenceError(req schema.GetChannelDifferenceRequest, err error) error {
	if rpcerr.Is(err, "PERSISTENT_TIMESTAMP_OUTDATED") {
		s.log.Warn("getChannelDifference hit PERSISTENT_TIMESTAMP_OUTDATED, ending prematurely",
			zap.Int64("channel_id", req.ChannelID))
		s.endChannelDifference(req, updates.TemporaryServerIssues)
		return nil
	}
	if rpcerr.Is(err, "CHANNEL_PRIVATE") {
		s.log.Info("account banned from channel, dropping its box", zap.Int64("channel_id", req.ChannelID))
		s.endChannelDifference(req, updates.Banned)
		return nil
	}
	if rpcErr, ok := rpcerr.As(err); ok && rpcErr.Code == 500 {
		s.log.Warn("Telegram internal error during getChannelDifference", zap.Int64("channel_id", req.ChannelID))
		s.endChannelDifference(req, updates.TemporaryServerIssues)
		return nil
	}
	return &updates.TransportError{Op: "getChannelDifference", Err: err}
}

func (s *Sequencer) endChannelDifference(req schema.GetChannelDifferenceRequest, reason updates.PrematureEndReason) {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch := s.box.EndChannelDifference(req, reason)
	s.extendQueueLocked(batch)
}

// raceDeadline waits for either deadline to pass or the transport to step
// (receive a new container off the wire), whichever is first, mirroring
// grammers' select(sleep_until(deadline), self.step()).
func (s *Sequencer) raceDeadline(ctx context.Context, deadline time.Time) error {
	raceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(raceCtx)

	g.Go(func() error {
		timer := time.NewTimer(time.Until(deadline))
		defer timer.Stop()
		select {
		case <-timer.C:
			return errDeadlinePassed
		case <-gctx.Done():
			return gctx.Err()
		}
	})

	g.Go(func() error {
		err := s.transport.Step(gctx)
		cancel()
		return err
	})

	err := g.Wait()
	if ctx.Err() != nil {
		// The caller's context, not our internal race cancellation, is
		// what ended this: propagate it rather than looping forever.
		return ctx.Err()
	}
	if err != nil && errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (s *Sequencer) extendQueueLocked(batch updates.AppliedBatch) {
	if len(batch.Updates) == 0 {
		return
	}
	chatMap := updates.NewChatMap(batch.Entities)
	s.queue.Extend(batch.Updates, chatMap)
}

// ProcessSocketUpdates is the push path: the transport calls this with
// whatever containers it decoded off the wire (spec.md §4.1, §6). One
// container with an unrecognized peer hash is skipped; the rest of the
// batch is still processed.
func (s *Sequencer) ProcessSocketUpdates(ctx context.Context, batch []schema.Updates) {
	if len(batch) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var skipped error
	var kept []schema.Updates
	for _, u := range batch {
		if err := s.hashes.EnsureKnown(u); err != nil {
			// Containers are independent: one with an unrecognized peer
			// hash is skipped, not the whole batch. Errors accumulate so
			// one log line reports every container dropped this round
			// instead of one line per container.
			skipped = multierr.Append(skipped, err)
			continue
		}
		kept = append(kept, u)
	}
	if skipped != nil {
		s.log.Debug("dropped containers with unknown peer hashes", zap.Error(skipped))
	}

	result, err := s.box.ProcessSocketUpdates(ctx, kept)
	if err != nil {
		s.log.Error("unexpected error processing socket updates", zap.Error(err))
		return
	}
	s.extendQueueLocked(result)
}

// SessionState returns the current session snapshot for persistence.
func (s *Sequencer) SessionState() updates.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.box.SessionState()
}

// SyncState persists the current session snapshot via the configured
// StateStorage, outside the lock held across the snapshot read.
func (s *Sequencer) SyncState(ctx context.Context) error {
	if s.storage == nil {
		return nil
	}
	snapshot := s.SessionState()
	return s.storage.Save(ctx, s.userID, snapshot)
}

// QueueDropped reports how many updates have been discarded to queue
// overflow.
func (s *Sequencer) QueueDropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Dropped()
}
