package updates

import "context"

// State is the common box's {pts, qts, seq, date} tuple.
type State struct {
	Pts, Qts, Seq, Date int
}

// Snapshot is the full session_state()/set_state() contract: the common
// box state plus one pts per channel box.
type Snapshot struct {
	State
	// Channels maps channel id to its box's last-applied pts. A channel
	// present here has its box initialized with the stored pts when the
	// snapshot is restored.
	Channels map[int64]int
}

// Clone returns a deep copy so callers can't mutate a live MessageBox
// through a returned Snapshot.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{State: s.State, Channels: make(map[int64]int, len(s.Channels))}
	for id, pts := range s.Channels {
		out.Channels[id] = pts
	}
	return out
}

// StateStorage is an optional external collaborator for persisting
// session snapshots. The core never calls it directly: update processing
// must stay synchronous end-to-end with I/O confined to the two suspension
// points (difference RPCs and the deadline/arrival race), and a per-field
// write-through inside the
// apply path would add a third. Sequencer.SyncState reads a Snapshot and
// calls Save explicitly, outside any lock held across I/O.
type StateStorage interface {
	Load(ctx context.Context, userID int64) (Snapshot, bool, error)
	Save(ctx context.Context, userID int64, snapshot Snapshot) error
}
