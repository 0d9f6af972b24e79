package updates

import (
	"go.mau.fi/tgsync/schema"
)

// Hash is an access hash paired with the "min" flag: a hash obtained from
// a reduced context that is not sufficient for some requests.
type Hash struct {
	Value int64
	Min   bool
}

// PeerHashTable maps a peer id to its known access hash. It is
// intentionally pure in-memory state: the persisted session snapshot
// carries only {pts, qts, seq, date, channels}, never hashes, so there is
// nothing here to persist across restarts.
type PeerHashTable struct {
	channels map[int64]Hash
	users    map[int64]Hash
}

// NewPeerHashTable returns an empty PeerHashTable. A session's hash table
// never persists across restarts (see PeerHashTable's doc comment), so
// every Sequencer starts from one of these regardless of a restored
// Snapshot.
func NewPeerHashTable() *PeerHashTable {
	return &PeerHashTable{
		channels: make(map[int64]Hash),
		users:    make(map[int64]Hash),
	}
}

// ErrUnknownPeer is returned by EnsureKnown when a container references a
// channel with no known access hash.
type ErrUnknownPeer struct {
	ChannelID int64
}

func (e *ErrUnknownPeer) Error() string {
	return "unknown access hash for referenced peer"
}

// EnsureKnown scans a container's embedded channels (plus the channel ids
// referenced by its updates) and reports ErrUnknownPeer if any lacks a
// known hash, after first extending the table with whatever the container
// itself supplies: a hash is acceptable whether it was already known or
// just arrived in this same container.
func (t *PeerHashTable) EnsureKnown(u schema.Updates) error {
	t.Extend(u.Entities)

	for _, ch := range u.Entities.Channels {
		if _, ok := t.GetChannel(ch.ID); !ok {
			return &ErrUnknownPeer{ChannelID: ch.ID}
		}
	}

	for _, upd := range u.List {
		pts, ok := upd.(schema.PtsUpdate)
		if !ok || pts.ChannelID == 0 {
			continue
		}
		if _, ok := t.GetChannel(pts.ChannelID); !ok {
			return &ErrUnknownPeer{ChannelID: pts.ChannelID}
		}
	}
	for _, upd := range u.List {
		tl, ok := upd.(schema.ChannelTooLong)
		if !ok {
			continue
		}
		if _, ok := t.GetChannel(tl.ChannelID); !ok {
			return &ErrUnknownPeer{ChannelID: tl.ChannelID}
		}
	}

	return nil
}

// Extend merges supplied entities into the table. A non-min hash always
// overwrites; a min hash never overwrites a previously known non-min hash.
func (t *PeerHashTable) Extend(e schema.Entities) {
	for _, ch := range e.Channels {
		t.setChannel(ch.ID, ch.AccessHash, ch.Min)
	}
	for _, banned := range e.Banned {
		t.setChannel(banned.ID, banned.AccessHash, false)
	}
	for _, u := range e.Users {
		if !u.HasHash {
			continue
		}
		t.setUser(u.ID, u.AccessHash, u.Min)
	}
}

func (t *PeerHashTable) setChannel(id, hash int64, min bool) {
	setIfBetter(t.channels, id, Hash{Value: hash, Min: min})
}

func (t *PeerHashTable) setUser(id, hash int64, min bool) {
	setIfBetter(t.users, id, Hash{Value: hash, Min: min})
}

func setIfBetter(m map[int64]Hash, id int64, h Hash) {
	existing, ok := m[id]
	if ok && !existing.Min && h.Min {
		// Never let a reduced-context hash overwrite a full one.
		return
	}
	m[id] = h
}

// GetChannel returns the known access hash for a channel.
func (t *PeerHashTable) GetChannel(id int64) (Hash, bool) {
	h, ok := t.channels[id]
	return h, ok
}

// GetUser returns the known access hash for a user.
func (t *PeerHashTable) GetUser(id int64) (Hash, bool) {
	h, ok := t.users[id]
	return h, ok
}
