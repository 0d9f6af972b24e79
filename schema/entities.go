// Package schema contains the wire-level shapes the update-sequencing core
// operates on: updates, their container envelopes, and the user/chat
// entities a container may carry.
//
// The real TL wire codec and its code generator are out of scope for this
// module (see spec.md §1): a production client decodes these values from a
// generated tg package. Package schema stands in for that generated output
// with a small, hand-written set of the variants the core actually
// branches on.
package schema

// User is the minimal shape of a TL User needed to feed the peer hash
// table. Min mirrors the "min" flag from the TL schema: a hash obtained
// from a reduced constructor that must not overwrite a full one.
type User struct {
	ID         int64
	AccessHash int64
	HasHash    bool
	Min        bool
}

// Chat is a plain group chat; it never carries an access hash.
type Chat struct {
	ID int64
}

// Channel is a supergroup or broadcast channel, the only peer kind that
// requires an access hash to be referenced in later requests.
type Channel struct {
	ID         int64
	Title      string
	AccessHash int64
	Min        bool
}

// ChannelForbidden is the TL shape returned for a channel the account was
// banned from; it still carries the access hash needed to recognize it.
type ChannelForbidden struct {
	ID         int64
	Title      string
	AccessHash int64
}

// Entities is the set of users/chats embedded in one container, exactly as
// delivered by the server alongside its updates.
type Entities struct {
	Users    []User
	Chats    []Chat
	Channels []Channel
	Banned   []ChannelForbidden
}

// Merge appends entities from other that are not already present, keyed by
// id. Mirrors telegram/updates/update.go's entities.Merge from the teacher.
func (e *Entities) Merge(other Entities) {
	e.Users = mergeByID(e.Users, other.Users, func(u User) int64 { return u.ID })
	e.Chats = mergeByID(e.Chats, other.Chats, func(c Chat) int64 { return c.ID })
	e.Channels = mergeByID(e.Channels, other.Channels, func(c Channel) int64 { return c.ID })
	e.Banned = mergeByID(e.Banned, other.Banned, func(c ChannelForbidden) int64 { return c.ID })
}

func mergeByID[T any](into, from []T, id func(T) int64) []T {
	for _, candidate := range from {
		exists := false
		for _, have := range into {
			if id(have) == id(candidate) {
				exists = true
				break
			}
		}
		if !exists {
			into = append(into, candidate)
		}
	}
	return into
}
