package updates

import "go.mau.fi/tgsync/schema"

// ChatMap is an immutable, shared snapshot of the users/chats embedded in
// one container. Every queued update references the snapshot it arrived in
// by pointer, never by value, so multiple queue entries can share one
// allocation instead of each cloning its own copy.
type ChatMap struct {
	entities schema.Entities
}

// NewChatMap builds an immutable snapshot from a container's entities.
// Callers must not mutate e after this call.
func NewChatMap(e schema.Entities) *ChatMap {
	return &ChatMap{entities: e}
}

// User looks up a user by id in this snapshot only.
func (c *ChatMap) User(id int64) (schema.User, bool) {
	for _, u := range c.entities.Users {
		if u.ID == id {
			return u, true
		}
	}
	return schema.User{}, false
}

// Chat looks up a plain chat by id in this snapshot only.
func (c *ChatMap) Chat(id int64) (schema.Chat, bool) {
	for _, ch := range c.entities.Chats {
		if ch.ID == id {
			return ch, true
		}
	}
	return schema.Chat{}, false
}

// Channel looks up a channel by id in this snapshot only.
func (c *ChatMap) Channel(id int64) (schema.Channel, bool) {
	for _, ch := range c.entities.Channels {
		if ch.ID == id {
			return ch, true
		}
	}
	return schema.Channel{}, false
}
