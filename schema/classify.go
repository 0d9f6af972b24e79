package schema

// Kind is a coarse classification of a raw Update, the way grammers'
// Update enum (lib/grammers-client/src/types/update.rs) splits NewMessage,
// MessageEdited, MessageDeleted, CallbackQuery, InlineQuery, and Raw out of
// one TL union. The sequencing core never calls Classify: it is a pure
// function kept here only as the documented seam a presentation layer
// builds on, per spec.md §9 ("the raw-to-typed dispatch ... should live
// outside the core").
type Kind int

const (
	KindRaw Kind = iota
	KindNewMessage
	KindMessageEdited
	KindMessageDeleted
	KindCallbackQuery
	KindInlineQuery
)

// Classify inspects the Payload's dynamic type when u is a PtsUpdate and
// reports which coarse kind it belongs to; every other Update variant is
// KindRaw regardless of its payload. It never mutates u and never touches core state; a
// presentation layer is expected to call this after next-update, not the
// core itself.
func Classify(u Update) Kind {
	pts, ok := u.(PtsUpdate)
	if !ok {
		return KindRaw
	}
	switch pts.Payload.(type) {
	case NewMessagePayload:
		return KindNewMessage
	case EditMessagePayload:
		return KindMessageEdited
	case DeleteMessagesPayload:
		return KindMessageDeleted
	case CallbackQueryPayload:
		return KindCallbackQuery
	case InlineQueryPayload:
		return KindInlineQuery
	default:
		return KindRaw
	}
}

// NewMessagePayload, EditMessagePayload, DeleteMessagesPayload,
// CallbackQueryPayload and InlineQueryPayload are placeholders for the
// decoded TL payloads a real client would attach to PtsUpdate.Payload;
// they carry only a message or query id here because parsing message
// content is explicitly out of scope (spec.md §1).
type (
	NewMessagePayload     struct{ MessageID int }
	EditMessagePayload    struct{ MessageID int }
	DeleteMessagesPayload struct{ MessageIDs []int }
	CallbackQueryPayload  struct{ QueryID int64 }
	InlineQueryPayload    struct{ QueryID int64 }
)
