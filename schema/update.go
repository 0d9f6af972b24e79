package schema

// Update is one event inside a container. Concrete variants below mirror
// the subset of Telegram's updateXxx constructors the sequencing core
// branches on; message content, media, and everything else a presentation
// layer would care about is out of scope (spec.md §1) and left to the
// Payload field a real client would decode.
type Update interface {
	isUpdate()
}

// PtsUpdate is any update carried in the common box or a channel box that
// advances a pts counter. PtsNow is the counter value after this update is
// applied; PtsCount is how many pts units it consumes.
type PtsUpdate struct {
	// ChannelID is 0 for the common box.
	ChannelID int64
	PtsNow    int
	PtsCount  int
	// Payload is opaque to the core; a presentation layer downstream
	// would type-switch on the real decoded update here.
	Payload any
}

func (PtsUpdate) isUpdate() {}

// QtsUpdate advances the common box's qts counter (secret chats / bot
// updates). It never applies to a channel box.
type QtsUpdate struct {
	Qts     int
	Payload any
}

func (QtsUpdate) isUpdate() {}

// ChannelTooLong is the per-channel analog of Updates.TooLong: it tells the
// client one channel's update stream has an unrecoverable gap and a full
// getChannelDifference is required regardless of the buffered
// possible-gap window. It never affects the common box.
type ChannelTooLong struct {
	ChannelID int64
}

func (ChannelTooLong) isUpdate() {}

// NonSequencedUpdate is any update that carries neither a pts nor a qts
// (e.g. UpdateUserStatus) and is delivered immediately without affecting
// box state.
type NonSequencedUpdate struct {
	Payload any
}

func (NonSequencedUpdate) isUpdate() {}

// Updates is the container envelope delivered by the transport. It mirrors
// the union of updatesTooLong / updateShort* / updates / updatesCombined
// from the TL schema (spec.md §6), collapsed to the fields the core reads.
type Updates struct {
	// TooLong, when true, means the payload carried no updates at all and
	// the client must immediately fetch a difference for the common box.
	TooLong bool

	List []Update
	Entities

	// Date is the container's timestamp, used to advance the common box's
	// date once seq is processed.
	Date int

	// SeqStart and Seq are only meaningful for containers touching the
	// common box. Seq == 0 means "not applicable", matching spec.md §4.2.
	SeqStart int
	Seq      int
}
