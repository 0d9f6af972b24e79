package schema

// GetDifferenceRequest is updates.getDifference(pts, date, qts) (spec.md §6).
type GetDifferenceRequest struct {
	Pts  int
	Date int
	Qts  int
}

// DifferenceKind distinguishes the three response shapes described in
// spec.md §4.2: an empty difference, an intermediate slice, or the final
// batch.
type DifferenceKind int

const (
	DifferenceEmpty DifferenceKind = iota
	DifferenceSlice
	DifferenceFinal
)

// DifferenceResponse is the decoded result of a GetDifferenceRequest.
type DifferenceResponse struct {
	Kind DifferenceKind

	// NewMessages and OtherUpdates are only populated for Slice/Final;
	// NewMessages are synthesized into PtsUpdate values by the caller
	// (spec.md §4.2, "synthesize NewMessage updates").
	NewMessages  []any
	OtherUpdates []Update

	Entities

	// State is the echoed intermediate or final state. For DifferenceSlice
	// it is the intermediate state to store and keep polling from; for
	// DifferenceFinal it is the new authoritative state.
	State State
}

// State is the common box's {pts, qts, seq, date} tuple, also used as the
// session snapshot (spec.md §6, SessionSnapshot).
type State struct {
	Pts  int
	Qts  int
	Seq  int
	Date int
}

// GetChannelDifferenceRequest is updates.getChannelDifference(channel,
// filter, pts, limit).
type GetChannelDifferenceRequest struct {
	ChannelID  int64
	AccessHash int64
	Pts        int
	Limit      int
}

// ChannelDifferenceResponse is the decoded result of a
// GetChannelDifferenceRequest. Channel differences have no qts/seq; Final
// distinguishes "done" from "more slices follow", mirroring
// DifferenceSlice/DifferenceFinal for the common box.
type ChannelDifferenceResponse struct {
	Final bool

	NewMessages  []any
	OtherUpdates []Update

	Entities

	Pts int
}
