package dialogue

// Phase represents the lifecycle state of the sequencer.
type Phase string

const (
	PhaseIdle            Phase = "idle"
	PhaseDelaying        Phase = "delaying"
	PhaseRevealing       Phase = "revealing"
	PhaseAwaitingAdvance Phase = "awaiting_advance"
	PhaseAwaitingChoice  Phase = "awaiting_choice"
	PhaseFinished        Phase = "finished"
)

// IsRunning returns true while an event is in flight.
func (p Phase) IsRunning() bool {
	return p != PhaseIdle && p != PhaseFinished
}

// suspensionKind names what a pending deadline is waiting for.
type suspensionKind int

const (
	suspendNone suspensionKind = iota
	suspendDelay
	suspendVoice
	suspendReveal
)

// State is a point-in-time copy of the sequencer's observable state.
type State struct {
	SequenceID     string           `json:"sequence_id,omitempty"`
	Cursor         int              `json:"cursor"`
	Phase          Phase            `json:"phase"`
	Speaker        string           `json:"speaker,omitempty"`
	RevealedText   string           `json:"revealed_text"`
	Choices        []DialogueChoice `json:"choices,omitempty"`
	AdvancePending bool             `json:"advance_pending"`
}
