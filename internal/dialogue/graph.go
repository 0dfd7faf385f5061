package dialogue

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// NoJump is the jump target sentinel for "fall through to the next event".
// Any target <= 0 is treated as unset.
const NoJump = -1

// MaxDelay bounds every authored or configured wait. Sums of two waits
// still fit in a time.Duration.
const MaxDelay = 24 * time.Hour

var (
	// ErrOutOfRange is returned when an index falls outside the event sequence.
	ErrOutOfRange = errors.New("dialogue: index out of range")
	// ErrNotFound is returned when a jump or choice target does not resolve.
	ErrNotFound = errors.New("dialogue: target not found")
	// ErrEmptyGraph is returned when a graph is built without events.
	ErrEmptyGraph = errors.New("dialogue: graph has no events")
	// ErrNegativeDelay is returned when an event has a negative pre-delay.
	ErrNegativeDelay = errors.New("dialogue: negative pre-delay")
	// ErrInvalidDelay is returned for a delay that is NaN, infinite or
	// longer than MaxDelay.
	ErrInvalidDelay = errors.New("dialogue: invalid delay")
)

// CheckSeconds validates a wait given in seconds.
func CheckSeconds(s float64) error {
	switch {
	case math.IsNaN(s), math.IsInf(s, 0), s > MaxDelay.Seconds():
		return ErrInvalidDelay
	case s < 0:
		return ErrNegativeDelay
	}
	return nil
}

// DialogueChoice is one player-facing option of an event.
// TargetIndex is a sequence position, not a keyed identifier.
type DialogueChoice struct {
	Label       string `json:"label" yaml:"label"`
	TargetIndex int    `json:"target" yaml:"target"`
}

// DialogueEvent is one authored beat of dialogue.
type DialogueEvent struct {
	SpeakerName   string           `json:"speaker,omitempty"`
	Text          string           `json:"text,omitempty"`
	VoiceClip     string           `json:"voice,omitempty"` // empty = no clip
	SpeakerVisual string           `json:"actor,omitempty"` // empty = nothing to reveal
	PreDelay      float64          `json:"delay"`           // seconds
	JumpTarget    int              `json:"jump"`            // <= 0 = unset
	Choices       []DialogueChoice `json:"choices,omitempty"`
}

// IsSilent reports whether the event carries no text.
func (e *DialogueEvent) IsSilent() bool {
	return e.Text == ""
}

// HasChoices reports whether branching is decided by the player.
func (e *DialogueEvent) HasChoices() bool {
	return len(e.Choices) > 0
}

// HasJump reports whether a jump target was authored.
func (e *DialogueEvent) HasJump() bool {
	return e.JumpTarget > 0
}

// Graph is an immutable, ordered sequence of dialogue events.
type Graph struct {
	events []DialogueEvent
}

// NewGraph validates and copies the given events.
func NewGraph(events []DialogueEvent) (*Graph, error) {
	if len(events) == 0 {
		return nil, ErrEmptyGraph
	}

	g := &Graph{events: make([]DialogueEvent, len(events))}
	for i, e := range events {
		if err := CheckSeconds(e.PreDelay); err != nil {
			return nil, fmt.Errorf("%w: event %d has delay %v", err, i, e.PreDelay)
		}
		if len(e.Choices) > 0 {
			e.Choices = append([]DialogueChoice(nil), e.Choices...)
		}
		g.events[i] = e
	}
	return g, nil
}

// Len returns the number of events.
func (g *Graph) Len() int {
	return len(g.events)
}

// Get returns the event at index.
func (g *Graph) Get(index int) (DialogueEvent, error) {
	if index < 0 || index >= len(g.events) {
		return DialogueEvent{}, fmt.Errorf("%w: %d not in [0,%d)", ErrOutOfRange, index, len(g.events))
	}
	return g.events[index], nil
}

// ResolveIndex finds the event whose sequence position equals id.
// Jump and choice targets are positions, so authored content must keep
// them consistent when events are reordered.
func (g *Graph) ResolveIndex(id int) (int, error) {
	for i := range g.events {
		if i == id {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %d", ErrNotFound, id)
}
