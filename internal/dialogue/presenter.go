package dialogue

import "time"

// Presenter is the presentation surface the sequencer drives.
// Implementations must not call back into the sequencer synchronously
// from these methods; selections are dispatched from the presenter's own
// input handling.
type Presenter interface {
	SetSpeakerName(name string)
	SetBodyText(text string)
	ShowContainer(visible bool)
	ShowAdvanceAffordance(visible bool)
	// ShowChoiceList renders choices in authored order. A nil or empty
	// slice hides the list. onSelect reports whether the selection was
	// accepted.
	ShowChoiceList(choices []DialogueChoice, onSelect func(index int) bool)
	RevealActor(ref string)
	// PlayClip starts a voice clip and returns its full duration.
	PlayClip(ref string) time.Duration
}

// Clock supplies the monotonic time used for all suspension arithmetic.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the wall clock with its monotonic reading.
func SystemClock() Clock {
	return systemClock{}
}

// NopPresenter discards all presentation calls. Voice clips have zero length.
type NopPresenter struct{}

func (NopPresenter) SetSpeakerName(string)                           {}
func (NopPresenter) SetBodyText(string)                              {}
func (NopPresenter) ShowContainer(bool)                              {}
func (NopPresenter) ShowAdvanceAffordance(bool)                      {}
func (NopPresenter) ShowChoiceList([]DialogueChoice, func(int) bool) {}
func (NopPresenter) RevealActor(string)                              {}
func (NopPresenter) PlayClip(string) time.Duration                   { return 0 }
