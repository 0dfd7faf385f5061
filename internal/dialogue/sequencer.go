package dialogue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/AaronLay10/SentientDialogue/internal/events"
)

const (
	// DefaultScrollSpeed is the per-character reveal interval.
	DefaultScrollSpeed = 50 * time.Millisecond

	// maxStepsPerTick bounds chained transitions (silent zero-delay events)
	// within a single Update so a self-referencing jump cannot spin forever.
	maxStepsPerTick = 64
)

// Option configures a Sequencer.
type Option func(*Sequencer)

// WithClock sets the time source. Defaults to the system clock.
func WithClock(c Clock) Option {
	return func(s *Sequencer) { s.clock = c }
}

// WithScrollSpeed sets the per-character reveal interval.
func WithScrollSpeed(d time.Duration) Option {
	return func(s *Sequencer) { s.scroll = d }
}

// WithStartDelay adds a wait before the first event of a run.
func WithStartDelay(d time.Duration) Option {
	return func(s *Sequencer) { s.startDelay = d }
}

// WithSkipDelay lets a skip input cut an event's pre-delay short.
func WithSkipDelay(enabled bool) Option {
	return func(s *Sequencer) { s.skipDelay = enabled }
}

// WithSequenceID tags every emitted event with a sequence identifier.
func WithSequenceID(id string) Option {
	return func(s *Sequencer) { s.sequenceID = id }
}

// Sequencer drives a dialogue graph: pre-delays, typewriter reveal,
// advance and choice inputs. Update and the input methods are mutually
// exclusive critical sections over the sequencer state.
type Sequencer struct {
	mu sync.Mutex

	graph      *Graph
	presenter  Presenter
	clock      Clock
	scroll     time.Duration
	startDelay time.Duration
	skipDelay  bool
	sequenceID string

	cursor         int
	phase          Phase
	current        DialogueEvent
	revealed       string
	pendingAdvance bool
	clipLength     time.Duration
	typewriter     *Typewriter

	suspend  suspensionKind
	deadline time.Time

	done     chan struct{}
	doneOnce bool
}

// NewSequencer creates a sequencer over g. A nil presenter discards output.
func NewSequencer(g *Graph, p Presenter, opts ...Option) (*Sequencer, error) {
	if g == nil || g.Len() == 0 {
		return nil, ErrEmptyGraph
	}
	if p == nil {
		p = NopPresenter{}
	}

	s := &Sequencer{
		graph:     g,
		presenter: p,
		clock:     SystemClock(),
		scroll:    DefaultScrollSpeed,
		phase:     PhaseIdle,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.clock == nil {
		return nil, errors.New("dialogue: nil clock")
	}
	if s.scroll < 0 {
		return nil, fmt.Errorf("dialogue: negative scroll speed %s", s.scroll)
	}
	if s.scroll > MaxDelay {
		return nil, fmt.Errorf("%w: scroll speed %s", ErrInvalidDelay, s.scroll)
	}
	if s.startDelay < 0 {
		return nil, fmt.Errorf("%w: start delay %s", ErrNegativeDelay, s.startDelay)
	}
	if s.startDelay > MaxDelay {
		return nil, fmt.Errorf("%w: start delay %s", ErrInvalidDelay, s.startDelay)
	}

	return s, nil
}

// Begin starts playback from the cursor. It is ignored unless the
// sequencer is Idle, so a second call while running is a no-op.
func (s *Sequencer) Begin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseIdle {
		return false
	}

	now := s.clock.Now()
	s.emit("info", "dialogue.started", "", map[string]interface{}{"events": s.graph.Len()})
	s.enterEvent(now, s.startDelay)
	s.drain(now)
	return true
}

// Reset cancels any in-flight event and returns to Idle at cursor 0.
func (s *Sequencer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelSuspension()
	s.typewriter = nil
	s.cursor = 0
	s.phase = PhaseIdle
	s.current = DialogueEvent{}
	s.revealed = ""
	s.pendingAdvance = false
	s.clipLength = 0
	if s.doneOnce {
		s.done = make(chan struct{})
		s.doneOnce = false
	}

	s.hideAll()
	s.emit("info", "dialogue.reset", "", nil)
}

// Update is the per-tick step. It fires every suspension whose deadline
// has passed according to the clock.
func (s *Sequencer) Update() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.drain(s.clock.Now())
}

// Run calls Update every interval until ctx is done or playback finishes.
func (s *Sequencer) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.Done():
			return nil
		case <-ticker.C:
			s.Update()
		}
	}
}

// Skip completes the current reveal immediately. It is meaningful only
// while Revealing (or Delaying, when delay skipping is enabled); any
// other call is ignored.
func (s *Sequencer) Skip() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.skipLocked()
}

func (s *Sequencer) skipLocked() bool {
	now := s.clock.Now()
	switch {
	case s.phase == PhaseRevealing:
		s.emit("info", "reveal.skipped", "", map[string]interface{}{"revealed": len([]rune(s.revealed))})
		s.finishReveal()
		return true
	case s.phase == PhaseDelaying && s.skipDelay && s.suspend == suspendDelay:
		s.emit("info", "delay.skipped", "", nil)
		s.cancelSuspension()
		s.startBody(now)
		s.drain(now)
		return true
	}
	return false
}

// Advance moves past an event awaiting the continue affordance. The
// one-shot guard makes repeated advances before the next full reveal no-ops.
func (s *Sequencer) Advance() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.advanceLocked()
}

func (s *Sequencer) advanceLocked() bool {
	if s.phase != PhaseAwaitingAdvance || !s.pendingAdvance {
		return false
	}
	s.pendingAdvance = false

	now := s.clock.Now()
	s.presenter.ShowAdvanceAffordance(false)
	from := s.cursor
	s.resolveNext()
	s.emit("info", "dialogue.advanced", "", map[string]interface{}{"from": from, "to": s.cursor})
	s.enterEvent(now, 0)
	s.drain(now)
	return true
}

// SelectChoice applies the player's choice k while choices are shown.
func (s *Sequencer) SelectChoice(k int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseAwaitingChoice {
		return false
	}
	if k < 0 || k >= len(s.current.Choices) {
		return false
	}

	now := s.clock.Now()
	choice := s.current.Choices[k]
	s.presenter.ShowChoiceList(nil, nil)

	from := s.cursor
	idx, err := s.graph.ResolveIndex(choice.TargetIndex)
	if err != nil {
		s.emit("warn", "dialogue.choice_unresolved", "choice target not found, continuing sequentially", map[string]interface{}{
			"choice": k,
			"target": choice.TargetIndex,
		})
		s.cursor++
	} else {
		s.cursor = idx
	}

	s.emit("info", "choice.selected", "", map[string]interface{}{
		"choice": k,
		"label":  choice.Label,
		"from":   from,
		"to":     s.cursor,
	})
	s.enterEvent(now, 0)
	s.drain(now)
	return true
}

// Press is the single-button input for remote panels: it skips a reveal
// in progress and otherwise advances. Both decisions are made under one
// lock, so a tick cannot complete the reveal between them.
func (s *Sequencer) Press() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.skipLocked() {
		return true
	}
	return s.advanceLocked()
}

// IsAwaitingInput reports whether the dialogue owns player input focus.
func (s *Sequencer) IsAwaitingInput() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.phase {
	case PhaseRevealing, PhaseAwaitingAdvance, PhaseAwaitingChoice:
		return true
	}
	return false
}

// Done is closed when playback reaches Finished. Reset re-arms it.
func (s *Sequencer) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Phase returns the current phase.
func (s *Sequencer) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Cursor returns the current event position.
func (s *Sequencer) Cursor() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// Snapshot returns a copy of the observable state.
func (s *Sequencer) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := State{
		SequenceID:     s.sequenceID,
		Cursor:         s.cursor,
		Phase:          s.phase,
		RevealedText:   s.revealed,
		AdvancePending: s.pendingAdvance,
	}
	if s.phase.IsRunning() {
		st.Speaker = s.current.SpeakerName
	}
	if s.phase == PhaseAwaitingChoice {
		st.Choices = append([]DialogueChoice(nil), s.current.Choices...)
	}
	return st
}

// drain fires due suspensions until nothing more is due at now.
func (s *Sequencer) drain(now time.Time) {
	for i := 0; i < maxStepsPerTick; i++ {
		if !s.step(now) {
			return
		}
	}
}

// step fires at most one due suspension and reports whether it did.
func (s *Sequencer) step(now time.Time) bool {
	switch s.suspend {
	case suspendDelay:
		if now.Before(s.deadline) {
			return false
		}
		at := s.deadline
		s.cancelSuspension()
		s.startBody(at)
		return true

	case suspendVoice:
		if now.Before(s.deadline) {
			return false
		}
		at := s.deadline
		s.cancelSuspension()
		s.afterSilent(at)
		return true

	case suspendReveal:
		if now.Before(s.deadline) {
			return false
		}
		text, done := s.typewriter.Step(now)
		if text != s.revealed {
			s.revealed = text
			s.presenter.SetBodyText(text)
		}
		if done {
			s.finishReveal()
			return true
		}
		s.deadline = s.typewriter.NextDeadline()
		return false
	}
	return false
}

// enterEvent starts the event at the cursor, or finishes when the cursor
// is outside the graph.
func (s *Sequencer) enterEvent(now time.Time, extra time.Duration) {
	ev, err := s.graph.Get(s.cursor)
	if err != nil {
		s.finish()
		return
	}

	s.current = ev
	s.phase = PhaseDelaying
	s.revealed = ""
	s.pendingAdvance = false
	s.typewriter = nil
	s.clipLength = 0

	s.presenter.ShowAdvanceAffordance(false)
	s.presenter.ShowChoiceList(nil, nil)

	if ev.SpeakerVisual != "" {
		s.presenter.RevealActor(ev.SpeakerVisual)
	}
	if ev.VoiceClip != "" {
		s.clipLength = s.presenter.PlayClip(ev.VoiceClip)
		s.emit("info", "voice.played", "", map[string]interface{}{
			"clip":     ev.VoiceClip,
			"duration": s.clipLength.Seconds(),
		})
	}

	s.emit("info", "event.started", "", map[string]interface{}{
		"speaker": ev.SpeakerName,
		"silent":  ev.IsSilent(),
	})

	delay := extra + time.Duration(ev.PreDelay*float64(time.Second))
	s.suspendUntil(suspendDelay, now.Add(delay))
}

// startBody runs the event after its pre-delay: silent events wait for
// their clip and continue on their own, others begin the reveal.
func (s *Sequencer) startBody(at time.Time) {
	if s.current.IsSilent() {
		s.presenter.ShowContainer(false)
		s.emit("info", "event.silent", "", map[string]interface{}{"wait": s.clipLength.Seconds()})
		if s.clipLength > 0 {
			s.suspendUntil(suspendVoice, at.Add(s.clipLength))
			return
		}
		s.afterSilent(at)
		return
	}

	s.presenter.ShowContainer(true)
	s.presenter.SetSpeakerName(s.current.SpeakerName)
	s.presenter.SetBodyText("")

	s.phase = PhaseRevealing
	s.typewriter = NewTypewriter(RevealRequest{
		Text:      s.current.Text,
		Interval:  s.scroll,
		StartedAt: at,
	})
	s.emit("info", "reveal.started", "", map[string]interface{}{"length": len([]rune(s.current.Text))})
	s.suspendUntil(suspendReveal, at)
}

// afterSilent continues past a silent event without input. A silent
// event that carries choices still waits for the player's selection.
func (s *Sequencer) afterSilent(at time.Time) {
	if s.current.HasChoices() {
		s.presentChoices()
		return
	}
	s.resolveNext()
	s.enterEvent(at, 0)
}

// finishReveal shows the full text and moves to the post-reveal phase
// exactly once per reveal.
func (s *Sequencer) finishReveal() {
	if s.phase != PhaseRevealing {
		return
	}
	s.cancelSuspension()

	full := s.current.Text
	if s.typewriter != nil {
		full = s.typewriter.Complete()
	}
	if s.revealed != full {
		s.revealed = full
		s.presenter.SetBodyText(full)
	}

	if s.current.HasChoices() {
		s.presentChoices()
		return
	}

	s.phase = PhaseAwaitingAdvance
	s.pendingAdvance = true
	s.presenter.ShowAdvanceAffordance(true)
	s.emit("info", "reveal.completed", "", nil)
}

func (s *Sequencer) presentChoices() {
	s.phase = PhaseAwaitingChoice
	s.presenter.ShowAdvanceAffordance(false)
	s.presenter.ShowChoiceList(append([]DialogueChoice(nil), s.current.Choices...), s.selectFromPresenter)
	s.emit("info", "choice.presented", "", map[string]interface{}{"choices": len(s.current.Choices)})
}

func (s *Sequencer) selectFromPresenter(index int) bool {
	return s.SelectChoice(index)
}

// resolveNext moves the cursor after an event without choices: to the
// jump target when it resolves, otherwise sequentially. An authored but
// unresolvable target is reported once.
func (s *Sequencer) resolveNext() {
	ev := s.current
	if ev.HasChoices() {
		return
	}

	if ev.HasJump() {
		idx, err := s.graph.ResolveIndex(ev.JumpTarget)
		if err == nil {
			s.cursor = idx
			return
		}
		s.emit("warn", "dialogue.jump_unresolved", "jump target not found, continuing sequentially", map[string]interface{}{
			"target": ev.JumpTarget,
		})
	}
	s.cursor++
}

func (s *Sequencer) finish() {
	s.cancelSuspension()
	s.typewriter = nil
	s.phase = PhaseFinished
	s.pendingAdvance = false
	s.hideAll()

	s.emit("info", "dialogue.finished", "", nil)
	if !s.doneOnce {
		s.doneOnce = true
		close(s.done)
	}
}

func (s *Sequencer) hideAll() {
	s.presenter.ShowContainer(false)
	s.presenter.ShowChoiceList(nil, nil)
	s.presenter.ShowAdvanceAffordance(false)
}

func (s *Sequencer) suspendUntil(kind suspensionKind, deadline time.Time) {
	s.suspend = kind
	s.deadline = deadline
}

// cancelSuspension drops the pending deadline so a later tick cannot
// fire it after the phase has moved on.
func (s *Sequencer) cancelSuspension() {
	s.suspend = suspendNone
	s.deadline = time.Time{}
}

func (s *Sequencer) emit(level, name, msg string, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["cursor"] = s.cursor
	if s.sequenceID != "" {
		fields["sequence_id"] = s.sequenceID
	}
	events.Emit(level, name, msg, fields)
}
