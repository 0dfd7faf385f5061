package dialogue

import (
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recordingPresenter captures everything the sequencer asks it to show.
type recordingPresenter struct {
	speaker      string
	body         string
	bodyWrites   int
	container    bool
	advance      bool
	advanceShown int
	choices      []DialogueChoice
	choicesShown int
	onSelect     func(int) bool
	actors       []string
	clips        map[string]time.Duration
	played       []string
}

func newRecordingPresenter() *recordingPresenter {
	return &recordingPresenter{clips: make(map[string]time.Duration)}
}

func (p *recordingPresenter) SetSpeakerName(name string) { p.speaker = name }

func (p *recordingPresenter) SetBodyText(text string) {
	p.body = text
	p.bodyWrites++
}

func (p *recordingPresenter) ShowContainer(visible bool) { p.container = visible }

func (p *recordingPresenter) ShowAdvanceAffordance(visible bool) {
	p.advance = visible
	if visible {
		p.advanceShown++
	}
}

func (p *recordingPresenter) ShowChoiceList(choices []DialogueChoice, onSelect func(int) bool) {
	p.choices = choices
	p.onSelect = onSelect
	if len(choices) > 0 {
		p.choicesShown++
	}
}

func (p *recordingPresenter) RevealActor(ref string) { p.actors = append(p.actors, ref) }

func (p *recordingPresenter) PlayClip(ref string) time.Duration {
	p.played = append(p.played, ref)
	return p.clips[ref]
}

const testScroll = 10 * time.Millisecond

func textEvent(text string) DialogueEvent {
	return DialogueEvent{SpeakerName: "Ada", Text: text, JumpTarget: NoJump}
}

func newTestSequencer(t *testing.T, evs []DialogueEvent, opts ...Option) (*Sequencer, *fakeClock, *recordingPresenter) {
	t.Helper()

	g, err := NewGraph(evs)
	if err != nil {
		t.Fatalf("failed to build graph: %v", err)
	}
	clock := newFakeClock()
	p := newRecordingPresenter()

	all := append([]Option{WithClock(clock), WithScrollSpeed(testScroll)}, opts...)
	seq, err := NewSequencer(g, p, all...)
	if err != nil {
		t.Fatalf("failed to create sequencer: %v", err)
	}
	return seq, clock, p
}

// settle lets every pending suspension elapse.
func settle(seq *Sequencer, clock *fakeClock) {
	clock.Advance(time.Minute)
	seq.Update()
}

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}
