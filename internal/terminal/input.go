package terminal

import (
	"context"

	"github.com/gdamore/tcell/v2"

	"github.com/AaronLay10/SentientDialogue/internal/events"
)

// Controls is the subset of the sequencer the keyboard drives. Choices go
// through the callback registered by ShowChoiceList instead.
type Controls interface {
	Advance() bool
	Skip() bool
	Begin() bool
	Reset()
}

// handleEvent applies one terminal event. It returns false when the user
// asked to quit.
func (p *Presenter) handleEvent(ev tcell.Event, c Controls) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		return p.handleKey(ev, c)
	case *tcell.EventResize:
		p.Redraw()
	}
	return true
}

func (p *Presenter) handleKey(ev *tcell.EventKey, c Controls) bool {
	var action string
	var accepted bool
	fields := map[string]interface{}{"via": "keyboard"}

	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return false
	case tcell.KeyEnter:
		action, accepted = "advance", c.Advance()
	case tcell.KeyRune:
		switch r := ev.Rune(); {
		case r == ' ', r == 's':
			action, accepted = "skip", c.Skip()
		case r == 'b':
			action, accepted = "begin", c.Begin()
		case r == 'r':
			c.Reset()
			action, accepted = "reset", true
		case r == 'q':
			return false
		case r >= '1' && r <= '9':
			k := int(r - '1')
			action, accepted = "choice", p.choose(k)
			fields["choice"] = k
		}
	}

	if action == "" {
		return true
	}
	fields["action"] = action
	fields["accepted"] = accepted
	events.Emit("info", "input.received", "", fields)
	return true
}

// Run reads keyboard input until ctx is done or the user quits. The
// caller owns the screen and finalizes it afterwards.
func (p *Presenter) Run(ctx context.Context, c Controls) error {
	evCh := make(chan tcell.Event, 100)
	done := make(chan struct{})
	defer close(done)

	go func() {
		for {
			ev := p.screen.PollEvent()
			if ev == nil {
				return
			}
			select {
			case evCh <- ev:
			case <-done:
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-evCh:
			if !p.handleEvent(ev, c) {
				return nil
			}
		}
	}
}
