package terminal

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/AaronLay10/SentientDialogue/internal/dialogue"
)

// Clips plays voice clips by reference. voice.Library implements it.
type Clips interface {
	Play(ref string) time.Duration
}

var (
	boxStyle     = tcell.StyleDefault.Foreground(tcell.ColorWhite)
	speakerStyle = tcell.StyleDefault.Foreground(tcell.ColorYellow).Bold(true)
	actorStyle   = tcell.StyleDefault.Foreground(tcell.ColorPurple)
	choiceStyle  = tcell.StyleDefault.Foreground(tcell.ColorGreen)
	hintStyle    = tcell.StyleDefault.Foreground(tcell.ColorGray)
)

const (
	advanceGlyph = '▼'
	boxHeight    = 8
)

// Presenter draws the dialogue box on a tcell screen. Every setter redraws.
type Presenter struct {
	screen tcell.Screen
	clips  Clips

	mu       sync.Mutex
	speaker  string
	body     string
	actor    string
	visible  bool
	advance  bool
	choices  []dialogue.DialogueChoice
	onSelect func(int) bool
}

// NewPresenter returns a presenter drawing on screen. clips may be nil,
// in which case every clip has zero length.
func NewPresenter(screen tcell.Screen, clips Clips) *Presenter {
	return &Presenter{screen: screen, clips: clips}
}

func (p *Presenter) SetSpeakerName(name string) {
	p.mu.Lock()
	p.speaker = name
	p.drawLocked()
	p.mu.Unlock()
}

func (p *Presenter) SetBodyText(text string) {
	p.mu.Lock()
	p.body = text
	p.drawLocked()
	p.mu.Unlock()
}

func (p *Presenter) ShowContainer(visible bool) {
	p.mu.Lock()
	p.visible = visible
	p.drawLocked()
	p.mu.Unlock()
}

func (p *Presenter) ShowAdvanceAffordance(visible bool) {
	p.mu.Lock()
	p.advance = visible
	p.drawLocked()
	p.mu.Unlock()
}

func (p *Presenter) ShowChoiceList(choices []dialogue.DialogueChoice, onSelect func(int) bool) {
	p.mu.Lock()
	if len(choices) == 0 {
		p.choices, p.onSelect = nil, nil
	} else {
		p.choices, p.onSelect = choices, onSelect
	}
	p.drawLocked()
	p.mu.Unlock()
}

func (p *Presenter) RevealActor(ref string) {
	p.mu.Lock()
	p.actor = ref
	p.drawLocked()
	p.mu.Unlock()
}

func (p *Presenter) PlayClip(ref string) time.Duration {
	if p.clips == nil {
		return 0
	}
	return p.clips.Play(ref)
}

// Redraw repaints the whole screen, e.g. after a resize.
func (p *Presenter) Redraw() {
	p.mu.Lock()
	p.screen.Sync()
	p.drawLocked()
	p.mu.Unlock()
}

// choose invokes the selection callback for the 0-based index k and
// reports whether the sequencer took it. The lock is released first since
// the callback re-enters the presenter.
func (p *Presenter) choose(k int) bool {
	p.mu.Lock()
	fn := p.onSelect
	n := len(p.choices)
	p.mu.Unlock()

	if fn == nil || k < 0 || k >= n {
		return false
	}
	return fn(k)
}

func (p *Presenter) drawLocked() {
	s := p.screen
	s.Clear()
	w, h := s.Size()

	if p.actor != "" {
		drawText(s, 1, 0, w-2, actorStyle, "["+p.actor+"]")
	}

	if p.visible {
		top := h - boxHeight
		if top < 1 {
			top = 1
		}
		drawBorder(s, 0, top, w-1, h-1)
		if p.speaker != "" {
			drawText(s, 2, top, w-4, speakerStyle, " "+p.speaker+" ")
		}
		row := top + 1
		for _, line := range wrap(p.body, w-4) {
			if row >= h-1 {
				break
			}
			drawText(s, 2, row, w-4, boxStyle, line)
			row++
		}
		if p.advance && len(p.choices) == 0 {
			s.SetContent(w-3, h-2, advanceGlyph, nil, boxStyle)
		}
	}

	if len(p.choices) > 0 {
		row := h - boxHeight - len(p.choices) - 1
		if row < 1 {
			row = 1
		}
		for i, c := range p.choices {
			drawText(s, 4, row+i, w-6, choiceStyle, strconv.Itoa(i+1)+". "+c.Label)
		}
	}

	drawText(s, 1, h-1, w-2, hintStyle, " space: skip  enter: next  1-9: choose  esc: quit ")
	s.Show()
}

func drawText(s tcell.Screen, x, y, maxWidth int, style tcell.Style, text string) {
	col := 0
	for _, r := range text {
		if col >= maxWidth {
			return
		}
		s.SetContent(x+col, y, r, nil, style)
		col++
	}
}

func drawBorder(s tcell.Screen, x1, y1, x2, y2 int) {
	for x := x1 + 1; x < x2; x++ {
		s.SetContent(x, y1, tcell.RuneHLine, nil, boxStyle)
		s.SetContent(x, y2, tcell.RuneHLine, nil, boxStyle)
	}
	for y := y1 + 1; y < y2; y++ {
		s.SetContent(x1, y, tcell.RuneVLine, nil, boxStyle)
		s.SetContent(x2, y, tcell.RuneVLine, nil, boxStyle)
	}
	s.SetContent(x1, y1, tcell.RuneULCorner, nil, boxStyle)
	s.SetContent(x2, y1, tcell.RuneURCorner, nil, boxStyle)
	s.SetContent(x1, y2, tcell.RuneLLCorner, nil, boxStyle)
	s.SetContent(x2, y2, tcell.RuneLRCorner, nil, boxStyle)
}

// wrap breaks text into lines of at most width runes, preferring spaces.
func wrap(text string, width int) []string {
	if width <= 0 {
		return nil
	}
	var lines []string
	for _, para := range strings.Split(text, "\n") {
		line := []rune{}
		for _, word := range strings.Fields(para) {
			wr := []rune(word)
			for len(wr) > width {
				if len(line) > 0 {
					lines = append(lines, string(line))
					line = line[:0]
				}
				lines = append(lines, string(wr[:width]))
				wr = wr[width:]
			}
			switch {
			case len(line) == 0:
				line = append(line, wr...)
			case len(line)+1+len(wr) <= width:
				line = append(append(line, ' '), wr...)
			default:
				lines = append(lines, string(line))
				line = append(line[:0], wr...)
			}
		}
		lines = append(lines, string(line))
	}
	return lines
}
