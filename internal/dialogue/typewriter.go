package dialogue

import "time"

// RevealRequest asks a typewriter to roll a specific text.
// It is handed directly to the widget that owns the reveal.
type RevealRequest struct {
	Text      string
	Interval  time.Duration // per character; 0 reveals everything at once
	StartedAt time.Time
}

// Typewriter reveals a text one rune per interval.
// The first rune is shown immediately and the reveal completes one
// interval after the last rune, so a text of n runes takes n intervals.
type Typewriter struct {
	runes    []rune
	interval time.Duration
	start    time.Time
	shown    int
	done     bool
}

// NewTypewriter starts a reveal for req.
func NewTypewriter(req RevealRequest) *Typewriter {
	tw := &Typewriter{
		runes:    []rune(req.Text),
		interval: req.Interval,
		start:    req.StartedAt,
	}
	if tw.interval <= 0 || len(tw.runes) == 0 {
		tw.Complete()
	}
	return tw
}

// Step advances the reveal to now. It returns the revealed prefix and
// whether the reveal has finished.
func (tw *Typewriter) Step(now time.Time) (string, bool) {
	if tw.done {
		return string(tw.runes), true
	}

	elapsed := now.Sub(tw.start)
	if elapsed < 0 {
		elapsed = 0
	}
	steps := int(elapsed / tw.interval)

	due := steps + 1
	if due > len(tw.runes) {
		due = len(tw.runes)
	}
	if due > tw.shown {
		tw.shown = due
	}

	if steps >= len(tw.runes) {
		tw.done = true
	}
	return string(tw.runes[:tw.shown]), tw.done
}

// NextDeadline returns when the next rune (or completion) is due.
func (tw *Typewriter) NextDeadline() time.Time {
	if tw.done {
		return tw.start
	}
	return tw.start.Add(time.Duration(tw.shown) * tw.interval)
}

// Complete reveals the whole text.
func (tw *Typewriter) Complete() string {
	tw.shown = len(tw.runes)
	tw.done = true
	return string(tw.runes)
}

// Done reports whether the reveal has finished.
func (tw *Typewriter) Done() bool {
	return tw.done
}

// Revealed returns the prefix shown so far.
func (tw *Typewriter) Revealed() string {
	return string(tw.runes[:tw.shown])
}
