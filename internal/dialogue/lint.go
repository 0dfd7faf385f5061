package dialogue

import "fmt"

// IssueKind classifies an authoring problem found by Lint.
type IssueKind string

const (
	IssueDanglingJump   IssueKind = "dangling_jump"
	IssueDanglingChoice IssueKind = "dangling_choice"
	IssueIgnoredJump    IssueKind = "ignored_jump"
	IssueUnreachable    IssueKind = "unreachable"
)

// Issue is a recoverable authoring problem. Playback still works: dangling
// targets fall back to sequential advance at runtime.
type Issue struct {
	Kind    IssueKind `json:"kind"`
	Index   int       `json:"index"`
	Choice  int       `json:"choice,omitempty"`
	Target  int       `json:"target,omitempty"`
	Message string    `json:"message"`
}

// Lint reports targets that will not resolve, jumps that are ignored
// because the event has choices, and events no path from 0 can reach.
func Lint(g *Graph) []Issue {
	var issues []Issue

	for i, ev := range g.events {
		if ev.HasChoices() {
			if ev.HasJump() {
				issues = append(issues, Issue{
					Kind:    IssueIgnoredJump,
					Index:   i,
					Target:  ev.JumpTarget,
					Message: fmt.Sprintf("event %d has choices; jump %d is ignored", i, ev.JumpTarget),
				})
			}
			for k, c := range ev.Choices {
				if _, err := g.ResolveIndex(c.TargetIndex); err != nil {
					issues = append(issues, Issue{
						Kind:    IssueDanglingChoice,
						Index:   i,
						Choice:  k,
						Target:  c.TargetIndex,
						Message: fmt.Sprintf("event %d choice %d targets missing event %d", i, k, c.TargetIndex),
					})
				}
			}
			continue
		}
		if ev.HasJump() {
			if _, err := g.ResolveIndex(ev.JumpTarget); err != nil {
				issues = append(issues, Issue{
					Kind:    IssueDanglingJump,
					Index:   i,
					Target:  ev.JumpTarget,
					Message: fmt.Sprintf("event %d jumps to missing event %d", i, ev.JumpTarget),
				})
			}
		}
	}

	reached := g.reachable()
	for i := range g.events {
		if !reached[i] {
			issues = append(issues, Issue{
				Kind:    IssueUnreachable,
				Index:   i,
				Message: fmt.Sprintf("event %d is never played", i),
			})
		}
	}

	return issues
}

// successors mirrors the sequencer's next-cursor resolution, including
// the sequential fallback for unresolved targets.
func (g *Graph) successors(i int) []int {
	ev := g.events[i]
	if ev.HasChoices() {
		next := make([]int, 0, len(ev.Choices))
		for _, c := range ev.Choices {
			idx, err := g.ResolveIndex(c.TargetIndex)
			if err != nil {
				idx = i + 1
			}
			next = append(next, idx)
		}
		return next
	}
	if ev.HasJump() {
		if idx, err := g.ResolveIndex(ev.JumpTarget); err == nil {
			return []int{idx}
		}
	}
	return []int{i + 1}
}

func (g *Graph) reachable() map[int]bool {
	reached := make(map[int]bool)
	queue := []int{0}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if current < 0 || current >= len(g.events) || reached[current] {
			continue
		}
		reached[current] = true
		queue = append(queue, g.successors(current)...)
	}
	return reached
}
