package dialogue

import "testing"

func kinds(issues []Issue) map[IssueKind]int {
	out := make(map[IssueKind]int)
	for _, is := range issues {
		out[is.Kind]++
	}
	return out
}

func TestLintCleanGraph(t *testing.T) {
	doc, err := LoadDocument("../../content/intro.yaml")
	if err != nil {
		t.Fatalf("failed to load document: %v", err)
	}
	g, _ := doc.Graph()

	if issues := Lint(g); len(issues) != 0 {
		t.Errorf("expected no issues, got %+v", issues)
	}
}

func TestLintDanglingTargets(t *testing.T) {
	jump := textEvent("A")
	jump.JumpTarget = 7
	question := textEvent("B")
	question.Choices = []DialogueChoice{{Label: "ok", TargetIndex: 0}, {Label: "lost", TargetIndex: 9}}

	g, _ := NewGraph([]DialogueEvent{jump, question})
	got := kinds(Lint(g))

	if got[IssueDanglingJump] != 1 {
		t.Errorf("expected one dangling jump, got %d", got[IssueDanglingJump])
	}
	if got[IssueDanglingChoice] != 1 {
		t.Errorf("expected one dangling choice, got %d", got[IssueDanglingChoice])
	}
}

func TestLintIgnoredJump(t *testing.T) {
	question := textEvent("Q")
	question.JumpTarget = 1
	question.Choices = []DialogueChoice{{Label: "next", TargetIndex: 1}}

	g, _ := NewGraph([]DialogueEvent{question, textEvent("A")})
	issues := Lint(g)

	if len(issues) != 1 || issues[0].Kind != IssueIgnoredJump || issues[0].Index != 0 {
		t.Errorf("expected one ignored jump at 0, got %+v", issues)
	}
}

func TestLintUnreachable(t *testing.T) {
	skip := textEvent("A")
	skip.JumpTarget = 2

	g, _ := NewGraph([]DialogueEvent{skip, textEvent("never"), textEvent("C")})
	issues := Lint(g)

	if len(issues) != 1 || issues[0].Kind != IssueUnreachable || issues[0].Index != 1 {
		t.Errorf("expected event 1 unreachable, got %+v", issues)
	}
}

func TestLintFallbackKeepsNextReachable(t *testing.T) {
	lost := textEvent("A")
	lost.JumpTarget = 42

	g, _ := NewGraph([]DialogueEvent{lost, textEvent("B")})
	got := kinds(Lint(g))

	if got[IssueUnreachable] != 0 {
		t.Error("sequential fallback should keep event 1 reachable")
	}
	if got[IssueDanglingJump] != 1 {
		t.Errorf("expected dangling jump, got %d", got[IssueDanglingJump])
	}
}
