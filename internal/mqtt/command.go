package mqtt

import (
	"encoding/json"
	"fmt"
)

// Action is a remote input verb.
type Action string

const (
	ActionSkip    Action = "skip"
	ActionAdvance Action = "advance"
	ActionPress   Action = "press"
	ActionChoice  Action = "choice"
	ActionBegin   Action = "begin"
	ActionReset   Action = "reset"
)

// Command is a v1 remote input message, e.g.
//
//	{"version":1,"source":"panel-1","action":"choice","choice":0}
type Command struct {
	Version int    `json:"version"`
	Source  string `json:"source"`
	Action  Action `json:"action"`
	Choice  *int   `json:"choice,omitempty"`
}

// ParseCommand parses and validates a command from JSON bytes.
func ParseCommand(data []byte) (*Command, error) {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return nil, fmt.Errorf("invalid command JSON: %w", err)
	}

	if cmd.Version != 1 {
		return nil, fmt.Errorf("unsupported command version: %d", cmd.Version)
	}

	switch cmd.Action {
	case ActionSkip, ActionAdvance, ActionPress, ActionBegin, ActionReset:
	case ActionChoice:
		if cmd.Choice == nil {
			return nil, fmt.Errorf("choice command requires a choice index")
		}
	case "":
		return nil, fmt.Errorf("action is required")
	default:
		return nil, fmt.Errorf("unknown action: %s", cmd.Action)
	}

	return &cmd, nil
}

// Target receives dispatched inputs. The dialogue sequencer implements it.
// Each method reports whether the input was accepted in the current phase.
type Target interface {
	Skip() bool
	Advance() bool
	Press() bool
	SelectChoice(k int) bool
	Begin() bool
	Reset()
}

// Dispatch applies cmd to t.
func Dispatch(t Target, cmd *Command) bool {
	switch cmd.Action {
	case ActionSkip:
		return t.Skip()
	case ActionAdvance:
		return t.Advance()
	case ActionPress:
		return t.Press()
	case ActionChoice:
		return t.SelectChoice(*cmd.Choice)
	case ActionBegin:
		return t.Begin()
	case ActionReset:
		t.Reset()
		return true
	}
	return false
}
