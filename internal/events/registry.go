package events

import "fmt"

var allowedEvents = map[string]struct{}{
	// dialogue lifecycle
	"dialogue.started":  {},
	"dialogue.finished": {},
	"dialogue.reset":    {},
	"dialogue.advanced": {},

	// recoverable authoring faults
	"dialogue.jump_unresolved":   {},
	"dialogue.choice_unresolved": {},

	// event
	"event.started": {},
	"event.silent":  {},

	// reveal
	"reveal.started":   {},
	"reveal.skipped":   {},
	"reveal.completed": {},
	"delay.skipped":    {},

	// choice
	"choice.presented": {},
	"choice.selected":  {},

	// input
	"input.received": {},
	"input.rejected": {},

	// voice
	"voice.played":  {},
	"voice.missing": {},

	// transport
	"mqtt.connected":    {},
	"mqtt.disconnected": {},

	// system
	"system.startup":  {},
	"system.shutdown": {},
	"system.error":    {},
}

func Validate(event string) error {
	if _, ok := allowedEvents[event]; !ok {
		return fmt.Errorf("unknown event: %s", event)
	}
	return nil
}
