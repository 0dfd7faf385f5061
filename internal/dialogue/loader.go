package dialogue

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPreDelay is applied to events that do not specify a delay.
const DefaultPreDelay = 0.5

// ErrUnsupportedVersion is returned for documents with an unknown version.
var ErrUnsupportedVersion = errors.New("dialogue: unsupported document version")

// Document is an authored dialogue file.
type Document struct {
	Version     int         `json:"version" yaml:"version"`
	ID          string      `json:"id" yaml:"id"`
	ScrollSpeed float64     `json:"scroll_speed,omitempty" yaml:"scroll_speed,omitempty"` // seconds per character
	StartDelay  float64     `json:"start_delay,omitempty" yaml:"start_delay,omitempty"`   // seconds
	Events      []EventSpec `json:"events" yaml:"events"`
}

// EventSpec is the authored form of an event. Pointer fields take the
// authoring defaults when omitted.
type EventSpec struct {
	Speaker string           `json:"speaker,omitempty" yaml:"speaker,omitempty"`
	Text    string           `json:"text,omitempty" yaml:"text,omitempty"`
	Voice   string           `json:"voice,omitempty" yaml:"voice,omitempty"`
	Actor   string           `json:"actor,omitempty" yaml:"actor,omitempty"`
	Delay   *float64         `json:"delay,omitempty" yaml:"delay,omitempty"`
	Jump    *int             `json:"jump,omitempty" yaml:"jump,omitempty"`
	Choices []DialogueChoice `json:"choices,omitempty" yaml:"choices,omitempty"`
}

// LoadDocument reads a dialogue document from a YAML or JSON file.
func LoadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dialogue file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return ParseDocumentJSON(data)
	default:
		return ParseDocumentYAML(data)
	}
}

// ParseDocumentYAML decodes a YAML dialogue document.
func ParseDocumentYAML(data []byte) (*Document, error) {
	var d Document
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("failed to parse dialogue YAML: %w", err)
	}
	if err := d.validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

// ParseDocumentJSON decodes a JSON dialogue document.
func ParseDocumentJSON(data []byte) (*Document, error) {
	var d Document
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("failed to parse dialogue JSON: %w", err)
	}
	if err := d.validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

func (d *Document) validate() error {
	if d.Version != 1 {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, d.Version)
	}
	if err := CheckSeconds(d.ScrollSpeed); err != nil {
		return fmt.Errorf("%w: scroll_speed %v", err, d.ScrollSpeed)
	}
	if err := CheckSeconds(d.StartDelay); err != nil {
		return fmt.Errorf("%w: start_delay %v", err, d.StartDelay)
	}
	return nil
}

// Graph builds the immutable event graph for the document.
func (d *Document) Graph() (*Graph, error) {
	events := make([]DialogueEvent, len(d.Events))
	for i, spec := range d.Events {
		delay := DefaultPreDelay
		if spec.Delay != nil {
			delay = *spec.Delay
		}
		jump := NoJump
		if spec.Jump != nil {
			jump = *spec.Jump
		}
		events[i] = DialogueEvent{
			SpeakerName:   spec.Speaker,
			Text:          spec.Text,
			VoiceClip:     spec.Voice,
			SpeakerVisual: spec.Actor,
			PreDelay:      delay,
			JumpTarget:    jump,
			Choices:       spec.Choices,
		}
	}
	return NewGraph(events)
}

// Options returns sequencer options for the document's timing overrides.
func (d *Document) Options() []Option {
	var opts []Option
	if d.ScrollSpeed > 0 {
		opts = append(opts, WithScrollSpeed(seconds(d.ScrollSpeed)))
	}
	if d.StartDelay > 0 {
		opts = append(opts, WithStartDelay(seconds(d.StartDelay)))
	}
	if d.ID != "" {
		opts = append(opts, WithSequenceID(d.ID))
	}
	return opts
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
