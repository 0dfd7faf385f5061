package mqtt

import (
	"bytes"
	"encoding/json"
	"sync"
	"time"

	"github.com/AaronLay10/SentientDialogue/internal/dialogue"
	"github.com/AaronLay10/SentientDialogue/internal/events"
)

// StateSource supplies dialogue snapshots. The sequencer implements it.
type StateSource interface {
	Snapshot() dialogue.State
}

// StateMirror publishes the dialogue state as a retained message whenever
// it changes, so dashboards see the current beat on subscribe.
type StateMirror struct {
	mu        sync.Mutex
	transport Transport
	source    StateSource
	topic     string
	last      []byte
	failed    bool

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewStateMirror creates a mirror publishing to topic.
func NewStateMirror(transport Transport, source StateSource, topic string) *StateMirror {
	return &StateMirror{
		transport: transport,
		source:    source,
		topic:     topic,
		stopCh:    make(chan struct{}),
	}
}

// PublishIfChanged publishes the current snapshot unless it equals the
// last one published. It reports whether a message was sent.
func (m *StateMirror) PublishIfChanged() (bool, error) {
	b, err := json.Marshal(m.source.Snapshot())
	if err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if bytes.Equal(b, m.last) {
		return false, nil
	}
	if err := m.transport.Publish(m.topic, true, b); err != nil {
		// One report per outage; the next success re-arms it.
		if !m.failed {
			m.failed = true
			events.Emit("error", "system.error", "state mirror publish failed", map[string]interface{}{
				"topic": m.topic,
				"error": err.Error(),
			})
		}
		return false, err
	}
	m.failed = false
	m.last = b
	return true, nil
}

// Resync forces the next PublishIfChanged to send, e.g. after a reconnect.
func (m *StateMirror) Resync() {
	m.mu.Lock()
	m.last = nil
	m.mu.Unlock()
}

// Start begins the background publish loop.
func (m *StateMirror) Start(interval time.Duration) {
	m.wg.Add(1)
	go m.loop(interval)
}

// Stop stops the background publish loop.
func (m *StateMirror) Stop() {
	close(m.stopCh)
	m.wg.Wait()
}

func (m *StateMirror) loop(interval time.Duration) {
	defer m.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.PublishIfChanged()
		}
	}
}
