package mqtt

import (
	"errors"
	"sync"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// mockTransport records subscriptions and publishes in memory.
type mockTransport struct {
	mu            sync.Mutex
	subscriptions map[string]paho.MessageHandler
	subscribes    int
	published     []publishedMessage
	failPublish   bool
}

type publishedMessage struct {
	topic    string
	retained bool
	payload  []byte
}

func newMockTransport() *mockTransport {
	return &mockTransport{subscriptions: make(map[string]paho.MessageHandler)}
}

func (m *mockTransport) Subscribe(topic string, handler paho.MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions[topic] = handler
	m.subscribes++
	return nil
}

func (m *mockTransport) Publish(topic string, retained bool, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failPublish {
		return errors.New("broker unavailable")
	}
	m.published = append(m.published, publishedMessage{topic: topic, retained: retained, payload: payload})
	return nil
}

func (m *mockTransport) SimulateMessage(topic string, payload []byte) {
	m.mu.Lock()
	handler, ok := m.subscriptions[topic]
	m.mu.Unlock()
	if ok {
		handler(nil, &mockMessage{topic: topic, payload: payload})
	}
}

type mockMessage struct {
	topic   string
	payload []byte
}

func (m *mockMessage) Duplicate() bool   { return false }
func (m *mockMessage) Qos() byte         { return 1 }
func (m *mockMessage) Retained() bool    { return false }
func (m *mockMessage) Topic() string     { return m.topic }
func (m *mockMessage) MessageID() uint16 { return 0 }
func (m *mockMessage) Payload() []byte   { return m.payload }
func (m *mockMessage) Ack()              {}

// recordingTarget accepts inputs according to its flags.
type recordingTarget struct {
	calls  []string
	choice int
	accept bool
}

func (t *recordingTarget) Skip() bool {
	t.calls = append(t.calls, "skip")
	return t.accept
}

func (t *recordingTarget) Advance() bool {
	t.calls = append(t.calls, "advance")
	return t.accept
}

func (t *recordingTarget) Press() bool {
	t.calls = append(t.calls, "press")
	return t.accept
}

func (t *recordingTarget) Begin() bool {
	t.calls = append(t.calls, "begin")
	return t.accept
}

func (t *recordingTarget) Reset() { t.calls = append(t.calls, "reset") }

func (t *recordingTarget) SelectChoice(k int) bool {
	t.calls = append(t.calls, "choice")
	t.choice = k
	return t.accept
}
