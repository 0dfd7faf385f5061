package mqtt

import (
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/AaronLay10/SentientDialogue/internal/events"
)

// Transport is the subset of Client the bridge and mirror need.
type Transport interface {
	Subscribe(topic string, handler paho.MessageHandler) error
	Publish(topic string, retained bool, payload []byte) error
}

// InputTopic is where remote panels publish commands for a player.
func InputTopic(prefix, playerID string) string {
	return prefix + "/" + playerID + "/input"
}

// StateTopic is where the player mirrors its dialogue state.
func StateTopic(prefix, playerID string) string {
	return prefix + "/" + playerID + "/state"
}

// InputBridge turns MQTT command messages into sequencer inputs.
// Subscription is idempotent across reconnects.
type InputBridge struct {
	mu         sync.Mutex
	transport  Transport
	target     Target
	topic      string
	subscribed bool
	sources    *SourceRegistry
	now        func() time.Time
}

// NewInputBridge creates a bridge for topic. It does not subscribe.
func NewInputBridge(transport Transport, target Target, topic string) *InputBridge {
	return &InputBridge{
		transport: transport,
		target:    target,
		topic:     topic,
		sources:   NewSourceRegistry(),
		now:       time.Now,
	}
}

// Subscribe subscribes to the input topic if not already subscribed.
func (b *InputBridge) Subscribe() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subscribed {
		return nil
	}
	if err := b.transport.Subscribe(b.topic, b.handle); err != nil {
		return err
	}
	b.subscribed = true
	return nil
}

// ClearSubscription forgets the subscription so the next Subscribe
// re-registers it. Call this when the connection drops.
func (b *InputBridge) ClearSubscription() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribed = false
}

// IsSubscribed returns true if the input topic is subscribed.
func (b *InputBridge) IsSubscribed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.subscribed
}

// Topic returns the input topic.
func (b *InputBridge) Topic() string {
	return b.topic
}

// Sources returns the registry of senders seen so far.
func (b *InputBridge) Sources() *SourceRegistry {
	return b.sources
}

func (b *InputBridge) handle(_ paho.Client, msg paho.Message) {
	b.HandlePayload(msg.Payload())
}

// HandlePayload parses and dispatches one command payload. It reports
// whether the sequencer accepted the input.
func (b *InputBridge) HandlePayload(payload []byte) bool {
	now := b.now()

	cmd, err := ParseCommand(payload)
	if err != nil {
		b.sources.record("", now, outcomeRejected)
		events.Emit("warn", "input.rejected", "invalid command", map[string]interface{}{
			"topic": b.topic,
			"error": err.Error(),
		})
		return false
	}

	// Reset is an admin operation. The broker has no notion of roles, so
	// it stays on the authenticated HTTP API.
	if cmd.Action == ActionReset {
		b.sources.record(cmd.Source, now, outcomeRejected)
		events.Emit("warn", "input.rejected", "reset requires the admin API", map[string]interface{}{
			"topic":  b.topic,
			"source": cmd.Source,
			"action": string(cmd.Action),
		})
		return false
	}

	accepted := Dispatch(b.target, cmd)
	if accepted {
		b.sources.record(cmd.Source, now, outcomeAccepted)
	} else {
		b.sources.record(cmd.Source, now, outcomeIgnored)
	}

	fields := map[string]interface{}{
		"via":      "mqtt",
		"source":   cmd.Source,
		"action":   string(cmd.Action),
		"accepted": accepted,
	}
	if cmd.Choice != nil {
		fields["choice"] = *cmd.Choice
	}
	events.Emit("info", "input.received", "", fields)
	return accepted
}
