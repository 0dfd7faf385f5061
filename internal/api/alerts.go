package api

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/AaronLay10/SentientDialogue/internal/events"
)

// Alert severity levels
const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
	SeverityInfo     = "info"
)

// Alert event types
const (
	AlertMQTTDisconnected    = "mqtt_disconnected"
	AlertPostgresUnavailable = "postgres_unavailable"
	AlertDialogueFault       = "dialogue_fault"
)

// AlertPayload is the JSON structure sent to the webhook.
type AlertPayload struct {
	PlayerID  string                 `json:"player_id"`
	Event     string                 `json:"event"`
	Timestamp string                 `json:"timestamp"`
	Severity  string                 `json:"severity"`
	Message   string                 `json:"message,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// AlertConfig holds alert configuration.
type AlertConfig struct {
	WebhookURL              string        `env:"DIALOGUE_ALERT_WEBHOOK_URL"`
	MQTTDisconnectDelay     time.Duration `env:"DIALOGUE_MQTT_ALERT_DELAY" envDefault:"30s"`
	PostgresDisconnectDelay time.Duration `env:"DIALOGUE_POSTGRES_ALERT_DELAY" envDefault:"5s"`
}

// outage tracks one dependency and fires a single alert per outage.
type outage struct {
	kind      string
	severity  string
	label     string
	delay     time.Duration
	downSince time.Time
	alerted   bool
}

// observe records the current state and returns the alert to send, if any.
func (o *outage) observe(connected bool, now time.Time) *AlertPayload {
	if connected {
		recovered := o.alerted
		o.downSince = time.Time{}
		o.alerted = false
		if recovered {
			return &AlertPayload{Event: o.kind, Severity: SeverityInfo, Message: o.label + " connection restored",
				Details: map[string]interface{}{"recovered_at": now.UTC().Format(time.RFC3339)}}
		}
		return nil
	}

	if o.downSince.IsZero() {
		o.downSince = now
	}
	down := now.Sub(o.downSince)
	if o.alerted || down < o.delay {
		return nil
	}
	o.alerted = true
	return &AlertPayload{Event: o.kind, Severity: o.severity, Message: o.label + " unavailable",
		Details: map[string]interface{}{
			"disconnected_since":   o.downSince.UTC().Format(time.RFC3339),
			"disconnected_seconds": int(down.Seconds()),
		}}
}

var (
	alertMu     sync.Mutex
	alertConfig = &AlertConfig{}
	mqttOutage  = &outage{}
	pgOutage    = &outage{}

	// send is swapped in tests.
	send = sendWebhook
)

// InitAlerts initializes the alert system from environment variables.
func InitAlerts() error {
	var cfg AlertConfig
	if err := env.Parse(&cfg); err != nil {
		return err
	}

	alertMu.Lock()
	defer alertMu.Unlock()

	alertConfig = &cfg
	mqttOutage = &outage{kind: AlertMQTTDisconnected, severity: SeverityWarning, label: "MQTT broker", delay: cfg.MQTTDisconnectDelay}
	pgOutage = &outage{kind: AlertPostgresUnavailable, severity: SeverityCritical, label: "PostgreSQL", delay: cfg.PostgresDisconnectDelay}

	if cfg.WebhookURL != "" {
		log.Printf("Alerts enabled: webhook URL configured (mqtt_delay=%s, pg_delay=%s)",
			cfg.MQTTDisconnectDelay, cfg.PostgresDisconnectDelay)
	}
	return nil
}

// GetAlertWebhookURL returns the configured webhook URL (for testing).
func GetAlertWebhookURL() string {
	alertMu.Lock()
	defer alertMu.Unlock()
	return alertConfig.WebhookURL
}

// SendAlert sends an alert to the configured webhook (best-effort, non-blocking).
func SendAlert(p AlertPayload) {
	alertMu.Lock()
	webhookURL := alertConfig.WebhookURL
	sender := send
	alertMu.Unlock()

	if webhookURL == "" {
		log.Printf("[ALERT] %s severity=%s msg=%q details=%v", p.Event, p.Severity, p.Message, p.Details)
		return
	}

	p.PlayerID = GetPlayerID()
	if p.PlayerID == "" {
		p.PlayerID = "unknown"
	}
	p.Timestamp = time.Now().UTC().Format(time.RFC3339)

	go sender(webhookURL, p)
}

// sendWebhook performs the actual HTTP POST (runs in goroutine).
func sendWebhook(url string, payload AlertPayload) {
	body, err := json.Marshal(payload)
	if err != nil {
		log.Printf("alert: failed to marshal payload: %v", err)
		return
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		log.Printf("alert: webhook POST failed: %v", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		log.Printf("alert: webhook returned status %d", resp.StatusCode)
	}
}

// checkConnections evaluates both dependencies at now.
func checkConnections(now time.Time) {
	readiness.mu.RLock()
	mqttConnected := readiness.mqttConnected
	postgresConnected := readiness.postgresConnected
	readiness.mu.RUnlock()

	alertMu.Lock()
	var pending []*AlertPayload
	if a := mqttOutage.observe(mqttConnected, now); a != nil {
		pending = append(pending, a)
	}
	if a := pgOutage.observe(postgresConnected, now); a != nil {
		pending = append(pending, a)
	}
	alertMu.Unlock()

	for _, a := range pending {
		SendAlert(*a)
	}
}

// dialogueFault converts a warn-level dialogue event into an alert.
// Authoring faults (unresolved targets) are what an operator must fix.
func dialogueFault(e events.Event) *AlertPayload {
	if e.Level != "warn" || !strings.HasPrefix(e.Name, "dialogue.") {
		return nil
	}
	return &AlertPayload{
		Event:    AlertDialogueFault,
		Severity: SeverityWarning,
		Message:  e.Name + ": " + e.Message,
		Details:  e.Fields,
	}
}

// StartAlertMonitor checks connection states every checkInterval and
// forwards dialogue faults as they are emitted, until stop is closed.
func StartAlertMonitor(checkInterval time.Duration, stop <-chan struct{}) {
	sub := events.Subscribe()
	go func() {
		ticker := time.NewTicker(checkInterval)
		defer ticker.Stop()
		defer events.Unsubscribe(sub)

		for {
			select {
			case <-stop:
				return
			case now := <-ticker.C:
				checkConnections(now)
			case e, ok := <-sub:
				if !ok {
					return
				}
				if a := dialogueFault(e); a != nil {
					SendAlert(*a)
				}
			}
		}
	}()
}
