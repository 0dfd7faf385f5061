package api

import (
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/AaronLay10/SentientDialogue/internal/dialogue"
	"github.com/AaronLay10/SentientDialogue/internal/events"
	"github.com/AaronLay10/SentientDialogue/internal/version"
)

var metricsState = &MetricsState{}

// MetricsState holds runtime metrics for the /metrics endpoint.
type MetricsState struct {
	mu        sync.RWMutex
	startTime time.Time
	playerID  string
}

// InitMetrics initializes the metrics system. Must be called at startup.
func InitMetrics(playerID string) {
	metricsState.mu.Lock()
	defer metricsState.mu.Unlock()
	metricsState.startTime = time.Now()
	metricsState.playerID = playerID
}

// GetPlayerID returns the player label used by metrics and alerts.
func GetPlayerID() string {
	metricsState.mu.RLock()
	defer metricsState.mu.RUnlock()
	return metricsState.playerID
}

var phases = []dialogue.Phase{
	dialogue.PhaseIdle,
	dialogue.PhaseDelaying,
	dialogue.PhaseRevealing,
	dialogue.PhaseAwaitingAdvance,
	dialogue.PhaseAwaitingChoice,
	dialogue.PhaseFinished,
}

func boolGauge(b bool) int {
	if b {
		return 1
	}
	return 0
}

// metricsHandler returns Prometheus-compatible metrics in text format.
func metricsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	metricsState.mu.RLock()
	startTime := metricsState.startTime
	playerID := metricsState.playerID
	metricsState.mu.RUnlock()

	readiness.mu.RLock()
	mqttConnected := readiness.mqttConnected
	postgresConnected := readiness.postgresConnected
	readiness.mu.RUnlock()

	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "unknown"
	}

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	writeHeader := func(name, mtype, help string) {
		fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		fmt.Fprintf(w, "# TYPE %s %s\n", name, mtype)
	}
	writeMetric := func(name, mtype, help string, value interface{}, labels string) {
		writeHeader(name, mtype, help)
		fmt.Fprintf(w, "%s{%s} %v\n", name, labels, value)
	}

	labels := fmt.Sprintf(`player="%s",instance="%s",version="%s"`, playerID, hostname, version.Version)

	writeMetric("dialogue_uptime_seconds", "gauge",
		"Number of seconds since the player started", time.Since(startTime).Seconds(), labels)
	writeMetric("dialogue_events_total", "counter",
		"Total number of events emitted since startup", events.TotalCount(), labels)
	writeMetric("dialogue_warnings_total", "counter",
		"Total number of warn-level events, e.g. unresolved jump targets", events.WarningCount(), labels)
	writeMetric("dialogue_events_dropped_total", "counter",
		"Events not written to PostgreSQL because the write queue was full", events.DroppedCount(), labels)
	writeMetric("dialogue_mqtt_connected", "gauge",
		"Whether MQTT broker is connected (1) or not (0)", boolGauge(mqttConnected), labels)
	writeMetric("dialogue_postgres_connected", "gauge",
		"Whether PostgreSQL is connected (1) or not (0)", boolGauge(postgresConnected), labels)
	writeMetric("dialogue_ws_clients", "gauge",
		"Number of active WebSocket client connections", events.SubscriberCount(), labels)

	c := currentController()
	if c == nil {
		return
	}
	st := c.Snapshot()

	writeMetric("dialogue_cursor", "gauge",
		"Current event position of the sequencer", st.Cursor, labels)
	writeMetric("dialogue_awaiting_input", "gauge",
		"Whether the dialogue owns player input focus (1) or not (0)", boolGauge(c.IsAwaitingInput()), labels)

	writeHeader("dialogue_phase", "gauge", "Current sequencer phase (1 for the active phase)")
	for _, p := range phases {
		fmt.Fprintf(w, "dialogue_phase{%s,phase=\"%s\"} %d\n", labels, p, boolGauge(st.Phase == p))
	}
}
