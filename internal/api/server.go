package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/AaronLay10/SentientDialogue/internal/dialogue"
	"github.com/AaronLay10/SentientDialogue/internal/events"
	"github.com/AaronLay10/SentientDialogue/internal/mqtt"
	"github.com/AaronLay10/SentientDialogue/internal/storage/postgres"
)

// Controller is the dialogue surface the API drives. The sequencer
// implements it.
type Controller interface {
	mqtt.Target
	Snapshot() dialogue.State
	IsAwaitingInput() bool
}

// SourceLister reports remote input senders seen by the MQTT bridge.
type SourceLister interface {
	All() []mqtt.InputSource
}

var (
	controllerMu sync.RWMutex
	controller   Controller
	sources      SourceLister
)

// SetController sets the sequencer used by the dialogue endpoints.
func SetController(c Controller) {
	controllerMu.Lock()
	controller = c
	controllerMu.Unlock()
}

// SetSourceLister sets where /inputs/sources reads from.
func SetSourceLister(l SourceLister) {
	controllerMu.Lock()
	sources = l
	controllerMu.Unlock()
}

func currentController() Controller {
	controllerMu.RLock()
	defer controllerMu.RUnlock()
	return controller
}

// readinessState tracks what /ready reports.
type readinessState struct {
	mu                sync.RWMutex
	dialogueReady     bool
	mqttConnected     bool
	mqttOptional      bool
	postgresConnected bool
	postgresOptional  bool
}

var readiness = &readinessState{}

// SetDialogueReady marks whether a dialogue graph is loaded and ticking.
func SetDialogueReady(ready bool) {
	readiness.mu.Lock()
	readiness.dialogueReady = ready
	readiness.mu.Unlock()
}

// SetMQTTState records the broker connection and whether it is required.
func SetMQTTState(connected, optional bool) {
	readiness.mu.Lock()
	readiness.mqttConnected = connected
	readiness.mqttOptional = optional
	readiness.mu.Unlock()
}

// SetPostgresState records the database connection and whether it is required.
func SetPostgresState(connected, optional bool) {
	readiness.mu.Lock()
	readiness.postgresConnected = connected
	readiness.postgresOptional = optional
	readiness.mu.Unlock()
}

type HealthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Hostname  string `json:"hostname"`
	Timestamp string `json:"ts"`
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	host, _ := os.Hostname()
	resp := HealthResponse{
		Status:    "ok",
		Service:   "dialogue",
		Hostname:  host,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// CheckStatus is one dependency line of the readiness report.
type CheckStatus struct {
	Status   string `json:"status"`
	Optional bool   `json:"optional,omitempty"`
}

type ReadinessResponse struct {
	Ready       bool                   `json:"ready"`
	Checks      map[string]CheckStatus `json:"checks"`
	NotReadyMsg string                 `json:"message,omitempty"`
}

func dependencyCheck(name string, connected, optional bool, reasons *[]string) CheckStatus {
	switch {
	case connected:
		return CheckStatus{Status: "ok", Optional: optional}
	case optional:
		return CheckStatus{Status: "unavailable", Optional: true}
	default:
		*reasons = append(*reasons, name+" not connected")
		return CheckStatus{Status: "not_ready"}
	}
}

func readyHandler(w http.ResponseWriter, r *http.Request) {
	readiness.mu.RLock()
	dialogueReady := readiness.dialogueReady
	mqttConnected, mqttOptional := readiness.mqttConnected, readiness.mqttOptional
	pgConnected, pgOptional := readiness.postgresConnected, readiness.postgresOptional
	readiness.mu.RUnlock()

	var reasons []string
	checks := make(map[string]CheckStatus)

	if dialogueReady {
		checks["dialogue"] = CheckStatus{Status: "ok"}
	} else {
		checks["dialogue"] = CheckStatus{Status: "not_ready"}
		reasons = append(reasons, "dialogue not loaded")
	}
	checks["mqtt"] = dependencyCheck("mqtt", mqttConnected, mqttOptional, &reasons)
	checks["postgres"] = dependencyCheck("postgres", pgConnected, pgOptional, &reasons)

	resp := ReadinessResponse{
		Ready:  len(reasons) == 0,
		Checks: checks,
	}
	w.Header().Set("Content-Type", "application/json")
	if !resp.Ready {
		resp.NotReadyMsg = strings.Join(reasons, "; ")
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(resp)
}

func eventsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if name := r.URL.Query().Get("name"); name != "" {
		_ = json.NewEncoder(w).Encode(events.Filter(name))
		return
	}
	_ = json.NewEncoder(w).Encode(events.Snapshot())
}

// eventsHistoryHandler serves persisted events from Postgres.
func eventsHistoryHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	client := events.GetPostgresClient()
	if client == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(InputResponse{OK: false, Error: "event history not configured"})
		return
	}

	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(InputResponse{OK: false, Error: "invalid limit"})
			return
		}
		limit = n
	}

	rows, err := client.Query(postgres.ClampLimit(limit))
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(InputResponse{OK: false, Error: "query failed"})
		return
	}
	if rows == nil {
		rows = []postgres.EventRow{}
	}
	_ = json.NewEncoder(w).Encode(rows)
}

func stateHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	c := currentController()
	if c == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(InputResponse{OK: false, Error: "dialogue not loaded"})
		return
	}
	_ = json.NewEncoder(w).Encode(StateResponse{
		State:         c.Snapshot(),
		AwaitingInput: c.IsAwaitingInput(),
	})
}

type StateResponse struct {
	dialogue.State
	AwaitingInput bool `json:"awaiting_input"`
}

type ChoiceRequest struct {
	Choice *int `json:"choice"`
}

type InputResponse struct {
	OK       bool            `json:"ok"`
	Accepted bool            `json:"accepted"`
	Error    string          `json:"error,omitempty"`
	State    *dialogue.State `json:"state,omitempty"`
}

// inputHandler applies a body-less input action such as skip or begin.
func inputHandler(action mqtt.Action) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		applyInput(w, r, &mqtt.Command{Version: 1, Action: action})
	}
}

func choiceHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		_ = json.NewEncoder(w).Encode(InputResponse{OK: false, Error: "method not allowed"})
		return
	}

	var req ChoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(InputResponse{OK: false, Error: "invalid JSON"})
		return
	}
	if req.Choice == nil {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(InputResponse{OK: false, Error: "choice required"})
		return
	}

	applyInput(w, r, &mqtt.Command{Version: 1, Action: mqtt.ActionChoice, Choice: req.Choice})
}

// applyInput dispatches cmd to the controller. An input the current phase
// ignores is still a 200: redundant presses are not errors.
func applyInput(w http.ResponseWriter, r *http.Request, cmd *mqtt.Command) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		_ = json.NewEncoder(w).Encode(InputResponse{OK: false, Error: "method not allowed"})
		return
	}

	c := currentController()
	if c == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(InputResponse{OK: false, Error: "dialogue not loaded"})
		return
	}

	accepted := mqtt.Dispatch(c, cmd)

	fields := map[string]interface{}{
		"via":      "http",
		"action":   string(cmd.Action),
		"accepted": accepted,
	}
	if cmd.Choice != nil {
		fields["choice"] = *cmd.Choice
	}
	if role := RoleFrom(r.Context()); role != "" {
		fields["role"] = string(role)
	}
	events.Emit("info", "input.received", "", fields)

	st := c.Snapshot()
	_ = json.NewEncoder(w).Encode(InputResponse{OK: true, Accepted: accepted, State: &st})
}

func sourcesHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	controllerMu.RLock()
	l := sources
	controllerMu.RUnlock()

	if l == nil {
		_ = json.NewEncoder(w).Encode([]mqtt.InputSource{})
		return
	}
	_ = json.NewEncoder(w).Encode(l.All())
}

// NewMux builds the routing table. Input endpoints need the operator or
// admin role; reset needs admin.
func NewMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", uiHandler)
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/ready", readyHandler)
	mux.HandleFunc("/metrics", metricsHandler)
	mux.HandleFunc("/events", RequireAnyRole(eventsHandler))
	mux.HandleFunc("/events/history", RequireAnyRole(eventsHistoryHandler))
	mux.HandleFunc("/ws/events", RequireAnyRole(wsEventsHandler))
	mux.HandleFunc("/dialogue/state", RequireAnyRole(stateHandler))
	for _, action := range []mqtt.Action{mqtt.ActionSkip, mqtt.ActionAdvance, mqtt.ActionPress, mqtt.ActionBegin, mqtt.ActionReset} {
		mux.HandleFunc("/dialogue/"+string(action), RequireInput(action, inputHandler(action)))
	}
	mux.HandleFunc("/dialogue/choice", RequireInput(mqtt.ActionChoice, choiceHandler))
	mux.HandleFunc("/inputs/sources", RequireAnyRole(sourcesHandler))
	return mux
}

// ListenAndServe starts the API server on the given port.
// It blocks until the server exits. TLS is used when configured.
func ListenAndServe(port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           NewMux(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if tlsCfg := LoadTLSConfig(); tlsCfg != nil {
		srv.TLSConfig = tlsCfg
		log.Printf("API listening on %s (TLS)\n", srv.Addr)
		return srv.ListenAndServeTLS("", "")
	}

	log.Printf("API listening on %s\n", srv.Addr)
	return srv.ListenAndServe()
}

// Start starts the API server in a goroutine.
// Errors are logged but do not stop the caller.
func Start(port int) {
	go func() {
		if err := ListenAndServe(port); err != nil {
			log.Printf("api server error: %v", err)
		}
	}()
}
