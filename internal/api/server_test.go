package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/AaronLay10/SentientDialogue/internal/config"
	"github.com/AaronLay10/SentientDialogue/internal/dialogue"
	"github.com/AaronLay10/SentientDialogue/internal/events"
	"github.com/AaronLay10/SentientDialogue/internal/mqtt"
)

// fakeController records calls and accepts whatever accept allows.
type fakeController struct {
	mu      sync.Mutex
	calls   []string
	choices []int
	accept  bool
	state   dialogue.State
}

func (f *fakeController) record(call string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return f.accept
}

func (f *fakeController) Skip() bool    { return f.record("skip") }
func (f *fakeController) Advance() bool { return f.record("advance") }
func (f *fakeController) Press() bool   { return f.record("press") }
func (f *fakeController) Begin() bool   { return f.record("begin") }
func (f *fakeController) Reset()        { f.record("reset") }

func (f *fakeController) SelectChoice(k int) bool {
	f.mu.Lock()
	f.choices = append(f.choices, k)
	f.mu.Unlock()
	return f.record("choice")
}

func (f *fakeController) Snapshot() dialogue.State { return f.state }
func (f *fakeController) IsAwaitingInput() bool    { return f.state.Phase.IsRunning() }

func (f *fakeController) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type staticSources []mqtt.InputSource

func (s staticSources) All() []mqtt.InputSource { return s }

func withController(t *testing.T, c Controller) {
	t.Helper()
	SetController(c)
	t.Cleanup(func() { SetController(nil) })
}

func setReadiness(dialogueReady, mqttConnected, mqttOptional, pgConnected, pgOptional bool) {
	SetDialogueReady(dialogueReady)
	SetMQTTState(mqttConnected, mqttOptional)
	SetPostgresState(pgConnected, pgOptional)
}

func TestHealthEndpoint(t *testing.T) {
	clearTLSEnv(t)
	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	healthHandler(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}

	var resp HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("expected status 'ok', got '%s'", resp.Status)
	}
	if resp.Service != "dialogue" {
		t.Errorf("expected service 'dialogue', got '%s'", resp.Service)
	}
}

func TestReadyEndpoint(t *testing.T) {
	clearTLSEnv(t)
	defer setReadiness(false, false, false, false, false)

	tests := []struct {
		name           string
		dialogue       bool
		mqtt, mqttOpt  bool
		pg, pgOpt      bool
		wantCode       int
		wantChecks     map[string]string
		wantMsgContain string
	}{
		{"all ready", true, true, false, true, false, http.StatusOK,
			map[string]string{"dialogue": "ok", "mqtt": "ok", "postgres": "ok"}, ""},
		{"dialogue not loaded", false, true, false, true, false, http.StatusServiceUnavailable,
			map[string]string{"dialogue": "not_ready"}, "dialogue not loaded"},
		{"mqtt required and down", true, false, false, true, false, http.StatusServiceUnavailable,
			map[string]string{"mqtt": "not_ready"}, "mqtt not connected"},
		{"optional dependencies down", true, false, true, false, true, http.StatusOK,
			map[string]string{"mqtt": "unavailable", "postgres": "unavailable"}, ""},
		{"postgres required and down", true, true, false, false, false, http.StatusServiceUnavailable,
			map[string]string{"postgres": "not_ready"}, "postgres not connected"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setReadiness(tt.dialogue, tt.mqtt, tt.mqttOpt, tt.pg, tt.pgOpt)

			w := httptest.NewRecorder()
			readyHandler(w, httptest.NewRequest("GET", "/ready", nil))

			if w.Code != tt.wantCode {
				t.Errorf("expected status %d, got %d", tt.wantCode, w.Code)
			}

			var resp ReadinessResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp.Ready != (tt.wantCode == http.StatusOK) {
				t.Errorf("unexpected ready=%v", resp.Ready)
			}
			for name, status := range tt.wantChecks {
				if got := resp.Checks[name].Status; got != status {
					t.Errorf("check %s: expected '%s', got '%s'", name, status, got)
				}
			}
			if !strings.Contains(resp.NotReadyMsg, tt.wantMsgContain) {
				t.Errorf("expected message containing %q, got %q", tt.wantMsgContain, resp.NotReadyMsg)
			}
		})
	}
}

func TestInputEndpointsDispatch(t *testing.T) {
	clearTLSEnv(t)
	resetAuth()
	fc := &fakeController{accept: true, state: dialogue.State{Cursor: 2, Phase: dialogue.PhaseRevealing}}
	withController(t, fc)

	mux := NewMux()
	for _, action := range []string{"skip", "advance", "press", "begin", "reset"} {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest("POST", "/dialogue/"+action, nil))

		if w.Code != http.StatusOK {
			t.Fatalf("%s: expected status 200, got %d", action, w.Code)
		}
		var resp InputResponse
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatalf("%s: failed to decode response: %v", action, err)
		}
		if !resp.OK || !resp.Accepted {
			t.Errorf("%s: expected ok and accepted, got %+v", action, resp)
		}
		if resp.State == nil || resp.State.Cursor != 2 {
			t.Errorf("%s: expected state with cursor 2, got %+v", action, resp.State)
		}
	}

	want := []string{"skip", "advance", "press", "begin", "reset"}
	got := fc.Calls()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("expected calls %v, got %v", want, got)
	}
}

func TestInputIgnoredIsNotAnError(t *testing.T) {
	clearTLSEnv(t)
	resetAuth()
	withController(t, &fakeController{accept: false})

	w := httptest.NewRecorder()
	NewMux().ServeHTTP(w, httptest.NewRequest("POST", "/dialogue/skip", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	var resp InputResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.OK || resp.Accepted {
		t.Errorf("expected ok=true accepted=false, got %+v", resp)
	}
}

func TestInputEmitsReceivedEvent(t *testing.T) {
	clearTLSEnv(t)
	resetAuth()
	events.Clear()
	withController(t, &fakeController{accept: true})

	w := httptest.NewRecorder()
	NewMux().ServeHTTP(w, httptest.NewRequest("POST", "/dialogue/advance", nil))

	got := events.Filter("input.received")
	if len(got) != 1 {
		t.Fatalf("expected 1 input.received event, got %d", len(got))
	}
	if got[0].Fields["via"] != "http" || got[0].Fields["action"] != "advance" {
		t.Errorf("unexpected fields: %v", got[0].Fields)
	}
}

func TestInputRequiresPost(t *testing.T) {
	clearTLSEnv(t)
	resetAuth()
	withController(t, &fakeController{accept: true})

	w := httptest.NewRecorder()
	NewMux().ServeHTTP(w, httptest.NewRequest("GET", "/dialogue/skip", nil))

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status 405, got %d", w.Code)
	}
}

func TestInputWithoutController(t *testing.T) {
	clearTLSEnv(t)
	resetAuth()
	SetController(nil)

	for _, path := range []string{"/dialogue/skip", "/dialogue/state"} {
		method := "POST"
		if path == "/dialogue/state" {
			method = "GET"
		}
		w := httptest.NewRecorder()
		NewMux().ServeHTTP(w, httptest.NewRequest(method, path, nil))
		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("%s: expected status 503, got %d", path, w.Code)
		}
	}
}

func TestChoiceEndpoint(t *testing.T) {
	clearTLSEnv(t)
	resetAuth()
	fc := &fakeController{accept: true}
	withController(t, fc)
	mux := NewMux()

	tests := []struct {
		name     string
		body     string
		wantCode int
	}{
		{"valid", `{"choice":1}`, http.StatusOK},
		{"zero index", `{"choice":0}`, http.StatusOK},
		{"missing choice", `{}`, http.StatusBadRequest},
		{"invalid json", `{choice`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest("POST", "/dialogue/choice", strings.NewReader(tt.body)))
			if w.Code != tt.wantCode {
				t.Errorf("expected status %d, got %d", tt.wantCode, w.Code)
			}
		})
	}

	fc.mu.Lock()
	defer fc.mu.Unlock()
	if len(fc.choices) != 2 || fc.choices[0] != 1 || fc.choices[1] != 0 {
		t.Errorf("expected choices [1 0], got %v", fc.choices)
	}
}

func TestStateEndpoint(t *testing.T) {
	clearTLSEnv(t)
	resetAuth()
	withController(t, &fakeController{state: dialogue.State{
		SequenceID:   "intro",
		Cursor:       1,
		Phase:        dialogue.PhaseAwaitingChoice,
		RevealedText: "Which way?",
		Choices:      []dialogue.DialogueChoice{{Label: "Left", TargetIndex: 2}},
	}})

	w := httptest.NewRecorder()
	NewMux().ServeHTTP(w, httptest.NewRequest("GET", "/dialogue/state", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	var resp StateResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.SequenceID != "intro" || resp.Cursor != 1 || resp.Phase != dialogue.PhaseAwaitingChoice {
		t.Errorf("unexpected state: %+v", resp.State)
	}
	if !resp.AwaitingInput {
		t.Error("expected awaiting_input=true while awaiting a choice")
	}
	if len(resp.Choices) != 1 || resp.Choices[0].Label != "Left" {
		t.Errorf("unexpected choices: %+v", resp.Choices)
	}
}

func TestSourcesEndpoint(t *testing.T) {
	clearTLSEnv(t)
	resetAuth()
	mux := NewMux()

	SetSourceLister(nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest("GET", "/inputs/sources", nil))
	if strings.TrimSpace(w.Body.String()) != "[]" {
		t.Errorf("expected empty list, got %s", w.Body.String())
	}

	SetSourceLister(staticSources{{ID: "pad-1", Accepted: 3}})
	defer SetSourceLister(nil)

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest("GET", "/inputs/sources", nil))
	var got []mqtt.InputSource
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(got) != 1 || got[0].ID != "pad-1" || got[0].Accepted != 3 {
		t.Errorf("unexpected sources: %+v", got)
	}
}

func TestEventsEndpointFilter(t *testing.T) {
	clearTLSEnv(t)
	resetAuth()
	events.Clear()
	events.Emit("info", "event.started", "", nil)
	events.Emit("info", "choice.presented", "", nil)
	events.Emit("info", "event.started", "", nil)

	w := httptest.NewRecorder()
	NewMux().ServeHTTP(w, httptest.NewRequest("GET", "/events?name=event.started", nil))

	var got []events.Event
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 filtered events, got %d", len(got))
	}
}

func TestEventsHistoryWithoutPostgres(t *testing.T) {
	clearTLSEnv(t)
	resetAuth()
	events.SetPostgresClient(nil)

	w := httptest.NewRecorder()
	NewMux().ServeHTTP(w, httptest.NewRequest("GET", "/events/history", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", w.Code)
	}
}

func TestResetRequiresAdmin(t *testing.T) {
	clearTLSEnv(t)
	defer resetAuth()
	InitAuth(&config.Credentials{
		AdminUser:    "admin",
		AdminPass:    "secret",
		OperatorUser: "operator",
		OperatorPass: "opsecret",
	})
	fc := &fakeController{accept: true}
	withController(t, fc)
	mux := NewMux()

	tests := []struct {
		path       string
		user, pass string
		wantCode   int
	}{
		{"/dialogue/skip", "operator", "opsecret", http.StatusOK},
		{"/dialogue/reset", "operator", "opsecret", http.StatusForbidden},
		{"/dialogue/reset", "admin", "secret", http.StatusOK},
		{"/dialogue/skip", "", "", http.StatusUnauthorized},
	}

	events.Clear()
	for _, tt := range tests {
		req := httptest.NewRequest("POST", tt.path, nil)
		if tt.user != "" {
			req.SetBasicAuth(tt.user, tt.pass)
		}
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, req)
		if w.Code != tt.wantCode {
			t.Errorf("%s as %q: expected status %d, got %d", tt.path, tt.user, tt.wantCode, w.Code)
		}
	}

	received := events.Filter("input.received")
	if len(received) != 2 {
		t.Fatalf("expected 2 input.received events, got %d", len(received))
	}
	if received[0].Fields["role"] != "operator" || received[1].Fields["role"] != "admin" {
		t.Errorf("expected operator then admin roles, got %v and %v", received[0].Fields["role"], received[1].Fields["role"])
	}

	want := "skip,reset"
	if got := strings.Join(fc.Calls(), ","); got != want {
		t.Errorf("expected calls %s, got %s", want, got)
	}
}

func TestHealthIsPublic(t *testing.T) {
	clearTLSEnv(t)
	defer resetAuth()
	InitAuth(&config.Credentials{AdminUser: "admin", AdminPass: "secret"})

	w := httptest.NewRecorder()
	NewMux().ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))
	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
}

func TestUIServedOnlyAtRoot(t *testing.T) {
	clearTLSEnv(t)
	resetAuth()
	mux := NewMux()

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "Sentient Dialogue") {
		t.Errorf("expected operator page, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest("GET", "/nope", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", w.Code)
	}
}
