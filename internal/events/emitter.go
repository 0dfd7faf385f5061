package events

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/AaronLay10/SentientDialogue/internal/storage/postgres"
)

var buffer = NewRingBuffer(256)

var (
	pgClient *postgres.Client
	writer   *persister
	pgMu     sync.RWMutex
)

var (
	totalCount   atomic.Int64
	warningCount atomic.Int64
)

// SetPostgresClient sets the Postgres client for event persistence. Rows
// queued for a previous client are written before it returns, so passing
// nil on shutdown flushes the queue.
func SetPostgresClient(client *postgres.Client) {
	pgMu.Lock()
	pgClient = client
	pgMu.Unlock()

	if client == nil {
		setAppender(nil)
		return
	}
	setAppender(client)
}

// GetPostgresClient returns the current Postgres client (for API queries).
func GetPostgresClient() *postgres.Client {
	pgMu.RLock()
	defer pgMu.RUnlock()
	return pgClient
}

type Event struct {
	Timestamp string                 `json:"ts"`
	Level     string                 `json:"level"`
	Name      string                 `json:"event"`
	Message   string                 `json:"msg,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// Emit records an event in the ring buffer, fans it out to subscribers and
// queues it for Postgres when a client is configured. The "sequence_id" field,
// when present, is stored as the session of the row.
func Emit(level, name, msg string, fields map[string]interface{}) ([]byte, error) {
	if err := Validate(name); err != nil {
		return nil, err
	}

	ts := time.Now().UTC()
	e := Event{
		Timestamp: ts.Format(time.RFC3339Nano),
		Level:     level,
		Name:      name,
		Message:   msg,
		Fields:    fields,
	}

	buffer.Add(e)
	totalCount.Add(1)
	if level == "warn" {
		warningCount.Add(1)
	}
	broadcast(e)

	pgMu.RLock()
	if writer != nil {
		sequenceID, _ := fields["sequence_id"].(string)
		writer.enqueue(row{
			ts:         ts,
			level:      level,
			name:       name,
			msg:        msg,
			fields:     fields,
			sequenceID: sequenceID,
		})
	}
	pgMu.RUnlock()

	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}

	return b, nil
}

func Snapshot() []Event {
	return buffer.Snapshot()
}

// TotalCount returns the number of events emitted since startup.
func TotalCount() int64 {
	return totalCount.Load()
}

// WarningCount returns the number of warn-level events emitted since startup.
func WarningCount() int64 {
	return warningCount.Load()
}

// Filter returns the buffered events with the given name, oldest first.
func Filter(name string) []Event {
	var out []Event
	for _, e := range buffer.Snapshot() {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

// Clear resets the event buffer. Used for testing.
func Clear() {
	buffer.Clear()
}
