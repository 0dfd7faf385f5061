package events

import (
	"sync/atomic"
	"time"
)

// persistQueueSize bounds the rows waiting for the database. Emit never
// blocks on a full queue; the row is dropped and counted instead.
const persistQueueSize = 1024

// appender stores one event row. *postgres.Client implements it.
type appender interface {
	Append(ts time.Time, level, event, msg string, fields map[string]interface{}, sequenceID string) error
}

type row struct {
	ts         time.Time
	level      string
	name       string
	msg        string
	fields     map[string]interface{}
	sequenceID string
}

var droppedCount atomic.Int64

// persister writes rows on its own goroutine so database latency never
// reaches the caller of Emit.
type persister struct {
	rows chan row
	done chan struct{}
}

func startPersister(a appender) *persister {
	p := &persister{
		rows: make(chan row, persistQueueSize),
		done: make(chan struct{}),
	}
	go p.run(a)
	return p
}

func (p *persister) run(a appender) {
	defer close(p.done)

	errorLogged := false
	for r := range p.rows {
		err := a.Append(r.ts, r.level, r.name, r.msg, r.fields, r.sequenceID)
		if err == nil || errorLogged {
			continue
		}
		// Report once, straight to the buffer. Going through Emit would
		// queue another row for the same failing database.
		errorLogged = true
		e := Event{
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
			Level:     "error",
			Name:      "system.error",
			Message:   "postgres append failed",
			Fields:    map[string]interface{}{"error": err.Error()},
		}
		buffer.Add(e)
		broadcast(e)
	}
}

func (p *persister) enqueue(r row) {
	select {
	case p.rows <- r:
	default:
		droppedCount.Add(1)
	}
}

// stop drains the queued rows and waits for the writer to exit.
func (p *persister) stop() {
	close(p.rows)
	<-p.done
}

// setAppender swaps the persistence target. The previous writer is
// drained before setAppender returns; a nil appender disables persistence.
func setAppender(a appender) {
	pgMu.Lock()
	prev := writer
	writer = nil
	if a != nil {
		writer = startPersister(a)
	}
	pgMu.Unlock()

	if prev != nil {
		prev.stop()
	}
}

// DroppedCount returns the number of events not persisted because the
// write queue was full.
func DroppedCount() int64 {
	return droppedCount.Load()
}
