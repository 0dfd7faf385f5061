package postgres

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/lib/pq"
)

// EventRow represents a dialogue event stored in Postgres.
type EventRow struct {
	EventID    int64                  `json:"event_id"`
	Timestamp  time.Time              `json:"ts"`
	Level      string                 `json:"level"`
	Event      string                 `json:"event"`
	Message    *string                `json:"msg,omitempty"`
	Fields     map[string]interface{} `json:"fields,omitempty"`
	PlayerID   string                 `json:"player_id"`
	SequenceID *string                `json:"sequence_id,omitempty"`
}

// Options holds connection settings.
type Options struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// DSN builds a lib/pq key/value connection string.
// The password is omitted when empty.
func (o Options) DSN() string {
	parts := []string{
		"host=" + orDefault(o.Host, "127.0.0.1"),
		fmt.Sprintf("port=%d", orDefaultInt(o.Port, 5432)),
		"user=" + orDefault(o.User, "sentient"),
	}
	if o.Password != "" {
		parts = append(parts, "password="+o.Password)
	}
	parts = append(parts,
		"dbname="+orDefault(o.Database, "sentient"),
		"sslmode="+orDefault(o.SSLMode, "disable"),
	)
	return strings.Join(parts, " ")
}

// Client manages the Postgres connection for dialogue event storage.
type Client struct {
	db       *sql.DB
	playerID string

	mu          sync.Mutex
	errorLogged bool
}

// New opens a connection, verifies it and creates the events table.
// Callers treat an error as "run without persistence".
func New(opts Options, playerID string) (*Client, error) {
	db, err := sql.Open("postgres", opts.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	client := &Client{
		db:       db,
		playerID: playerID,
	}

	if err := client.createTable(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create dialogue_events table: %w", err)
	}

	return client, nil
}

func orDefault(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

func orDefaultInt(v, def int) int {
	if v != 0 {
		return v
	}
	return def
}

func (c *Client) createTable() error {
	query := `
		CREATE TABLE IF NOT EXISTS dialogue_events (
			event_id    BIGSERIAL PRIMARY KEY,
			ts          TIMESTAMPTZ NOT NULL,
			level       TEXT NOT NULL,
			event       TEXT NOT NULL,
			msg         TEXT,
			fields      JSONB,
			player_id   TEXT NOT NULL,
			sequence_id TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_dialogue_events_ts ON dialogue_events(ts DESC);
		CREATE INDEX IF NOT EXISTS idx_dialogue_events_player ON dialogue_events(player_id);
	`
	_, err := c.db.Exec(query)
	return err
}

// Append inserts an event into the database.
func (c *Client) Append(ts time.Time, level, event, msg string, fields map[string]interface{}, sequenceID string) error {
	var fieldsJSON []byte
	var err error
	if fields != nil {
		fieldsJSON, err = json.Marshal(fields)
		if err != nil {
			return fmt.Errorf("failed to marshal fields: %w", err)
		}
	}

	var msgPtr *string
	if msg != "" {
		msgPtr = &msg
	}

	var seqPtr *string
	if sequenceID != "" {
		seqPtr = &sequenceID
	}

	query := `
		INSERT INTO dialogue_events (ts, level, event, msg, fields, player_id, sequence_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = c.db.Exec(query, ts, level, event, msgPtr, fieldsJSON, c.playerID, seqPtr)
	return err
}

// ClampLimit bounds a query limit to [1, 10000], defaulting to 200.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return 200
	}
	if limit > 10000 {
		return 10000
	}
	return limit
}

// Query returns the last N events for this player in descending order by timestamp.
func (c *Client) Query(limit int) ([]EventRow, error) {
	query := `
		SELECT event_id, ts, level, event, msg, fields, player_id, sequence_id
		FROM dialogue_events
		WHERE player_id = $1
		ORDER BY ts DESC
		LIMIT $2
	`
	rows, err := c.db.Query(query, c.playerID, ClampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []EventRow
	for rows.Next() {
		var e EventRow
		var fieldsJSON []byte
		var msg, sequenceID sql.NullString

		if err := rows.Scan(&e.EventID, &e.Timestamp, &e.Level, &e.Event, &msg, &fieldsJSON, &e.PlayerID, &sequenceID); err != nil {
			return nil, err
		}

		if msg.Valid {
			e.Message = &msg.String
		}
		if sequenceID.Valid {
			e.SequenceID = &sequenceID.String
		}
		if len(fieldsJSON) > 0 {
			if err := json.Unmarshal(fieldsJSON, &e.Fields); err != nil {
				return nil, fmt.Errorf("failed to unmarshal fields: %w", err)
			}
		}

		events = append(events, e)
	}

	return events, rows.Err()
}

// Ping reports whether the database is reachable.
func (c *Client) Ping() error {
	if c == nil || c.db == nil {
		return fmt.Errorf("postgres client not initialized")
	}
	return c.db.Ping()
}

// Close closes the database connection.
func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// MarkErrorLogged marks that an error has been logged (to avoid spam).
func (c *Client) MarkErrorLogged() {
	c.mu.Lock()
	c.errorLogged = true
	c.mu.Unlock()
}

// HasLoggedError returns true if an error has been logged.
func (c *Client) HasLoggedError() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errorLogged
}
