package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/AaronLay10/SentientDialogue/internal/events"
)

const (
	// Number of recent events to send on connection unless ?recent= overrides it
	defaultRecentEvents = 50

	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = 54 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Operator consoles are served from other origins on the venue LAN.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// streamFilter selects which events a client receives.
type streamFilter struct {
	prefixes []string
}

// parseStreamFilter reads ?prefix=choice.,reveal. from the request.
func parseStreamFilter(r *http.Request) streamFilter {
	var f streamFilter
	for _, p := range strings.Split(r.URL.Query().Get("prefix"), ",") {
		if p = strings.TrimSpace(p); p != "" {
			f.prefixes = append(f.prefixes, p)
		}
	}
	return f
}

func (f streamFilter) match(e events.Event) bool {
	if len(f.prefixes) == 0 {
		return true
	}
	for _, p := range f.prefixes {
		if strings.HasPrefix(e.Name, p) {
			return true
		}
	}
	return false
}

func recentCount(r *http.Request) int {
	if s := r.URL.Query().Get("recent"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n >= 0 {
			return n
		}
	}
	return defaultRecentEvents
}

// wsEventsHandler handles WebSocket connections for live event streaming.
func wsEventsHandler(w http.ResponseWriter, r *http.Request) {
	filter := parseStreamFilter(r)
	recent := recentCount(r)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}

	sub := events.Subscribe()
	closeConn := func() {
		events.Unsubscribe(sub)
		conn.Close()
	}

	send := func(e events.Event) error {
		data, err := json.Marshal(e)
		if err != nil {
			return nil
		}
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteMessage(websocket.TextMessage, data)
	}

	if recent > 0 {
		for _, e := range events.RecentEvents(recent) {
			if !filter.match(e) {
				continue
			}
			if err := send(e); err != nil {
				log.Printf("ws write recent event failed: %v", err)
				closeConn()
				return
			}
		}
	}

	// Reader goroutine - handles pongs and close messages
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(pongWait))
			return nil
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			closeConn()
			return

		case e, ok := <-sub:
			if !ok {
				// Subscriber channel closed on shutdown
				conn.Close()
				return
			}
			if !filter.match(e) {
				continue
			}
			if err := send(e); err != nil {
				log.Printf("ws write event failed: %v", err)
				closeConn()
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				closeConn()
				return
			}
		}
	}
}
