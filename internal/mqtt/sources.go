package mqtt

import (
	"sort"
	"sync"
	"time"
)

// InputSource holds what the bridge has seen from one remote sender.
type InputSource struct {
	ID       string    `json:"id"`
	LastSeen time.Time `json:"last_seen"`
	Accepted int       `json:"accepted"`
	Ignored  int       `json:"ignored"`
	Rejected int       `json:"rejected"`
}

// SourceRegistry tracks remote input senders by source ID.
type SourceRegistry struct {
	mu      sync.RWMutex
	sources map[string]*InputSource
}

// NewSourceRegistry creates a new empty registry.
func NewSourceRegistry() *SourceRegistry {
	return &SourceRegistry{
		sources: make(map[string]*InputSource),
	}
}

type outcome int

const (
	outcomeAccepted outcome = iota
	outcomeIgnored
	outcomeRejected
)

func (r *SourceRegistry) record(id string, at time.Time, o outcome) {
	if id == "" {
		id = "unknown"
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	src, ok := r.sources[id]
	if !ok {
		src = &InputSource{ID: id}
		r.sources[id] = src
	}
	src.LastSeen = at
	switch o {
	case outcomeAccepted:
		src.Accepted++
	case outcomeIgnored:
		src.Ignored++
	case outcomeRejected:
		src.Rejected++
	}
}

// Get returns a copy of the source, or nil if it was never seen.
func (r *SourceRegistry) Get(id string) *InputSource {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if src, ok := r.sources[id]; ok {
		cpy := *src
		return &cpy
	}
	return nil
}

// All returns copies of every source sorted by ID.
func (r *SourceRegistry) All() []InputSource {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]InputSource, 0, len(r.sources))
	for _, src := range r.sources {
		out = append(out, *src)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Count returns the number of distinct sources.
func (r *SourceRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sources)
}
