package stream

import (
	"sort"
	"sync"

	"fincore/internal/fetcher"
	"fincore/internal/logger"
)

// Hub tracks live streams by id so they can be managed after the query
// that started them has returned.
type Hub struct {
	mu      sync.RWMutex
	streams map[string]fetcher.Stream
}

func NewHub() *Hub {
	return &Hub{streams: make(map[string]fetcher.Stream)}
}

func (h *Hub) Add(s fetcher.Stream) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.streams[s.ID()] = s
}

func (h *Hub) Get(id string) (fetcher.Stream, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s, ok := h.streams[id]
	return s, ok
}

// List returns the streams ordered by id.
func (h *Hub) List() []fetcher.Stream {
	h.mu.RLock()
	out := make([]fetcher.Stream, 0, len(h.streams))
	for _, s := range h.streams {
		out = append(out, s)
	}
	h.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Remove disconnects and forgets the stream. It reports whether id was known.
func (h *Hub) Remove(id string) bool {
	h.mu.Lock()
	s, ok := h.streams[id]
	delete(h.streams, id)
	h.mu.Unlock()
	if ok {
		if err := s.Disconnect(); err != nil {
			logger.Warnf("stream %s: disconnect: %v", id, err)
		}
	}
	return ok
}

func (h *Hub) CloseAll() {
	h.mu.Lock()
	all := h.streams
	h.streams = make(map[string]fetcher.Stream)
	h.mu.Unlock()
	for id, s := range all {
		if err := s.Disconnect(); err != nil {
			logger.Warnf("stream %s: disconnect: %v", id, err)
		}
	}
}
