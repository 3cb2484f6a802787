package radio

import "sync"

// history is a fixed-size ring of recently played identifiers.
type history struct {
	mu   sync.Mutex
	size int
	ring []string
	next int
	seen map[string]bool
}

func newHistory(size int) *history {
	return &history{
		size: size,
		ring: make([]string, 0, size),
		seen: make(map[string]bool, size),
	}
}

func (h *history) add(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.seen[id] {
		return
	}
	if len(h.ring) < h.size {
		h.ring = append(h.ring, id)
	} else {
		delete(h.seen, h.ring[h.next])
		h.ring[h.next] = id
	}
	h.seen[id] = true
	h.next = (h.next + 1) % h.size
}

func (h *history) contains(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.seen[id]
}

func (h *history) clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ring = h.ring[:0]
	h.next = 0
	h.seen = make(map[string]bool, h.size)
}
