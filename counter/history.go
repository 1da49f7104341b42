package counter

type slot struct {
	id       string
	side     Side
	lastSeen uint64
	used     bool
}

// History remembers the last side of every identity the counter has seen.
// Entries live in a slot arena, freed slots are reused, and each entry carries the
// frame it was last observed in so identities the tracker has dropped can be evicted.
type History struct {
	slots   []slot
	free    []int
	index   map[string]int
	frame   uint64
	horizon uint64
}

// NewHistory keeps entries for horizon frames after their last sighting.
// A zero horizon keeps them for the whole run.
func NewHistory(horizon uint64) *History {
	return &History{
		index:   make(map[string]int),
		horizon: horizon,
	}
}

func (h *History) Get(id string) (Side, bool) {
	i, ok := h.index[id]
	if !ok {
		return 0, false
	}
	return h.slots[i].side, true
}

func (h *History) Set(id string, side Side) {
	if i, ok := h.index[id]; ok {
		h.slots[i].side = side
		h.slots[i].lastSeen = h.frame
		return
	}
	s := slot{id: id, side: side, lastSeen: h.frame, used: true}
	if n := len(h.free); n > 0 {
		i := h.free[n-1]
		h.free = h.free[:n-1]
		h.slots[i] = s
		h.index[id] = i
		return
	}
	h.slots = append(h.slots, s)
	h.index[id] = len(h.slots) - 1
}

// Touch refreshes the last-seen frame of an existing entry.
func (h *History) Touch(id string) {
	if i, ok := h.index[id]; ok {
		h.slots[i].lastSeen = h.frame
	}
}

func (h *History) Advance(frame uint64) {
	h.frame = frame
}

func (h *History) Remove(id string) bool {
	i, ok := h.index[id]
	if !ok {
		return false
	}
	delete(h.index, id)
	h.slots[i] = slot{}
	h.free = append(h.free, i)
	return true
}

// Evict drops entries not seen for more than horizon frames and reports how many went.
func (h *History) Evict() int {
	if h.horizon == 0 || h.frame <= h.horizon {
		return 0
	}
	cutoff := h.frame - h.horizon
	removed := 0
	for i := range h.slots {
		s := &h.slots[i]
		if s.used && s.lastSeen < cutoff {
			delete(h.index, s.id)
			*s = slot{}
			h.free = append(h.free, i)
			removed++
		}
	}
	return removed
}

func (h *History) Len() int {
	return len(h.index)
}
