package ripple

import (
	"sync"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// TriggerRecord is one entry of the introspection history ring.
type TriggerRecord struct {
	Source    EffectInfo `json:"source"`
	Target    EffectInfo `json:"target"`
	ObjectID  uint64     `json:"object"`
	Kind      string     `json:"kind"`
	Evolution string     `json:"evolution"`
}

// History is a bounded ring of trigger records, kept when
// Options.Introspection.EnableHistory is set.
type History struct {
	mu      sync.Mutex
	session string
	size    int
	buf     []TriggerRecord
	next    int
	full    bool
}

func newHistory(size int) *History {
	if size <= 0 {
		size = defaultHistorySize
	}
	return &History{
		session: uuid.NewString(),
		size:    size,
		buf:     make([]TriggerRecord, size),
	}
}

// Session returns the identifier minted for this history ring, so dumps
// from different realms or resets can be told apart.
func (h *History) Session() string { return h.session }

func (h *History) record(rec TriggerRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.buf[h.next] = rec
	h.next++
	if h.next == h.size {
		h.next = 0
		h.full = true
	}
}

// Records returns the retained records, oldest first.
func (h *History) Records() []TriggerRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.full {
		out := make([]TriggerRecord, h.next)
		copy(out, h.buf[:h.next])
		return out
	}
	out := make([]TriggerRecord, 0, h.size)
	out = append(out, h.buf[h.next:]...)
	out = append(out, h.buf[:h.next]...)
	return out
}

// DumpJSON serializes the retained records with the session id.
func (h *History) DumpJSON() ([]byte, error) {
	return json.Marshal(struct {
		Session  string          `json:"session"`
		Triggers []TriggerRecord `json:"triggers"`
	}{Session: h.session, Triggers: h.Records()})
}
