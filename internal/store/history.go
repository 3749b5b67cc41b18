package store

import (
	"sync"
	"time"
)

const DefaultHistoryMax = 100

// ring is a fixed-capacity FIFO of messages. When full, each push
// overwrites the oldest slot.
type ring struct {
	buf   []ChatMessage
	start int
	n     int
}

func newRing(capacity int) *ring {
	return &ring{buf: make([]ChatMessage, capacity)}
}

func (r *ring) push(m ChatMessage) {
	if r.n < len(r.buf) {
		r.buf[(r.start+r.n)%len(r.buf)] = m
		r.n++
		return
	}
	r.buf[r.start] = m
	r.start = (r.start + 1) % len(r.buf)
}

func (r *ring) snapshot() []ChatMessage {
	out := make([]ChatMessage, r.n)
	for i := 0; i < r.n; i++ {
		out[i] = r.buf[(r.start+i)%len(r.buf)]
	}
	return out
}

// HistoryStore keeps a bounded, in-memory conversation log per user.
// Nothing is persisted across restarts.
type HistoryStore struct {
	mu       sync.RWMutex
	users    map[string]*ring
	capacity int
	now      func() time.Time
}

func NewHistoryStore(capacity int) *HistoryStore {
	if capacity <= 0 {
		capacity = DefaultHistoryMax
	}
	return &HistoryStore{users: make(map[string]*ring), capacity: capacity, now: time.Now}
}

// SetClock replaces the timestamp source, for tests.
func (s *HistoryStore) SetClock(now func() time.Time) { s.now = now }

func (s *HistoryStore) Capacity() int { return s.capacity }

// Append records a turn for userID, creating the log on first use and
// dropping the oldest message once the capacity is reached.
func (s *HistoryStore) Append(userID string, role Role, text string) ChatMessage {
	msg := ChatMessage{Role: role, Text: text, Timestamp: s.now().UTC()}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.users[userID]
	if !ok {
		r = newRing(s.capacity)
		s.users[userID] = r
	}
	r.push(msg)
	return msg
}

// Get returns a copy of the user's messages, oldest first. Unknown users
// get an empty slice.
func (s *HistoryStore) Get(userID string) []ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.users[userID]
	if !ok {
		return []ChatMessage{}
	}
	return r.snapshot()
}

func (s *HistoryStore) Len(userID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.users[userID]; ok {
		return r.n
	}
	return 0
}

// Clear forgets the user entirely. Clearing an unknown user is a no-op.
func (s *HistoryStore) Clear(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, userID)
}
