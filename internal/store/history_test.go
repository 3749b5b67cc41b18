package store

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryStore_AppendAndGet(t *testing.T) {
	s := NewHistoryStore(10)
	fixed := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return fixed })

	s.Append(DefaultUserID, RoleUser, "hi")
	s.Append(DefaultUserID, RoleAssistant, "hello")

	got := s.Get(DefaultUserID)
	require.Len(t, got, 2)
	assert.Equal(t, ChatMessage{Role: RoleUser, Text: "hi", Timestamp: fixed}, got[0])
	assert.Equal(t, RoleAssistant, got[1].Role)
}

func TestHistoryStore_UnknownUserIsEmpty(t *testing.T) {
	s := NewHistoryStore(10)
	got := s.Get("nobody")
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestHistoryStore_BoundDropsOldest(t *testing.T) {
	const capacity = 100
	s := NewHistoryStore(capacity)

	for i := 0; i < capacity+5; i++ {
		s.Append("u1", RoleUser, fmt.Sprintf("m%d", i))
	}

	got := s.Get("u1")
	require.Len(t, got, capacity)
	for i, m := range got {
		assert.Equal(t, fmt.Sprintf("m%d", i+5), m.Text)
	}
}

func TestHistoryStore_GetReturnsCopy(t *testing.T) {
	s := NewHistoryStore(3)
	s.Append("u", RoleUser, "a")

	got := s.Get("u")
	got[0].Text = "mutated"
	assert.Equal(t, "a", s.Get("u")[0].Text)
}

func TestHistoryStore_UsersAreIsolated(t *testing.T) {
	s := NewHistoryStore(3)
	s.Append("a", RoleUser, "from a")
	s.Append("b", RoleUser, "from b")

	assert.Equal(t, 1, s.Len("a"))
	assert.Equal(t, "from b", s.Get("b")[0].Text)
}

func TestHistoryStore_ClearIsIdempotent(t *testing.T) {
	s := NewHistoryStore(3)
	s.Append("u", RoleUser, "a")

	s.Clear("u")
	s.Clear("u")
	s.Clear("never-seen")
	assert.Empty(t, s.Get("u"))
	assert.Equal(t, 0, s.Len("u"))
}

func TestHistoryStore_ConcurrentAppends(t *testing.T) {
	s := NewHistoryStore(1000)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.Append("u", RoleUser, fmt.Sprint(i))
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 50, s.Len("u"))
}

func TestNewHistoryStore_DefaultCapacity(t *testing.T) {
	assert.Equal(t, DefaultHistoryMax, NewHistoryStore(0).Capacity())
}
