package session

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionRoster(t *testing.T) {
	s := newSession()

	s.Add("conn-a", Member{Name: "Ada", UserID: "user-a"})
	s.Add("conn-b", Member{Name: "Ben", UserID: "user-b"})
	assert.Equal(t, 2, s.Size())

	m, ok := s.Member("conn-a")
	require.True(t, ok)
	assert.Equal(t, "Ada", m.Name)

	remaining := s.Remove("conn-a")
	assert.Equal(t, 1, remaining)
	_, ok = s.Member("conn-a")
	assert.False(t, ok)
}

func TestSessionRemoveDropsCursor(t *testing.T) {
	s := newSession()
	s.Add("conn-a", Member{Name: "Ada"})
	s.SetCursor("conn-a", Cursor{X: 1, Y: 2, Name: "Ada"})

	s.Remove("conn-a")

	s.mu.RLock()
	defer s.mu.RUnlock()
	assert.Empty(t, s.cursors)
}

func TestSessionMembersSnapshot(t *testing.T) {
	s := newSession()
	s.Add("conn-a", Member{Name: "Ada"})

	snapshot := s.Members()
	s.Add("conn-b", Member{Name: "Ben"})

	// The snapshot is detached from later mutations
	assert.Len(t, snapshot, 1)
	assert.Equal(t, 2, s.Size())
}

func TestRegistryGetOrCreate(t *testing.T) {
	r := NewRegistry()

	s1 := r.GetOrCreate("room-1")
	s2 := r.GetOrCreate("room-1")
	assert.Same(t, s1, s2)

	s3 := r.GetOrCreate("room-2")
	assert.NotSame(t, s1, s3)
	assert.Equal(t, 2, r.RoomCount())
}

func TestRegistryRemove(t *testing.T) {
	r := NewRegistry()
	r.GetOrCreate("room-1")

	r.Remove("room-1")
	_, ok := r.Get("room-1")
	assert.False(t, ok)
	assert.Equal(t, 0, r.RoomCount())
}

func TestRegistryMemberCount(t *testing.T) {
	r := NewRegistry()
	r.GetOrCreate("room-1").Add("conn-a", Member{Name: "Ada"})
	r.GetOrCreate("room-1").Add("conn-b", Member{Name: "Ben"})
	r.GetOrCreate("room-2").Add("conn-c", Member{Name: "Cara"})

	assert.Equal(t, 3, r.MemberCount())
}

func TestRegistryConcurrentAccess(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			s := r.GetOrCreate("room-1")
			s.Add(fmt.Sprintf("conn-%d", n), Member{Name: "user"})
			s.SetCursor(fmt.Sprintf("conn-%d", n), Cursor{X: float64(n)})
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, r.RoomCount())
	assert.Equal(t, 50, r.MemberCount())
}
