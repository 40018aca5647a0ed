package chathub_test

import (
	"fmt"
	"sync"
	"testing"

	"carelink/backend/internal/chathub"

	"github.com/stretchr/testify/assert"
)

func TestRegistry_RegisterReplacesAndReturnsPrevious(t *testing.T) {
	reg := chathub.NewRegistry()
	first := newMockClient("u1")
	second := newMockClient("u1")

	assert.Nil(t, reg.Register(first))
	prev := reg.Register(second)
	assert.Same(t, first, prev)

	got, ok := reg.Lookup("u1")
	assert.True(t, ok)
	assert.Same(t, second, got)
	assert.Equal(t, 1, reg.Count())
}

func TestRegistry_StaleUnregisterKeepsReplacement(t *testing.T) {
	reg := chathub.NewRegistry()
	first := newMockClient("u1")
	second := newMockClient("u1")
	reg.Register(first)
	reg.Register(second)

	assert.False(t, reg.Unregister(first))
	got, ok := reg.Lookup("u1")
	assert.True(t, ok)
	assert.Same(t, second, got)

	assert.True(t, reg.Unregister(second))
	_, ok = reg.Lookup("u1")
	assert.False(t, ok)
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	reg := chathub.NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := newMockClient(fmt.Sprintf("u%d", i%10))
			reg.Register(c)
			reg.Lookup(c.GetUserID())
			reg.Unregister(c)
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, reg.Count(), 10)
}

func TestRooms_JoinLeave(t *testing.T) {
	rooms := chathub.NewRooms()
	a := newMockClient("a")
	b := newMockClient("b")

	rooms.SubscribeSelf(a)
	rooms.Join("lobby", a)
	rooms.Join("lobby", b)

	assert.Len(t, rooms.Members("lobby"), 2)
	assert.Len(t, rooms.Members("a"), 1)
	assert.ElementsMatch(t, []string{"a", "lobby"}, rooms.RoomsOf(a))

	rooms.Leave("lobby", b)
	assert.Len(t, rooms.Members("lobby"), 1)

	rooms.LeaveAll(a)
	assert.Empty(t, rooms.Members("lobby"))
	assert.Empty(t, rooms.Members("a"))
	assert.Empty(t, rooms.RoomsOf(a))
}
