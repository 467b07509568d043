package runtime

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"parley/protocol"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingSink collects everything consumed, safely across goroutines.
type recordingSink struct {
	mu     sync.Mutex
	events []protocol.Event
}

func (s *recordingSink) Consume(_ context.Context, e protocol.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *recordingSink) types() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.events))
	for i, e := range s.events {
		out[i] = e.Type
	}
	return out
}

func TestRegistry_RoomScoping(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	a, b, c := &recordingSink{}, &recordingSink{}, &recordingSink{}
	registry.Subscribe("conn-a", a)
	registry.Subscribe("conn-b", b)
	registry.Subscribe("conn-c", c)

	registry.EnterRoom("conn-a", "general")
	registry.EnterRoom("conn-b", "general")
	registry.EnterRoom("conn-c", "team")

	req.Len(registry.SinksForRoom("general"), 2)
	req.Len(registry.SinksForRoom("team"), 1)
	req.Empty(registry.SinksForRoom("missing"))
	req.Len(registry.AllSinks(), 3)
}

func TestRegistry_One_Room_At_A_Time(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	registry.Subscribe("conn-a", &recordingSink{})

	registry.EnterRoom("conn-a", "general")
	registry.EnterRoom("conn-a", "team")

	req.Empty(registry.SinksForRoom("general"))
	req.Len(registry.SinksForRoom("team"), 1)
}

func TestRegistry_Unsubscribe_Cleans_Up(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	registry.Subscribe("conn-a", &recordingSink{})
	registry.EnterRoom("conn-a", "general")

	registry.Unsubscribe("conn-a")

	req.Empty(registry.SinksForRoom("general"))
	req.Empty(registry.AllSinks())
}

func TestRouter_ToRoom_Only_Hits_Current_Members(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	router := NewRouter(testLogger(), registry)

	inRoom, elsewhere, joinedLater := &recordingSink{}, &recordingSink{}, &recordingSink{}
	registry.Subscribe("in", inRoom)
	registry.Subscribe("out", elsewhere)
	registry.EnterRoom("in", "general")
	registry.EnterRoom("out", "team")

	router.ToRoom(context.Background(), "general", protocol.TypeChatMessage, protocol.MessageView{Text: "hi"})

	// Joining after the broadcast call must not deliver it live.
	registry.Subscribe("late", joinedLater)
	registry.EnterRoom("late", "general")

	req.Equal([]string{protocol.TypeChatMessage}, inRoom.types())
	req.Empty(elsewhere.types())
	req.Empty(joinedLater.types())
}

func TestRouter_ToAll(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	router := NewRouter(testLogger(), registry)

	a, b := &recordingSink{}, &recordingSink{}
	registry.Subscribe("a", a)
	registry.Subscribe("b", b)
	registry.EnterRoom("a", "general")
	// b is connected but not in any room: all-broadcasts still reach it.

	router.ToAll(context.Background(), protocol.TypeUserList, []protocol.UserView{})

	req.Equal([]string{protocol.TypeUserList}, a.types())
	req.Equal([]string{protocol.TypeUserList}, b.types())
}

func TestRegistry_Concurrent_Access(t *testing.T) {
	registry := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			connID := string(rune('a' + n%26))
			registry.Subscribe(connID, &recordingSink{})
			registry.EnterRoom(connID, "general")
			registry.SinksForRoom("general")
			registry.EnterRoom(connID, "team")
			registry.Unsubscribe(connID)
		}(i)
	}
	wg.Wait()
}
