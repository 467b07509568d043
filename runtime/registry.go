// Package runtime wires live connections to rooms and handles event
// delivery and background persistence. No domain rules live here.
package runtime

import (
	"sync"

	"parley/contract"
)

type set map[string]struct{}

// Registry tracks live connections and the room each one currently
// occupies. It is distinct from persistent room membership: a user who
// leaves a room stays a member of it, but their sink drops out of the
// room's broadcast set.
type Registry struct {
	mu          sync.RWMutex
	sinks       map[string]contract.EventSink // connection id -> sink
	currentRoom map[string]string             // connection id -> room id
	roomConns   map[string]set                // room id -> connection ids
}

func NewRegistry() *Registry {
	return &Registry{
		sinks:       make(map[string]contract.EventSink),
		currentRoom: make(map[string]string),
		roomConns:   make(map[string]set),
	}
}

// Subscribe registers a connection's sink. Called once at connect time.
func (r *Registry) Subscribe(connID string, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks[connID] = sink
}

// Unsubscribe drops the connection and any room placement. Called on
// disconnect; the sink is gone after this, so in-flight broadcasts
// already resolved against the old set simply no-op into a closed send
// channel.
func (r *Registry) Unsubscribe(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sinks, connID)
	r.leaveLocked(connID)
}

// EnterRoom moves the connection into roomID, leaving any previous
// room first. At most one active room per connection.
func (r *Registry) EnterRoom(connID, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(connID)
	r.currentRoom[connID] = roomID
	if _, ok := r.roomConns[roomID]; !ok {
		r.roomConns[roomID] = make(set)
	}
	r.roomConns[roomID][connID] = struct{}{}
}

func (r *Registry) leaveLocked(connID string) {
	roomID, ok := r.currentRoom[connID]
	if !ok {
		return
	}
	delete(r.currentRoom, connID)
	if conns, ok := r.roomConns[roomID]; ok {
		delete(conns, connID)
		// No empty sets left behind over time.
		if len(conns) == 0 {
			delete(r.roomConns, roomID)
		}
	}
}

// SinksForRoom resolves the sinks of every connection currently in the
// room. The set is fixed at call time: connections entering afterward
// get history replay instead of this broadcast.
func (r *Registry) SinksForRoom(roomID string) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conns, ok := r.roomConns[roomID]
	if !ok {
		return nil
	}
	var active []contract.EventSink
	for connID := range conns {
		if sink, exists := r.sinks[connID]; exists {
			active = append(active, sink)
		}
	}
	return active
}

// AllSinks returns every live connection's sink.
func (r *Registry) AllSinks() []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := make([]contract.EventSink, 0, len(r.sinks))
	for _, sink := range r.sinks {
		all = append(all, sink)
	}
	return all
}

// Sink returns one connection's sink.
func (r *Registry) Sink(connID string) (contract.EventSink, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sink, ok := r.sinks[connID]
	return sink, ok
}
