package rooms

import (
	"sort"
	"sync"
)

// Registry maps an auction to the connections currently watching it.
// A room exists only while it has members.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]map[string]struct{} // key: auctionID -> value: set of connectionIDs
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[string]map[string]struct{}),
	}
}

// Join adds connID to the auction's room, creating it if needed, and returns the member count
func (r *Registry) Join(auctionID, connID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[auctionID]
	if !ok {
		room = make(map[string]struct{})
		r.rooms[auctionID] = room
	}
	room[connID] = struct{}{}
	return len(room)
}

// Leave removes connID from the auction's room. It returns the remaining member count and
// whether connID was a member. An emptied room is deleted.
func (r *Registry) Leave(auctionID, connID string) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[auctionID]
	if !ok {
		return 0, false
	}
	if _, member := room[connID]; !member {
		return len(room), false
	}

	delete(room, connID)
	if len(room) == 0 {
		delete(r.rooms, auctionID)
		return 0, true
	}
	return len(room), true
}

// Members returns the connection ids in the auction's room, sorted
func (r *Registry) Members(auctionID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room := r.rooms[auctionID]
	out := make([]string, 0, len(room))
	for id := range room {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Count returns the number of members in the auction's room
func (r *Registry) Count(auctionID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[auctionID])
}

// Remove deletes the room and returns its former members
func (r *Registry) Remove(auctionID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[auctionID]
	if !ok {
		return nil
	}
	delete(r.rooms, auctionID)

	out := make([]string, 0, len(room))
	for id := range room {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Snapshot returns the member count of every room
func (r *Registry) Snapshot() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]int, len(r.rooms))
	for id, room := range r.rooms {
		out[id] = len(room)
	}
	return out
}

// RoomCount returns the number of non-empty rooms
func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}
