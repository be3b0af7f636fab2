// Package presence tracks which users are reachable over which live
// connections, and groups connections into rooms, one per conversation.
//
// A user is online while at least one of their connections is registered.
// The registry is the only place that maps connections to users; transports
// never keep that association themselves.
package presence

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/timn835/crypto-chat/internal/models"
)

// Conn is a live, authenticated client connection.
type Conn interface {
	ID() string
	UserID() string
	// Send enqueues ev for delivery. It must not block.
	Send(ev models.Event) error
}

type Registry struct {
	mu        sync.RWMutex
	conns     map[string]Conn                // conn id -> conn
	owners    map[string]string              // conn id -> user id
	users     map[string]map[string]Conn     // user id -> conn id -> conn
	rooms     map[string]map[string]Conn     // room id -> conn id -> conn
	connRooms map[string]map[string]struct{} // conn id -> room ids

	liveConnections prometheus.Gauge
	onlineUsers     prometheus.Gauge
}

// NewRegistry builds an empty registry. Either gauge may be nil.
func NewRegistry(liveConnections, onlineUsers prometheus.Gauge) *Registry {
	return &Registry{
		conns:           make(map[string]Conn),
		owners:          make(map[string]string),
		users:           make(map[string]map[string]Conn),
		rooms:           make(map[string]map[string]Conn),
		connRooms:       make(map[string]map[string]struct{}),
		liveConnections: liveConnections,
		onlineUsers:     onlineUsers,
	}
}

// Register records conn as a live connection of userID and reports whether
// it is the user's first one. Registering the same connection twice is a
// no-op that returns false.
func (r *Registry) Register(userID string, conn Conn) (first bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[conn.ID()]; ok {
		return false
	}

	set := r.users[userID]
	if set == nil {
		set = make(map[string]Conn)
		r.users[userID] = set
		first = true
	}
	set[conn.ID()] = conn
	r.conns[conn.ID()] = conn
	r.owners[conn.ID()] = userID

	r.updateGaugesLocked()
	return first
}

// Unregister removes conn from the registry and from every room it joined.
// last is true when its user has no connection left. Unknown connections
// yield ("", false).
func (r *Registry) Unregister(conn Conn) (userID string, last bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := conn.ID()
	userID, ok := r.owners[id]
	if !ok {
		return "", false
	}

	for roomID := range r.connRooms[id] {
		room := r.rooms[roomID]
		delete(room, id)
		if len(room) == 0 {
			delete(r.rooms, roomID)
		}
	}
	delete(r.connRooms, id)
	delete(r.conns, id)
	delete(r.owners, id)

	set := r.users[userID]
	delete(set, id)
	if len(set) == 0 {
		delete(r.users, userID)
		last = true
	}

	r.updateGaugesLocked()
	return userID, last
}

func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users[userID]) > 0
}

// ConnectionsFor returns a snapshot of the live connections of userID.
func (r *Registry) ConnectionsFor(userID string) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Conn, 0, len(r.users[userID]))
	for _, c := range r.users[userID] {
		out = append(out, c)
	}
	return out
}

// Join subscribes conn to roomID. Connections that are not registered are
// ignored.
func (r *Registry) Join(conn Conn, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := conn.ID()
	if _, ok := r.conns[id]; !ok {
		return
	}

	room := r.rooms[roomID]
	if room == nil {
		room = make(map[string]Conn)
		r.rooms[roomID] = room
	}
	room[id] = conn

	joined := r.connRooms[id]
	if joined == nil {
		joined = make(map[string]struct{})
		r.connRooms[id] = joined
	}
	joined[roomID] = struct{}{}
}

// Broadcast sends ev to every member of roomID except exclude, which may be
// nil. It returns the number of successful enqueues.
func (r *Registry) Broadcast(roomID string, ev models.Event, exclude Conn) int {
	r.mu.RLock()
	targets := make([]Conn, 0, len(r.rooms[roomID]))
	for id, c := range r.rooms[roomID] {
		if exclude != nil && id == exclude.ID() {
			continue
		}
		targets = append(targets, c)
	}
	r.mu.RUnlock()

	delivered := 0
	for _, c := range targets {
		if err := c.Send(ev); err == nil {
			delivered++
		}
	}
	return delivered
}

// RoomsOf returns the rooms conn has joined.
func (r *Registry) RoomsOf(conn Conn) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.connRooms[conn.ID()]))
	for roomID := range r.connRooms[conn.ID()] {
		out = append(out, roomID)
	}
	return out
}

// RoomSize reports how many connections are in roomID.
func (r *Registry) RoomSize(roomID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[roomID])
}

func (r *Registry) updateGaugesLocked() {
	if r.liveConnections != nil {
		r.liveConnections.Set(float64(len(r.conns)))
	}
	if r.onlineUsers != nil {
		r.onlineUsers.Set(float64(len(r.users)))
	}
}
