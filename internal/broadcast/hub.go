// Package broadcast fans tracking events out to connected observers.
//
// Delivery is at-most-once: an event reaches the subscribers registered at
// publish time whose buffers have room, and nobody else. There is no
// acknowledgement, retry or replay.
package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/puzpuzpuz/xsync/v4"

	"fleet-tracking/internal/logging"
	"fleet-tracking/internal/metrics"
)

// Events published by the tracking subsystem.
const (
	EventPositionUpdate  = "position-update"
	EventGeofenceAlert   = "geofence-alert"
	EventTrackingStarted = "tracking-started"
	EventTrackingStopped = "tracking-stopped"
)

var (
	ErrUnknownConnection = errors.New("unknown connection")
	ErrEmptyRoom         = errors.New("room name is empty")
)

// Scope selects who receives a published event.
type Scope struct {
	room string
}

// Global delivers to every open connection.
var Global = Scope{}

// Room delivers only to connections joined to name.
func Room(name string) Scope {
	return Scope{room: name}
}

// WorkerRoom is the room observers join to follow one worker.
func WorkerRoom(workerID string) string {
	return "worker-" + workerID
}

func (s Scope) IsGlobal() bool { return s.room == "" }

// RoomName returns the room, or "" for the global scope.
func (s Scope) RoomName() string { return s.room }

func (s Scope) String() string {
	if s.IsGlobal() {
		return "global"
	}
	return "room:" + s.room
}

// Envelope is the wire format of every event.
type Envelope struct {
	Event string          `json:"event"`
	Room  string          `json:"room,omitempty"`
	Data  json.RawMessage `json:"data"`
}

// Encode marshals payload into an envelope for scope.
func Encode(scope Scope, event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", event, err)
	}
	return json.Marshal(Envelope{Event: event, Room: scope.room, Data: data})
}

// Publisher publishes events. Hub and NATSBridge implement it.
type Publisher interface {
	Publish(ctx context.Context, scope Scope, event string, payload any) error
}

// Subscriber is one open connection.
type Subscriber interface {
	ID() string
	// Send queues msg without blocking and reports whether it was accepted.
	Send(msg []byte) bool
}

// Hub is an in-process connection registry with room membership.
type Hub struct {
	conns *xsync.Map[string, Subscriber]

	mu          sync.RWMutex
	rooms       map[string]map[string]Subscriber
	memberships map[string]map[string]struct{}

	logger  logging.Logger
	metrics metrics.Collector
}

var _ Publisher = (*Hub)(nil)

func NewHub(logger logging.Logger, mc metrics.Collector) *Hub {
	if logger == nil {
		logger = logging.NewNop()
	}
	if mc == nil {
		mc = metrics.NewNop()
	}
	return &Hub{
		conns:       xsync.NewMap[string, Subscriber](),
		rooms:       make(map[string]map[string]Subscriber),
		memberships: make(map[string]map[string]struct{}),
		logger:      logger,
		metrics:     mc,
	}
}

// Subscribe registers sub in the global scope and joins the given rooms.
// Registering an ID twice replaces the previous subscriber.
func (h *Hub) Subscribe(sub Subscriber, rooms ...string) {
	if _, loaded := h.conns.LoadAndStore(sub.ID(), sub); loaded {
		h.leaveAll(sub.ID())
	}
	for _, room := range rooms {
		if room == "" {
			continue
		}
		_ = h.Join(sub.ID(), room)
	}

	h.metrics.Subscribers(h.conns.Size())
	h.logger.Debug("subscriber connected", "conn_id", sub.ID(), "rooms", rooms)
}

// Join adds a registered connection to room.
func (h *Hub) Join(connID, room string) error {
	if room == "" {
		return ErrEmptyRoom
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	sub, ok := h.conns.Load(connID)
	if !ok {
		return ErrUnknownConnection
	}

	members, ok := h.rooms[room]
	if !ok {
		members = make(map[string]Subscriber)
		h.rooms[room] = members
	}
	members[connID] = sub

	joined, ok := h.memberships[connID]
	if !ok {
		joined = make(map[string]struct{})
		h.memberships[connID] = joined
	}
	joined[room] = struct{}{}

	return nil
}

// Leave removes a connection from room. Leaving a room it is not in is a no-op.
func (h *Hub) Leave(connID, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.removeFromRoom(connID, room)
	if joined, ok := h.memberships[connID]; ok {
		delete(joined, room)
		if len(joined) == 0 {
			delete(h.memberships, connID)
		}
	}
}

// Unsubscribe removes the connection from the registry and all rooms.
func (h *Hub) Unsubscribe(connID string) {
	if _, ok := h.conns.LoadAndDelete(connID); !ok {
		return
	}
	h.leaveAll(connID)

	h.metrics.Subscribers(h.conns.Size())
	h.logger.Debug("subscriber disconnected", "conn_id", connID)
}

func (h *Hub) leaveAll(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for room := range h.memberships[connID] {
		h.removeFromRoom(connID, room)
	}
	delete(h.memberships, connID)
}

// removeFromRoom must be called with h.mu held.
func (h *Hub) removeFromRoom(connID, room string) {
	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

// Publish encodes payload and delivers it to the subscribers in scope.
func (h *Hub) Publish(_ context.Context, scope Scope, event string, payload any) error {
	msg, err := Encode(scope, event, payload)
	if err != nil {
		return err
	}
	h.Deliver(scope, event, msg)
	return nil
}

// Deliver hands an encoded envelope to every subscriber in scope and returns
// how many accepted it.
func (h *Hub) Deliver(scope Scope, event string, msg []byte) int {
	delivered := 0
	send := func(sub Subscriber) {
		if sub.Send(msg) {
			delivered++
			return
		}
		h.metrics.EventDropped(event)
		h.logger.Debug("event dropped for slow subscriber", "event", event, "conn_id", sub.ID())
	}

	if scope.IsGlobal() {
		h.conns.Range(func(_ string, sub Subscriber) bool {
			send(sub)
			return true
		})
	} else {
		h.mu.RLock()
		members := make([]Subscriber, 0, len(h.rooms[scope.room]))
		for _, sub := range h.rooms[scope.room] {
			members = append(members, sub)
		}
		h.mu.RUnlock()

		for _, sub := range members {
			send(sub)
		}
	}

	h.metrics.EventPublished(event, delivered)
	return delivered
}

// Count returns the number of registered connections.
func (h *Hub) Count() int {
	return h.conns.Size()
}

// RoomSize returns the number of connections joined to room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}
