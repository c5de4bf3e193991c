package room

import (
	"log"
	"sync"

	"classlink/pkg/interfaces"
	"classlink/pkg/types"
)

// Registry owns the room membership table. It is an injected service object,
// never ambient state: every mutation goes through Join/Leave and membership
// notifications are emitted inside the same critical section that mutates the
// table, so a joining client can never observe a stale or duplicated peer
// list.
type Registry struct {
	mu     sync.Mutex
	rooms  map[string]*state  // roomID -> room state
	byConn map[string]*member // connectionID -> membership (one room at a time)
}

// state holds one materialized room. Rooms are created lazily on first join
// and deleted the moment they empty; no orphan rooms persist.
type state struct {
	id      string
	members map[string]*member
	order   []string // connection IDs in join order
}

type member struct {
	conn   interfaces.Connection
	roomID string
}

// NewRegistry creates an empty room registry.
func NewRegistry() *Registry {
	return &Registry{
		rooms:  make(map[string]*state),
		byConn: make(map[string]*member),
	}
}

// Join implements the membership invariant: a connection occupies at most one
// room, so any prior membership is removed (and its room notified) before the
// connection is added to roomID. Returns the IDs already present, in join
// order.
//
// Notification contract: existing members each receive exactly one
// user-connected event for the newcomer with shouldInitiate=true; the side
// already in the room creates the offer, which removes offer glare without
// role assumptions. The joiner receives exactly one users-in-room event with
// the pre-existing IDs (possibly empty) and shouldInitiate=false.
func (r *Registry) Join(conn interfaces.Connection, roomID string) ([]string, error) {
	if conn == nil {
		return nil, ErrNilConnection
	}
	if !types.IsValidRoomID(roomID) {
		return nil, types.ErrInvalidRoomID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Re-joining the same room counts as a departure plus a fresh join, the
	// same as moving between rooms.
	r.removeLocked(conn)

	st, ok := r.rooms[roomID]
	if !ok {
		st = &state{
			id:      roomID,
			members: make(map[string]*member),
		}
		r.rooms[roomID] = st
	}

	existing := make([]string, len(st.order))
	copy(existing, st.order)

	connID := conn.GetID()
	m := &member{conn: conn, roomID: roomID}
	st.members[connID] = m
	st.order = append(st.order, connID)
	r.byConn[connID] = m
	conn.SetRoomID(roomID)

	identity := conn.GetIdentity()
	joined := types.PeerJoined{
		ID:             connID,
		Role:           identity.Role,
		Username:       identity.Username,
		ShouldInitiate: true,
	}
	for _, id := range existing {
		r.notify(st.members[id].conn, types.EventUserConnected, joined)
	}

	// The joiner always hears users-in-room, even when the list is empty,
	// so waiting-for-peer UI state is driven by the server, not inference.
	r.notify(conn, types.EventUsersInRoom, types.PeersInRoom{
		IDs:            existing,
		ShouldInitiate: false,
	})

	log.Printf("Room join: room=%s conn=%s members=%d", roomID, connID, len(st.order))
	return existing, nil
}

// Leave removes the connection from its current room, if any. Explicit
// leave-room events and transport disconnects both land here; there is no
// second cleanup path.
func (r *Registry) Leave(conn interfaces.Connection) {
	if conn == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(conn)
}

// removeLocked detaches conn from its room, broadcasts the departure to the
// remaining members and garbage-collects the room when it empties.
func (r *Registry) removeLocked(conn interfaces.Connection) {
	connID := conn.GetID()
	m, ok := r.byConn[connID]
	if !ok {
		return
	}

	st := r.rooms[m.roomID]
	delete(r.byConn, connID)
	conn.SetRoomID("")

	if st == nil {
		return
	}

	delete(st.members, connID)
	for i, id := range st.order {
		if id == connID {
			st.order = append(st.order[:i], st.order[i+1:]...)
			break
		}
	}

	if len(st.members) == 0 {
		delete(r.rooms, st.id)
		log.Printf("Room deleted: room=%s", st.id)
		return
	}

	left := types.PeerLeft{ID: connID}
	for _, id := range st.order {
		r.notify(st.members[id].conn, types.EventUserDisconnected, left)
	}
	log.Printf("Room leave: room=%s conn=%s members=%d", st.id, connID, len(st.order))
}

// Lookup returns the connection behind an ID, if it currently occupies a room.
func (r *Registry) Lookup(connectionID string) (interfaces.Connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.byConn[connectionID]
	if !ok {
		return nil, false
	}
	return m.conn, true
}

// SameRoom reports whether two connection IDs share a room right now.
func (r *Registry) SameRoom(a, b string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	ma, ok := r.byConn[a]
	if !ok {
		return false
	}
	mb, ok := r.byConn[b]
	if !ok {
		return false
	}
	return ma.roomID == mb.roomID
}

// Members returns a room's membership in join order, nil for rooms that do
// not exist (deleted rooms are indistinguishable from never-created ones).
func (r *Registry) Members(roomID string) []types.Member {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.rooms[roomID]
	if !ok {
		return nil
	}

	members := make([]types.Member, 0, len(st.order))
	for _, id := range st.order {
		identity := st.members[id].conn.GetIdentity()
		members = append(members, types.Member{
			ID:       id,
			Role:     identity.Role,
			Username: identity.Username,
		})
	}
	return members
}

// RoomIDs returns the IDs of all live rooms, for monitoring.
func (r *Registry) RoomIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.rooms))
	for id := range r.rooms {
		ids = append(ids, id)
	}
	return ids
}

// Stats returns registry counters for the monitoring API.
func (r *Registry) Stats() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return map[string]int{
		"active_rooms":      len(r.rooms),
		"total_connections": len(r.byConn),
	}
}

// notify delivers a membership event. Connection writes are buffered and
// bounded, so holding the registry lock across them keeps event ordering
// consistent for every observer without risking an unbounded stall.
func (r *Registry) notify(conn interfaces.Connection, event string, payload interface{}) {
	env, err := types.NewEnvelope(event, payload)
	if err != nil {
		log.Printf("Failed to build %s event: %v", event, err)
		return
	}
	if err := conn.WriteJSON(env); err != nil {
		log.Printf("Failed to deliver %s to %s: %v", event, conn.GetID(), err)
	}
}
