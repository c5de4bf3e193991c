package hub

import (
	"context"
	"log"
	"sync"
	"time"

	"classlink/internal/relay"
	"classlink/pkg/interfaces"
	"classlink/pkg/types"
)

// Hub serializes all room-membership and relay traffic onto one goroutine.
// The registry keeps its own mutex for read paths, but every mutation arrives
// through the hub's single run loop, which gives the whole signaling core the
// event-dispatch scheduling model the protocol was designed under: handlers
// run to completion before the next event is looked at.
type Hub struct {
	joinChannel   chan *joinRequest
	leaveChannel  chan interfaces.Connection
	signalChannel chan *signalRequest // 1000 buffer absorbs ICE trickle bursts
	shutdownCh    chan struct{}

	registry interfaces.RoomRegistry
	relay    *relay.Relay

	running bool
	mu      sync.RWMutex
}

type joinRequest struct {
	conn   interfaces.Connection
	roomID string
}

type signalRequest struct {
	conn  interfaces.Connection
	event string
	sig   *types.Signal
}

// NewHub creates a hub over the given registry and relay.
func NewHub(registry interfaces.RoomRegistry, rly *relay.Relay) *Hub {
	return &Hub{
		joinChannel:   make(chan *joinRequest, 100),
		leaveChannel:  make(chan interfaces.Connection, 100),
		signalChannel: make(chan *signalRequest, 1000),
		shutdownCh:    make(chan struct{}),
		registry:      registry,
		relay:         rly,
	}
}

// Start begins hub processing.
func (h *Hub) Start(ctx context.Context) error {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return ErrHubAlreadyRunning
	}
	h.running = true
	h.mu.Unlock()

	log.Println("Starting signaling hub...")
	go h.run(ctx)

	return nil
}

// Stop shuts the hub down. Queued events are abandoned; connection teardown
// still cleans membership through the registry when sockets close.
func (h *Hub) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.running {
		return ErrHubNotRunning
	}
	h.running = false

	log.Println("Stopping signaling hub...")

	select {
	case <-h.shutdownCh:
		// already closed
	default:
		close(h.shutdownCh)
	}

	return nil
}

// Join queues a room join for the connection.
func (h *Hub) Join(conn interfaces.Connection, roomID string) error {
	if err := h.checkRunning(); err != nil {
		return err
	}

	select {
	case h.joinChannel <- &joinRequest{conn: conn, roomID: roomID}:
		return nil
	default:
		return ErrJoinChannelFull
	}
}

// Leave queues membership cleanup for the connection. Used for both explicit
// leave-room events and transport disconnects.
func (h *Hub) Leave(conn interfaces.Connection) error {
	if err := h.checkRunning(); err != nil {
		return err
	}

	// Leave must not be droppable: a lost leave strands a ghost member in
	// the room until its socket dies. Block briefly rather than shed.
	select {
	case h.leaveChannel <- conn:
		return nil
	case <-time.After(5 * time.Second):
		return ErrLeaveChannelFull
	case <-h.shutdownCh:
		return ErrHubNotRunning
	}
}

// Signal queues a relay forward.
func (h *Hub) Signal(conn interfaces.Connection, event string, sig *types.Signal) error {
	if err := h.checkRunning(); err != nil {
		return err
	}

	select {
	case h.signalChannel <- &signalRequest{conn: conn, event: event, sig: sig}:
		return nil
	default:
		return ErrSignalChannelFull
	}
}

func (h *Hub) checkRunning() error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.running {
		return ErrHubNotRunning
	}
	return nil
}

// run is the single event loop. Individual failures are logged and processing
// continues; nothing a client sends can stop the loop.
func (h *Hub) run(ctx context.Context) {
	defer log.Println("Hub processing stopped")

	for {
		select {
		case req := <-h.joinChannel:
			if _, err := h.registry.Join(req.conn, req.roomID); err != nil {
				log.Printf("Join failed: conn=%s room=%s err=%v", req.conn.GetID(), req.roomID, err)
			}

		case conn := <-h.leaveChannel:
			h.registry.Leave(conn)

		case req := <-h.signalChannel:
			if err := h.relay.Forward(req.conn, req.event, req.sig); err != nil {
				log.Printf("Relay rejected signal: event=%s from=%s err=%v", req.event, req.conn.GetID(), err)
			}

		case <-h.shutdownCh:
			log.Println("Hub shutdown requested")
			return

		case <-ctx.Done():
			log.Println("Hub context cancelled")
			return
		}
	}
}
