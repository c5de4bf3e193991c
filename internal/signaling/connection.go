package signaling

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"classlink/pkg/types"
)

// Connection wraps one WebSocket transport channel to a browser peer.
// WebSocket writes are serialized through a single writer goroutine; no
// business logic lives here beyond identity/room bookkeeping.
type Connection struct {
	id        string
	conn      *websocket.Conn
	writeCh   chan []byte // 100 buffer absorbs signaling bursts (ICE trickle)
	identity  types.Identity
	roomID    string
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	mu        sync.RWMutex // protects identity and roomID
}

// NewConnection creates a connection handle around an upgraded WebSocket.
// The identity starts as the anonymous fallback; authentication upgrades it
// later, best-effort.
func NewConnection(id string, conn *websocket.Conn) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		id:       id,
		conn:     conn,
		writeCh:  make(chan []byte, 100),
		identity: types.AnonymousIdentity(id),
		ctx:      ctx,
		cancel:   cancel,
	}

	go c.writeLoop()

	return c
}

// writeLoop is the single writer goroutine for this connection. On exit it
// cancels the connection context rather than closing writeCh: concurrent
// WriteJSON callers gate on the context, and closing the channel under them
// would turn a dead transport into a send panic.
func (c *Connection) writeLoop() {
	defer c.cancel()

	for {
		select {
		case data := <-c.writeCh:
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

// WriteJSON queues a JSON message for the writer goroutine.
func (c *Connection) WriteJSON(v interface{}) error {
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}

	data, err := json.Marshal(v)
	if err != nil {
		return ErrInvalidJSON
	}

	select {
	case c.writeCh <- data:
		return nil
	case <-time.After(5 * time.Second):
		return ErrWriteTimeout
	case <-c.ctx.Done():
		return ErrConnectionClosed
	}
}

// WriteEvent wraps a payload in an envelope and queues it.
func (c *Connection) WriteEvent(event string, payload interface{}) error {
	env, err := types.NewEnvelope(event, payload)
	if err != nil {
		return err
	}
	return c.WriteJSON(env)
}

// Close cancels the writer goroutine and closes the underlying transport.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		if c.conn != nil {
			err = c.conn.Close()
		}
	})
	return err
}

// Done exposes the connection's lifetime for per-connection goroutines.
func (c *Connection) Done() <-chan struct{} {
	return c.ctx.Done()
}

// GetID returns the server-assigned connection ID.
func (c *Connection) GetID() string {
	return c.id
}

// GetIdentity returns the resolved (or anonymous) identity.
func (c *Connection) GetIdentity() types.Identity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.identity
}

// SetIdentity installs the identity produced by the resolver.
func (c *Connection) SetIdentity(identity types.Identity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.identity = identity
}

// GetRoomID returns the current room, "" when the connection is in none.
func (c *Connection) GetRoomID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.roomID
}

// SetRoomID records the current room. Only the room registry calls this.
func (c *Connection) SetRoomID(roomID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roomID = roomID
}
