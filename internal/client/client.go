package client

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"classlink/pkg/types"
)

const (
	writeTimeout = 5 * time.Second
	pongTimeout  = 60 * time.Second
)

// Handlers receives server-pushed events. All callbacks run on the client's
// read goroutine, one at a time and in arrival order; a slow handler delays
// subsequent events rather than reordering them. Nil entries are skipped.
type Handlers struct {
	OnPeerJoined  func(types.PeerJoined)
	OnPeersInRoom func(types.PeersInRoom)
	OnPeerLeft    func(types.PeerLeft)
	OnOffer       func(from string, sdp []byte)
	OnAnswer      func(from string, sdp []byte)
	OnCandidate   func(from string, candidate []byte)
	OnSystem      func(types.System)
}

// Client is one signaling session against the server. It satisfies the
// coordinator's Signaler interface, so a peer.Coordinator can be wired
// directly on top of it.
type Client struct {
	conn *websocket.Conn

	writeCh   chan *types.Envelope
	done      chan struct{}
	closeOnce sync.Once

	mu       sync.Mutex
	handlers Handlers
	lastErr  error
}

// Dial connects to the server's /ws endpoint and starts the session pumps.
func Dial(ctx context.Context, serverURL string, handlers Handlers) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, serverURL, nil)
	if err != nil {
		return nil, err
	}

	c := &Client{
		conn:     conn,
		handlers: handlers,
		writeCh:  make(chan *types.Envelope, 100),
		done:     make(chan struct{}),
	}

	conn.SetReadDeadline(time.Now().Add(pongTimeout))
	conn.SetPingHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(pongTimeout))
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeTimeout))
	})

	go c.writeLoop()
	go c.readLoop()
	return c, nil
}

// SetHandlers replaces the event handlers. Useful when the handlers need a
// reference to something built on top of the client, like a coordinator.
// The server pushes nothing before join-room, so installing handlers between
// Dial and JoinRoom cannot miss events.
func (c *Client) SetHandlers(handlers Handlers) {
	c.mu.Lock()
	c.handlers = handlers
	c.mu.Unlock()
}

// Authenticate presents a credential. The server never rejects the session
// over a bad token; it falls back to an anonymous identity instead.
func (c *Client) Authenticate(token string) error {
	return c.send(types.EventAuthenticate, types.Authenticate{Token: token})
}

// JoinRoom requests membership in roomID, implicitly leaving any prior room.
func (c *Client) JoinRoom(roomID string) error {
	return c.send(types.EventJoinRoom, types.JoinRoom{RoomID: roomID})
}

// LeaveRoom leaves the current room without closing the session.
func (c *Client) LeaveRoom() error {
	return c.send(types.EventLeaveRoom, nil)
}

// SendOffer relays a session-description offer to a peer in the same room.
func (c *Client) SendOffer(to string, sdp []byte) error {
	return c.send(types.EventOffer, types.Signal{To: to, Offer: sdp})
}

// SendAnswer relays a session-description answer to a peer in the same room.
func (c *Client) SendAnswer(to string, sdp []byte) error {
	return c.send(types.EventAnswer, types.Signal{To: to, Answer: sdp})
}

// SendCandidate relays an ICE candidate to a peer in the same room.
func (c *Client) SendCandidate(to string, candidate []byte) error {
	return c.send(types.EventICECandidate, types.Signal{To: to, Candidate: candidate})
}

// Done is closed when the session ends, whichever side ends it.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err reports what ended the session, nil for a clean local Close.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Close shuts the session down. Idempotent.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		deadline := time.Now().Add(writeTimeout)
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		_ = c.conn.Close()
	})
	return nil
}

func (c *Client) send(event string, payload interface{}) error {
	envelope, err := types.NewEnvelope(event, payload)
	if err != nil {
		return err
	}
	select {
	case c.writeCh <- envelope:
		return nil
	case <-c.done:
		return ErrSessionClosed
	case <-time.After(writeTimeout):
		return ErrWriteTimeout
	}
}

// writeLoop is the sole writer on the connection.
func (c *Client) writeLoop() {
	for {
		select {
		case envelope := <-c.writeCh:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteJSON(envelope); err != nil {
				log.Printf("Signaling write failed: %v", err)
				c.fail(err)
				return
			}
		case <-c.done:
			return
		}
	}
}

// readLoop reads envelopes and dispatches them sequentially so handlers see
// events in the exact order the server sent them.
func (c *Client) readLoop() {
	defer c.Close()

	for {
		var envelope types.Envelope
		if err := c.conn.ReadJSON(&envelope); err != nil {
			select {
			case <-c.done:
			default:
				c.fail(err)
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
		c.dispatch(&envelope)
	}
}

func (c *Client) dispatch(envelope *types.Envelope) {
	c.mu.Lock()
	handlers := c.handlers
	c.mu.Unlock()

	switch envelope.Event {
	case types.EventUserConnected:
		var payload types.PeerJoined
		if err := envelope.Decode(&payload); err != nil {
			log.Printf("Malformed %s payload: %v", envelope.Event, err)
			return
		}
		if handlers.OnPeerJoined != nil {
			handlers.OnPeerJoined(payload)
		}

	case types.EventUsersInRoom:
		var payload types.PeersInRoom
		if err := envelope.Decode(&payload); err != nil {
			log.Printf("Malformed %s payload: %v", envelope.Event, err)
			return
		}
		if handlers.OnPeersInRoom != nil {
			handlers.OnPeersInRoom(payload)
		}

	case types.EventUserDisconnected:
		var payload types.PeerLeft
		if err := envelope.Decode(&payload); err != nil {
			log.Printf("Malformed %s payload: %v", envelope.Event, err)
			return
		}
		if handlers.OnPeerLeft != nil {
			handlers.OnPeerLeft(payload)
		}

	case types.EventOffer, types.EventAnswer, types.EventICECandidate:
		var signal types.Signal
		if err := envelope.Decode(&signal); err != nil {
			log.Printf("Malformed %s payload: %v", envelope.Event, err)
			return
		}
		switch envelope.Event {
		case types.EventOffer:
			if handlers.OnOffer != nil {
				handlers.OnOffer(signal.From, signal.Offer)
			}
		case types.EventAnswer:
			if handlers.OnAnswer != nil {
				handlers.OnAnswer(signal.From, signal.Answer)
			}
		case types.EventICECandidate:
			if handlers.OnCandidate != nil {
				handlers.OnCandidate(signal.From, signal.Candidate)
			}
		}

	case types.EventSystem:
		var payload types.System
		if err := envelope.Decode(&payload); err != nil {
			log.Printf("Malformed %s payload: %v", envelope.Event, err)
			return
		}
		if handlers.OnSystem != nil {
			handlers.OnSystem(payload)
		}

	default:
		log.Printf("Ignoring unknown event from server: %s", envelope.Event)
	}
}

func (c *Client) fail(err error) {
	c.mu.Lock()
	if c.lastErr == nil {
		c.lastErr = err
	}
	c.mu.Unlock()
	c.Close()
}
