package signaling

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"classlink/pkg/interfaces"
	"classlink/pkg/types"
)

// WebSocket upgrader shared by all handler instances. Origin checking is left
// open; room authorization happens before the signaling URL is ever handed to
// a client.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	HandshakeTimeout: 10 * time.Second,
}

// Dispatcher is the hub-facing contract the handler forwards room and relay
// events through. Implemented by hub.Hub; kept as an interface so handler
// tests can capture dispatched events directly.
type Dispatcher interface {
	Join(conn interfaces.Connection, roomID string) error
	Leave(conn interfaces.Connection) error
	Signal(conn interfaces.Connection, event string, sig *types.Signal) error
}

// Options carries the transport timings the handler applies per connection.
type Options struct {
	PingInterval time.Duration
	ReadTimeout  time.Duration
}

// Handler accepts WebSocket connections and turns frames into dispatched
// signaling events. It owns nothing but transport concerns: identity
// resolution, membership and relay all happen behind the Dispatcher.
type Handler struct {
	dispatcher   Dispatcher
	resolver     interfaces.IdentityResolver
	audit        interfaces.AuditRecorder
	pingInterval time.Duration
	readTimeout  time.Duration
}

// NewHandler creates a WebSocket handler. Zero-valued options fall back to
// the 30s ping / 60s read deadline pairing.
func NewHandler(dispatcher Dispatcher, resolver interfaces.IdentityResolver, audit interfaces.AuditRecorder, opts Options) *Handler {
	if opts.PingInterval <= 0 {
		opts.PingInterval = 30 * time.Second
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 60 * time.Second
	}
	return &Handler{
		dispatcher:   dispatcher,
		resolver:     resolver,
		audit:        audit,
		pingInterval: opts.PingInterval,
		readTimeout:  opts.ReadTimeout,
	}
}

// HandleWebSocket upgrades the request and starts the connection lifecycle.
// Connections are useful before authentication: identity is advisory and the
// relay works for anonymous peers.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	conn := NewConnection(uuid.New().String(), wsConn)
	h.record(conn.GetID(), "connected", r.RemoteAddr)
	log.Printf("Connection established: id=%s remote=%s", conn.GetID(), r.RemoteAddr)

	go h.handleConnection(conn, wsConn)
}

// handleConnection runs the read pump and heartbeat for one connection.
// Transport disconnect funnels into the same leave path as an explicit
// leave-room so membership cleanup cannot diverge.
func (h *Handler) handleConnection(conn *Connection, wsConn *websocket.Conn) {
	defer func() {
		if err := h.dispatcher.Leave(conn); err != nil {
			log.Printf("Leave on disconnect failed: id=%s err=%v", conn.GetID(), err)
		}
		h.record(conn.GetID(), "disconnected", "")
		_ = conn.Close()
		log.Printf("Connection closed: id=%s", conn.GetID())
	}()

	if err := wsConn.SetReadDeadline(time.Now().Add(h.readTimeout)); err != nil {
		log.Printf("Failed to set read deadline: %v", err)
		return
	}
	wsConn.SetPongHandler(func(string) error {
		return wsConn.SetReadDeadline(time.Now().Add(h.readTimeout))
	})

	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ticker.C:
				if err := wsConn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
					return
				}
			case <-conn.Done():
				return
			}
		}
	}()

	for {
		messageType, data, err := wsConn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: id=%s err=%v", conn.GetID(), err)
			}
			break
		}

		if messageType == websocket.TextMessage {
			h.dispatch(conn, data)
		}
	}
}

// dispatch decodes one envelope and routes it to the right component.
// Malformed frames are logged and dropped; they never terminate the
// connection.
func (h *Handler) dispatch(conn *Connection, data []byte) {
	var env types.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Printf("Malformed envelope from %s: %v", conn.GetID(), err)
		return
	}

	switch env.Event {
	case types.EventAuthenticate:
		h.handleAuthenticate(conn, &env)

	case types.EventJoinRoom:
		h.handleJoinRoom(conn, &env)

	case types.EventLeaveRoom:
		if err := h.dispatcher.Leave(conn); err != nil {
			log.Printf("Leave failed: id=%s err=%v", conn.GetID(), err)
		}

	case types.EventOffer, types.EventAnswer, types.EventICECandidate:
		h.handleSignal(conn, &env)

	default:
		log.Printf("Dropping frame from %s: %v (%q)", conn.GetID(), ErrUnknownEvent, env.Event)
	}
}

func (h *Handler) handleAuthenticate(conn *Connection, env *types.Envelope) {
	var p types.Authenticate
	if err := env.Decode(&p); err != nil {
		// A missing payload downgrades to anonymous, same as a bad token.
		p.Token = ""
	}

	identity := h.resolver.Resolve(conn.GetID(), p.Token)
	conn.SetIdentity(identity)
	log.Printf("Connection authenticated: id=%s user=%s role=%s", conn.GetID(), identity.Username, identity.Role)
}

func (h *Handler) handleJoinRoom(conn *Connection, env *types.Envelope) {
	var p types.JoinRoom
	if err := env.Decode(&p); err != nil {
		h.sendSystem(conn, "join_rejected", "join-room payload is malformed")
		return
	}

	if !types.IsValidRoomID(p.RoomID) {
		h.sendSystem(conn, "join_rejected", types.ErrInvalidRoomID.Error())
		return
	}

	if err := h.dispatcher.Join(conn, p.RoomID); err != nil {
		log.Printf("Join failed: id=%s room=%s err=%v", conn.GetID(), p.RoomID, err)
		h.sendSystem(conn, "join_rejected", "could not join room")
	}
}

func (h *Handler) handleSignal(conn *Connection, env *types.Envelope) {
	var sig types.Signal
	if err := env.Decode(&sig); err != nil {
		log.Printf("Malformed %s payload from %s", env.Event, conn.GetID())
		return
	}

	if err := h.dispatcher.Signal(conn, env.Event, &sig); err != nil {
		// Relay errors are diagnostics only; unicast stays fire-and-forget.
		log.Printf("Signal dropped: event=%s from=%s to=%s err=%v", env.Event, conn.GetID(), sig.To, err)
	}
}

func (h *Handler) sendSystem(conn *Connection, event, message string) {
	if err := conn.WriteEvent(types.EventSystem, types.System{Event: event, Message: message}); err != nil {
		log.Printf("Failed to send system event to %s: %v", conn.GetID(), err)
	}
}

func (h *Handler) record(connectionID, event, detail string) {
	if h.audit == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.audit.Record(ctx, connectionID, event, detail); err != nil {
		log.Printf("Audit record failed: event=%s err=%v", event, err)
	}
}
