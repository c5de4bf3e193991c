package signaling

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"classlink/pkg/types"
)

// connPair upgrades one WebSocket and hands back both ends: the server-side
// Connection and the raw client socket.
func connPair(t *testing.T) (*Connection, *websocket.Conn) {
	t.Helper()
	connCh := make(chan *Connection, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wsConn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("Upgrade failed: %v", err)
			return
		}
		connCh <- NewConnection("test-conn", wsConn)
	}))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Failed to dial: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	conn := <-connCh
	t.Cleanup(func() { _ = conn.Close() })
	return conn, client
}

func TestConnection_WriteEventReachesClient(t *testing.T) {
	conn, client := connPair(t)

	payload := types.System{Event: "status", Message: "hello"}
	if err := conn.WriteEvent(types.EventSystem, payload); err != nil {
		t.Fatalf("WriteEvent failed: %v", err)
	}

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	var env types.Envelope
	if err := client.ReadJSON(&env); err != nil {
		t.Fatalf("Client read failed: %v", err)
	}
	if env.Event != types.EventSystem {
		t.Errorf("Expected %s, got %s", types.EventSystem, env.Event)
	}
	var sys types.System
	if err := env.Decode(&sys); err != nil {
		t.Fatalf("Failed to decode payload: %v", err)
	}
	if sys.Message != "hello" {
		t.Errorf("Payload altered in transit: %+v", sys)
	}
}

func TestConnection_ConcurrentWriters(t *testing.T) {
	conn, client := connPair(t)

	// Registry and relay may deliver to the same connection at once; the
	// single-writer goroutine must keep every frame intact.
	const writers = 10
	for i := 0; i < writers; i++ {
		go func() {
			_ = conn.WriteEvent(types.EventSystem, types.System{Event: "burst"})
		}()
	}

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	for i := 0; i < writers; i++ {
		var env types.Envelope
		if err := client.ReadJSON(&env); err != nil {
			t.Fatalf("Frame %d corrupted or missing: %v", i, err)
		}
		if env.Event != types.EventSystem {
			t.Errorf("Frame %d: unexpected event %s", i, env.Event)
		}
	}
}

func TestConnection_WriteAfterClose(t *testing.T) {
	conn, _ := connPair(t)

	if err := conn.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := conn.WriteJSON(map[string]string{"k": "v"}); err != ErrConnectionClosed {
		t.Errorf("Expected ErrConnectionClosed, got %v", err)
	}

	// Close is idempotent.
	if err := conn.Close(); err != nil {
		t.Errorf("Second close should be a no-op, got %v", err)
	}

	select {
	case <-conn.Done():
	default:
		t.Error("Done channel should be closed after Close")
	}
}

func TestConnection_WriteAfterTransportFailure(t *testing.T) {
	conn, client := connPair(t)

	// Sever the raw TCP stream without calling Close, as a crashed client
	// would.
	_ = conn.conn.UnderlyingConn().Close()
	_ = client.Close()

	// The next queued write hits the dead transport and stops the writer
	// goroutine, which must end the connection's lifetime.
	_ = conn.WriteEvent(types.EventSystem, types.System{Event: "status"})

	select {
	case <-conn.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Writer exit should cancel the connection context")
	}

	// Registry and relay keep delivering to departed members for a moment;
	// those writes must fail cleanly, never panic.
	for i := 0; i < 5; i++ {
		if err := conn.WriteJSON(map[string]string{"k": "v"}); err != ErrConnectionClosed {
			t.Fatalf("Write %d after writer exit: expected ErrConnectionClosed, got %v", i, err)
		}
	}
}

func TestConnection_IdentityAndRoomBookkeeping(t *testing.T) {
	conn, _ := connPair(t)

	if conn.GetID() != "test-conn" {
		t.Errorf("Expected test-conn, got %s", conn.GetID())
	}

	// Starts anonymous, keyed by the connection ID.
	identity := conn.GetIdentity()
	if identity != types.AnonymousIdentity("test-conn") {
		t.Errorf("Expected anonymous identity, got %+v", identity)
	}

	resolved := types.Identity{UserID: "u1", Username: "amir", Role: types.RoleStudent}
	conn.SetIdentity(resolved)
	if conn.GetIdentity() != resolved {
		t.Errorf("Identity not installed: %+v", conn.GetIdentity())
	}

	if conn.GetRoomID() != "" {
		t.Errorf("Expected no room initially, got %q", conn.GetRoomID())
	}
	conn.SetRoomID("lesson-1")
	if conn.GetRoomID() != "lesson-1" {
		t.Errorf("Room not recorded: %q", conn.GetRoomID())
	}
}

func TestConnection_UnmarshalableValue(t *testing.T) {
	conn, _ := connPair(t)

	if err := conn.WriteJSON(make(chan int)); err != ErrInvalidJSON {
		t.Errorf("Expected ErrInvalidJSON, got %v", err)
	}
}
