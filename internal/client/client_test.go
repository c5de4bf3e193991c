package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"classlink/pkg/types"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// scriptedServer upgrades one connection, pushes the given envelopes and
// records everything the client sends.
type scriptedServer struct {
	url string

	mu       sync.Mutex
	received []*types.Envelope
}

func newScriptedServer(t *testing.T, push []*types.Envelope) *scriptedServer {
	t.Helper()
	s := &scriptedServer{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("Upgrade failed: %v", err)
			return
		}
		for _, env := range push {
			if err := ws.WriteJSON(env); err != nil {
				return
			}
		}
		for {
			var env types.Envelope
			if err := ws.ReadJSON(&env); err != nil {
				return
			}
			s.mu.Lock()
			s.received = append(s.received, &env)
			s.mu.Unlock()
		}
	}))
	t.Cleanup(server.Close)

	s.url = "ws" + strings.TrimPrefix(server.URL, "http")
	return s
}

func (s *scriptedServer) sent() []*types.Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*types.Envelope, len(s.received))
	copy(out, s.received)
	return out
}

func mustEnvelope(t *testing.T, event string, payload interface{}) *types.Envelope {
	t.Helper()
	env, err := types.NewEnvelope(event, payload)
	if err != nil {
		t.Fatalf("Failed to build envelope: %v", err)
	}
	return env
}

func TestClient_DispatchesInOrder(t *testing.T) {
	push := []*types.Envelope{
		mustEnvelope(t, types.EventUsersInRoom, types.PeersInRoom{IDs: []string{}}),
		mustEnvelope(t, "telemetry-probe", nil), // unknown events are skipped
		mustEnvelope(t, types.EventUserConnected, types.PeerJoined{ID: "peer-b", ShouldInitiate: true}),
		mustEnvelope(t, types.EventOffer, types.Signal{From: "peer-b", Offer: []byte(`{"type":"offer"}`)}),
		mustEnvelope(t, types.EventUserDisconnected, types.PeerLeft{ID: "peer-b"}),
	}
	server := newScriptedServer(t, push)

	var mu sync.Mutex
	var order []string
	note := func(event string) {
		mu.Lock()
		order = append(order, event)
		mu.Unlock()
	}

	c, err := Dial(context.Background(), server.url, Handlers{
		OnPeersInRoom: func(types.PeersInRoom) { note("roster") },
		OnPeerJoined:  func(p types.PeerJoined) { note("joined:" + p.ID) },
		OnOffer:       func(from string, _ []byte) { note("offer:" + from) },
		OnPeerLeft:    func(p types.PeerLeft) { note("left:" + p.ID) },
	})
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()

	want := []string{"roster", "joined:peer-b", "offer:peer-b", "left:peer-b"}
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(order)
		mu.Unlock()
		if n == len(want) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(order) != len(want) {
		t.Fatalf("Expected %d events, got %v", len(want), order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("Event %d: expected %s, got %s", i, want[i], order[i])
		}
	}
}

func TestClient_SendsWellFormedEnvelopes(t *testing.T) {
	server := newScriptedServer(t, nil)

	c, err := Dial(context.Background(), server.url, Handlers{})
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()

	if err := c.Authenticate("token-1"); err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if err := c.JoinRoom("lesson-1"); err != nil {
		t.Fatalf("JoinRoom failed: %v", err)
	}
	if err := c.SendOffer("peer-b", []byte(`{"type":"offer"}`)); err != nil {
		t.Fatalf("SendOffer failed: %v", err)
	}
	if err := c.LeaveRoom(); err != nil {
		t.Fatalf("LeaveRoom failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && len(server.sent()) < 4 {
		time.Sleep(5 * time.Millisecond)
	}

	sent := server.sent()
	if len(sent) != 4 {
		t.Fatalf("Expected 4 envelopes, got %d", len(sent))
	}
	wantEvents := []string{types.EventAuthenticate, types.EventJoinRoom, types.EventOffer, types.EventLeaveRoom}
	for i, event := range wantEvents {
		if sent[i].Event != event {
			t.Errorf("Envelope %d: expected %s, got %s", i, event, sent[i].Event)
		}
	}

	var sig types.Signal
	if err := sent[2].Decode(&sig); err != nil {
		t.Fatalf("Failed to decode offer signal: %v", err)
	}
	if sig.To != "peer-b" || len(sig.Offer) == 0 {
		t.Errorf("Offer signal malformed: %+v", sig)
	}
}

func TestClient_SendAfterClose(t *testing.T) {
	server := newScriptedServer(t, nil)

	c, err := Dial(context.Background(), server.url, Handlers{})
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	c.Close()

	if err := c.JoinRoom("lesson-1"); err != ErrSessionClosed {
		t.Errorf("Expected ErrSessionClosed, got %v", err)
	}

	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Error("Done should be closed after Close")
	}
	if err := c.Err(); err != nil {
		t.Errorf("Clean local close should leave no error, got %v", err)
	}
}

func TestClient_ServerCloseEndsSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		ws.Close()
	}))
	t.Cleanup(server.Close)

	c, err := Dial(context.Background(), "ws"+strings.TrimPrefix(server.URL, "http"), Handlers{})
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()

	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Session should end when the server closes")
	}
	if c.Err() == nil {
		t.Error("Abrupt server close should record an error")
	}
}
