package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"classlink/pkg/types"
)

// stubRegistry serves canned registry state.
type stubRegistry struct {
	rooms    map[string][]types.Member
	counters map[string]int
}

func (s *stubRegistry) RoomIDs() []string {
	ids := make([]string, 0, len(s.rooms))
	for id := range s.rooms {
		ids = append(ids, id)
	}
	return ids
}

func (s *stubRegistry) Members(roomID string) []types.Member {
	return s.rooms[roomID]
}

func (s *stubRegistry) Stats() map[string]int {
	return s.counters
}

func newStubRegistry() *stubRegistry {
	return &stubRegistry{
		rooms: map[string][]types.Member{
			"lesson-1": {
				{ID: "conn-a", Role: types.RoleTeacher, Username: "ms-wong"},
				{ID: "conn-b", Role: types.RoleStudent, Username: "amir"},
			},
		},
		counters: map[string]int{"active_rooms": 1, "total_connections": 2},
	}
}

func TestServer_Health(t *testing.T) {
	server := NewServer(newStubRegistry())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected JSON content type, got %q", ct)
	}

	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode health response: %v", err)
	}
	if resp.Status != "healthy" {
		t.Errorf("Expected healthy status, got %q", resp.Status)
	}
	if resp.Connections["total_connections"] != 2 {
		t.Errorf("Expected 2 connections, got %d", resp.Connections["total_connections"])
	}
}

func TestServer_Rooms(t *testing.T) {
	server := NewServer(newStubRegistry())

	req := httptest.NewRequest(http.MethodGet, "/api/rooms", nil)
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var resp RoomsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode rooms response: %v", err)
	}
	if len(resp.Rooms) != 1 {
		t.Fatalf("Expected 1 room, got %d", len(resp.Rooms))
	}
	room := resp.Rooms[0]
	if room.ID != "lesson-1" || room.MemberCount != 2 {
		t.Errorf("Unexpected room summary: %+v", room)
	}
	if len(room.MemberIDs) != 2 || room.MemberIDs[0] != "conn-a" {
		t.Errorf("Member IDs not reported in join order: %v", room.MemberIDs)
	}
}

func TestServer_RoomsEmpty(t *testing.T) {
	server := NewServer(&stubRegistry{rooms: map[string][]types.Member{}})

	req := httptest.NewRequest(http.MethodGet, "/api/rooms", nil)
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	var resp RoomsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode rooms response: %v", err)
	}
	if len(resp.Rooms) != 0 {
		t.Errorf("Expected no rooms, got %v", resp.Rooms)
	}
}

func TestServer_MethodNotAllowed(t *testing.T) {
	server := NewServer(newStubRegistry())

	for _, path := range []string{"/health", "/api/rooms"} {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		rec := httptest.NewRecorder()
		server.ServeHTTP(rec, req)

		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("POST %s: expected 405, got %d", path, rec.Code)
		}
		var resp ErrorResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("Failed to decode error response: %v", err)
		}
		if resp.Code != http.StatusMethodNotAllowed {
			t.Errorf("Error envelope code mismatch: %+v", resp)
		}
	}
}

func TestServer_CORSPreflight(t *testing.T) {
	server := NewServer(newStubRegistry())

	req := httptest.NewRequest(http.MethodOptions, "/health", nil)
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200 for preflight, got %d", rec.Code)
	}
	if origin := rec.Header().Get("Access-Control-Allow-Origin"); origin != "*" {
		t.Errorf("Expected wildcard CORS origin, got %q", origin)
	}
}
