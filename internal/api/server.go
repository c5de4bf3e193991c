package api

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"classlink/pkg/types"
)

// Registry is the read-only registry view the API needs; kept narrow so the
// server never reaches into membership mutation paths.
type Registry interface {
	RoomIDs() []string
	Members(roomID string) []types.Member
	Stats() map[string]int
}

// Server exposes the monitoring surface: health and live room occupancy.
// Class scheduling CRUD lives in the platform's REST API, not here; this
// server reports on ephemeral signaling state only.
type Server struct {
	registry  Registry
	router    *http.ServeMux
	startTime time.Time
}

// NewServer creates the monitoring API server.
func NewServer(registry Registry) *Server {
	s := &Server{
		registry:  registry,
		router:    http.NewServeMux(),
		startTime: time.Now(),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Handle("/health", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.healthCheck))))
	s.router.Handle("/api/rooms", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.handleRooms))))
}

// ServeHTTP implements http.Handler for integration with the standard server.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// HealthResponse reports process liveness and registry counters.
type HealthResponse struct {
	Status        string         `json:"status"`
	Timestamp     time.Time      `json:"timestamp"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	Connections   map[string]int `json:"connections"`
}

// RoomSummary describes one live room without exposing member identities
// beyond what peers in the room already see.
type RoomSummary struct {
	ID          string   `json:"id"`
	MemberCount int      `json:"member_count"`
	MemberIDs   []string `json:"member_ids"`
}

// RoomsResponse lists the live rooms.
type RoomsResponse struct {
	Rooms []RoomSummary `json:"rooms"`
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodOptions {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	resp := HealthResponse{
		Status:        "healthy",
		Timestamp:     time.Now(),
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Connections:   s.registry.Stats(),
	}
	s.sendJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRooms(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodOptions {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	ids := s.registry.RoomIDs()
	resp := RoomsResponse{Rooms: make([]RoomSummary, 0, len(ids))}
	for _, id := range ids {
		members := s.registry.Members(id)
		summary := RoomSummary{
			ID:          id,
			MemberCount: len(members),
			MemberIDs:   make([]string, 0, len(members)),
		}
		for _, m := range members {
			summary.MemberIDs = append(summary.MemberIDs, m.ID)
		}
		resp.Rooms = append(resp.Rooms, summary)
	}
	s.sendJSON(w, http.StatusOK, resp)
}

func (s *Server) sendJSON(w http.ResponseWriter, status int, v interface{}) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode API response: %v", err)
	}
}

func (s *Server) sendError(w http.ResponseWriter, message string, code int) {
	s.sendJSON(w, code, ErrorResponse{Error: message, Code: code})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}
