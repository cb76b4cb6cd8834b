package dashboard

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// ═══════════════════════════════════════════════════════════════════════════════
// DASHBOARD - Read-only HTTP status server
// ═══════════════════════════════════════════════════════════════════════════════
//
// GET /status returns the latest snapshot as JSON; /ws streams each new
// snapshot over a websocket. The trading loop pushes snapshots; the server
// never touches trading state directly.
//
// ═══════════════════════════════════════════════════════════════════════════════

// Snapshot is the per-tick status the loop publishes
type Snapshot struct {
	Timestamp  time.Time `json:"timestamp"`
	Symbol     string    `json:"symbol"`
	Price      string    `json:"price"`
	Regime     string    `json:"regime"`
	Confidence float64   `json:"confidence"`
	Direction  string    `json:"direction"`
	Equity     string    `json:"equity"`
	Drawdown   string    `json:"drawdown"`
	Positions  int       `json:"positions"`
	Halted     bool      `json:"halted"`
}

// Server is the dashboard HTTP server
type Server struct {
	mu       sync.RWMutex
	latest   Snapshot
	clients  map[*websocket.Conn]bool
	upgrader websocket.Upgrader
	srv      *http.Server
}

// NewServer creates a dashboard server on the given port; nil when port is 0
func NewServer(port int) *Server {
	if port == 0 {
		return nil
	}
	s := &Server{
		clients: make(map[*websocket.Conn]bool),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/ws", s.handleWS)
	s.srv = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}
	return s
}

// Start runs the server in the background. Nil receiver is a no-op.
func (s *Server) Start() {
	if s == nil {
		return
	}
	go func() {
		log.Info().Str("addr", s.srv.Addr).Msg("📊 Dashboard listening")
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("Dashboard server stopped")
		}
	}()
}

// Stop shuts the server down. Nil receiver is a no-op.
func (s *Server) Stop() {
	if s == nil {
		return
	}
	_ = s.srv.Close()
}

// Publish stores the snapshot and pushes it to websocket clients.
// Nil receiver is a no-op.
func (s *Server) Publish(snap Snapshot) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.latest = snap
	conns := make([]*websocket.Conn, 0, len(s.clients))
	for c := range s.clients {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	data, err := json.Marshal(snap)
	if err != nil {
		return
	}
	for _, c := range conns {
		if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
			s.dropClient(c)
		}
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	snap := s.latest
	s.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(snap)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.clients[conn] = true
	s.mu.Unlock()

	// Drain reads so pings/closes are processed
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				s.dropClient(conn)
				return
			}
		}
	}()
}

func (s *Server) dropClient(c *websocket.Conn) {
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
	_ = c.Close()
}
