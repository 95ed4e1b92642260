// Package server exposes the live display over HTTP and WebSocket.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/andresmejia3/itemwatch/internal/metrics"
	"github.com/andresmejia3/itemwatch/internal/presence"
	"github.com/andresmejia3/itemwatch/internal/types"
)

// WriteTimeout bounds a single websocket write; slow clients are dropped.
const WriteTimeout = 2 * time.Second

// Item is one active id as sent to clients.
type Item struct {
	ID         uint32    `json:"id"`
	Kind       string    `json:"kind"`
	Title      string    `json:"title"`
	Quote      string    `json:"quote"`
	Paragraphs []string  `json:"paragraphs"`
	FirstSeen  time.Time `json:"first_seen"`
	LastSeen   time.Time `json:"last_seen"`
}

// Snapshot is the active set after one cycle.
type Snapshot struct {
	Type    string    `json:"type"`
	Session string    `json:"session"`
	At      time.Time `json:"at"`
	Items   []Item    `json:"items"`
}

// Server handles HTTP and WebSocket connections.
type Server struct {
	session string
	metrics *metrics.Metrics

	mu     sync.RWMutex
	conns  map[*websocket.Conn]struct{}
	latest Snapshot

	notify chan struct{}
	done   chan struct{}
	once   sync.Once
}

// New creates a server and starts its broadcaster. m may be nil.
func New(session string, m *metrics.Metrics) *Server {
	s := &Server{
		session: session,
		metrics: m,
		conns:   make(map[*websocket.Conn]struct{}),
		latest:  Snapshot{Type: "active", Session: session, Items: []Item{}},
		notify:  make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go s.broadcast()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("GET /api/active", s.handleActive)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Show publishes the active set. It never blocks on clients.
func (s *Server) Show(entries []presence.Entry) error {
	snap := Snapshot{
		Type:    "active",
		Session: s.session,
		At:      time.Now(),
		Items:   make([]Item, 0, len(entries)),
	}
	for _, e := range entries {
		snap.Items = append(snap.Items, toItem(e))
	}

	s.mu.Lock()
	s.latest = snap
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default: // a broadcast is already pending and will pick up this snapshot
	}
	return nil
}

func toItem(e presence.Entry) Item {
	d := e.Description
	paragraphs := d.Paragraphs
	if paragraphs == nil {
		paragraphs = []string{}
	}
	return Item{
		ID:         e.ID,
		Kind:       kindName(d.Kind),
		Title:      d.Title,
		Quote:      d.Quote,
		Paragraphs: paragraphs,
		FirstSeen:  e.FirstSeen,
		LastSeen:   e.LastSeen,
	}
}

func kindName(k types.Kind) string {
	if k == types.Trinket {
		return "trinket"
	}
	return "item"
}

// Latest returns the most recent snapshot.
func (s *Server) Latest() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

func (s *Server) handleActive(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.Latest()); err != nil {
		slog.Debug("failed to write active snapshot", "error", err)
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("websocket accept error", "error", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	s.mu.Lock()
	s.conns[conn] = struct{}{}
	first := s.latest
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
	}()

	slog.Info("websocket connected", "remote", r.RemoteAddr)

	// Clients only listen; CloseRead handles pings and cancels on disconnect.
	ctx := conn.CloseRead(r.Context())

	if err := writeSnapshot(ctx, conn, first); err != nil {
		slog.Debug("websocket write error", "error", err)
		return
	}

	select {
	case <-ctx.Done():
	case <-s.done:
	}
	slog.Debug("websocket disconnected", "remote", r.RemoteAddr)
}

func writeSnapshot(ctx context.Context, conn *websocket.Conn, snap Snapshot) error {
	ctx, cancel := context.WithTimeout(ctx, WriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, snap)
}

// broadcast sends the latest snapshot to every client whenever Show publishes one.
func (s *Server) broadcast() {
	for {
		select {
		case <-s.done:
			return
		case <-s.notify:
		}

		s.mu.RLock()
		snap := s.latest
		conns := make([]*websocket.Conn, 0, len(s.conns))
		for c := range s.conns {
			conns = append(conns, c)
		}
		s.mu.RUnlock()

		for _, c := range conns {
			if err := writeSnapshot(context.Background(), c, snap); err != nil {
				slog.Debug("dropping websocket client", "error", err)
				_ = c.Close(websocket.StatusGoingAway, "write failed")
			}
		}
	}
}

// Close stops the broadcaster and releases connected clients.
func (s *Server) Close() {
	s.once.Do(func() { close(s.done) })
}
