package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/sitsmart/coach/internal/errors"
	"github.com/sitsmart/coach/internal/posture"
	"github.com/sitsmart/coach/internal/trace"
)

// Monitor is the slice of the monitoring manager the server needs.
type Monitor interface {
	Latest() (posture.Status, bool)
	TakeNewest() (posture.Status, bool)
	Snapshot(maxWidth int) ([]byte, error)
	SetPaused(paused bool)
	Paused() bool
}

// Message types.
type Message struct {
	Type string `json:"type"`
}

type StatusMessage struct {
	Type        string    `json:"type"`
	Lines       []string  `json:"lines"`
	Seq         uint64    `json:"seq"`
	GeneratedAt time.Time `json:"generated_at"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// rateLimiter tracks message timestamps using a sliding window.
type rateLimiter struct {
	timestamps []time.Time
	mu         sync.Mutex
}

// allow checks if a message is allowed and records the timestamp if so.
func (r *rateLimiter) allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-RateLimitWindow)

	// Prune old timestamps
	valid := r.timestamps[:0]
	for _, t := range r.timestamps {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	r.timestamps = valid

	if len(r.timestamps) >= RateLimitMessages {
		return false
	}

	r.timestamps = append(r.timestamps, now)
	return true
}

// Server pushes posture statuses to WebSocket clients and answers REST
// queries about the monitor.
type Server struct {
	mon        Monitor
	metricsH   http.Handler
	refresh    time.Duration
	mu         sync.RWMutex
	conns      map[*websocket.Conn]struct{}
	rateLimits map[*websocket.Conn]*rateLimiter
}

// New creates a new server. metricsHandler may be nil to disable /metrics.
func New(mon Monitor, metricsHandler http.Handler, refresh time.Duration) *Server {
	return &Server{
		mon:        mon,
		metricsH:   metricsHandler,
		refresh:    refresh,
		conns:      make(map[*websocket.Conn]struct{}),
		rateLimits: make(map[*websocket.Conn]*rateLimiter),
	}
}

// Start launches the status broadcaster; it exits when ctx is cancelled.
func (s *Server) Start(ctx context.Context) {
	go s.broadcastStatuses(ctx)
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// WebSocket endpoint
	mux.HandleFunc("/ws", s.handleWebSocket)

	// REST API
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/snapshot", s.handleSnapshot)
	mux.HandleFunc("POST /api/monitor/start", s.handleMonitorStart)
	mux.HandleFunc("POST /api/monitor/stop", s.handleMonitorStop)

	if s.metricsH != nil {
		mux.Handle("GET /metrics", s.metricsH)
	}

	// Apply middleware: trace -> CORS
	return corsMiddleware(trace.Middleware(mux))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
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
	s.rateLimits[conn] = &rateLimiter{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		delete(s.rateLimits, conn)
		s.mu.Unlock()
	}()

	baseCtx := r.Context()
	log := trace.Logger(baseCtx)
	log.Info("websocket connected", "remote", r.RemoteAddr)

	// Send the current verdict right away so a fresh client is not blank
	// until the next broadcast tick.
	if st, ok := s.mon.Latest(); ok {
		_ = wsjson.Write(baseCtx, conn, statusMessage(st))
	}

	for {
		var msg json.RawMessage
		if err := wsjson.Read(baseCtx, conn, &msg); err != nil {
			log.Debug("websocket read error", "error", err)
			return
		}

		s.mu.RLock()
		rl := s.rateLimits[conn]
		s.mu.RUnlock()

		if !rl.allow() {
			log.Warn("rate limit exceeded", "remote", r.RemoteAddr)
			_ = wsjson.Write(baseCtx, conn, ErrorMessage{
				Type:    "error",
				Message: "rate limit exceeded",
			})
			continue
		}

		var base Message
		if err := json.Unmarshal(msg, &base); err != nil {
			continue
		}

		switch base.Type {
		case "status":
			if st, ok := s.mon.Latest(); ok {
				_ = wsjson.Write(baseCtx, conn, statusMessage(st))
			}
		}
	}
}

// broadcastStatuses drains the newest status on a fixed cadence and fans
// it out to every connected client. The cadence is independent of the
// frame rate; intermediate statuses are intentionally skipped.
func (s *Server) broadcastStatuses(ctx context.Context) {
	ticker := time.NewTicker(s.refresh)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		st, ok := s.mon.TakeNewest()
		if !ok {
			continue
		}
		msg := statusMessage(st)

		s.mu.RLock()
		for conn := range s.conns {
			go func(c *websocket.Conn) {
				_ = wsjson.Write(context.Background(), c, msg)
			}(conn)
		}
		s.mu.RUnlock()
	}
}

func statusMessage(st posture.Status) StatusMessage {
	return StatusMessage{
		Type:        "status",
		Lines:       st.Lines,
		Seq:         st.Seq,
		GeneratedAt: st.GeneratedAt,
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, ok := s.mon.Latest()
	if !ok {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"error": "no status yet"})
		return
	}

	json.NewEncoder(w).Encode(map[string]any{
		"lines":        st.Lines,
		"seq":          st.Seq,
		"generated_at": st.GeneratedAt,
		"paused":       s.mon.Paused(),
	})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	width := SnapshotDefaultWidth
	if v := r.URL.Query().Get("width"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > SnapshotMaxWidth {
			http.Error(w, "invalid width", http.StatusBadRequest)
			return
		}
		width = n
	}

	data, err := s.mon.Snapshot(width)
	if err != nil {
		if errors.IsCode(err, errors.CodeUnavailable) {
			http.Error(w, "no snapshot yet", http.StatusNotFound)
			return
		}
		trace.Logger(r.Context()).Error("snapshot failed", "error", err)
		http.Error(w, "snapshot failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	_, _ = w.Write(data)
}

func (s *Server) handleMonitorStart(w http.ResponseWriter, r *http.Request) {
	s.mon.SetPaused(false)
	json.NewEncoder(w).Encode(map[string]string{"status": "monitoring_started"})
}

func (s *Server) handleMonitorStop(w http.ResponseWriter, r *http.Request) {
	s.mon.SetPaused(true)
	json.NewEncoder(w).Encode(map[string]string{"status": "monitoring_stopped"})
}
