// Package server provides HTTP and WebSocket handlers
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

	"github.com/koizumiiiii/Baketa-sub013/internal/detect"
	"github.com/koizumiiiii/Baketa-sub013/internal/errors"
	"github.com/koizumiiiii/Baketa-sub013/internal/events"
	"github.com/koizumiiiii/Baketa-sub013/internal/monitor"
	"github.com/koizumiiiii/Baketa-sub013/internal/trace"
)

// Message types.
type Message struct {
	Type string `json:"type"`
}

type ThresholdMessage struct {
	Type      string  `json:"type"`
	Threshold float64 `json:"threshold"`
	TraceID   string  `json:"trace_id,omitempty"`
}

type ThresholdAckMessage struct {
	Type      string  `json:"type"`
	Threshold float64 `json:"threshold"`
}

type DisappearanceMessage struct {
	Type  string                   `json:"type"`
	Event events.TextDisappearance `json:"event"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// StatusResponse is the /api/status payload.
type StatusResponse struct {
	Stats    monitor.Stats   `json:"stats"`
	Settings detect.Settings `json:"settings"`
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

// Server handles HTTP and WebSocket connections.
type Server struct {
	detector *detect.Detector
	monitor  *monitor.Monitor
	broker   *events.Broker

	mu         sync.RWMutex
	conns      map[*websocket.Conn]struct{}
	rateLimits map[*websocket.Conn]*rateLimiter
}

// New creates a new server.
func New(detector *detect.Detector, mon *monitor.Monitor, broker *events.Broker) *Server {
	s := &Server{
		detector:   detector,
		monitor:    mon,
		broker:     broker,
		conns:      make(map[*websocket.Conn]struct{}),
		rateLimits: make(map[*websocket.Conn]*rateLimiter),
	}

	// Start broadcaster
	go s.broadcastDisappearances()

	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// WebSocket endpoint
	mux.HandleFunc("/ws", s.handleWebSocket)

	// REST API
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("POST /api/threshold", s.handleThreshold)
	mux.HandleFunc("POST /api/recognition/start", s.handleRecognitionStart)
	mux.HandleFunc("POST /api/recognition/stop", s.handleRecognitionStop)

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

	// Get trace context from HTTP upgrade request
	baseCtx := r.Context()
	log := trace.Logger(baseCtx)
	log.Info("websocket connected", "remote", r.RemoteAddr)

	for {
		var msg json.RawMessage
		if err := wsjson.Read(baseCtx, conn, &msg); err != nil {
			log.Debug("websocket read error", "error", err)
			return
		}

		// Check rate limit
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
		case "set_threshold":
			var tm ThresholdMessage
			if err := json.Unmarshal(msg, &tm); err != nil {
				continue
			}
			// Adopt the caller's trace when the message carries one
			ctx := baseCtx
			if tc, ok := trace.ExtractFromJSON(msg); ok {
				ctx = trace.WithContext(ctx, tc)
			} else {
				ctx, _ = trace.EnsureContext(ctx)
			}
			s.handleSetThreshold(ctx, conn, tm.Threshold)
		}
	}
}

func (s *Server) handleSetThreshold(ctx context.Context, conn *websocket.Conn, value float64) {
	ctx, span := trace.StartSpan(ctx, "set_threshold")
	defer span.End()
	span.SetAttr("threshold", value)

	log := trace.Logger(ctx)
	if err := s.detector.SetThreshold(value); err != nil {
		log.Warn("threshold rejected", "value", value, "error", err)
		_ = wsjson.Write(ctx, conn, ErrorMessage{Type: "error", Message: err.Error()})
		return
	}

	log.Info("threshold updated", "value", value)
	_ = wsjson.Write(ctx, conn, ThresholdAckMessage{Type: "threshold_set", Threshold: value})
}

func (s *Server) broadcastDisappearances() {
	ch, cancel := s.broker.Subscribe(DisappearanceBuffer)
	defer cancel()

	for evt := range ch {
		msg := DisappearanceMessage{Type: "text_disappearance", Event: evt}

		s.mu.RLock()
		for conn := range s.conns {
			go func(c *websocket.Conn) {
				_ = wsjson.Write(context.Background(), c, msg)
			}(conn)
		}
		s.mu.RUnlock()
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(StatusResponse{
		Stats:    s.monitor.Stats(),
		Settings: s.detector.Settings(),
	})
}

func (s *Server) handleThreshold(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Threshold float64 `json:"threshold"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	if err := s.detector.SetThreshold(req.Threshold); err != nil {
		code := http.StatusInternalServerError
		if errors.IsCode(err, errors.OutOfRange) {
			code = http.StatusBadRequest
		}
		http.Error(w, err.Error(), code)
		return
	}

	trace.Logger(r.Context()).Info("threshold updated", "value", req.Threshold)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]float64{"threshold": req.Threshold})
}

func (s *Server) handleRecognitionStart(w http.ResponseWriter, r *http.Request) {
	s.monitor.SetRecognition(true)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "recognition_started"})
}

func (s *Server) handleRecognitionStop(w http.ResponseWriter, r *http.Request) {
	s.monitor.SetRecognition(false)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "recognition_stopped"})
}
