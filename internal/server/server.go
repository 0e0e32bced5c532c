package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"

	"github.com/kolapsis/bytebot/internal/config"
	"github.com/kolapsis/bytebot/internal/event"
	"github.com/kolapsis/bytebot/internal/hub"
	"github.com/kolapsis/bytebot/internal/store"
)

// Server exposes the hub over HTTP: the WebSocket endpoints plus the
// stats/broadcast admin surface.
type Server struct {
	hub     *hub.Manager
	journal store.Journal // optional, nil disables /ws/events
	cfg     *config.Config
}

// New creates a Server. journal may be nil.
func New(cfg *config.Config, manager *hub.Manager, journal store.Journal) *Server {
	return &Server{hub: manager, journal: journal, cfg: cfg}
}

// Router builds the chi router with all endpoints mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(securityHeaders)

	r.Get("/ws", s.handleWS)
	r.Get("/ws/task/{taskID}", s.handleTaskWS)
	r.Get("/health", s.handleHealth)

	// Admin surface: rate limited and bearer-token protected.
	r.Group(func(r chi.Router) {
		r.Use(httprate.LimitByIP(s.cfg.RateLimit.RequestsPerMinute, requestWindow))
		r.Use(bearerAuth(s.cfg.Auth.AdminToken))
		r.Get("/ws/stats", s.handleStats)
		r.Get("/ws/events", s.handleEvents)
		r.Post("/ws/broadcast", s.handleBroadcast)
	})

	return r
}

// handleWS upgrades the request and registers the connection with the hub.
// user_id and session_id are taken from the query string; authentication is
// the reverse proxy's concern, not the hub's.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		slog.Error("websocket accept failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	userID := r.URL.Query().Get("user_id")
	sessionID := r.URL.Query().Get("session_id")

	c := s.hub.Connect(&wsTransport{conn: conn}, userID, sessionID)
	s.readLoop(r, conn, c)
}

// handleTaskWS is like handleWS but auto-subscribes the connection to one
// task and confirms the subscription before entering the read loop.
func (s *Server) handleTaskWS(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")
	if _, err := uuid.Parse(taskID); err != nil {
		http.Error(w, "invalid task id format", http.StatusBadRequest)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		slog.Error("websocket accept failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	userID := r.URL.Query().Get("user_id")
	sessionID := r.URL.Query().Get("session_id")

	c := s.hub.Connect(&wsTransport{conn: conn}, userID, sessionID)
	s.hub.SubscribeTask(c.ID, taskID)
	s.hub.Reply(c.ID, event.OK(event.MsgSubscribeTask, map[string]any{
		"task_id":    taskID,
		"subscribed": true,
	}, ""))

	s.readLoop(r, conn, c)
}

// readLoop processes inbound messages for one connection until the client
// goes away, then deregisters it.
func (s *Server) readLoop(r *http.Request, conn *websocket.Conn, c *hub.Connection) {
	defer s.hub.Disconnect(c.ID)

	ctx := r.Context()
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			slog.Debug("websocket read ended", "connection_id", c.ID, "error", err)
			return
		}
		if typ != websocket.MessageText && typ != websocket.MessageBinary {
			continue
		}
		resp := s.hub.HandleMessage(c.ID, data)
		s.hub.Reply(c.ID, resp)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.hub.Stats())
}

// broadcastRequest is the admin pass-through payload for /ws/broadcast.
type broadcastRequest struct {
	Type      string         `json:"type"`
	Data      map[string]any `json:"data"`
	TaskID    string         `json:"task_id,omitempty"`
	UserID    string         `json:"user_id,omitempty"`
	SessionID string         `json:"session_id,omitempty"`
}

func (s *Server) handleBroadcast(w http.ResponseWriter, r *http.Request) {
	var req broadcastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"error":   "invalid request body",
		})
		return
	}

	kind := event.Kind(req.Type)
	if !kind.Valid() {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"error":   "unknown event type: " + req.Type,
		})
		return
	}
	if req.TaskID != "" {
		if _, err := uuid.Parse(req.TaskID); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"success": false,
				"error":   "invalid task_id format",
			})
			return
		}
	}

	e := event.NewDesktopEvent(kind, req.Data, req.TaskID, req.UserID)
	e.SessionID = req.SessionID
	s.hub.Broadcast(e)

	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"event_id":    e.ID.String(),
		"event_type":  req.Type,
		"connections": s.hub.ConnectionCount(),
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"success": false,
			"error":   "event journal is disabled",
		})
		return
	}

	f := store.EventFilter{
		Kind:   r.URL.Query().Get("kind"),
		TaskID: r.URL.Query().Get("task_id"),
		Limit:  50,
	}
	if limit := r.URL.Query().Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 1 || n > 1000 {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"success": false,
				"error":   "limit must be between 1 and 1000",
			})
			return
		}
		f.Limit = n
	}

	entries, err := s.journal.Recent(f)
	if err != nil {
		slog.Error("journal query failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"error":   "journal query failed",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"events":  entries,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
