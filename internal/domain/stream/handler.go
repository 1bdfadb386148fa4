package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/ficore/wallet-api/internal/middleware"
	"github.com/ficore/wallet-api/internal/pkg/response"
)

const writeWait = 10 * time.Second

// BalanceFunc fetches the current balance for the connected snapshot.
type BalanceFunc func(ctx context.Context, userID uuid.UUID) (int64, error)

type Handler struct {
	manager  *Manager
	balance  BalanceFunc
	upgrader websocket.Upgrader
}

func NewHandler(manager *Manager, balance BalanceFunc, allowedOrigins []string) *Handler {
	return &Handler{
		manager: manager,
		balance: balance,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if len(allowedOrigins) == 0 {
					return true
				}
				for _, allowed := range allowedOrigins {
					if origin == allowed {
						return true
					}
				}
				log.Warn().Str("origin", origin).Msg("stream origin rejected")
				return false
			},
		},
	}
}

func (h *Handler) openSession(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return nil, false
	}

	s, err := h.manager.Register(userID)
	if err != nil {
		switch {
		case errors.Is(err, ErrSessionExists):
			response.Conflict(w, "stream already open for this user")
		case errors.Is(err, ErrAtCapacity):
			response.Error(w, http.StatusServiceUnavailable, "at_capacity", "too many open streams, retry later")
		default:
			response.InternalError(w)
		}
		return nil, false
	}
	return s, true
}

func (h *Handler) connectedEvent(ctx context.Context, userID uuid.UUID) Event {
	ev := Event{Type: EventConnected, Message: "stream established", Timestamp: time.Now()}
	if h.balance != nil {
		if balance, err := h.balance(ctx, userID); err == nil {
			ev.Balance = &balance
		}
	}
	return ev
}

// SSE handles GET /stream. The session lease runs for MaxHeartbeats ticks
// of the heartbeat interval; after that the client is told to reconnect.
func (h *Handler) SSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		response.Error(w, http.StatusNotImplemented, "streaming_unsupported", "streaming not supported")
		return
	}

	s, ok := h.openSession(w, r)
	if !ok {
		return
	}
	defer s.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	writeSSE(w, h.connectedEvent(r.Context(), s.UserID))
	flusher.Flush()

	ticker := time.NewTicker(h.manager.HeartbeatInterval())
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-s.Done():
			return

		case ev := <-s.Events():
			if s.TakeWarning() {
				writeSSE(w, overflowWarning())
			}
			writeSSE(w, ev)
			flusher.Flush()

		case <-ticker.C:
			beats := s.Beat()
			if beats >= h.manager.MaxHeartbeats() {
				writeSSE(w, Event{Type: EventError, Message: "session lease expired, reconnect", Timestamp: time.Now()})
				flusher.Flush()
				return
			}
			writeSSE(w, Event{Type: EventHeartbeat, Heartbeats: beats, Timestamp: time.Now()})
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
}

// WebSocket handles GET /stream/ws, same session semantics over WS for
// clients that cannot hold an SSE connection.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	s, ok := h.openSession(w, r)
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Close()
		log.Error().Err(err).Msg("stream upgrade failed")
		return
	}

	go h.wsReader(conn, s)
	go h.wsWriter(conn, s, h.connectedEvent(r.Context(), s.UserID))
}

// wsReader only drains control frames; the stream is one-directional.
func (h *Handler) wsReader(conn *websocket.Conn, s *Session) {
	defer func() {
		s.Close()
		conn.Close()
	}()

	conn.SetReadLimit(512)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Error().Err(err).Str("user_id", s.UserID.String()).Msg("stream read error")
			}
			return
		}
	}
}

func (h *Handler) wsWriter(conn *websocket.Conn, s *Session, connected Event) {
	ticker := time.NewTicker(h.manager.HeartbeatInterval())
	defer func() {
		ticker.Stop()
		s.Close()
		conn.Close()
	}()

	if err := writeWS(conn, connected); err != nil {
		return
	}

	for {
		select {
		case <-s.Done():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case ev := <-s.Events():
			if s.TakeWarning() {
				if err := writeWS(conn, overflowWarning()); err != nil {
					return
				}
			}
			if err := writeWS(conn, ev); err != nil {
				return
			}

		case <-ticker.C:
			beats := s.Beat()
			if beats >= h.manager.MaxHeartbeats() {
				writeWS(conn, Event{Type: EventError, Message: "session lease expired, reconnect", Timestamp: time.Now()})
				return
			}
			if err := writeWS(conn, Event{Type: EventHeartbeat, Heartbeats: beats, Timestamp: time.Now()}); err != nil {
				return
			}
		}
	}
}

func writeWS(conn *websocket.Conn, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, data)
}

// Routes returns the stream router
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Get("/", h.SSE)
	r.Get("/ws", h.WebSocket)
	return r
}
