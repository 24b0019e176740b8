package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"nhooyr.io/websocket"

	"github.com/franciscolir/pre-reserva/internal/domain"
)

const (
	sessionSendBuffer = 32
	writeTimeout      = 5 * time.Second
)

// Hub is the registry of connected observers. Broadcast walks a snapshot of
// the registry and hands each session the event without blocking: fanout is
// best-effort and never fails the transition that triggered it.
type Hub struct {
	mu       sync.RWMutex
	sessions map[*session]struct{}
	logger   zerolog.Logger
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		sessions: make(map[*session]struct{}),
		logger:   logger.With().Str("component", "hub").Logger(),
	}
}

func (h *Hub) add(s *session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[s] = struct{}{}
}

func (h *Hub) remove(s *session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sessions, s)
}

// Count reports the number of registered sessions.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// BroadcastSlotState announces a committed transition to every open session.
func (h *Hub) BroadcastSlotState(slot domain.Slot) {
	h.broadcast(newStateChanged(slot))
}

func (h *Hub) broadcast(msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error().Err(err).Msg("marshal broadcast")
		return
	}

	h.mu.RLock()
	snapshot := make([]*session, 0, len(h.sessions))
	for s := range h.sessions {
		snapshot = append(snapshot, s)
	}
	h.mu.RUnlock()

	for _, s := range snapshot {
		s.send(data)
	}
}

// session wraps one observer connection. All writes go through the out
// channel and the write pump, so the broadcast path never touches the conn.
type session struct {
	id     string
	conn   *websocket.Conn
	out    chan []byte
	done   chan struct{}
	closer sync.Once
	logger zerolog.Logger
}

func newSession(conn *websocket.Conn, logger zerolog.Logger) *session {
	id := uuid.NewString()
	return &session{
		id:     id,
		conn:   conn,
		out:    make(chan []byte, sessionSendBuffer),
		done:   make(chan struct{}),
		logger: logger.With().Str("session", id).Logger(),
	}
}

// send queues data for delivery. A session that is closing is skipped; one
// whose queue is saturated is dropped, since a client that cannot drain a
// 22-slot state feed is not coming back.
func (s *session) send(data []byte) {
	select {
	case <-s.done:
	case s.out <- data:
	default:
		s.logger.Warn().Msg("send queue saturated, dropping session")
		s.close(websocket.StatusPolicyViolation, "slow consumer")
	}
}

func (s *session) sendMessage(msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error().Err(err).Msg("marshal message")
		return
	}
	s.send(data)
}

func (s *session) close(code websocket.StatusCode, reason string) {
	s.closer.Do(func() {
		close(s.done)
		_ = s.conn.Close(code, reason)
	})
}

// writePump owns the connection for writes until the session ends.
func (s *session) writePump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case data := <-s.out:
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := s.conn.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				s.logger.Debug().Err(err).Msg("write failed")
				s.close(websocket.StatusAbnormalClosure, "write failed")
				return
			}
		}
	}
}
