package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/alanyang/statesync/internal/adapter/memory"
	"github.com/alanyang/statesync/internal/domain/change"
	"github.com/alanyang/statesync/internal/port/session"
)

// Transport labels sessions opened through the hub in the registry.
const Transport = "ws"

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub accepts observer WebSocket connections and exposes each one as a
// session in the shared registry.
type Hub struct {
	reg          *memory.Registry
	writeTimeout time.Duration
}

func NewHub(reg *memory.Registry, writeTimeout time.Duration) *Hub {
	return &Hub{reg: reg, writeTimeout: writeTimeout}
}

func (h *Hub) Register(rg *gin.RouterGroup) {
	rg.GET("", h.handleWS)
}

func (h *Hub) handleWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}

	sess := newSession(conn, h.writeTimeout)
	h.reg.Add(Transport, sess)
	slog.Info("ws: observer connected", "session_id", sess.ID())

	defer func() {
		sess.close()
		h.reg.Remove(sess.ID())
		conn.Close()
		slog.Info("ws: observer disconnected", "session_id", sess.ID())
	}()

	// Observers only receive; reading keeps control frames flowing and
	// detects the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// Session is one connected WebSocket observer.
type Session struct {
	id           string
	conn         *websocket.Conn
	writeTimeout time.Duration

	writeMu sync.Mutex
	closed  atomic.Bool
}

var _ session.Session = (*Session)(nil)

func newSession(conn *websocket.Conn, writeTimeout time.Duration) *Session {
	return &Session{
		id:           uuid.New().String(),
		conn:         conn,
		writeTimeout: writeTimeout,
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) Active() bool { return s != nil && !s.closed.Load() }

func (s *Session) Channel(name string) (session.Channel, error) {
	if s.closed.Load() {
		return nil, session.ErrSessionClosed
	}
	return &channel{name: name, sess: s}, nil
}

func (s *Session) close() { s.closed.Store(true) }

func (s *Session) write(data []byte) error {
	if s.closed.Load() {
		return session.ErrSessionClosed
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.writeTimeout > 0 {
		if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
			return fmt.Errorf("set write deadline: %w", err)
		}
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("websocket write: %w", err)
	}
	return nil
}

type channel struct {
	name string
	sess *Session
}

func (c *channel) Name() string { return c.name }

func (c *channel) Publish(_ context.Context, records []change.Record) error {
	data, err := json.Marshal(change.NewEnvelope(c.name, records))
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	return c.sess.write(data)
}
