package rpc

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sourcegraph/jsonrpc2"
	websocketjsonrpc2 "github.com/sourcegraph/jsonrpc2/websocket"

	"github.com/alanyang/statesync/internal/adapter/memory"
	"github.com/alanyang/statesync/internal/domain/change"
	"github.com/alanyang/statesync/internal/port/session"
)

const (
	// Transport labels JSON-RPC sessions in the registry.
	Transport = "rpc"

	// MethodSync is the notification method every change is sent with.
	MethodSync = "sync"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler serves JSON-RPC 2.0 observers over WebSocket.
type Handler struct {
	reg          *memory.Registry
	writeTimeout time.Duration
}

func NewHandler(reg *memory.Registry, writeTimeout time.Duration) *Handler {
	return &Handler{reg: reg, writeTimeout: writeTimeout}
}

func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.GET("", h.handleRPC)
}

func (h *Handler) handleRPC(c *gin.Context) {
	wsConn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Error("rpc: websocket upgrade failed", "error", err)
		return
	}

	id := uuid.New().String()
	ctx := c.Request.Context()
	stream := newDeadlineStream(wsConn, h.writeTimeout)
	conn := jsonrpc2.NewConn(ctx, stream, jsonrpc2.HandlerWithError(handle(id)))

	sess := &Session{id: id, conn: conn}
	h.reg.Add(Transport, sess)
	slog.InfoContext(ctx, "rpc: observer connected", "session_id", id)

	<-conn.DisconnectNotify()

	h.reg.Remove(id)
	slog.InfoContext(ctx, "rpc: observer disconnected", "session_id", id)
}

// deadlineStream sets a write deadline before every object so a stalled
// observer fails the publish instead of holding the dispatch worker.
// jsonrpc2 serializes WriteObject calls, so the deadline and the write
// never interleave with another sender.
type deadlineStream struct {
	jsonrpc2.ObjectStream
	conn    *websocket.Conn
	timeout time.Duration
}

func newDeadlineStream(conn *websocket.Conn, timeout time.Duration) jsonrpc2.ObjectStream {
	return &deadlineStream{
		ObjectStream: websocketjsonrpc2.NewObjectStream(conn),
		conn:         conn,
		timeout:      timeout,
	}
}

func (s *deadlineStream) WriteObject(obj interface{}) error {
	if s.timeout > 0 {
		if err := s.conn.SetWriteDeadline(time.Now().Add(s.timeout)); err != nil {
			return fmt.Errorf("set write deadline: %w", err)
		}
	}
	return s.ObjectStream.WriteObject(obj)
}

func handle(sessionID string) func(context.Context, *jsonrpc2.Conn, *jsonrpc2.Request) (any, error) {
	return func(_ context.Context, _ *jsonrpc2.Conn, req *jsonrpc2.Request) (any, error) {
		switch req.Method {
		case "ping":
			return "pong", nil
		case "session.id":
			return sessionID, nil
		default:
			return nil, &jsonrpc2.Error{
				Code:    jsonrpc2.CodeMethodNotFound,
				Message: fmt.Sprintf("method not found: %s", req.Method),
			}
		}
	}
}

// Session is one JSON-RPC observer. It is active until the connection drops.
type Session struct {
	id   string
	conn *jsonrpc2.Conn
}

var _ session.Session = (*Session)(nil)

func (s *Session) ID() string { return s.id }

func (s *Session) Active() bool {
	if s == nil {
		return false
	}
	select {
	case <-s.conn.DisconnectNotify():
		return false
	default:
		return true
	}
}

func (s *Session) Channel(name string) (session.Channel, error) {
	if !s.Active() {
		return nil, session.ErrSessionClosed
	}
	return &channel{name: name, conn: s.conn}, nil
}

type channel struct {
	name string
	conn *jsonrpc2.Conn
}

func (c *channel) Name() string { return c.name }

func (c *channel) Publish(ctx context.Context, records []change.Record) error {
	if err := c.conn.Notify(ctx, MethodSync, change.NewEnvelope(c.name, records)); err != nil {
		return fmt.Errorf("rpc notify %s: %w", MethodSync, err)
	}
	return nil
}
