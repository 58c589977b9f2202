package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/alanyang/statesync/internal/adapter/memory"
	"github.com/alanyang/statesync/internal/domain/change"
	"github.com/alanyang/statesync/internal/port/session"
)

const (
	// Transport labels MCP sessions in the shared registry.
	Transport = "mcp"

	// NotificationMethod is the MCP notification every change is sent with.
	NotificationMethod = "notifications/sync"
)

// SessionRegistry tracks connected MCP clients and exposes each as an
// observer session in the shared registry.
//
// [SRP] Session bookkeeping and notification delivery only.
// [DIP] The sync service sees port/session.Session, never this type.
type SessionRegistry struct {
	dir *memory.Registry

	mu       sync.RWMutex
	sessions map[string]*Session

	// mcpSrv is set after the MCP server is constructed (avoids circular init dependency).
	mcpMu  sync.RWMutex
	mcpSrv *mcpserver.MCPServer
}

// NewSessionRegistry creates a registry without an MCP server reference.
// Call SetMCPServer once the mcp-go server is constructed.
func NewSessionRegistry(dir *memory.Registry) *SessionRegistry {
	return &SessionRegistry{
		dir:      dir,
		sessions: make(map[string]*Session),
	}
}

// SetMCPServer injects the mcp-go server after construction (breaks the init cycle).
func (r *SessionRegistry) SetMCPServer(s *mcpserver.MCPServer) {
	r.mcpMu.Lock()
	r.mcpSrv = s
	r.mcpMu.Unlock()
}

// Register tracks a newly opened MCP session.
func (r *SessionRegistry) Register(sessionID string) *Session {
	sess := &Session{id: sessionID, reg: r}

	r.mu.Lock()
	r.sessions[sessionID] = sess
	r.mu.Unlock()

	r.dir.Add(Transport, sess)
	return sess
}

// Unregister forgets a closed session. It reports whether the session was known.
func (r *SessionRegistry) Unregister(sessionID string) bool {
	r.mu.Lock()
	_, ok := r.sessions[sessionID]
	delete(r.sessions, sessionID)
	r.mu.Unlock()

	if ok {
		r.dir.Remove(sessionID)
	}
	return ok
}

// IsConnected returns whether the MCP session is still open.
func (r *SessionRegistry) IsConnected(sessionID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sessions[sessionID]
	return ok
}

func (r *SessionRegistry) server() *mcpserver.MCPServer {
	r.mcpMu.RLock()
	defer r.mcpMu.RUnlock()
	return r.mcpSrv
}

func (r *SessionRegistry) send(sessionID string, env change.Envelope) error {
	if !r.IsConnected(sessionID) {
		return session.ErrSessionClosed
	}

	srv := r.server()
	if srv == nil {
		return fmt.Errorf("mcp server not initialized")
	}

	params, err := toParams(env)
	if err != nil {
		return fmt.Errorf("serialize notification: %w", err)
	}
	return srv.SendNotificationToSpecificClient(sessionID, NotificationMethod, params)
}

// Session is one MCP client seen as an observer.
type Session struct {
	id  string
	reg *SessionRegistry
}

var _ session.Session = (*Session)(nil)

func (s *Session) ID() string { return s.id }

func (s *Session) Active() bool { return s != nil && s.reg.IsConnected(s.id) }

func (s *Session) Channel(name string) (session.Channel, error) {
	if !s.Active() {
		return nil, session.ErrSessionClosed
	}
	return &channel{name: name, sess: s}, nil
}

type channel struct {
	name string
	sess *Session
}

func (c *channel) Name() string { return c.name }

func (c *channel) Publish(_ context.Context, records []change.Record) error {
	return c.sess.reg.send(c.sess.id, change.NewEnvelope(c.name, records))
}

func toParams(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var params map[string]any
	if err := json.Unmarshal(data, &params); err != nil {
		return map[string]any{"data": v}, nil
	}
	return params, nil
}
