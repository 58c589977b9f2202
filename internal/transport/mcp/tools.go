package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	mcpmcp "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/alanyang/statesync/internal/adapter/memory"
	"github.com/alanyang/statesync/internal/domain/change"
	"github.com/alanyang/statesync/internal/port/syncer"
)

// RegisterTools registers all MCP tools on the server.
// [OCP] Add a new tool by adding a new AddTool call; server.go never changes.
func RegisterTools(s *mcpserver.MCPServer, dir *memory.Registry, strategy syncer.Strategy) {
	s.AddTool(mcpmcp.NewTool("notify_change",
		mcpmcp.WithDescription("Push a state change to observer sessions on the /sync channel. Delivery is asynchronous and best-effort: the call returns once the change is queued."),
		mcpmcp.WithString("op", mcpmcp.Required(), mcpmcp.Description("One of: create, update, delete")),
		mcpmcp.WithString("path", mcpmcp.Description("Slash-delimited state path, e.g. user/name. Empty addresses the root.")),
		mcpmcp.WithString("value_json", mcpmcp.Description("New value encoded as JSON. Omit for null.")),
		mcpmcp.WithString("session_id", mcpmcp.Description("Target session. Omit to notify every connected session.")),
	), notifyChangeHandler(dir, strategy))

	s.AddTool(mcpmcp.NewTool("list_sessions",
		mcpmcp.WithDescription("List connected observer sessions across all transports."),
	), listSessionsHandler(dir))
}

// ── Tool handlers ─────────────────────────────────────────────────────────

func notifyChangeHandler(dir *memory.Registry, strategy syncer.Strategy) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcpmcp.CallToolRequest) (*mcpmcp.CallToolResult, error) {
		op, err := change.ParseOp(mcpmcp.ParseString(req, "op", ""))
		if err != nil {
			return mcpmcp.NewToolResultText("error: op must be one of: create, update, delete"), nil
		}
		path := mcpmcp.ParseString(req, "path", "")

		var value any
		if raw := mcpmcp.ParseString(req, "value_json", ""); raw != "" {
			if err := json.Unmarshal([]byte(raw), &value); err != nil {
				return mcpmcp.NewToolResultText("error: value_json is not valid JSON"), nil
			}
		}

		sessionID := mcpmcp.ParseString(req, "session_id", "")
		if sessionID == "" {
			entries := dir.List()
			for _, e := range entries {
				strategy.Notify(ctx, e.Session, op, path, value)
			}
			return mcpmcp.NewToolResultText(fmt.Sprintf(`{"sessions":%d}`, len(entries))), nil
		}

		sess, err := dir.Get(sessionID)
		if err != nil && !errors.Is(err, memory.ErrNotFound) {
			return mcpmcp.NewToolResultText(fmt.Sprintf("error: %s", err)), nil
		}
		// An unknown session is handed through as nil: the strategy treats it as a no-op.
		strategy.Notify(ctx, sess, op, path, value)
		return mcpmcp.NewToolResultText(`{"accepted":true}`), nil
	}
}

type sessionInfo struct {
	ID        string `json:"id"`
	Transport string `json:"transport"`
	Active    bool   `json:"active"`
}

func listSessionsHandler(dir *memory.Registry) mcpserver.ToolHandlerFunc {
	return func(_ context.Context, _ mcpmcp.CallToolRequest) (*mcpmcp.CallToolResult, error) {
		entries := dir.List()
		out := make([]sessionInfo, 0, len(entries))
		for _, e := range entries {
			out = append(out, sessionInfo{ID: e.Session.ID(), Transport: e.Transport, Active: e.Session.Active()})
		}
		data, err := json.Marshal(out)
		if err != nil {
			return mcpmcp.NewToolResultText(fmt.Sprintf("error: %s", err)), nil
		}
		return mcpmcp.NewToolResultText(string(data)), nil
	}
}
