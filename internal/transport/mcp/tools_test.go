package mcp

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	mcpmcp "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyang/statesync/internal/adapter/memory"
	"github.com/alanyang/statesync/internal/domain/change"
	"github.com/alanyang/statesync/internal/port/session"
	"github.com/alanyang/statesync/internal/testutil"
)

// ── helpers ───────────────────────────────────────────────────────────────────

type notifyCall struct {
	sess  session.Session
	op    change.Op
	path  string
	value any
}

// captureStrategy records Notify calls instead of dispatching them.
type captureStrategy struct {
	mu    sync.Mutex
	calls []notifyCall
}

func (c *captureStrategy) Notify(_ context.Context, sess session.Session, op change.Op, path string, value any) {
	c.mu.Lock()
	c.calls = append(c.calls, notifyCall{sess: sess, op: op, path: path, value: value})
	c.mu.Unlock()
}

func makeReq(args map[string]any) mcpmcp.CallToolRequest {
	var req mcpmcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultText(r *mcpmcp.CallToolResult) string {
	if r == nil || len(r.Content) == 0 {
		return ""
	}
	b, _ := json.Marshal(r.Content[0])
	var m map[string]interface{}
	json.Unmarshal(b, &m) //nolint:errcheck
	if t, ok := m["text"].(string); ok {
		return t
	}
	return ""
}

func newDir(ids ...string) *memory.Registry {
	dir := memory.NewRegistry()
	for _, id := range ids {
		dir.Add("ws", testutil.NewFakeSession(id, testutil.NewCaptureChannel(change.SyncChannel)))
	}
	return dir
}

// ── notifyChangeHandler ───────────────────────────────────────────────────────

func TestNotifyChangeHandler(t *testing.T) {
	tests := []struct {
		name         string
		args         map[string]any
		wantContains string
		wantCalls    int
		check        func(t *testing.T, calls []notifyCall)
	}{
		{
			name:         "targeted session receives change",
			args:         map[string]any{"op": "update", "path": "user/name", "value_json": `"Alice"`, "session_id": "s1"},
			wantContains: `"accepted":true`,
			wantCalls:    1,
			check: func(t *testing.T, calls []notifyCall) {
				require.NotNil(t, calls[0].sess)
				assert.Equal(t, "s1", calls[0].sess.ID())
				assert.Equal(t, change.OpUpdate, calls[0].op)
				assert.Equal(t, "user/name", calls[0].path)
				assert.Equal(t, "Alice", calls[0].value)
			},
		},
		{
			name:         "unknown session is handed through as nil",
			args:         map[string]any{"op": "delete", "session_id": "missing"},
			wantContains: `"accepted":true`,
			wantCalls:    1,
			check: func(t *testing.T, calls []notifyCall) {
				assert.Nil(t, calls[0].sess)
				assert.Nil(t, calls[0].value)
			},
		},
		{
			name:         "no session_id fans out to every session",
			args:         map[string]any{"op": "CREATE", "path": "items", "value_json": `[1,2]`},
			wantContains: `"sessions":2`,
			wantCalls:    2,
			check: func(t *testing.T, calls []notifyCall) {
				assert.Equal(t, "s1", calls[0].sess.ID())
				assert.Equal(t, "s2", calls[1].sess.ID())
				assert.Equal(t, []any{float64(1), float64(2)}, calls[0].value)
			},
		},
		{
			name:         "invalid op returns error text",
			args:         map[string]any{"op": "upsert", "session_id": "s1"},
			wantContains: "error: op must be one of",
		},
		{
			name:         "invalid value_json returns error text",
			args:         map[string]any{"op": "update", "value_json": "{nope", "session_id": "s1"},
			wantContains: "error: value_json is not valid JSON",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			strategy := &captureStrategy{}
			handler := notifyChangeHandler(newDir("s1", "s2"), strategy)

			result, err := handler(context.Background(), makeReq(tt.args))
			require.NoError(t, err)
			assert.Contains(t, resultText(result), tt.wantContains)

			require.Len(t, strategy.calls, tt.wantCalls)
			if tt.check != nil {
				tt.check(t, strategy.calls)
			}
		})
	}
}

// ── listSessionsHandler ───────────────────────────────────────────────────────

func TestListSessionsHandler(t *testing.T) {
	handler := listSessionsHandler(newDir("b", "a"))

	result, err := handler(context.Background(), makeReq(nil))
	require.NoError(t, err)

	var got []sessionInfo
	require.NoError(t, json.Unmarshal([]byte(resultText(result)), &got))
	assert.Equal(t, []sessionInfo{
		{ID: "a", Transport: "ws", Active: true},
		{ID: "b", Transport: "ws", Active: true},
	}, got)
}
