package changes_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyang/statesync/internal/adapter/memory"
	"github.com/alanyang/statesync/internal/domain/change"
	"github.com/alanyang/statesync/internal/port/session"
	"github.com/alanyang/statesync/internal/testutil"
	"github.com/alanyang/statesync/internal/transport/changes"
)

// ── helpers ───────────────────────────────────────────────────────────────────

type notifyCall struct {
	sess  session.Session
	op    change.Op
	path  string
	value any
}

type captureStrategy struct {
	mu    sync.Mutex
	calls []notifyCall
}

func (c *captureStrategy) Notify(_ context.Context, sess session.Session, op change.Op, path string, value any) {
	c.mu.Lock()
	c.calls = append(c.calls, notifyCall{sess: sess, op: op, path: path, value: value})
	c.mu.Unlock()
}

func setup(t *testing.T, ids ...string) (*gin.Engine, *captureStrategy) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := memory.NewRegistry()
	for _, id := range ids {
		dir.Add("ws", testutil.NewFakeSession(id, testutil.NewCaptureChannel(change.SyncChannel)))
	}
	strategy := &captureStrategy{}

	r := gin.New()
	changes.Register(r.Group("/api"), strategy, dir)
	return r, strategy
}

func do(r http.Handler, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ── POST /sessions/:id/changes ────────────────────────────────────────────────

func TestNotifySession_Accepted(t *testing.T) {
	r, strategy := setup(t, "s1")

	w := do(r, http.MethodPost, "/api/sessions/s1/changes", `{"op":"Update","path":"user/name","value":"Alice"}`)
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.JSONEq(t, `{"accepted":true}`, w.Body.String())

	require.Len(t, strategy.calls, 1)
	call := strategy.calls[0]
	require.NotNil(t, call.sess)
	assert.Equal(t, "s1", call.sess.ID())
	assert.Equal(t, change.OpUpdate, call.op)
	assert.Equal(t, "user/name", call.path)
	assert.Equal(t, "Alice", call.value)
}

func TestNotifySession_UnknownSessionStillAccepted(t *testing.T) {
	r, strategy := setup(t)

	w := do(r, http.MethodPost, "/api/sessions/nope/changes", `{"op":"delete"}`)
	assert.Equal(t, http.StatusAccepted, w.Code)

	require.Len(t, strategy.calls, 1)
	assert.Nil(t, strategy.calls[0].sess)
	assert.Equal(t, "", strategy.calls[0].path)
}

func TestNotifySession_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed JSON", `{"op":`},
		{"missing op", `{"path":"x"}`},
		{"unknown op", `{"op":"upsert"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, strategy := setup(t, "s1")
			w := do(r, http.MethodPost, "/api/sessions/s1/changes", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Empty(t, strategy.calls)
		})
	}
}

// ── POST /changes ─────────────────────────────────────────────────────────────

func TestNotifyAll_FansOut(t *testing.T) {
	r, strategy := setup(t, "b", "a")

	w := do(r, http.MethodPost, "/api/changes", `{"op":"create","path":"items","value":{"n":1}}`)
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.JSONEq(t, `{"sessions":2}`, w.Body.String())

	require.Len(t, strategy.calls, 2)
	assert.Equal(t, "a", strategy.calls[0].sess.ID())
	assert.Equal(t, "b", strategy.calls[1].sess.ID())
	for _, call := range strategy.calls {
		assert.Equal(t, change.OpCreate, call.op)
		assert.Equal(t, map[string]any{"n": float64(1)}, call.value)
	}
}

func TestNotifyAll_NoSessions(t *testing.T) {
	r, strategy := setup(t)

	w := do(r, http.MethodPost, "/api/changes", `{"op":"update"}`)
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.JSONEq(t, `{"sessions":0}`, w.Body.String())
	assert.Empty(t, strategy.calls)
}

// ── GET /sessions ─────────────────────────────────────────────────────────────

func TestListSessions(t *testing.T) {
	r, _ := setup(t, "s2", "s1")

	w := do(r, http.MethodGet, "/api/sessions", "")
	require.Equal(t, http.StatusOK, w.Code)

	var got []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "s1", got[0]["id"])
	assert.Equal(t, "ws", got[0]["transport"])
	assert.Equal(t, true, got[0]["active"])
}
