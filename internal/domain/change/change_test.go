package change_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyang/statesync/internal/domain/change"
)

// ── Op ────────────────────────────────────────────────────────────────────────

func TestOp_StringIsLowerCase(t *testing.T) {
	assert.Equal(t, "create", change.OpCreate.String())
	assert.Equal(t, "update", change.OpUpdate.String())
	assert.Equal(t, "delete", change.OpDelete.String())
}

func TestOp_Valid(t *testing.T) {
	assert.True(t, change.OpCreate.Valid())
	assert.True(t, change.OpDelete.Valid())
	assert.False(t, change.Op(0).Valid())
	assert.False(t, change.Op(42).Valid())
	assert.Equal(t, "op(42)", change.Op(42).String())
}

func TestParseOp(t *testing.T) {
	tests := []struct {
		in   string
		want change.Op
	}{
		{"create", change.OpCreate},
		{"UPDATE", change.OpUpdate},
		{" Delete ", change.OpDelete},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := change.ParseOp(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseOp_Unknown(t *testing.T) {
	_, err := change.ParseOp("upsert")
	require.Error(t, err)
	assert.ErrorIs(t, err, change.ErrUnknownOp)
}

// ── Record ────────────────────────────────────────────────────────────────────

func TestNew_NonEmptyPathGainsLeadingSlash(t *testing.T) {
	for _, p := range []string{"user/name", "x", "settings/mode/0"} {
		rec := change.New(change.OpUpdate, p, nil)
		assert.Equal(t, "/"+p, rec.Path)
	}
}

func TestNew_EmptyPathStaysEmpty(t *testing.T) {
	rec := change.New(change.OpDelete, "", nil)
	assert.Equal(t, "", rec.Path)
}

func TestNew_CapturesOpAndValue(t *testing.T) {
	value := map[string]any{"name": "Alice"}
	rec := change.New(change.OpCreate, "user", value)

	assert.Equal(t, "create", rec.Op)
	assert.Equal(t, value, rec.Value)
}

func TestRecord_JSONShape(t *testing.T) {
	data, err := json.Marshal(change.New(change.OpUpdate, "user/name", "Alice"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"op":"update","path":"/user/name","value":"Alice"}`, string(data))

	data, err = json.Marshal(change.New(change.OpDelete, "", nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"op":"delete","path":"","value":null}`, string(data))
}

func TestEnvelope_JSONShape(t *testing.T) {
	env := change.NewEnvelope(change.SyncChannel, []change.Record{change.New(change.OpCreate, "a", 1)})
	data, err := json.Marshal(env)
	require.NoError(t, err)
	assert.JSONEq(t, `{"channel":"/sync","data":[{"op":"create","path":"/a","value":1}]}`, string(data))
}
