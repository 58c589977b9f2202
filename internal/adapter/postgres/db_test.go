package postgres_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pgdb "github.com/alanyang/statesync/internal/adapter/postgres"
)

func TestConnect_InvalidConnString(t *testing.T) {
	pool, err := pgdb.Connect(context.Background(), "postgres://localhost:5432/statesync?pool_max_conns=lots")
	require.Error(t, err)
	assert.Nil(t, pool)
	assert.Contains(t, err.Error(), "parsing connection string")
}
