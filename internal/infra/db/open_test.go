package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConnectionConfig(t *testing.T) {
	sqlite := DefaultConnectionConfig(DialectSQLite)
	assert.Equal(t, 1, sqlite.MaxOpenConns)
	assert.Equal(t, 1, sqlite.MaxIdleConns)

	pg := DefaultConnectionConfig(DialectPostgres)
	assert.Equal(t, 10, pg.MaxOpenConns)
	assert.Equal(t, 5, pg.MaxIdleConns)
	assert.Equal(t, 1*time.Hour, pg.ConnMaxLifetime)
	assert.Equal(t, 30*time.Minute, pg.ConnMaxIdleTime)
}

func TestGetConnectionConfigFromEnv(t *testing.T) {
	tests := []struct {
		name     string
		env      map[string]string
		expected ConnectionConfig
	}{
		{
			name:     "defaults",
			env:      map[string]string{},
			expected: DefaultConnectionConfig(DialectPostgres),
		},
		{
			name: "valid overrides",
			env: map[string]string{
				"DB_MAX_OPEN_CONNS":     "40",
				"DB_MAX_IDLE_CONNS":     "8",
				"DB_CONN_MAX_LIFETIME":  "2h",
				"DB_CONN_MAX_IDLE_TIME": "5m",
			},
			expected: ConnectionConfig{MaxOpenConns: 40, MaxIdleConns: 8, ConnMaxLifetime: 2 * time.Hour, ConnMaxIdleTime: 5 * time.Minute},
		},
		{
			name: "invalid values fall back",
			env: map[string]string{
				"DB_MAX_OPEN_CONNS":    "-1",
				"DB_MAX_IDLE_CONNS":    "abc",
				"DB_CONN_MAX_LIFETIME": "soon",
			},
			expected: DefaultConnectionConfig(DialectPostgres),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, k := range []string{"DB_MAX_OPEN_CONNS", "DB_MAX_IDLE_CONNS", "DB_CONN_MAX_LIFETIME", "DB_CONN_MAX_IDLE_TIME"} {
				t.Setenv(k, "")
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			assert.Equal(t, tt.expected, getConnectionConfigFromEnv(DialectPostgres))
		})
	}
}

func TestOpen_Errors(t *testing.T) {
	_, err := Open(context.Background(), Dialect("mysql"), "dsn")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported dialect")

	_, err = Open(context.Background(), DialectSQLite, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty DSN")
}

func TestOpen_SQLiteInMemory(t *testing.T) {
	ctx := context.Background()
	database, err := Open(ctx, DialectSQLite, "file::memory:")
	require.NoError(t, err)
	defer func() { _ = database.Close() }()

	require.NoError(t, MigrateUp(ctx, database, DialectSQLite))
	_, err = database.ExecContext(ctx, `INSERT INTO kv_store (key, value, updated_at) VALUES ('k', x'01', 1)`)
	assert.NoError(t, err)
}
