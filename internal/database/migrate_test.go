package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationSource(t *testing.T) {
	migrations, err := migrationSource().FindMigrations()
	require.NoError(t, err)
	require.NotEmpty(t, migrations)

	first := migrations[0]
	assert.Equal(t, "0001_waitlist.sql", first.Id)
	assert.NotEmpty(t, first.Up)
	assert.NotEmpty(t, first.Down)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.True(t, cfg.Automigrate)
	assert.Positive(t, cfg.ConnectAttempts)
	assert.GreaterOrEqual(t, cfg.MaxConns, cfg.MinConns)
}
