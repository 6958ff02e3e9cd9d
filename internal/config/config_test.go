package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load(New(), "")
	require.NoError(t, err)

	assert.Equal(t, ":5555", cfg.HTTP.Addr)
	assert.Equal(t, []string{"*"}, cfg.HTTP.CORSOrigins)
	assert.Equal(t, 10*time.Second, cfg.HTTP.ShutdownTimeout)
	assert.Equal(t, DriverSQLite, cfg.Storage.Driver)
	assert.Equal(t, "todoapp", cfg.Storage.Mongo.Database)
	assert.Equal(t, "todos", cfg.Storage.Mongo.Collection)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "UTC", cfg.App.Timezone)
}

func TestLoad_Timezone(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("TODO_APP_TIMEZONE", "America/New_York")

	cfg, err := Load(New(), "")
	require.NoError(t, err)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "America/New_York", loc.String())

	t.Setenv("TODO_APP_TIMEZONE", "Mars/Olympus")
	_, err = Load(New(), "")
	assert.Error(t, err)
}

func TestLoad_LegacyEnv(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("PORT", "6000")
	t.Setenv("MONGOURI", "mongodb://localhost:27017")
	t.Setenv("TODO_STORAGE_DRIVER", "mongo")

	cfg, err := Load(New(), "")
	require.NoError(t, err)

	assert.Equal(t, ":6000", cfg.HTTP.Addr)
	assert.Equal(t, DriverMongo, cfg.Storage.Driver)
	assert.Equal(t, "mongodb://localhost:27017", cfg.Storage.Mongo.URI)
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "todo.yaml")
	content := `
http:
  addr: ":7070"
  shutdown_timeout: 3s
storage:
  driver: memory
log:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(New(), path)
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.HTTP.Addr)
	assert.Equal(t, 3*time.Second, cfg.HTTP.ShutdownTimeout)
	assert.Equal(t, DriverMemory, cfg.Storage.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(New(), filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	cfg.Storage.Driver = DriverMongo
	assert.Error(t, cfg.Validate(), "mongo без URI")

	cfg.Storage.Mongo.URI = "mongodb://localhost"
	assert.NoError(t, cfg.Validate())

	cfg.Storage.Driver = "postgres"
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.HTTP.ShutdownTimeout = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.App.Timezone = ""
	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}
