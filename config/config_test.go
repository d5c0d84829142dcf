package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "database:\n  driver: sqlite\n  dsn: file:test.db\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "X-Station-ID", cfg.Server.StationHeader)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 2*time.Second, cfg.Store.PollInterval)
	assert.Equal(t, 2*time.Second, cfg.CheckIn.SelfScanGrace)
	assert.Equal(t, 5*time.Second, cfg.CheckIn.NotificationTTL)
	assert.Equal(t, 10*time.Second, cfg.CheckIn.WriteTimeout)
	assert.Equal(t, 30*time.Second, cfg.Roster.ReloadInterval)
	assert.Equal(t, 1, cfg.WorkerPool.Size)
	assert.Equal(t, 3600, cfg.Push.TTL)
	assert.Equal(t, "Unassigned", cfg.Projection.UnknownGroupLabel)
	assert.Equal(t, "vi", cfg.Projection.Locale)
	assert.NotEmpty(t, cfg.CheckIn.StationID, "a station id should be generated")
}

func TestLoad_ExplicitValues(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
checkin:
  station_id: gate-1
  self_scan_grace_ms: 500
  notification_ttl_seconds: 8
roster:
  path: ./roster.xlsx
  aliases:
    display_name: ["Full name"]
projection:
  group_order: ["Board", "Finance"]
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "gate-1", cfg.CheckIn.StationID)
	assert.Equal(t, 500*time.Millisecond, cfg.CheckIn.SelfScanGrace)
	assert.Equal(t, 8*time.Second, cfg.CheckIn.NotificationTTL)
	assert.Equal(t, "./roster.xlsx", cfg.Roster.Path)
	assert.Equal(t, []string{"Full name"}, cfg.Roster.Aliases["display_name"])
	assert.Equal(t, []string{"Board", "Finance"}, cfg.Projection.GroupOrder)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_DSN", "postgres://override")
	t.Setenv("SERVER_PORT", "7070")
	t.Setenv("STATION_ID", "gate-env")
	path := writeConfig(t, "database:\n  dsn: postgres://file\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres://override", cfg.Database.DSN)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "gate-env", cfg.CheckIn.StationID)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
