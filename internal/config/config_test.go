package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_TOMLOverlaysDefaults(t *testing.T) {
	path := writeFile(t, "server.toml", `
[server]
motd = "hello"

[simulation]
timestep = "5ms"
sim_rate = "50ms"

[network]
address = "0.0.0.0:9000"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "hello", cfg.Server.Motd)
	assert.Equal(t, "0.1.0", cfg.Server.Version, "unset keys keep defaults")
	assert.Equal(t, 5*time.Millisecond, cfg.Simulation.Timestep)
	assert.Equal(t, 50*time.Millisecond, cfg.Simulation.SimRate)
	assert.Equal(t, "0.0.0.0:9000", cfg.Network.Address)
	assert.Equal(t, 256, cfg.Network.OutQueueSize)
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "client.yaml", `
server:
  version: "2.0"
client:
  quit_on_disconnect: false
movement:
  travel_time: 250ms
script:
  enabled: true
  path: bots/walk.lua
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "2.0", cfg.Server.Version)
	assert.False(t, cfg.Client.QuitOnDisconnect)
	assert.Equal(t, 250*time.Millisecond, cfg.Movement.TravelTime)
	assert.True(t, cfg.Script.Enabled)
	assert.Equal(t, "bots/walk.lua", cfg.Script.Path)
}

func TestLoad_RejectsNonPositiveTimestep(t *testing.T) {
	path := writeFile(t, "bad.toml", `
[simulation]
timestep = "0s"
`)
	_, err := Load(path)
	assert.ErrorContains(t, err, "timestep")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestDefaultsMatchReferenceEndpoint(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "127.0.0.1:8844", cfg.Network.Address)
	assert.Equal(t, 2*time.Millisecond, cfg.Simulation.Timestep)
	assert.Equal(t, 33*time.Millisecond, cfg.Simulation.SimRate)
}

func TestNewLogger_TagsProcessAndFiltersLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "box.log")
	log, err := NewLogger("boxserver", LoggingConfig{Level: "warn", Format: "json", File: path})
	require.NoError(t, err)

	log.Info("hidden")
	log.Warn("shown", zap.Uint16("client_id", 3))
	_ = log.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "shown", entry["msg"])
	assert.Equal(t, "boxserver", entry["process"])
	assert.Equal(t, "boxserver", entry["logger"])
	assert.Equal(t, float64(3), entry["client_id"])
}

func TestNewLogger_UnknownLevelFallsBackToInfo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "box.log")
	log, err := NewLogger("boxclient", LoggingConfig{Level: "loud", Format: "json", File: path})
	require.NoError(t, err)
	log.Debug("hidden")
	log.Info("shown")
	_ = log.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(data), "\n"))
	assert.Contains(t, string(data), `"msg":"shown"`)
}

func TestNewLogger_RejectsUnknownFormat(t *testing.T) {
	_, err := NewLogger("boxserver", LoggingConfig{Format: "xml"})
	assert.ErrorContains(t, err, "xml")

	cfg := Defaults()
	cfg.Logging.Format = "xml"
	assert.ErrorContains(t, cfg.Validate(), "logging.format")
}

func TestLoad_ShippedConfigs(t *testing.T) {
	srv, err := Load(filepath.Join("..", "..", "config", "server.toml"))
	require.NoError(t, err)
	assert.Equal(t, "drink your ovaltine", srv.Server.Motd)
	assert.Equal(t, 200, srv.Network.FramesPerSecond)

	cl, err := Load(filepath.Join("..", "..", "config", "client.toml"))
	require.NoError(t, err)
	assert.True(t, cl.Script.Enabled)
	assert.True(t, cl.Client.QuitOnDisconnect)
	assert.Equal(t, [3]float32{5, 8, 30}, cl.Camera.Eye)
	assert.Equal(t, srv.Server.Version, cl.Server.Version, "handshake versions must agree")
}
