package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/terrastream/internal/chunk"
	"github.com/udisondev/terrastream/internal/terrain"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "terrastream.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_OverridesDefaults(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
log_level: debug
streaming:
  workers: 3
  tick_interval: 50ms
  viewer_move_threshold: 25
mesh:
  mesh_scale: 1
  chunk_size_index: 0
lods:
  - lod: 0
    visible_distance: 50
  - lod: 2
    visible_distance: 150
collider_lod_index: 1
store:
  driver: sqlite
  path: /tmp/hf.db
feed:
  enabled: true
observer:
  path: orbit
  radius: 300
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 3, cfg.Streaming.Workers)
	assert.Equal(t, 50*time.Millisecond, cfg.Streaming.TickInterval)
	assert.InDelta(t, 25.0, cfg.Streaming.ViewerMoveThreshold, 1e-9)
	assert.Equal(t, chunk.DefaultMaxAttempts, cfg.Streaming.MaxGenerationAttempts, "unset keys keep defaults")
	assert.Equal(t, StoreSQLite, cfg.Store.Driver)
	assert.Equal(t, "127.0.0.1:8090", cfg.Feed.Addr)
	assert.Equal(t, PathOrbit, cfg.Observer.Path)

	settings := cfg.ChunkSettings()
	assert.Equal(t, []terrain.LODInfo{terrain.NewLODInfo(0, 50), terrain.NewLODInfo(2, 150)}, settings.LODs)
	assert.Equal(t, 1, settings.ColliderLODIndex)
	assert.InDelta(t, 50.0, settings.Mesh.MeshWorldSize(), 1e-9)
}

func TestLoad_ParseError(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "streaming: [not, a, map]\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing config")
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr error
	}{
		{"no workers", func(c *Config) { c.Streaming.Workers = 0 }, ErrWorkers},
		{"zero tick", func(c *Config) { c.Streaming.TickInterval = 0 }, ErrTickInterval},
		{"no lods", func(c *Config) { c.LODs = nil }, chunk.ErrNoLODs},
		{"unordered lods", func(c *Config) {
			c.LODs = []LOD{{Level: 0, VisibleDistance: 200}, {Level: 1, VisibleDistance: 200}}
		}, chunk.ErrLODOrder},
		{"lod level out of range", func(c *Config) { c.LODs[2].Level = terrain.NumSupportedLODs }, terrain.ErrUnsupportedLOD},
		{"collider index", func(c *Config) { c.ColliderLODIndex = 3 }, chunk.ErrColliderLOD},
		{"chunk size index", func(c *Config) { c.Mesh.ChunkSizeIndex = len(terrain.SupportedChunkSizes) }, terrain.ErrInvalidMesh},
		{"noise octaves", func(c *Config) { c.HeightField.Noise.Octaves = 0 }, terrain.ErrInvalidNoise},
		{"store driver", func(c *Config) { c.Store.Driver = "redis" }, ErrStoreDriver},
		{"observer path", func(c *Config) { c.Observer.Path = "spiral" }, ErrObserverPath},
		{"feed addr", func(c *Config) { c.Feed.Enabled = true; c.Feed.Addr = "" }, ErrFeedAddr},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := Default()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), tt.wantErr)
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	t.Parallel()

	d := DatabaseConfig{Host: "db", Port: 5433, User: "u", Password: "p", DBName: "terrain", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@db:5433/terrain?sslmode=disable", d.DSN())
}
