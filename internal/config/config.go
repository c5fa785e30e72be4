package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/udisondev/terrastream/internal/chunk"
	"github.com/udisondev/terrastream/internal/terrain"
)

// Store drivers.
const (
	StoreNone     = "none"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// Observer paths.
const (
	PathStatic = "static"
	PathLine   = "line"
	PathOrbit  = "orbit"
)

var (
	ErrWorkers      = errors.New("streaming.workers must be at least 1")
	ErrTickInterval = errors.New("streaming.tick_interval must be positive")
	ErrStoreDriver  = errors.New("unknown store driver")
	ErrObserverPath = errors.New("unknown observer path")
	ErrFeedAddr     = errors.New("feed.addr is required when the feed is enabled")
)

// Config holds all configuration for the terrain streamer.
type Config struct {
	LogLevel string `yaml:"log_level"` // debug, info, warn, error

	Streaming        Streaming                   `yaml:"streaming"`
	Mesh             terrain.MeshSettings        `yaml:"mesh"`
	HeightField      terrain.HeightFieldSettings `yaml:"height_field"`
	LODs             []LOD                       `yaml:"lods"`
	ColliderLODIndex int                         `yaml:"collider_lod_index"`

	Store    Store    `yaml:"store"`
	Feed     Feed     `yaml:"feed"`
	Observer Observer `yaml:"observer"`
}

// Streaming tunes the dispatcher and the manager loop.
type Streaming struct {
	Workers       int           `yaml:"workers"`
	TickInterval  time.Duration `yaml:"tick_interval"`
	StatsInterval time.Duration `yaml:"stats_interval"` // 0 disables periodic stats logging

	ViewerMoveThreshold        float64 `yaml:"viewer_move_threshold"`
	UnloadMargin               float64 `yaml:"unload_margin"` // negative keeps chunks forever
	ColliderGenerationDistance float64 `yaml:"collider_generation_distance"`
	MaxGenerationAttempts      int     `yaml:"max_generation_attempts"`
}

// LOD is one row of the detail table.
type LOD struct {
	Level           int     `yaml:"lod"`
	VisibleDistance float64 `yaml:"visible_distance"`
}

// Store selects where generated height fields are cached.
type Store struct {
	Driver   string         `yaml:"driver"`
	Path     string         `yaml:"path"` // sqlite file
	Database DatabaseConfig `yaml:"database"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// Feed configures the websocket event feed.
type Feed struct {
	Enabled    bool   `yaml:"enabled"`
	Addr       string `yaml:"addr"`
	SendBuffer int    `yaml:"send_buffer"` // events buffered per client before dropping
}

// Observer scripts the headless observer walk.
type Observer struct {
	Path    string     `yaml:"path"` // static, line, orbit
	Start   [2]float64 `yaml:"start"`
	Speed   float64    `yaml:"speed"`   // world units per second
	Heading float64    `yaml:"heading"` // degrees, line only
	Radius  float64    `yaml:"radius"`  // orbit only
}

// Default returns Config with sensible defaults.
func Default() Config {
	return Config{
		LogLevel: "info",
		Streaming: Streaming{
			Workers:                    runtime.NumCPU(),
			TickInterval:               16 * time.Millisecond,
			StatsInterval:              10 * time.Second,
			ColliderGenerationDistance: chunk.DefaultColliderGenerationDistance,
			MaxGenerationAttempts:      chunk.DefaultMaxAttempts,
		},
		Mesh:        terrain.DefaultMeshSettings(),
		HeightField: terrain.DefaultHeightFieldSettings(),
		LODs: []LOD{
			{Level: 0, VisibleDistance: 200},
			{Level: 1, VisibleDistance: 400},
			{Level: 4, VisibleDistance: 600},
		},
		ColliderLODIndex: 0,
		Store: Store{
			Driver: StoreNone,
			Path:   "data/heightfields.db",
			Database: DatabaseConfig{
				Host:     "127.0.0.1",
				Port:     5432,
				User:     "terrastream",
				Password: "terrastream",
				DBName:   "terrastream",
				SSLMode:  "disable",
			},
		},
		Feed: Feed{
			Addr:       "127.0.0.1:8090",
			SendBuffer: 256,
		},
		Observer: Observer{
			Path:  PathLine,
			Speed: 20,
		},
	}
}

// Load loads config from a YAML file.
// If the file doesn't exist, returns defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}

// LODInfos converts the detail table.
func (c Config) LODInfos() []terrain.LODInfo {
	out := make([]terrain.LODInfo, len(c.LODs))
	for i, l := range c.LODs {
		out[i] = terrain.NewLODInfo(l.Level, l.VisibleDistance)
	}
	return out
}

// ChunkSettings builds the shared chunk settings.
func (c Config) ChunkSettings() *chunk.Settings {
	return &chunk.Settings{
		HeightField:                c.HeightField,
		Mesh:                       c.Mesh,
		LODs:                       c.LODInfos(),
		ColliderLODIndex:           c.ColliderLODIndex,
		ColliderGenerationDistance: c.Streaming.ColliderGenerationDistance,
		MaxAttempts:                c.Streaming.MaxGenerationAttempts,
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.Streaming.Workers < 1 {
		return ErrWorkers
	}
	if c.Streaming.TickInterval <= 0 {
		return ErrTickInterval
	}
	if err := c.HeightField.Noise.Validate(); err != nil {
		return fmt.Errorf("height_field: %w", err)
	}
	if err := c.ChunkSettings().Validate(); err != nil {
		return fmt.Errorf("lods: %w", err)
	}

	switch c.Store.Driver {
	case StoreNone, StoreSQLite, StorePostgres:
	default:
		return fmt.Errorf("%w: %q", ErrStoreDriver, c.Store.Driver)
	}

	switch c.Observer.Path {
	case PathStatic, PathLine, PathOrbit:
	default:
		return fmt.Errorf("%w: %q", ErrObserverPath, c.Observer.Path)
	}

	if c.Feed.Enabled && c.Feed.Addr == "" {
		return ErrFeedAddr
	}
	return nil
}
