package world

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/udisondev/terrastream/internal/chunk"
	"github.com/udisondev/terrastream/internal/dispatch"
	"github.com/udisondev/terrastream/internal/terrain"
)

// DefaultTickInterval is the streaming loop period used by Start.
const DefaultTickInterval = 16 * time.Millisecond

// ErrNoSettings is returned by NewManager without chunk settings.
var ErrNoSettings = errors.New("world: chunk settings are required")

// Options configures a Manager.
type Options struct {
	Settings     *chunk.Settings
	Dispatcher   *dispatch.Dispatcher
	HeightFields terrain.HeightFieldGenerator
	Meshes       terrain.MeshGenerator
	Converter    terrain.MeshConverter
	Observer     chunk.Observer

	// Surfaces builds the presentation for a new chunk; nil means
	// chunk.NopSurface for every chunk.
	Surfaces func(coord chunk.Coord) chunk.Surface

	// TickInterval <= 0 means DefaultTickInterval.
	TickInterval time.Duration

	// ViewerMoveThreshold is how far the observer must move before the
	// generation window is recomputed. 0 recomputes every tick.
	ViewerMoveThreshold float64

	// UnloadMargin is how far past the maximum view distance a chunk outside
	// the window may drift before it is disposed. Negative disables unloading.
	UnloadMargin float64
}

// Stats is a point-in-time view of the streamer.
type Stats struct {
	Ticks      uint64
	Chunks     int
	Visible    int
	Created    uint64
	Disposed   uint64
	Dispatcher dispatch.Stats
}

// Manager owns every chunk around one observer and keeps the generation
// window centred on it. Tick, UpdateVisibleChunks, Chunk and Start must run
// on the single consumer goroutine; counters and Subscribe are safe from any
// goroutine.
type Manager struct {
	settings   *chunk.Settings
	dispatcher *dispatch.Dispatcher
	deps       chunk.Deps
	surfaces   func(chunk.Coord) chunk.Surface

	interval        time.Duration
	moveThreshold   float64
	unloadMargin    float64
	worldSize       float64
	maxViewDistance float64
	viewRadius      int

	chunks  map[chunk.Coord]*chunk.Chunk
	visible map[chunk.Coord]*chunk.Chunk

	lastPos       mgl64.Vec2
	lastUpdatePos mgl64.Vec2
	started       bool

	subs subscribers

	ticks        atomic.Uint64
	chunkCount   atomic.Int64
	visibleCount atomic.Int64
	created      atomic.Uint64
	disposed     atomic.Uint64
}

// NewManager validates opts and returns an idle manager. No chunk exists
// until the first Tick.
func NewManager(opts Options) (*Manager, error) {
	switch {
	case opts.Settings == nil:
		return nil, ErrNoSettings
	case opts.Observer == nil:
		return nil, chunk.ErrNoObserver
	case opts.Dispatcher == nil:
		return nil, chunk.ErrNoDispatcher
	case opts.HeightFields == nil || opts.Meshes == nil:
		return nil, chunk.ErrNoGenerator
	}
	if err := opts.Settings.Validate(); err != nil {
		return nil, fmt.Errorf("world: %w", err)
	}

	interval := opts.TickInterval
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	converter := opts.Converter
	if converter == nil {
		converter = terrain.BufferConverter{}
	}

	worldSize := opts.Settings.Mesh.MeshWorldSize()
	maxView := terrain.MaxViewDistance(opts.Settings.LODs)

	m := &Manager{
		settings:        opts.Settings,
		dispatcher:      opts.Dispatcher,
		surfaces:        opts.Surfaces,
		interval:        interval,
		moveThreshold:   opts.ViewerMoveThreshold,
		unloadMargin:    opts.UnloadMargin,
		worldSize:       worldSize,
		maxViewDistance: maxView,
		viewRadius:      ViewRadius(maxView, worldSize),
		chunks:          make(map[chunk.Coord]*chunk.Chunk),
		visible:         make(map[chunk.Coord]*chunk.Chunk),
	}
	m.deps = chunk.Deps{
		Dispatcher:          opts.Dispatcher,
		HeightFields:        opts.HeightFields,
		Meshes:              opts.Meshes,
		Converter:           converter,
		Observer:            opts.Observer,
		OnVisibilityChanged: m.onVisibilityChanged,
	}
	return m, nil
}

// Start runs Tick every interval until ctx is cancelled, then disposes every
// chunk. Returns ctx.Err().
func (m *Manager) Start(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	slog.Info("Streaming manager started",
		"interval", m.interval,
		"chunkWorldSize", m.worldSize,
		"maxViewDistance", m.maxViewDistance,
		"viewRadius", m.viewRadius)

	for {
		select {
		case <-ctx.Done():
			slog.Info("Streaming manager stopping", "chunks", len(m.chunks))
			m.DisposeAll()
			return ctx.Err()

		case <-ticker.C:
			m.Tick()
		}
	}
}

// Tick runs one streaming step: deliver finished work, refresh colliders if
// the observer moved, and recompute the window once the observer has moved
// past the threshold (always on the first tick).
func (m *Manager) Tick() {
	tick := m.ticks.Add(1)
	delivered := m.dispatcher.Drain()

	pos := m.deps.Observer.Position()
	moved := !m.started || pos != m.lastPos
	m.lastPos = pos

	if moved {
		for _, c := range m.visibleSnapshot() {
			c.UpdateCollisionMesh()
		}
	}

	threshold := m.moveThreshold * m.moveThreshold
	if !m.started || m.moveThreshold <= 0 || pos.Sub(m.lastUpdatePos).LenSqr() > threshold {
		m.started = true
		m.lastUpdatePos = pos
		m.UpdateVisibleChunks()
	}

	if delivered > 0 {
		slog.Debug("Streaming tick",
			"tick", tick,
			"delivered", delivered,
			"chunks", len(m.chunks),
			"visible", len(m.visible))
	}
}

// UpdateVisibleChunks refreshes every visible chunk, then walks the window
// around the observer: a known chunk is refreshed, an unknown coordinate gets
// a new chunk that starts loading. Chunks that left the window and drifted
// beyond the unload distance are disposed.
func (m *Manager) UpdateVisibleChunks() {
	updated := make(map[chunk.Coord]struct{}, len(m.visible))
	for _, c := range m.visibleSnapshot() {
		updated[c.Coord()] = struct{}{}
		c.Update()
	}

	pos := m.deps.Observer.Position()
	center := CoordFor(pos, m.worldSize)

	ForEachInWindow(center, m.viewRadius, func(coord chunk.Coord) {
		if _, ok := updated[coord]; ok {
			return
		}
		if c, ok := m.chunks[coord]; ok {
			c.Update()
			return
		}
		m.createChunk(coord)
	})

	m.unloadDistant(center, pos)
}

func (m *Manager) createChunk(coord chunk.Coord) {
	deps := m.deps
	if m.surfaces != nil {
		deps.Surface = m.surfaces(coord)
	}

	c, err := chunk.New(coord, m.settings, deps)
	if err != nil {
		// Settings and deps were validated by NewManager.
		slog.Error("chunk construction failed", "coord", coord, "err", err)
		return
	}

	m.chunks[coord] = c
	m.chunkCount.Store(int64(len(m.chunks)))
	m.created.Add(1)
	m.subs.publish(Event{Type: EventCreated, Coord: coord, Tick: m.ticks.Load()})

	c.Load()
}

func (m *Manager) unloadDistant(center chunk.Coord, pos mgl64.Vec2) {
	if m.unloadMargin < 0 {
		return
	}
	limit := m.maxViewDistance + m.unloadMargin
	limitSqr := limit * limit

	for coord, c := range m.chunks {
		if InWindow(coord, center, m.viewRadius) {
			continue
		}
		if c.Bounds().SqrDistance(pos) <= limitSqr {
			continue
		}
		m.dispose(coord, c)
	}
}

// DisposeAll disposes every chunk. The manager can keep ticking afterwards
// and will rebuild the window from scratch.
func (m *Manager) DisposeAll() {
	for coord, c := range m.chunks {
		m.dispose(coord, c)
	}
	m.started = false
}

func (m *Manager) dispose(coord chunk.Coord, c *chunk.Chunk) {
	c.Dispose()
	delete(m.chunks, coord)
	m.chunkCount.Store(int64(len(m.chunks)))
	m.disposed.Add(1)
	m.subs.publish(Event{Type: EventDisposed, Coord: coord, Tick: m.ticks.Load()})
}

func (m *Manager) onVisibilityChanged(c *chunk.Chunk, visible bool) {
	if visible {
		m.visible[c.Coord()] = c
	} else {
		delete(m.visible, c.Coord())
	}
	m.visibleCount.Store(int64(len(m.visible)))
	m.subs.publish(Event{Type: EventVisibility, Coord: c.Coord(), Visible: visible, Tick: m.ticks.Load()})
}

// visibleSnapshot copies the visible set so chunks may change visibility
// while the caller iterates.
func (m *Manager) visibleSnapshot() []*chunk.Chunk {
	out := make([]*chunk.Chunk, 0, len(m.visible))
	for _, c := range m.visible {
		out = append(out, c)
	}
	return out
}

// Subscribe registers fn for every streaming event. fn runs on the consumer
// goroutine and must not block. Call the returned func to unsubscribe.
func (m *Manager) Subscribe(fn func(Event)) (unsubscribe func()) {
	return m.subs.subscribe(fn)
}

// Chunk returns the chunk at coord, if it exists.
func (m *Manager) Chunk(coord chunk.Coord) (*chunk.Chunk, bool) {
	c, ok := m.chunks[coord]
	return c, ok
}

// IsVisible reports whether the chunk at coord is in the visible set.
func (m *Manager) IsVisible(coord chunk.Coord) bool {
	_, ok := m.visible[coord]
	return ok
}

// ChunkCount returns the number of live chunks.
func (m *Manager) ChunkCount() int { return int(m.chunkCount.Load()) }

// VisibleCount returns the number of visible chunks.
func (m *Manager) VisibleCount() int { return int(m.visibleCount.Load()) }

// ViewRadius returns the window radius in cells.
func (m *Manager) ViewRadius() int { return m.viewRadius }

// ChunkWorldSize returns the world-space edge length of one chunk.
func (m *Manager) ChunkWorldSize() float64 { return m.worldSize }

// Stats returns current counters.
func (m *Manager) Stats() Stats {
	return Stats{
		Ticks:      m.ticks.Load(),
		Chunks:     m.ChunkCount(),
		Visible:    m.VisibleCount(),
		Created:    m.created.Load(),
		Disposed:   m.disposed.Load(),
		Dispatcher: m.dispatcher.Stats(),
	}
}
