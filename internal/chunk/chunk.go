package chunk

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/udisondev/terrastream/internal/dispatch"
	"github.com/udisondev/terrastream/internal/terrain"
)

const (
	// DefaultColliderGenerationDistance is how close (to the chunk edge) the
	// observer must be before the collider is assigned.
	DefaultColliderGenerationDistance = 5.0

	// DefaultMaxAttempts bounds retries of a failing generation task.
	DefaultMaxAttempts = 3
)

// Coord identifies a chunk on the streaming grid.
type Coord struct {
	X, Y int
}

func (c Coord) String() string {
	return fmt.Sprintf("(%d,%d)", c.X, c.Y)
}

// State is the chunk lifecycle state.
type State int

const (
	StateCreated State = iota
	StateAwaitingHeightField
	StateReady
	StateFailed
	StateDisposed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateAwaitingHeightField:
		return "awaiting_height_field"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	case StateDisposed:
		return "disposed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Settings is shared, read-only chunk configuration.
type Settings struct {
	HeightField      terrain.HeightFieldSettings
	Mesh             terrain.MeshSettings
	LODs             []terrain.LODInfo
	ColliderLODIndex int

	// ColliderGenerationDistance <= 0 means DefaultColliderGenerationDistance.
	ColliderGenerationDistance float64
	// MaxAttempts < 1 means DefaultMaxAttempts.
	MaxAttempts int
}

// Validate checks the LOD table and collider index.
func (s *Settings) Validate() error {
	if err := validateLODs(s.LODs); err != nil {
		return err
	}
	if s.ColliderLODIndex < 0 || s.ColliderLODIndex >= len(s.LODs) {
		return fmt.Errorf("%w: %d of %d", ErrColliderLOD, s.ColliderLODIndex, len(s.LODs))
	}
	return s.Mesh.Validate()
}

func (s *Settings) colliderDistance() float64 {
	if s.ColliderGenerationDistance <= 0 {
		return DefaultColliderGenerationDistance
	}
	return s.ColliderGenerationDistance
}

func (s *Settings) maxAttempts() int {
	if s.MaxAttempts < 1 {
		return DefaultMaxAttempts
	}
	return s.MaxAttempts
}

// Deps are the collaborators a chunk needs, injected at construction.
type Deps struct {
	Dispatcher   *dispatch.Dispatcher
	HeightFields terrain.HeightFieldGenerator
	Meshes       terrain.MeshGenerator
	Converter    terrain.MeshConverter // nil means terrain.BufferConverter
	Observer     Observer

	// Surface is the chunk's presentation; nil means NopSurface.
	Surface Surface
	// OnVisibilityChanged fires once per visibility edge.
	OnVisibilityChanged func(c *Chunk, visible bool)
}

// Chunk is one grid cell: its height field, per-LOD meshes, visibility and
// collider. It is not safe for concurrent use: every method, and every
// completion callback it registers, must run on the consumer goroutine.
type Chunk struct {
	coord    Coord
	settings *Settings
	deps     Deps

	bounds       terrain.Bounds
	sampleCenter mgl64.Vec2
	maxViewDist  float64

	ctx    context.Context
	cancel context.CancelFunc

	state           State
	heightField     *terrain.HeightField
	heightRequested bool
	heightAttempts  int

	slots       []*LODMesh
	prevLOD     int
	visible     bool
	colliderSet bool
	lastErr     error
}

// New builds a chunk at coord. It validates dependencies up front so a
// misconfigured streamer fails at construction, not inside the tick loop.
func New(coord Coord, settings *Settings, deps Deps) (*Chunk, error) {
	switch {
	case deps.Observer == nil:
		return nil, ErrNoObserver
	case deps.Dispatcher == nil:
		return nil, ErrNoDispatcher
	case deps.HeightFields == nil || deps.Meshes == nil:
		return nil, ErrNoGenerator
	case settings == nil:
		return nil, ErrNoLODs
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if deps.Converter == nil {
		deps.Converter = terrain.BufferConverter{}
	}
	if deps.Surface == nil {
		deps.Surface = NopSurface{}
	}

	worldSize := settings.Mesh.MeshWorldSize()
	position := mgl64.Vec2{float64(coord.X), float64(coord.Y)}.Mul(worldSize)

	ctx, cancel := context.WithCancel(context.Background())
	c := &Chunk{
		coord:        coord,
		settings:     settings,
		deps:         deps,
		bounds:       terrain.NewBounds(position, mgl64.Vec2{worldSize, worldSize}),
		sampleCenter: position.Mul(1 / settings.Mesh.MeshScale),
		maxViewDist:  terrain.MaxViewDistance(settings.LODs),
		ctx:          ctx,
		cancel:       cancel,
		prevLOD:      -1,
	}

	c.slots = make([]*LODMesh, len(settings.LODs))
	for i, info := range settings.LODs {
		slot := newLODMesh(c, info.LOD)
		slot.onReady(c.Update)
		if i == settings.ColliderLODIndex {
			slot.onReady(c.UpdateCollisionMesh)
		}
		c.slots[i] = slot
	}

	c.deps.Surface.SetActive(false)
	return c, nil
}

// Load requests the height field. Only the first call has an effect.
func (c *Chunk) Load() {
	if c.state != StateCreated {
		return
	}
	c.state = StateAwaitingHeightField
	c.requestHeightField()
}

func (c *Chunk) requestHeightField() {
	c.heightRequested = true
	n := c.settings.Mesh.NumVertsPerLine()
	settings := c.settings.HeightField
	center := c.sampleCenter
	gen := c.deps.HeightFields

	dispatch.Submit(c.deps.Dispatcher, c.ctx, func(ctx context.Context) (*terrain.HeightField, error) {
		return gen.Generate(ctx, n, n, settings, center)
	}, c.onHeightField)
}

func (c *Chunk) onHeightField(res dispatch.Result[*terrain.HeightField]) {
	if c.state != StateAwaitingHeightField {
		return
	}
	c.heightRequested = false

	if res.Err != nil {
		c.heightAttempts++
		genErr := &GenerationError{Coord: c.coord, Stage: StageHeightField, LOD: -1, Attempt: c.heightAttempts, Err: res.Err}
		if c.heightAttempts >= c.settings.maxAttempts() {
			c.state = StateFailed
			c.lastErr = fmt.Errorf("%w: %w", ErrAttemptsExhausted, genErr)
			slog.Error("height field generation abandoned", "coord", c.coord, "attempts", c.heightAttempts, "err", res.Err)
			return
		}
		c.lastErr = genErr
		slog.Warn("height field generation failed", "coord", c.coord, "attempt", c.heightAttempts, "err", res.Err)
		return
	}

	c.heightField = res.Value
	c.state = StateReady
	slog.Debug("height field received", "coord", c.coord, "min", res.Value.Min, "max", res.Value.Max)

	c.Update()
}

// Update re-evaluates LOD and visibility against the observer.
// Before the height field arrives it only retries a failed height request.
func (c *Chunk) Update() {
	switch c.state {
	case StateAwaitingHeightField:
		if !c.heightRequested {
			c.requestHeightField()
		}
		return
	case StateReady:
	default:
		return
	}

	distance := math.Sqrt(c.sqrDistance())
	wasVisible := c.visible
	lodIndex, visible := SelectLOD(distance, c.settings.LODs)

	if visible && lodIndex != c.prevLOD {
		slot := c.slots[lodIndex]
		switch {
		case slot.Ready():
			c.prevLOD = lodIndex
			c.deps.Surface.SetMesh(slot.mesh)
			slog.Debug("chunk LOD applied", "coord", c.coord, "lod", slot.lod, "index", lodIndex)
		case slot.Idle():
			slot.request(c.heightField)
		}
	}

	if wasVisible != visible {
		c.setVisible(visible)
	}
}

// UpdateCollisionMesh requests the collider LOD when the observer is within
// its range and assigns the collider once the observer is close enough.
// After the first assignment it does nothing.
func (c *Chunk) UpdateCollisionMesh() {
	if c.colliderSet || c.state != StateReady {
		return
	}

	sqr := c.sqrDistance()
	idx := c.settings.ColliderLODIndex
	slot := c.slots[idx]

	if sqr < c.settings.LODs[idx].SqrVisibleDistance() && slot.Idle() {
		slot.request(c.heightField)
	}

	limit := c.settings.colliderDistance()
	if sqr < limit*limit && slot.Ready() {
		c.deps.Surface.SetCollider(slot.mesh)
		c.colliderSet = true
		slog.Debug("chunk collider set", "coord", c.coord, "lod", slot.lod)
	}
}

// Dispose cancels pending work and hides the chunk. Completions arriving
// afterwards are dropped. A visible chunk emits a final visibility edge.
func (c *Chunk) Dispose() {
	if c.state == StateDisposed {
		return
	}
	c.state = StateDisposed
	c.cancel()
	if c.visible {
		c.setVisible(false)
	}
	slog.Debug("chunk disposed", "coord", c.coord)
}

func (c *Chunk) setVisible(visible bool) {
	c.visible = visible
	c.deps.Surface.SetActive(visible)
	if c.deps.OnVisibilityChanged != nil {
		c.deps.OnVisibilityChanged(c, visible)
	}
}

func (c *Chunk) sqrDistance() float64 {
	return c.bounds.SqrDistance(c.deps.Observer.Position())
}

// Coord returns the grid coordinate.
func (c *Chunk) Coord() Coord { return c.coord }

// State returns the lifecycle state.
func (c *Chunk) State() State { return c.state }

// Visible reports the current visibility.
func (c *Chunk) Visible() bool { return c.visible }

// ActiveLOD returns the applied LOD table index, or -1 if none.
func (c *Chunk) ActiveLOD() int { return c.prevLOD }

// HasCollider reports whether the collider is assigned.
func (c *Chunk) HasCollider() bool { return c.colliderSet }

// HeightField returns the height field, nil until it arrives.
func (c *Chunk) HeightField() *terrain.HeightField { return c.heightField }

// Bounds returns the world-space bounds.
func (c *Chunk) Bounds() terrain.Bounds { return c.bounds }

// SampleCenter returns the height field origin in sample space.
func (c *Chunk) SampleCenter() mgl64.Vec2 { return c.sampleCenter }

// MaxViewDistance returns the coarsest LOD threshold.
func (c *Chunk) MaxViewDistance() float64 { return c.maxViewDist }

// Slot returns the LOD slot at table index i.
func (c *Chunk) Slot(i int) *LODMesh { return c.slots[i] }

// SlotCount returns the number of LOD slots.
func (c *Chunk) SlotCount() int { return len(c.slots) }

// LastError returns the most recent generation failure, if any.
func (c *Chunk) LastError() error { return c.lastErr }
