package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/udisondev/terrastream/internal/terrain"
)

// ErrInjected is returned by fakes configured to fail.
var ErrInjected = errors.New("injected failure")

// SmallMeshSettings is the cheapest valid chunk layout: 53 samples per line,
// 50 world units per chunk.
func SmallMeshSettings() terrain.MeshSettings {
	return terrain.MeshSettings{MeshScale: 1, ChunkSizeIndex: 0}
}

// FlatHeightFields generates zero-height fields and counts calls.
// FailFirst makes the first N calls fail with ErrInjected.
type FlatHeightFields struct {
	FailFirst int

	mu    sync.Mutex
	calls int
}

// Generate implements terrain.HeightFieldGenerator.
func (g *FlatHeightFields) Generate(_ context.Context, width, height int, _ terrain.HeightFieldSettings, _ mgl64.Vec2) (*terrain.HeightField, error) {
	g.mu.Lock()
	g.calls++
	fail := g.calls <= g.FailFirst
	g.mu.Unlock()

	if fail {
		return nil, ErrInjected
	}
	return terrain.NewHeightField(width, height, make([]float32, width*height)), nil
}

// Calls returns the number of Generate calls so far.
func (g *FlatHeightFields) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

// CountingMesher wraps terrain.GridMesher and counts calls per LOD.
// FailLOD maps a LOD to the number of leading calls that fail.
type CountingMesher struct {
	FailLOD map[int]int

	mu    sync.Mutex
	calls map[int]int
}

// Generate implements terrain.MeshGenerator.
func (m *CountingMesher) Generate(hf *terrain.HeightField, settings terrain.MeshSettings, lod int) (*terrain.MeshData, error) {
	m.mu.Lock()
	if m.calls == nil {
		m.calls = make(map[int]int)
	}
	m.calls[lod]++
	fail := m.calls[lod] <= m.FailLOD[lod]
	m.mu.Unlock()

	if fail {
		return nil, ErrInjected
	}
	return terrain.GridMesher{}.Generate(hf, settings, lod)
}

// Calls returns how many times lod was generated.
func (m *CountingMesher) Calls(lod int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[lod]
}

// RecordingSurface records what a chunk presented.
type RecordingSurface struct {
	Active        bool
	Mesh          *terrain.RenderMesh
	Collider      *terrain.RenderMesh
	MeshSets      int
	ColliderSets  int
	ActiveChanges int
}

func (s *RecordingSurface) SetActive(active bool) {
	if s.Active != active {
		s.ActiveChanges++
	}
	s.Active = active
}

func (s *RecordingSurface) SetMesh(mesh *terrain.RenderMesh) {
	s.Mesh = mesh
	s.MeshSets++
}

func (s *RecordingSurface) SetCollider(mesh *terrain.RenderMesh) {
	s.Collider = mesh
	s.ColliderSets++
}

// MovableObserver is a settable observer position for tests.
type MovableObserver struct {
	Pos mgl64.Vec2
}

// Position implements chunk.Observer.
func (o *MovableObserver) Position() mgl64.Vec2 {
	return o.Pos
}
