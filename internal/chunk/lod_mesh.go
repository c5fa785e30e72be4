package chunk

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/udisondev/terrastream/internal/dispatch"
	"github.com/udisondev/terrastream/internal/terrain"
)

// SlotState is the request state of one LOD mesh.
type SlotState int

const (
	SlotIdle SlotState = iota
	SlotRequested
	SlotAvailable
	SlotFailed
)

func (s SlotState) String() string {
	switch s {
	case SlotIdle:
		return "idle"
	case SlotRequested:
		return "requested"
	case SlotAvailable:
		return "available"
	case SlotFailed:
		return "failed"
	default:
		return fmt.Sprintf("slot(%d)", int(s))
	}
}

// LODMesh caches one chunk's mesh at one level of detail.
// A request is issued at most once unless it fails, and the mesh, once
// available, never changes.
type LODMesh struct {
	owner *Chunk
	lod   int

	state    SlotState
	mesh     *terrain.RenderMesh
	requests int
	attempts int

	callbacks []func()
}

func newLODMesh(owner *Chunk, lod int) *LODMesh {
	return &LODMesh{owner: owner, lod: lod}
}

// onReady registers fn to run each time a mesh arrives. Registration happens
// once, at chunk construction.
func (m *LODMesh) onReady(fn func()) {
	m.callbacks = append(m.callbacks, fn)
}

// request submits mesh generation for this LOD unless a request is already
// in flight or done.
func (m *LODMesh) request(hf *terrain.HeightField) {
	if m.state != SlotIdle {
		return
	}
	m.state = SlotRequested
	m.requests++

	gen := m.owner.deps.Meshes
	settings := m.owner.settings.Mesh
	lod := m.lod

	dispatch.Submit(m.owner.deps.Dispatcher, m.owner.ctx, func(_ context.Context) (*terrain.MeshData, error) {
		return gen.Generate(hf, settings, lod)
	}, m.onMeshData)
}

func (m *LODMesh) onMeshData(res dispatch.Result[*terrain.MeshData]) {
	c := m.owner
	if c.state == StateDisposed || m.state != SlotRequested {
		return
	}

	if res.Err != nil {
		m.attempts++
		genErr := &GenerationError{Coord: c.coord, Stage: StageMesh, LOD: m.lod, Attempt: m.attempts, Err: res.Err}
		if m.attempts >= c.settings.maxAttempts() {
			m.state = SlotFailed
			c.lastErr = fmt.Errorf("%w: %w", ErrAttemptsExhausted, genErr)
			slog.Error("mesh generation abandoned", "coord", c.coord, "lod", m.lod, "attempts", m.attempts, "err", res.Err)
			return
		}
		m.state = SlotIdle
		c.lastErr = genErr
		slog.Warn("mesh generation failed", "coord", c.coord, "lod", m.lod, "attempt", m.attempts, "err", res.Err)
		return
	}

	m.mesh = c.deps.Converter.Convert(res.Value)
	m.state = SlotAvailable
	slog.Debug("mesh received", "coord", c.coord, "lod", m.lod, "triangles", m.mesh.TriangleCount())

	for _, fn := range m.callbacks {
		fn()
	}
}

// LOD returns the mesh detail level.
func (m *LODMesh) LOD() int { return m.lod }

// State returns the request state.
func (m *LODMesh) State() SlotState { return m.state }

// Idle reports whether a request may be issued.
func (m *LODMesh) Idle() bool { return m.state == SlotIdle }

// Requested reports whether a request was ever issued and not rolled back.
func (m *LODMesh) Requested() bool { return m.state != SlotIdle }

// Ready reports whether the mesh is available.
func (m *LODMesh) Ready() bool { return m.state == SlotAvailable }

// Mesh returns the render mesh, nil until ready.
func (m *LODMesh) Mesh() *terrain.RenderMesh { return m.mesh }

// Requests returns how many generation tasks this slot submitted.
func (m *LODMesh) Requests() int { return m.requests }
