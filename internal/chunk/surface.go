package chunk

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/udisondev/terrastream/internal/terrain"
)

// Observer reports the ground-plane position chunks measure distance from.
type Observer interface {
	Position() mgl64.Vec2
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func() mgl64.Vec2

// Position calls f.
func (f ObserverFunc) Position() mgl64.Vec2 {
	return f()
}

// Surface is the presentation side of one chunk: whatever draws its mesh
// and owns its collider. All methods are called on the consumer goroutine.
type Surface interface {
	SetActive(active bool)
	SetMesh(mesh *terrain.RenderMesh)
	SetCollider(mesh *terrain.RenderMesh)
}

// NopSurface discards everything. Used when no presentation layer is attached.
type NopSurface struct{}

func (NopSurface) SetActive(bool)                  {}
func (NopSurface) SetMesh(*terrain.RenderMesh)     {}
func (NopSurface) SetCollider(*terrain.RenderMesh) {}
