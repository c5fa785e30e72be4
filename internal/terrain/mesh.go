package terrain

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// MeshData is raw chunk geometry for one LOD.
// Vertices lie in chunk-local space centred on the chunk origin; X grows with
// the column index, Z shrinks with the row index.
type MeshData struct {
	Vertices  []mgl32.Vec3
	Normals   []mgl32.Vec3
	UVs       []mgl32.Vec2
	Triangles []uint32
}

// TriangleCount returns the number of triangles.
func (m *MeshData) TriangleCount() int {
	return len(m.Triangles) / 3
}

// MeshGenerator triangulates a height field at a level of detail.
// Implementations must be pure and safe to call from any goroutine.
type MeshGenerator interface {
	Generate(hf *HeightField, settings MeshSettings, lod int) (*MeshData, error)
}

// MeshFunc adapts a plain function to MeshGenerator.
type MeshFunc func(hf *HeightField, settings MeshSettings, lod int) (*MeshData, error)

// Generate calls f.
func (f MeshFunc) Generate(hf *HeightField, settings MeshSettings, lod int) (*MeshData, error) {
	return f(hf, settings, lod)
}

// GridMesher builds a regular grid mesh, skipping samples at LODStride(lod).
// The zero value is ready to use.
type GridMesher struct{}

// Generate implements MeshGenerator.
func (GridMesher) Generate(hf *HeightField, settings MeshSettings, lod int) (*MeshData, error) {
	if hf == nil || len(hf.Values) == 0 {
		return nil, ErrEmptyHeightData
	}
	if lod < 0 || lod >= NumSupportedLODs {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedLOD, lod)
	}
	n := settings.NumVertsPerLine()
	if hf.Width != n || hf.Height != n {
		return nil, fmt.Errorf("%w: got %dx%d, want %dx%d", ErrSizeMismatch, hf.Width, hf.Height, n, n)
	}

	samples := sampleIndices(n, LODStride(lod))
	side := len(samples)
	worldSize := float32(settings.MeshWorldSize())
	scale := float32(settings.MeshScale)
	span := float32(n - 3)

	vertices := make([]mgl32.Vec3, 0, side*side)
	normals := make([]mgl32.Vec3, 0, side*side)
	uvs := make([]mgl32.Vec2, 0, side*side)

	for _, row := range samples {
		for _, col := range samples {
			u := float32(col-1) / span
			v := float32(row-1) / span
			vertices = append(vertices, mgl32.Vec3{
				(u - 0.5) * worldSize,
				hf.At(col, row),
				(0.5 - v) * worldSize,
			})
			uvs = append(uvs, mgl32.Vec2{u, v})
			// Central differences reach into the border ring, so seams between
			// chunks get matching normals.
			normals = append(normals, mgl32.Vec3{
				hf.At(col-1, row) - hf.At(col+1, row),
				2 * scale,
				hf.At(col, row+1) - hf.At(col, row-1),
			}.Normalize())
		}
	}

	triangles := make([]uint32, 0, (side-1)*(side-1)*6)
	for r := 0; r < side-1; r++ {
		for c := 0; c < side-1; c++ {
			a := uint32(r*side + c)
			b := a + 1
			cc := a + uint32(side)
			d := cc + 1
			triangles = append(triangles, a, d, cc, d, a, b)
		}
	}

	mesh := &MeshData{
		Vertices:  vertices,
		Normals:   normals,
		UVs:       uvs,
		Triangles: triangles,
	}
	if settings.UseFlatShading {
		mesh = flatShade(mesh)
	}
	return mesh, nil
}

// sampleIndices lists the height field indices that become vertices:
// every stride-th inner sample, always ending on the last inner one.
func sampleIndices(n, stride int) []int {
	last := n - 2
	out := make([]int, 0, (last-1)/stride+2)
	for i := 1; i < last; i += stride {
		out = append(out, i)
	}
	return append(out, last)
}

// flatShade unshares vertices so every triangle carries its face normal.
func flatShade(m *MeshData) *MeshData {
	out := &MeshData{
		Vertices:  make([]mgl32.Vec3, len(m.Triangles)),
		Normals:   make([]mgl32.Vec3, len(m.Triangles)),
		UVs:       make([]mgl32.Vec2, len(m.Triangles)),
		Triangles: make([]uint32, len(m.Triangles)),
	}
	for i := 0; i < len(m.Triangles); i += 3 {
		v0 := m.Vertices[m.Triangles[i]]
		v1 := m.Vertices[m.Triangles[i+1]]
		v2 := m.Vertices[m.Triangles[i+2]]
		normal := v1.Sub(v0).Cross(v2.Sub(v0)).Normalize()
		for k := range 3 {
			src := m.Triangles[i+k]
			out.Vertices[i+k] = m.Vertices[src]
			out.UVs[i+k] = m.UVs[src]
			out.Normals[i+k] = normal
			out.Triangles[i+k] = uint32(i + k)
		}
	}
	return out
}
