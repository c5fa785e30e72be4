package terrain

// RenderMesh is the renderer-ready form of MeshData: flat interleaving-free
// buffers that can be uploaded as they are.
type RenderMesh struct {
	Positions []float32 // xyz per vertex
	Normals   []float32 // xyz per vertex
	UVs       []float32 // uv per vertex
	Indices   []uint32
}

// VertexCount returns the number of vertices.
func (m *RenderMesh) VertexCount() int {
	return len(m.Positions) / 3
}

// TriangleCount returns the number of triangles.
func (m *RenderMesh) TriangleCount() int {
	return len(m.Indices) / 3
}

// MeshConverter turns MeshData into a RenderMesh.
// It runs on the consumer goroutine, once per ready LOD slot.
type MeshConverter interface {
	Convert(m *MeshData) *RenderMesh
}

// BufferConverter flattens MeshData into RenderMesh buffers.
type BufferConverter struct{}

// Convert implements MeshConverter.
func (BufferConverter) Convert(m *MeshData) *RenderMesh {
	out := &RenderMesh{
		Positions: make([]float32, 0, len(m.Vertices)*3),
		Normals:   make([]float32, 0, len(m.Normals)*3),
		UVs:       make([]float32, 0, len(m.UVs)*2),
		Indices:   append([]uint32(nil), m.Triangles...),
	}
	for _, v := range m.Vertices {
		out.Positions = append(out.Positions, v[0], v[1], v[2])
	}
	for _, n := range m.Normals {
		out.Normals = append(out.Normals, n[0], n[1], n[2])
	}
	for _, uv := range m.UVs {
		out.UVs = append(out.UVs, uv[0], uv[1])
	}
	return out
}
