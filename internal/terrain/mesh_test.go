package terrain

import (
	"context"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testHeightField(t *testing.T, settings MeshSettings) *HeightField {
	t.Helper()
	n := settings.NumVertsPerLine()
	hf, err := NoiseGenerator{}.Generate(context.Background(), n, n, DefaultHeightFieldSettings(), mgl64.Vec2{0, 0})
	require.NoError(t, err)
	return hf
}

func TestGridMesher_Deterministic(t *testing.T) {
	settings := DefaultMeshSettings()
	hf := testHeightField(t, settings)

	for lod := range NumSupportedLODs {
		first, err := GridMesher{}.Generate(hf, settings, lod)
		require.NoError(t, err)
		second, err := GridMesher{}.Generate(hf, settings, lod)
		require.NoError(t, err)
		assert.Equal(t, first, second, "lod %d", lod)
	}
}

func TestGridMesher_CoarserLODHasFewerVertices(t *testing.T) {
	settings := DefaultMeshSettings()
	hf := testHeightField(t, settings)

	prev := -1
	for lod := range NumSupportedLODs {
		mesh, err := GridMesher{}.Generate(hf, settings, lod)
		require.NoError(t, err)

		side := len(sampleIndices(settings.NumVertsPerLine(), LODStride(lod)))
		assert.Len(t, mesh.Vertices, side*side)
		assert.Equal(t, (side-1)*(side-1)*2, mesh.TriangleCount())
		if prev >= 0 {
			assert.Less(t, len(mesh.Vertices), prev)
		}
		prev = len(mesh.Vertices)
	}
}

func TestGridMesher_SpansWorldSize(t *testing.T) {
	settings := DefaultMeshSettings()
	hf := testHeightField(t, settings)

	mesh, err := GridMesher{}.Generate(hf, settings, 2)
	require.NoError(t, err)

	half := float32(settings.MeshWorldSize() / 2)
	first := mesh.Vertices[0]
	last := mesh.Vertices[len(mesh.Vertices)-1]
	assert.InDelta(t, -half, first.X(), 1e-3)
	assert.InDelta(t, half, first.Z(), 1e-3)
	assert.InDelta(t, half, last.X(), 1e-3)
	assert.InDelta(t, -half, last.Z(), 1e-3)
}

func TestGridMesher_FlatShading(t *testing.T) {
	settings := MeshSettings{MeshScale: 1, UseFlatShading: true, FlatShadedChunkSizeIndex: 0}
	hf := testHeightField(t, settings)

	mesh, err := GridMesher{}.Generate(hf, settings, 0)
	require.NoError(t, err)

	assert.Len(t, mesh.Vertices, len(mesh.Triangles))
	for i := 0; i < len(mesh.Normals); i += 3 {
		assert.Equal(t, mesh.Normals[i], mesh.Normals[i+1])
		assert.Equal(t, mesh.Normals[i], mesh.Normals[i+2])
		assert.Positive(t, mesh.Normals[i].Y(), "face normals point up")
	}
}

func TestGridMesher_Errors(t *testing.T) {
	settings := DefaultMeshSettings()
	hf := testHeightField(t, settings)

	_, err := GridMesher{}.Generate(hf, settings, NumSupportedLODs)
	assert.ErrorIs(t, err, ErrUnsupportedLOD)

	small := NewHeightField(3, 3, make([]float32, 9))
	_, err = GridMesher{}.Generate(small, settings, 0)
	assert.ErrorIs(t, err, ErrSizeMismatch)

	_, err = GridMesher{}.Generate(nil, settings, 0)
	assert.ErrorIs(t, err, ErrEmptyHeightData)
}

func TestBufferConverter(t *testing.T) {
	settings := DefaultMeshSettings()
	hf := testHeightField(t, settings)
	mesh, err := GridMesher{}.Generate(hf, settings, 4)
	require.NoError(t, err)

	rm := BufferConverter{}.Convert(mesh)
	assert.Equal(t, len(mesh.Vertices), rm.VertexCount())
	assert.Equal(t, mesh.TriangleCount(), rm.TriangleCount())
	assert.Len(t, rm.UVs, 2*len(mesh.UVs))
	assert.Equal(t, mesh.Vertices[1].Y(), rm.Positions[4])
}

func TestSampleIndices(t *testing.T) {
	tests := []struct {
		name   string
		n      int
		stride int
		want   []int
	}{
		{"stride 1", 7, 1, []int{1, 2, 3, 4, 5}},
		{"stride 2 aligned", 7, 2, []int{1, 3, 5}},
		{"stride 4 remainder", 9, 4, []int{1, 5, 7}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sampleIndices(tt.n, tt.stride))
		})
	}
}
