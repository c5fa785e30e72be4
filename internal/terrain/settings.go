package terrain

import (
	"errors"
	"fmt"
)

// NumSupportedLODs is the number of mesh detail levels a chunk can carry.
// LOD 0 samples every height value, LOD n skips 2n-1 samples between vertices.
const NumSupportedLODs = 5

// SupportedChunkSizes lists mesh sizes (in quads at LOD 0) that divide evenly
// by every supported LOD stride.
var SupportedChunkSizes = [...]int{48, 72, 96, 120, 144, 168, 192, 216, 240}

// SupportedFlatShadedChunkSizes is the subset usable with flat shading
// (flat shading triples the vertex count).
var SupportedFlatShadedChunkSizes = [...]int{48, 72, 96}

// NormalizeMode selects how raw noise is mapped into [0, 1].
type NormalizeMode string

const (
	// NormalizeLocal rescales each height field by its own min/max.
	// Chunks will not line up at the seams; useful for previews only.
	NormalizeLocal NormalizeMode = "local"

	// NormalizeGlobal rescales by the theoretical octave maximum so
	// neighbouring chunks agree on shared edges.
	NormalizeGlobal NormalizeMode = "global"
)

var (
	ErrInvalidNoise    = errors.New("invalid noise settings")
	ErrInvalidMesh     = errors.New("invalid mesh settings")
	ErrSizeMismatch    = errors.New("height field size does not match mesh settings")
	ErrUnsupportedLOD  = errors.New("unsupported level of detail")
	ErrEmptyHeightData = errors.New("empty height field")
)

// NoiseSettings parameterizes fractal noise.
type NoiseSettings struct {
	Scale       float64       `yaml:"scale"`
	Octaves     int           `yaml:"octaves"`
	Persistence float64       `yaml:"persistence"`
	Lacunarity  float64       `yaml:"lacunarity"`
	Seed        int64         `yaml:"seed"`
	Offset      [2]float64    `yaml:"offset"`
	Normalize   NormalizeMode `yaml:"normalize"`
}

// Validate reports the first out-of-range field.
func (n NoiseSettings) Validate() error {
	switch {
	case n.Scale <= 0:
		return fmt.Errorf("%w: scale must be positive, got %v", ErrInvalidNoise, n.Scale)
	case n.Octaves < 1:
		return fmt.Errorf("%w: octaves must be >= 1, got %d", ErrInvalidNoise, n.Octaves)
	case n.Persistence < 0 || n.Persistence > 1:
		return fmt.Errorf("%w: persistence must be in [0,1], got %v", ErrInvalidNoise, n.Persistence)
	case n.Lacunarity < 1:
		return fmt.Errorf("%w: lacunarity must be >= 1, got %v", ErrInvalidNoise, n.Lacunarity)
	case n.Normalize != NormalizeLocal && n.Normalize != NormalizeGlobal:
		return fmt.Errorf("%w: unknown normalize mode %q", ErrInvalidNoise, n.Normalize)
	}
	return nil
}

// HeightFieldSettings controls height synthesis for one chunk.
type HeightFieldSettings struct {
	Noise            NoiseSettings `yaml:"noise"`
	HeightMultiplier float64       `yaml:"height_multiplier"`
	// HeightExponent shapes normalized noise as v^exp before scaling.
	// 1 keeps noise linear, values above 1 flatten lowlands.
	HeightExponent float64 `yaml:"height_exponent"`
}

// MinHeight is the lowest elevation the settings can produce.
func (s HeightFieldSettings) MinHeight() float64 {
	return 0
}

// MaxHeight is the highest elevation the settings can produce.
func (s HeightFieldSettings) MaxHeight() float64 {
	return s.HeightMultiplier
}

// DefaultHeightFieldSettings returns rolling hills with global normalization.
func DefaultHeightFieldSettings() HeightFieldSettings {
	return HeightFieldSettings{
		Noise: NoiseSettings{
			Scale:       50,
			Octaves:     6,
			Persistence: 0.5,
			Lacunarity:  2,
			Seed:        1,
			Normalize:   NormalizeGlobal,
		},
		HeightMultiplier: 40,
		HeightExponent:   2,
	}
}

// MeshSettings controls chunk mesh layout.
type MeshSettings struct {
	MeshScale                float64 `yaml:"mesh_scale"`
	UseFlatShading           bool    `yaml:"use_flat_shading"`
	ChunkSizeIndex           int     `yaml:"chunk_size_index"`
	FlatShadedChunkSizeIndex int     `yaml:"flat_shaded_chunk_size_index"`
}

// DefaultMeshSettings returns the mid-sized chunk layout.
func DefaultMeshSettings() MeshSettings {
	return MeshSettings{
		MeshScale:      2.5,
		ChunkSizeIndex: 4,
	}
}

// Validate checks scale and size indices.
func (m MeshSettings) Validate() error {
	if m.MeshScale <= 0 {
		return fmt.Errorf("%w: mesh_scale must be positive, got %v", ErrInvalidMesh, m.MeshScale)
	}
	if m.UseFlatShading {
		if m.FlatShadedChunkSizeIndex < 0 || m.FlatShadedChunkSizeIndex >= len(SupportedFlatShadedChunkSizes) {
			return fmt.Errorf("%w: flat_shaded_chunk_size_index %d out of range", ErrInvalidMesh, m.FlatShadedChunkSizeIndex)
		}
		return nil
	}
	if m.ChunkSizeIndex < 0 || m.ChunkSizeIndex >= len(SupportedChunkSizes) {
		return fmt.Errorf("%w: chunk_size_index %d out of range", ErrInvalidMesh, m.ChunkSizeIndex)
	}
	return nil
}

// NumVertsPerLine is the number of height samples per chunk edge.
// The outermost ring is a border used only for normals and never becomes
// a vertex.
func (m MeshSettings) NumVertsPerLine() int {
	if m.UseFlatShading {
		return SupportedFlatShadedChunkSizes[m.FlatShadedChunkSizeIndex] + 5
	}
	return SupportedChunkSizes[m.ChunkSizeIndex] + 5
}

// MeshWorldSize is the world-space edge length of one chunk.
func (m MeshSettings) MeshWorldSize() float64 {
	return float64(m.NumVertsPerLine()-3) * m.MeshScale
}

// LODStride returns the sample step used by the given LOD.
func LODStride(lod int) int {
	if lod == 0 {
		return 1
	}
	return lod * 2
}
