package terrain

import (
	"context"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// HeightField is an immutable row-major grid of elevation samples.
// Once handed to a chunk it must not be modified.
type HeightField struct {
	Width  int
	Height int
	Values []float32
	Min    float32
	Max    float32
}

// NewHeightField wraps values (len = width*height) and computes the range.
// The slice is owned by the returned field.
func NewHeightField(width, height int, values []float32) *HeightField {
	hf := &HeightField{
		Width:  width,
		Height: height,
		Values: values,
	}
	if len(values) == 0 {
		return hf
	}
	hf.Min, hf.Max = float32(math.Inf(1)), float32(math.Inf(-1))
	for _, v := range values {
		hf.Min = min(hf.Min, v)
		hf.Max = max(hf.Max, v)
	}
	return hf
}

// At returns the sample at column x, row y.
func (hf *HeightField) At(x, y int) float32 {
	return hf.Values[y*hf.Width+x]
}

// HeightFieldGenerator synthesizes the height field of one chunk.
// Implementations must be pure: identical inputs give identical output.
// They run on worker goroutines and must not touch shared mutable state.
type HeightFieldGenerator interface {
	Generate(ctx context.Context, width, height int, settings HeightFieldSettings, origin mgl64.Vec2) (*HeightField, error)
}

// HeightFieldFunc adapts a plain function to HeightFieldGenerator.
type HeightFieldFunc func(ctx context.Context, width, height int, settings HeightFieldSettings, origin mgl64.Vec2) (*HeightField, error)

// Generate calls f.
func (f HeightFieldFunc) Generate(ctx context.Context, width, height int, settings HeightFieldSettings, origin mgl64.Vec2) (*HeightField, error) {
	return f(ctx, width, height, settings, origin)
}
