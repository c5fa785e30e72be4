package terrain

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/ojrac/opensimplex-go"
)

// octaveOffsetRange bounds the per-octave random displacement so that
// octaves sampled at the same world point decorrelate.
const octaveOffsetRange = 100000

// NoiseGenerator produces height fields from fractal OpenSimplex noise.
// The zero value is ready to use.
type NoiseGenerator struct{}

// Generate samples width×height points centred on origin (in sample space).
func (NoiseGenerator) Generate(ctx context.Context, width, height int, settings HeightFieldSettings, origin mgl64.Vec2) (*HeightField, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrEmptyHeightData, width, height)
	}
	ns := settings.Noise
	if err := ns.Validate(); err != nil {
		return nil, err
	}

	noise := opensimplex.New(ns.Seed)
	prng := rand.New(rand.NewPCG(uint64(ns.Seed), uint64(ns.Octaves)))

	offsets := make([]mgl64.Vec2, ns.Octaves)
	maxPossible := 0.0
	amplitude := 1.0
	for i := range offsets {
		offsets[i] = mgl64.Vec2{
			prng.Float64()*2*octaveOffsetRange - octaveOffsetRange + ns.Offset[0] + origin.X(),
			prng.Float64()*2*octaveOffsetRange - octaveOffsetRange - ns.Offset[1] - origin.Y(),
		}
		maxPossible += amplitude
		amplitude *= ns.Persistence
	}

	raw := make([]float64, width*height)
	localMin, localMax := math.Inf(1), math.Inf(-1)
	halfW, halfH := float64(width)/2, float64(height)/2

	for y := 0; y < height; y++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for x := 0; x < width; x++ {
			amplitude, frequency := 1.0, 1.0
			h := 0.0
			for _, off := range offsets {
				sx := (float64(x) - halfW + off.X()) / ns.Scale * frequency
				sy := (float64(y) - halfH + off.Y()) / ns.Scale * frequency
				h += noise.Eval2(sx, sy) * amplitude
				amplitude *= ns.Persistence
				frequency *= ns.Lacunarity
			}
			raw[y*width+x] = h
			localMin = min(localMin, h)
			localMax = max(localMax, h)
		}
	}

	exp := settings.HeightExponent
	if exp <= 0 {
		exp = 1
	}
	values := make([]float32, len(raw))
	for i, h := range raw {
		var v float64
		if ns.Normalize == NormalizeLocal {
			if localMax > localMin {
				v = (h - localMin) / (localMax - localMin)
			}
		} else {
			v = mgl64.Clamp((h/maxPossible+1)/2, 0, 1)
		}
		values[i] = float32(math.Pow(v, exp) * settings.HeightMultiplier)
	}

	return NewHeightField(width, height, values), nil
}
