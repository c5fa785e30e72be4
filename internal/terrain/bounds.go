package terrain

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Bounds is an axis-aligned square on the ground plane.
type Bounds struct {
	Center mgl64.Vec2
	Size   mgl64.Vec2
}

// NewBounds builds bounds from a centre and full edge lengths.
func NewBounds(center, size mgl64.Vec2) Bounds {
	return Bounds{Center: center, Size: size}
}

// Min returns the lower corner.
func (b Bounds) Min() mgl64.Vec2 {
	return b.Center.Sub(b.Size.Mul(0.5))
}

// Max returns the upper corner.
func (b Bounds) Max() mgl64.Vec2 {
	return b.Center.Add(b.Size.Mul(0.5))
}

// SqrDistance returns the squared distance from p to the nearest point of b.
// Points inside b are at distance 0.
func (b Bounds) SqrDistance(p mgl64.Vec2) float64 {
	lo, hi := b.Min(), b.Max()
	sum := 0.0
	for i := range 2 {
		switch {
		case p[i] < lo[i]:
			d := lo[i] - p[i]
			sum += d * d
		case p[i] > hi[i]:
			d := p[i] - hi[i]
			sum += d * d
		}
	}
	return sum
}

// Distance returns the distance from p to the nearest point of b.
func (b Bounds) Distance(p mgl64.Vec2) float64 {
	return math.Sqrt(b.SqrDistance(p))
}
