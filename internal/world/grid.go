package world

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/udisondev/terrastream/internal/chunk"
)

// CoordFor returns the grid cell whose centre is nearest to pos.
// Chunk (0,0) is centred on the world origin.
func CoordFor(pos mgl64.Vec2, chunkWorldSize float64) chunk.Coord {
	return chunk.Coord{
		X: int(math.Round(pos.X() / chunkWorldSize)),
		Y: int(math.Round(pos.Y() / chunkWorldSize)),
	}
}

// CoordCenter returns the world-space centre of coord.
func CoordCenter(coord chunk.Coord, chunkWorldSize float64) mgl64.Vec2 {
	return mgl64.Vec2{float64(coord.X), float64(coord.Y)}.Mul(chunkWorldSize)
}

// ViewRadius is how many cells the generation window extends from the
// observer's cell in each direction.
func ViewRadius(maxViewDistance, chunkWorldSize float64) int {
	return int(math.Round(maxViewDistance / chunkWorldSize))
}

// InWindow reports whether coord lies in the square window of radius cells
// around center.
func InWindow(coord, center chunk.Coord, radius int) bool {
	return abs(coord.X-center.X) <= radius && abs(coord.Y-center.Y) <= radius
}

// ForEachInWindow visits every cell of the window row by row.
func ForEachInWindow(center chunk.Coord, radius int, fn func(chunk.Coord)) {
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			fn(chunk.Coord{X: center.X + dx, Y: center.Y + dy})
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
