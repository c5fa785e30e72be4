package chunk

import (
	"errors"
	"fmt"
)

var (
	ErrNoObserver        = errors.New("chunk: observer is required")
	ErrNoDispatcher      = errors.New("chunk: dispatcher is required")
	ErrNoGenerator       = errors.New("chunk: height field and mesh generators are required")
	ErrNoLODs            = errors.New("chunk: at least one LOD is required")
	ErrLODOrder          = errors.New("chunk: LOD thresholds must strictly increase")
	ErrColliderLOD       = errors.New("chunk: collider LOD index out of range")
	ErrAttemptsExhausted = errors.New("chunk: generation attempts exhausted")
)

// Stage names the generation step that failed.
type Stage string

const (
	StageHeightField Stage = "height_field"
	StageMesh        Stage = "mesh"
)

// GenerationError describes a failed background generation task.
type GenerationError struct {
	Coord   Coord
	Stage   Stage
	LOD     int // -1 for height fields
	Attempt int
	Err     error
}

func (e *GenerationError) Error() string {
	if e.Stage == StageMesh {
		return fmt.Sprintf("chunk %v: %s lod %d attempt %d: %v", e.Coord, e.Stage, e.LOD, e.Attempt, e.Err)
	}
	return fmt.Sprintf("chunk %v: %s attempt %d: %v", e.Coord, e.Stage, e.Attempt, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}
