package terrain

// LODInfo binds a mesh detail level to the distance up to which it is used.
type LODInfo struct {
	LOD             int
	VisibleDistance float64

	sqrVisibleDistance float64
}

// NewLODInfo precomputes the squared threshold.
func NewLODInfo(lod int, visibleDistance float64) LODInfo {
	return LODInfo{
		LOD:                lod,
		VisibleDistance:    visibleDistance,
		sqrVisibleDistance: visibleDistance * visibleDistance,
	}
}

// SqrVisibleDistance returns VisibleDistance squared.
func (l LODInfo) SqrVisibleDistance() float64 {
	return l.sqrVisibleDistance
}

// MaxViewDistance is the threshold of the coarsest (last) level.
// Returns 0 for an empty table.
func MaxViewDistance(levels []LODInfo) float64 {
	if len(levels) == 0 {
		return 0
	}
	return levels[len(levels)-1].VisibleDistance
}
