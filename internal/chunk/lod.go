package chunk

import "github.com/udisondev/terrastream/internal/terrain"

// SelectLOD maps a distance to a LOD table index.
//
// levels must be ordered by increasing threshold. The index advances past
// every threshold distance exceeds and stops at the first it does not, so
// nearer chunks get lower (finer) indices. visible is false once distance
// exceeds the last threshold; the index is meaningless then.
func SelectLOD(distance float64, levels []terrain.LODInfo) (index int, visible bool) {
	visible = distance <= terrain.MaxViewDistance(levels)
	for i := 0; i < len(levels)-1; i++ {
		if distance <= levels[i].VisibleDistance {
			break
		}
		index = i + 1
	}
	return index, visible
}

// validateLODs checks ordering and level range.
func validateLODs(levels []terrain.LODInfo) error {
	if len(levels) == 0 {
		return ErrNoLODs
	}
	for i, l := range levels {
		if l.LOD < 0 || l.LOD >= terrain.NumSupportedLODs {
			return terrain.ErrUnsupportedLOD
		}
		if i > 0 && l.VisibleDistance <= levels[i-1].VisibleDistance {
			return ErrLODOrder
		}
	}
	return nil
}
