package gis

import (
	"fmt"

	"github.com/ctessum/geom/proj"

	"github.com/chrissnell/landfall/internal/types"
)

// Reproject transforms coordinates between the named projections (PROJ4
// strings, e.g. "+proj=longlat" to an equal-area CONUS projection). The
// returned slice is tagged by the caller with the destination CRS.
func Reproject(coords []types.XY, from, to string) ([]types.XY, error) {
	srFrom, err := proj.Parse(from)
	if err != nil {
		return nil, fmt.Errorf("parsing source projection %q: %w", from, err)
	}
	srTo, err := proj.Parse(to)
	if err != nil {
		return nil, fmt.Errorf("parsing target projection %q: %w", to, err)
	}
	trans, err := srFrom.NewTransform(srTo)
	if err != nil {
		return nil, fmt.Errorf("building transform: %w", err)
	}

	out := make([]types.XY, len(coords))
	for i, c := range coords {
		x, y, err := trans(c.X, c.Y)
		if err != nil {
			return nil, fmt.Errorf("transforming point %d (%g, %g): %w", i, c.X, c.Y, err)
		}
		out[i] = types.XY{X: x, Y: y}
	}
	return out, nil
}
