// Package gis holds the spatial-data collaborators around the analysis
// core: boundary shapefile loading with nearest-region assignment,
// coordinate reprojection, and raster covariate sampling.
package gis

import (
	"fmt"
	"math"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	"github.com/ctessum/geom/index/rtree"

	"github.com/chrissnell/landfall/internal/log"
)

// Boundary is one named region polygon.
type Boundary struct {
	geom.Polygonal
	Name string
}

// Boundaries is an indexed boundary layer supporting point-to-region
// assignment.
type Boundaries struct {
	tree    *rtree.Rtree
	regions []*Boundary
}

// LoadBoundaries reads a polygon shapefile and indexes it by bounding
// box. nameField is the attribute column carrying the region name.
func LoadBoundaries(path, nameField string) (*Boundaries, error) {
	dec, err := shp.NewDecoder(path)
	if err != nil {
		return nil, fmt.Errorf("opening boundary shapefile: %w", err)
	}
	defer dec.Close()

	var regions []*Boundary
	for {
		g, fields, more := dec.DecodeRowFields(nameField)
		if !more {
			break
		}
		poly, ok := g.(geom.Polygonal)
		if !ok {
			return nil, fmt.Errorf("boundary layer contains non-polygon geometry %T", g)
		}
		name, ok := fields[nameField]
		if !ok {
			return nil, fmt.Errorf("boundary layer is missing attribute column %s", nameField)
		}
		regions = append(regions, &Boundary{Polygonal: poly, Name: name})
	}
	if err := dec.Error(); err != nil {
		return nil, fmt.Errorf("decoding boundary shapefile: %w", err)
	}

	log.Debugf("boundary layer loaded: %d regions", len(regions))
	return NewBoundaries(regions), nil
}

// NewBoundaries indexes the given regions by bounding box.
func NewBoundaries(regions []*Boundary) *Boundaries {
	b := &Boundaries{tree: rtree.NewTree(25, 50)}
	for _, region := range regions {
		b.tree.Insert(region)
		b.regions = append(b.regions, region)
	}
	return b
}

// Len returns the number of regions.
func (b *Boundaries) Len() int { return len(b.regions) }

// Nearest returns the name of the region containing the point, or
// failing containment, the region with the nearest centroid. The empty
// string means the layer is empty.
func (b *Boundaries) Nearest(x, y float64) string {
	pt := geom.Point{X: x, Y: y}
	for _, item := range b.tree.SearchIntersect(pt.Bounds()) {
		region := item.(*Boundary)
		if pt.Within(region.Polygonal) != geom.Outside {
			return region.Name
		}
	}

	// Offshore or boundary-gap points: nearest centroid wins.
	best := ""
	bestDist := math.Inf(1)
	for _, region := range b.regions {
		c := region.Centroid()
		d := math.Hypot(c.X-x, c.Y-y)
		if d < bestDist {
			bestDist = d
			best = region.Name
		}
	}
	return best
}

// CountByRegion assigns each coordinate to a region and tallies counts.
func (b *Boundaries) CountByRegion(xs, ys []float64) map[string]int {
	counts := make(map[string]int)
	for i := range xs {
		name := b.Nearest(xs[i], ys[i])
		if name != "" {
			counts[name]++
		}
	}
	return counts
}
