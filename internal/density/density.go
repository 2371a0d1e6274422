// Package density estimates kernel intensity surfaces over point
// patterns.
package density

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/chrissnell/landfall/internal/pointpattern"
	"github.com/chrissnell/landfall/internal/types"
)

// Options controls the estimate. The zero value requests defaults.
type Options struct {
	// Sigma is the Gaussian kernel standard deviation in coordinate
	// units. Zero selects Silverman's rule of thumb.
	Sigma float64

	// CellSize is the grid spacing. Zero selects a spacing such that the
	// shorter window side spans at least MinCells cells.
	CellSize float64

	// MinCells is the minimum cell count across the shorter window side
	// when CellSize is derived. Zero means 100.
	MinCells int

	// TruncateSigmas bounds kernel evaluation at this many standard
	// deviations from each point. Zero means 4.
	TruncateSigmas float64
}

// IntensitySurface is a regular grid of density estimates. Values are
// expected point counts per unit area in the squared units of the input
// coordinates. Cell (ix, iy) is centered at
// (OriginX + (ix+0.5)*CellSize, OriginY + (iy+0.5)*CellSize).
type IntensitySurface struct {
	OriginX  float64
	OriginY  float64
	CellSize float64
	NX       int
	NY       int

	// Values is row-major: Values[iy*NX + ix].
	Values []float64
}

// At returns the value of cell (ix, iy).
func (s *IntensitySurface) At(ix, iy int) float64 { return s.Values[iy*s.NX+ix] }

// Max returns the largest cell value.
func (s *IntensitySurface) Max() float64 {
	m := 0.0
	for _, v := range s.Values {
		if v > m {
			m = v
		}
	}
	return m
}

// SilvermanBandwidth returns the isotropic normal-reference bandwidth for
// a planar pattern: sqrt((sd_x^2 + sd_y^2)/2) * n^(-1/6).
func SilvermanBandwidth(p *pointpattern.PointPattern) float64 {
	pts := p.Points()
	xs := make([]float64, len(pts))
	ys := make([]float64, len(pts))
	for i, pt := range pts {
		xs[i] = pt.X
		ys[i] = pt.Y
	}
	sdx := stat.StdDev(xs, nil)
	sdy := stat.StdDev(ys, nil)
	return math.Sqrt((sdx*sdx+sdy*sdy)/2) * math.Pow(float64(len(pts)), -1.0/6.0)
}

// Estimate computes a Gaussian kernel density surface over the pattern's
// window. Kernel mass falling outside the window is not redistributed:
// the estimate is deliberately uncorrected near the boundary, matching
// the semantics of an uncorrected density estimate.
func Estimate(p *pointpattern.PointPattern, opt Options) (*IntensitySurface, error) {
	if p.N() < 1 {
		return nil, &types.InsufficientDataError{Op: "density.Estimate", Needed: 1, Got: p.N()}
	}

	win := p.Window()
	sigma := opt.Sigma
	if sigma == 0 {
		sigma = SilvermanBandwidth(p)
	}
	if sigma <= 0 || math.IsNaN(sigma) {
		return nil, &types.InvalidGeometryError{
			Reason: "non-positive kernel bandwidth",
			XMin:   win.XMin, XMax: win.XMax, YMin: win.YMin, YMax: win.YMax,
			NPts: p.N(),
		}
	}

	minCells := opt.MinCells
	if minCells == 0 {
		minCells = 100
	}
	cell := opt.CellSize
	if cell == 0 {
		short := math.Min(win.Width(), win.Height())
		cell = short / float64(minCells)
	}

	nx := int(math.Ceil(win.Width() / cell))
	ny := int(math.Ceil(win.Height() / cell))

	trunc := opt.TruncateSigmas
	if trunc == 0 {
		trunc = 4
	}
	radius := trunc * sigma
	norm := 1 / (2 * math.Pi * sigma * sigma)
	inv2s2 := 1 / (2 * sigma * sigma)

	surf := &IntensitySurface{
		OriginX:  win.XMin,
		OriginY:  win.YMin,
		CellSize: cell,
		NX:       nx,
		NY:       ny,
		Values:   make([]float64, nx*ny),
	}

	// Scatter each point's kernel onto the cells within the truncation
	// radius rather than scanning the full grid per point.
	for _, pt := range p.Points() {
		ix0 := clamp(int(math.Floor((pt.X-radius-win.XMin)/cell)), 0, nx-1)
		ix1 := clamp(int(math.Ceil((pt.X+radius-win.XMin)/cell)), 0, nx-1)
		iy0 := clamp(int(math.Floor((pt.Y-radius-win.YMin)/cell)), 0, ny-1)
		iy1 := clamp(int(math.Ceil((pt.Y+radius-win.YMin)/cell)), 0, ny-1)

		for iy := iy0; iy <= iy1; iy++ {
			cy := win.YMin + (float64(iy)+0.5)*cell
			dy := cy - pt.Y
			for ix := ix0; ix <= ix1; ix++ {
				cx := win.XMin + (float64(ix)+0.5)*cell
				dx := cx - pt.X
				d2 := dx*dx + dy*dy
				if d2 > radius*radius {
					continue
				}
				surf.Values[iy*nx+ix] += norm * math.Exp(-d2*inv2s2)
			}
		}
	}

	return surf, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
