package summary

import (
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/chrissnell/landfall/internal/pointpattern"
	"github.com/chrissnell/landfall/internal/types"
)

// QuadratResult is the outcome of a chi-squared quadrat uniformity test.
type QuadratResult struct {
	NX         int     `json:"nx"`
	NY         int     `json:"ny"`
	Counts     []int   `json:"counts"` // row-major, Counts[iy*NX+ix]
	Expected   float64 `json:"expected_per_cell"`
	ChiSquared float64 `json:"chi_squared"`
	DF         int     `json:"df"`
	PValue     float64 `json:"p_value"`

	// Unreliable is set when the expected count per cell falls below 5,
	// the usual chi-squared validity threshold. The statistic and
	// p-value are still reported; callers must not treat the p-value as
	// sound when this flag is set.
	Unreliable bool `json:"unreliable"`
}

// QuadratTest partitions the window into nx*ny equal-area cells, counts
// points per cell, and tests the counts against uniform intensity.
// An expected count below 1 per cell is an InsufficientDataError; an
// expected count below 5 runs the test but flags the result unreliable.
func QuadratTest(p *pointpattern.PointPattern, nx, ny int) (*QuadratResult, error) {
	if nx < 1 || ny < 1 {
		return nil, &types.InsufficientDataError{
			Op: "summary.QuadratTest", Needed: 1, Got: min(nx, ny),
			Detail: "quadrat grid dimensions must be positive",
		}
	}

	n := p.N()
	cells := nx * ny
	expected := float64(n) / float64(cells)
	if expected < 1 {
		return nil, &types.InsufficientDataError{
			Op: "summary.QuadratTest", Needed: cells, Got: n,
			Detail: "expected count per cell below 1; use a coarser grid",
		}
	}

	win := p.Window()
	counts := make([]int, cells)
	for _, pt := range p.Points() {
		ix := int(float64(nx) * (pt.X - win.XMin) / win.Width())
		iy := int(float64(ny) * (pt.Y - win.YMin) / win.Height())
		if ix == nx {
			ix = nx - 1 // points on the max boundary fall in the last cell
		}
		if iy == ny {
			iy = ny - 1
		}
		counts[iy*nx+ix]++
	}

	chi2 := 0.0
	for _, c := range counts {
		d := float64(c) - expected
		chi2 += d * d / expected
	}

	df := cells - 1
	dist := distuv.ChiSquared{K: float64(df)}
	pval := 1 - dist.CDF(chi2)

	return &QuadratResult{
		NX:         nx,
		NY:         ny,
		Counts:     counts,
		Expected:   expected,
		ChiSquared: chi2,
		DF:         df,
		PValue:     pval,
		Unreliable: expected < 5,
	}, nil
}
