// Package summary computes point-process summary statistics: nearest
// neighbor distance distributions, the G/F/K/L functions, the quadrat
// uniformity test, and the Monte Carlo average-nearest-neighbor test.
//
// All distances here are planar, in the units of the pattern's
// coordinates. The rectangular-window edge corrections assume planar
// geometry, so callers working in longitude/latitude should either
// project first or read the results as degree-space statistics.
package summary

import (
	"math"
	"math/rand/v2"

	"github.com/chrissnell/landfall/internal/knn"
	"github.com/chrissnell/landfall/internal/pointpattern"
	"github.com/chrissnell/landfall/internal/types"
)

// RValue is one sample of a summary-function curve.
type RValue struct {
	R     float64 `json:"r"`
	Value float64 `json:"value"`
}

// NearestNeighborDistances returns, for every point, the distance to its
// k-th nearest neighbor within the pattern, excluding itself.
func NearestNeighborDistances(p *pointpattern.PointPattern, k int) ([]float64, error) {
	n := p.N()
	if k < 1 || n <= k {
		return nil, &types.InsufficientDataError{
			Op: "summary.NearestNeighborDistances", Needed: k + 1, Got: n,
			Detail: "need more points than the neighbor order k",
		}
	}

	tree := knn.NewTree(p.Points())
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		nbrs := tree.KNearest(i, k)
		out[i] = nbrs[k-1].Dist
	}
	return out, nil
}

// MeanNearestNeighborDistance returns the mean k-th nearest neighbor
// distance, the observed statistic of the ANN test.
func MeanNearestNeighborDistance(p *pointpattern.PointPattern, k int) (float64, error) {
	d, err := NearestNeighborDistances(p, k)
	if err != nil {
		return 0, err
	}
	return mean(d), nil
}

// GFunction returns the empirical cumulative distribution of first
// nearest neighbor distances evaluated at each threshold in rs.
func GFunction(p *pointpattern.PointPattern, rs []float64) ([]RValue, error) {
	d, err := NearestNeighborDistances(p, 1)
	if err != nil {
		return nil, err
	}
	return ecdf(d, rs), nil
}

// FFunction returns the empty-space function: the empirical cumulative
// distribution of distances from m uniformly sampled locations in the
// window to the nearest data point. The sample locations come from rng so
// results are reproducible under a fixed seed.
func FFunction(p *pointpattern.PointPattern, rs []float64, m int, rng *rand.Rand) ([]RValue, error) {
	if p.N() < 1 {
		return nil, &types.InsufficientDataError{Op: "summary.FFunction", Needed: 1, Got: p.N()}
	}
	if m < 1 {
		return nil, &types.InsufficientDataError{
			Op: "summary.FFunction", Needed: 1, Got: m,
			Detail: "empty-space sample count",
		}
	}

	win := p.Window()
	tree := knn.NewTree(p.Points())
	d := make([]float64, m)
	for i := 0; i < m; i++ {
		q := types.XY{
			X: win.XMin + rng.Float64()*win.Width(),
			Y: win.YMin + rng.Float64()*win.Height(),
		}
		d[i] = tree.Nearest(q, -1).Dist
	}
	return ecdf(d, rs), nil
}

// KFunction returns Ripley's K with translation edge correction: the
// expected number of further points within distance r of a typical point,
// scaled by intensity. Under complete spatial randomness K(r) = pi*r^2.
func KFunction(p *pointpattern.PointPattern, rs []float64) ([]RValue, error) {
	n := p.N()
	if n < 2 {
		return nil, &types.InsufficientDataError{Op: "summary.KFunction", Needed: 2, Got: n}
	}

	win := p.Window()
	a := win.Width()
	b := win.Height()
	area := win.Area()
	pts := p.Points()

	maxR := 0.0
	for _, r := range rs {
		if r > maxR {
			maxR = r
		}
	}

	// Pairwise pass collecting (distance, correction weight) for pairs
	// within the largest threshold. The translation correction
	// A/((a-|dx|)(b-|dy|)) compensates points near the boundary for
	// their clipped neighborhoods.
	type pair struct {
		d float64
		w float64
	}
	var pairs []pair
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			dx := math.Abs(pts[i].X - pts[j].X)
			dy := math.Abs(pts[i].Y - pts[j].Y)
			d := math.Hypot(dx, dy)
			if d > maxR {
				continue
			}
			denom := (a - dx) * (b - dy)
			if denom <= 0 {
				// Pair separation spans the whole window; no unbiased
				// translation weight exists. Skip, as the correction does.
				continue
			}
			pairs = append(pairs, pair{d: d, w: area / denom})
		}
	}

	scale := area / (float64(n) * float64(n-1))
	out := make([]RValue, len(rs))
	for i, r := range rs {
		sum := 0.0
		for _, pr := range pairs {
			if pr.d <= r {
				sum += pr.w
			}
		}
		out[i] = RValue{R: r, Value: scale * sum}
	}
	return out, nil
}

// LFunction returns the variance-stabilized transform of K:
// L(r) = sqrt(K(r)/pi). Under complete spatial randomness L(r) = r.
func LFunction(p *pointpattern.PointPattern, rs []float64) ([]RValue, error) {
	k, err := KFunction(p, rs)
	if err != nil {
		return nil, err
	}
	out := make([]RValue, len(k))
	for i, kv := range k {
		out[i] = RValue{R: kv.R, Value: math.Sqrt(kv.Value / math.Pi)}
	}
	return out, nil
}

// DefaultThresholds returns nsteps evenly spaced distance thresholds from
// 0 to a quarter of the window's shorter side, the conventional upper
// bound for windowed K estimation.
func DefaultThresholds(p *pointpattern.PointPattern, nsteps int) []float64 {
	win := p.Window()
	rmax := math.Min(win.Width(), win.Height()) / 4
	out := make([]float64, nsteps)
	for i := range out {
		out[i] = rmax * float64(i+1) / float64(nsteps)
	}
	return out
}

func ecdf(d []float64, rs []float64) []RValue {
	out := make([]RValue, len(rs))
	for i, r := range rs {
		c := 0
		for _, v := range d {
			if v <= r {
				c++
			}
		}
		out[i] = RValue{R: r, Value: float64(c) / float64(len(d))}
	}
	return out
}

func mean(x []float64) float64 {
	s := 0.0
	for _, v := range x {
		s += v
	}
	return s / float64(len(x))
}
