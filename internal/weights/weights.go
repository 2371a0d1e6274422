// Package weights constructs row-standardized spatial weights graphs
// from observation coordinates, the input to the autocorrelation
// statistics in the regression package.
package weights

import (
	"sort"

	"github.com/chrissnell/landfall/internal/knn"
	"github.com/chrissnell/landfall/internal/types"
)

// Edge is one directed neighbor relation.
type Edge struct {
	To     int     `json:"to"`
	Weight float64 `json:"weight"`
}

// Graph is a sparse row-standardized spatial weights matrix: for every
// observation with at least one neighbor, its outgoing weights sum to 1.
// Rows with no neighbors are explicitly empty rather than an error (the
// zero policy): isolated observations contribute nothing to
// autocorrelation statistics instead of aborting the analysis.
type Graph struct {
	CRS    types.CRS            `json:"crs"`
	Metric types.DistanceMetric `json:"-"`
	Rows   [][]Edge             `json:"rows"`
}

// N returns the number of observations covered by the graph.
func (g *Graph) N() int { return len(g.Rows) }

// S0 returns the sum of all weights.
func (g *Graph) S0() float64 {
	s := 0.0
	for _, row := range g.Rows {
		for _, e := range row {
			s += e.Weight
		}
	}
	return s
}

// RowSum returns the sum of row i's outgoing weights.
func (g *Graph) RowSum(i int) float64 {
	s := 0.0
	for _, e := range g.Rows[i] {
		s += e.Weight
	}
	return s
}

// Weight returns w_ij, zero when j is not a neighbor of i.
func (g *Graph) Weight(i, j int) float64 {
	for _, e := range g.Rows[i] {
		if e.To == j {
			return e.Weight
		}
	}
	return 0
}

// KNearest builds the directed k-nearest-neighbor graph with uniform
// weight 1/k per edge. Ties at the k-th distance break by ascending
// original index, so the graph is deterministic. Neighbor candidacy is
// directed: j among i's neighbors does not imply the reverse.
func KNearest(coords []types.XY, crs types.CRS, k int, metric types.DistanceMetric) (*Graph, error) {
	n := len(coords)
	if k < 1 {
		return nil, &types.InsufficientDataError{
			Op: "weights.KNearest", Needed: 1, Got: k, Detail: "neighbor count k",
		}
	}
	if n <= k {
		return nil, &types.InsufficientDataError{Op: "weights.KNearest", Needed: k + 1, Got: n}
	}

	g := &Graph{CRS: crs, Metric: metric, Rows: make([][]Edge, n)}
	w := 1 / float64(k)

	if metric == types.Planar {
		tree := knn.NewTree(coords)
		for i := 0; i < n; i++ {
			nbrs := tree.KNearest(i, k)
			row := make([]Edge, len(nbrs))
			for j, nb := range nbrs {
				row[j] = Edge{To: nb.Idx, Weight: w}
			}
			g.Rows[i] = row
		}
		return g, nil
	}

	// Haversine has no planar index; exact scan per row.
	for i := 0; i < n; i++ {
		cand := make([]knn.Neighbor, 0, n-1)
		for j := 0; j < n; j++ {
			if j == i {
				continue
			}
			cand = append(cand, knn.Neighbor{Idx: j, Dist: types.Distance(coords[i], coords[j], metric)})
		}
		sort.Slice(cand, func(a, b int) bool {
			if cand[a].Dist != cand[b].Dist {
				return cand[a].Dist < cand[b].Dist
			}
			return cand[a].Idx < cand[b].Idx
		})
		row := make([]Edge, k)
		for j := 0; j < k; j++ {
			row[j] = Edge{To: cand[j].Idx, Weight: w}
		}
		g.Rows[i] = row
	}
	return g, nil
}

// DistanceBand builds the graph connecting each observation to all
// others whose distance lies in [d1, d2], each edge weighted 1/degree.
// Observations with no neighbor in the band keep an empty row.
func DistanceBand(coords []types.XY, crs types.CRS, d1, d2 float64, metric types.DistanceMetric) (*Graph, error) {
	n := len(coords)
	if n < 2 {
		return nil, &types.InsufficientDataError{Op: "weights.DistanceBand", Needed: 2, Got: n}
	}
	if d2 < d1 || d1 < 0 {
		return nil, &types.InvalidGeometryError{Reason: "distance band bounds out of order", NPts: n}
	}

	g := &Graph{CRS: crs, Metric: metric, Rows: make([][]Edge, n)}

	if metric == types.Planar {
		tree := knn.NewTree(coords)
		for i := 0; i < n; i++ {
			within := tree.Within(coords[i], d2, i)
			var idxs []int
			for _, nb := range within {
				if nb.Dist >= d1 {
					idxs = append(idxs, nb.Idx)
				}
			}
			g.Rows[i] = bandRow(idxs)
		}
		return g, nil
	}

	for i := 0; i < n; i++ {
		var idxs []int
		for j := 0; j < n; j++ {
			if j == i {
				continue
			}
			d := types.Distance(coords[i], coords[j], metric)
			if d >= d1 && d <= d2 {
				idxs = append(idxs, j)
			}
		}
		g.Rows[i] = bandRow(idxs)
	}
	return g, nil
}

func bandRow(idxs []int) []Edge {
	if len(idxs) == 0 {
		return []Edge{}
	}
	sort.Ints(idxs)
	w := 1 / float64(len(idxs))
	row := make([]Edge, len(idxs))
	for j, idx := range idxs {
		row[j] = Edge{To: idx, Weight: w}
	}
	return row
}
