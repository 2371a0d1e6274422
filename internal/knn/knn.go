// Package knn wraps gonum's kd-tree with planar point types carrying
// their original observation index, plus the neighbor queries the
// summary-statistics and spatial-weights packages share.
package knn

import (
	"container/heap"
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/kdtree"

	"github.com/chrissnell/landfall/internal/types"
)

// Point is a 2D location tagged with its index in the source slice.
type Point struct {
	X, Y float64
	Idx  int
}

// Compare implements the kdtree.Comparable interface
func (p Point) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(Point)
	switch d {
	case 0:
		return p.X - q.X
	default:
		return p.Y - q.Y
	}
}

// Dims returns the number of dimensions for the KD-tree
func (p Point) Dims() int { return 2 }

// Distance returns the squared Euclidean distance between two points
func (p Point) Distance(c kdtree.Comparable) float64 {
	q := c.(Point)
	dx := p.X - q.X
	dy := p.Y - q.Y
	return dx*dx + dy*dy
}

// Points is a collection of Point that satisfies kdtree.Interface.
type Points []Point

func (p Points) Index(i int) kdtree.Comparable         { return p[i] }
func (p Points) Len() int                              { return len(p) }
func (p Points) Slice(start, end int) kdtree.Interface { return p[start:end] }

// Pivot implements the kdtree.Interface method
func (p Points) Pivot(d kdtree.Dim) int {
	return kdtree.Partition(pointPlane{Points: p, Dim: d}, kdtree.MedianOfMedians(pointPlane{Points: p, Dim: d}))
}

// pointPlane implements sort.Interface and kdtree.SortSlicer for Points
type pointPlane struct {
	Points
	kdtree.Dim
}

func (p pointPlane) Less(i, j int) bool {
	switch p.Dim {
	case 0:
		return p.Points[i].X < p.Points[j].X
	default:
		return p.Points[i].Y < p.Points[j].Y
	}
}

func (p pointPlane) Slice(start, end int) kdtree.SortSlicer {
	p.Points = p.Points[start:end]
	return p
}

func (p pointPlane) Swap(i, j int) {
	p.Points[i], p.Points[j] = p.Points[j], p.Points[i]
}

// Tree is an immutable planar index over a coordinate slice.
type Tree struct {
	tree *kdtree.Tree
	pts  Points
}

// NewTree indexes coords. The tree references coords by value; the input
// slice is not retained.
func NewTree(coords []types.XY) *Tree {
	pts := make(Points, len(coords))
	for i, c := range coords {
		pts[i] = Point{X: c.X, Y: c.Y, Idx: i}
	}
	// kdtree.New sorts its input in place, so keep a separate copy for
	// positional lookups.
	build := make(Points, len(pts))
	copy(build, pts)
	return &Tree{tree: kdtree.New(build, true), pts: pts}
}

// Neighbor is one result of a neighbor query.
type Neighbor struct {
	Idx  int
	Dist float64
}

// Nearest returns the nearest indexed point to q and its distance,
// excluding any point whose index is self (pass -1 to exclude nothing).
func (t *Tree) Nearest(q types.XY, self int) Neighbor {
	keeper := kdtree.NewNKeeper(2)
	t.tree.NearestSet(keeper, Point{X: q.X, Y: q.Y, Idx: -1})
	best := Neighbor{Idx: -1, Dist: 0}
	found := false
	for keeper.Heap.Len() > 0 {
		item := heap.Pop(keeper).(kdtree.ComparableDist)
		if item.Comparable == nil {
			continue
		}
		p := item.Comparable.(Point)
		if p.Idx == self {
			continue
		}
		d := sqrtDist(item.Dist)
		if !found || d < best.Dist || (d == best.Dist && p.Idx < best.Idx) {
			best = Neighbor{Idx: p.Idx, Dist: d}
			found = true
		}
	}
	return best
}

// KNearest returns the k nearest indexed points to the point at index
// self, excluding self, ordered by (distance, index). Ties at the k-th
// distance are resolved deterministically by ascending index: the query
// re-scans at the squared boundary distance so equal-distance candidates
// compete on index rather than on heap order.
func (t *Tree) KNearest(self, k int) []Neighbor {
	q := t.pts[self]
	keeper := kdtree.NewNKeeper(k + 1)
	t.tree.NearestSet(keeper, q)

	var maxDist float64
	for _, item := range keeper.Heap {
		if item.Comparable == nil {
			continue
		}
		if item.Dist > maxDist {
			maxDist = item.Dist
		}
	}

	// Re-scan at the boundary in squared distance. Converting through a
	// sqrt and back can round one ulp below the true squared distance and
	// drop the k-th neighbor.
	cands := t.withinSquared(q, maxDist, self)
	if len(cands) > k {
		cands = cands[:k]
	}
	return cands
}

// Within returns all indexed points with distance <= radius from q,
// excluding index self, ordered by (distance, index).
func (t *Tree) Within(q types.XY, radius float64, self int) []Neighbor {
	return t.withinSquared(Point{X: q.X, Y: q.Y, Idx: -1}, radius*radius, self)
}

// withinSquared collects all indexed points with squared distance <= d2
// from q, excluding index self, ordered by (distance, index).
func (t *Tree) withinSquared(q Point, d2 float64, self int) []Neighbor {
	keeper := kdtree.NewDistKeeper(d2)
	t.tree.NearestSet(keeper, q)
	out := make([]Neighbor, 0, keeper.Heap.Len())
	for _, item := range keeper.Heap {
		if item.Comparable == nil {
			continue
		}
		p := item.Comparable.(Point)
		if p.Idx == self {
			continue
		}
		if item.Dist > d2 {
			continue
		}
		out = append(out, Neighbor{Idx: p.Idx, Dist: sqrtDist(item.Dist)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Dist != out[j].Dist {
			return out[i].Dist < out[j].Dist
		}
		return out[i].Idx < out[j].Idx
	})
	return out
}

func sqrtDist(d2 float64) float64 {
	if d2 <= 0 {
		return 0
	}
	return math.Sqrt(d2)
}
