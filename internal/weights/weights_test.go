package weights

import (
	"errors"
	"math"
	"testing"

	"github.com/chrissnell/landfall/internal/types"
)

var unitSquareCorners = []types.XY{
	{X: 0, Y: 0},
	{X: 1, Y: 0},
	{X: 0, Y: 1},
	{X: 1, Y: 1},
}

func TestKNearestCornerTieBreak(t *testing.T) {
	// Each corner has two neighbors at distance 1; k=1 must pick the one
	// with the lower original index, deterministically.
	g, err := KNearest(unitSquareCorners, types.CRSUnknown, 1, types.Planar)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []int{1, 0, 0, 1}
	for i, row := range g.Rows {
		if len(row) != 1 {
			t.Fatalf("row %d: expected 1 neighbor, got %d", i, len(row))
		}
		if row[0].To != want[i] {
			t.Errorf("row %d: expected neighbor %d, got %d", i, want[i], row[0].To)
		}
		if row[0].Weight != 1.0 {
			t.Errorf("row %d: expected weight 1, got %g", i, row[0].Weight)
		}
	}
}

func TestKNearestRowStandardized(t *testing.T) {
	coords := []types.XY{
		{X: 0, Y: 0}, {X: 2, Y: 1}, {X: 5, Y: 0}, {X: 1, Y: 4}, {X: 3, Y: 3}, {X: 6, Y: 5},
	}
	g, err := KNearest(coords, types.CRSUnknown, 3, types.Planar)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := range g.Rows {
		if math.Abs(g.RowSum(i)-1.0) > 1e-12 {
			t.Errorf("row %d: weights sum to %g, want 1", i, g.RowSum(i))
		}
		for _, e := range g.Rows[i] {
			if e.To == i {
				t.Errorf("row %d: self loop", i)
			}
			if e.To < 0 || e.To >= len(coords) {
				t.Errorf("row %d: neighbor index %d out of range", i, e.To)
			}
		}
	}
	if math.Abs(g.S0()-float64(len(coords))) > 1e-12 {
		t.Errorf("S0 = %g, want %d", g.S0(), len(coords))
	}
}

func TestKNearestInsufficientData(t *testing.T) {
	_, err := KNearest(unitSquareCorners, types.CRSUnknown, 4, types.Planar)
	var insErr *types.InsufficientDataError
	if !errors.As(err, &insErr) {
		t.Fatalf("expected InsufficientDataError for k >= n, got %v", err)
	}
}

func TestKNearestHaversineMatchesPlanarOrdering(t *testing.T) {
	// At small separations near the equator the two metrics must agree
	// on neighbor identity even though units differ.
	coords := []types.XY{
		{X: 0, Y: 0}, {X: 0.01, Y: 0}, {X: 0.05, Y: 0}, {X: 0, Y: 0.02},
	}
	planar, err := KNearest(coords, types.CRSWGS84, 2, types.Planar)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	hav, err := KNearest(coords, types.CRSWGS84, 2, types.Haversine)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := range planar.Rows {
		for j := range planar.Rows[i] {
			if planar.Rows[i][j].To != hav.Rows[i][j].To {
				t.Errorf("row %d pos %d: planar picked %d, haversine picked %d",
					i, j, planar.Rows[i][j].To, hav.Rows[i][j].To)
			}
		}
	}
}

func TestDistanceBandZeroPolicy(t *testing.T) {
	// The last point is isolated: no neighbor within the band. It keeps
	// an explicit empty row instead of raising.
	coords := []types.XY{
		{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1}, {X: 100, Y: 100},
	}
	g, err := DistanceBand(coords, types.CRSUnknown, 0, 2, types.Planar)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := 0; i < 3; i++ {
		if math.Abs(g.RowSum(i)-1.0) > 1e-12 {
			t.Errorf("row %d: weights sum to %g, want 1", i, g.RowSum(i))
		}
	}
	if len(g.Rows[3]) != 0 {
		t.Errorf("expected empty neighbor set for isolated point, got %v", g.Rows[3])
	}
	if g.RowSum(3) != 0 {
		t.Errorf("expected all-zero row for isolated point")
	}
}

func TestDistanceBandInterval(t *testing.T) {
	coords := []types.XY{
		{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 3, Y: 0}, {X: 6, Y: 0},
	}
	// Band [2, 4]: point 0 reaches only point 2 (d=3); d=1 and d=6 fall
	// outside.
	g, err := DistanceBand(coords, types.CRSUnknown, 2, 4, types.Planar)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(g.Rows[0]) != 1 || g.Rows[0][0].To != 2 {
		t.Errorf("row 0: expected single neighbor 2, got %v", g.Rows[0])
	}
	// Point 2 reaches 0 (d=3), 1 (d=2), and 3 (d=3): three neighbors at 1/3.
	if len(g.Rows[2]) != 3 {
		t.Fatalf("row 2: expected 3 neighbors, got %v", g.Rows[2])
	}
	for _, e := range g.Rows[2] {
		if math.Abs(e.Weight-1.0/3.0) > 1e-12 {
			t.Errorf("row 2: expected weight 1/3, got %g", e.Weight)
		}
	}
}

func TestDistanceBandInvalidInterval(t *testing.T) {
	_, err := DistanceBand(unitSquareCorners, types.CRSUnknown, 5, 2, types.Planar)
	var geomErr *types.InvalidGeometryError
	if !errors.As(err, &geomErr) {
		t.Fatalf("expected InvalidGeometryError for inverted band, got %v", err)
	}
}
