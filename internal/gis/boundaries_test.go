package gis

import (
	"testing"

	"github.com/ctessum/geom"
)

func unitSquare(x0, y0 float64) geom.Polygon {
	return geom.Polygon{{
		{X: x0, Y: y0},
		{X: x0 + 1, Y: y0},
		{X: x0 + 1, Y: y0 + 1},
		{X: x0, Y: y0 + 1},
	}}
}

func twoRegions() *Boundaries {
	return NewBoundaries([]*Boundary{
		{Polygonal: unitSquare(0, 0), Name: "west"},
		{Polygonal: unitSquare(2, 0), Name: "east"},
	})
}

func TestNearestContainment(t *testing.T) {
	b := twoRegions()
	if b.Len() != 2 {
		t.Fatalf("expected 2 regions, got %d", b.Len())
	}

	tests := []struct {
		name string
		x, y float64
		want string
	}{
		{name: "inside west", x: 0.5, y: 0.5, want: "west"},
		{name: "inside east", x: 2.5, y: 0.5, want: "east"},
		{name: "gap between, closer to east", x: 1.9, y: 0.5, want: "east"},
		{name: "far offshore, nearest centroid", x: 10, y: 0.5, want: "east"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := b.Nearest(tt.x, tt.y); got != tt.want {
				t.Errorf("Nearest(%g, %g) = %q, want %q", tt.x, tt.y, got, tt.want)
			}
		})
	}
}

func TestNearestEmptyLayer(t *testing.T) {
	b := NewBoundaries(nil)
	if b.Len() != 0 {
		t.Fatalf("expected empty layer, got %d regions", b.Len())
	}
	if got := b.Nearest(0, 0); got != "" {
		t.Errorf("expected empty name from empty layer, got %q", got)
	}
}

func TestCountByRegion(t *testing.T) {
	b := twoRegions()
	xs := []float64{0.2, 0.8, 2.5, 5}
	ys := []float64{0.2, 0.8, 0.5, 0.5}

	counts := b.CountByRegion(xs, ys)
	if counts["west"] != 2 {
		t.Errorf("expected 2 points in west, got %d", counts["west"])
	}
	// The offshore point falls to the nearest centroid.
	if counts["east"] != 2 {
		t.Errorf("expected 2 points in east, got %d", counts["east"])
	}
}
