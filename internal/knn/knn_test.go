package knn

import (
	"math"
	"testing"

	"github.com/chrissnell/landfall/internal/types"
)

func TestNearestExcludesSelf(t *testing.T) {
	coords := []types.XY{
		{X: 0, Y: 0},
		{X: 1, Y: 0},
		{X: 5, Y: 0},
	}
	tree := NewTree(coords)

	nb := tree.Nearest(coords[0], 0)
	if nb.Idx != 1 {
		t.Errorf("expected neighbor index 1, got %d", nb.Idx)
	}
	if math.Abs(nb.Dist-1) > 1e-12 {
		t.Errorf("expected distance 1, got %v", nb.Dist)
	}
}

func TestKNearestOrderAndTieBreak(t *testing.T) {
	// Unit square: each corner has two neighbors at distance 1 and one at
	// sqrt(2). Ties at equal distance must resolve by ascending index.
	coords := []types.XY{
		{X: 0, Y: 0},
		{X: 1, Y: 0},
		{X: 0, Y: 1},
		{X: 1, Y: 1},
	}
	tree := NewTree(coords)

	tests := []struct {
		self int
		k    int
		want []int
	}{
		{self: 0, k: 2, want: []int{1, 2}},
		{self: 3, k: 2, want: []int{1, 2}},
		{self: 0, k: 3, want: []int{1, 2, 3}},
	}

	for _, tt := range tests {
		got := tree.KNearest(tt.self, tt.k)
		if len(got) != len(tt.want) {
			t.Fatalf("self %d k %d: expected %d neighbors, got %d", tt.self, tt.k, len(tt.want), len(got))
		}
		for i, nb := range got {
			if nb.Idx != tt.want[i] {
				t.Errorf("self %d k %d: neighbor %d expected index %d, got %d", tt.self, tt.k, i, tt.want[i], nb.Idx)
			}
		}
		for i := 1; i < len(got); i++ {
			if got[i].Dist < got[i-1].Dist {
				t.Errorf("self %d k %d: neighbors out of distance order", tt.self, tt.k)
			}
		}
	}
}

func TestKNearestBoundaryRounding(t *testing.T) {
	// The second point's squared distance from the origin loses an ulp
	// when round-tripped through sqrt. The boundary re-scan must still
	// return it as the single nearest neighbor.
	coords := []types.XY{
		{X: 0, Y: 0},
		{X: 1.0292099090649256, Y: 0.3806400175678625},
		{X: 5, Y: 5},
	}
	tree := NewTree(coords)

	got := tree.KNearest(0, 1)
	if len(got) != 1 {
		t.Fatalf("expected 1 neighbor, got %d", len(got))
	}
	if got[0].Idx != 1 {
		t.Errorf("expected neighbor index 1, got %d", got[0].Idx)
	}
	if got[0].Dist <= 0 {
		t.Errorf("expected positive distance, got %v", got[0].Dist)
	}
}

func TestWithinRadius(t *testing.T) {
	coords := []types.XY{
		{X: 0, Y: 0},
		{X: 1, Y: 0},
		{X: 2, Y: 0},
		{X: 10, Y: 0},
	}
	tree := NewTree(coords)

	got := tree.Within(types.XY{X: 0, Y: 0}, 2, 0)
	if len(got) != 2 {
		t.Fatalf("expected 2 points within radius, got %d", len(got))
	}
	if got[0].Idx != 1 || got[1].Idx != 2 {
		t.Errorf("unexpected neighbor indices: %d, %d", got[0].Idx, got[1].Idx)
	}
	// Boundary is inclusive.
	if math.Abs(got[1].Dist-2) > 1e-12 {
		t.Errorf("expected boundary distance 2, got %v", got[1].Dist)
	}
}
