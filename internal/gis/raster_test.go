package gis

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/chrissnell/landfall/internal/types"
)

const sampleGrid = `ncols 3
nrows 2
xllcorner -100.0
yllcorner 30.0
cellsize 1.0
NODATA_value -9999
1 2 3
4 -9999 6
`

func writeGrid(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.asc")
	if err := os.WriteFile(path, []byte(sampleGrid), 0o644); err != nil {
		t.Fatalf("writing grid: %v", err)
	}
	return path
}

func TestLoadASCIIGrid(t *testing.T) {
	g, err := LoadASCIIGrid(writeGrid(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.NCols != 3 || g.NRows != 2 {
		t.Fatalf("wrong dimensions: %dx%d", g.NCols, g.NRows)
	}
}

func TestSampleNearestCell(t *testing.T) {
	g, err := LoadASCIIGrid(writeGrid(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		name string
		x, y float64
		want float64
		miss bool
	}{
		{name: "bottom-left cell", x: -99.5, y: 30.5, want: 4},
		{name: "top-left cell", x: -99.5, y: 31.5, want: 1},
		{name: "top-right cell", x: -97.5, y: 31.5, want: 3},
		{name: "bottom-right cell", x: -97.5, y: 30.5, want: 6},
		{name: "nodata cell", x: -98.5, y: 30.5, miss: true},
		{name: "outside grid", x: -200, y: 30.5, miss: true},
		{name: "north of grid", x: -99.5, y: 99, miss: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := g.Sample(tt.x, tt.y)
			v, ok := got.Value()
			if tt.miss {
				if ok {
					t.Fatalf("expected missing, got %g", v)
				}
				return
			}
			if !ok {
				t.Fatalf("expected %g, got missing", tt.want)
			}
			if v != tt.want {
				t.Errorf("expected %g, got %g", tt.want, v)
			}
		})
	}
}

func TestSampleAll(t *testing.T) {
	g, err := LoadASCIIGrid(writeGrid(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	vals := g.SampleAll([]types.XY{{X: -99.5, Y: 31.5}, {X: -98.5, Y: 30.5}})
	if v, ok := vals[0].Value(); !ok || v != 1 {
		t.Errorf("expected 1, got %+v", vals[0])
	}
	if vals[1].Valid() {
		t.Errorf("expected missing for nodata cell")
	}
}
