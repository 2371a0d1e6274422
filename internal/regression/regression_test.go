package regression

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/chrissnell/landfall/internal/types"
	"github.com/chrissnell/landfall/internal/weights"
)

func TestOLSRecoversCoefficients(t *testing.T) {
	// y = 2 + 3*x1 - 0.5*x2, exactly.
	rng := rand.New(rand.NewPCG(1, 1))
	n := 50
	x1 := make([]float64, n)
	x2 := make([]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		x1[i] = rng.Float64() * 10
		x2[i] = rng.Float64() * 5
		y[i] = 2 + 3*x1[i] - 0.5*x2[i]
	}

	res, err := OLS([][]float64{x1, x2}, y)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []float64{2, 3, -0.5}
	for i, w := range want {
		if math.Abs(res.Coefficients[i]-w) > 1e-8 {
			t.Errorf("coefficient %d: expected %g, got %g", i, w, res.Coefficients[i])
		}
	}
	if math.Abs(res.R2-1) > 1e-8 {
		t.Errorf("expected R2 1 for exact fit, got %g", res.R2)
	}
	for i, r := range res.Residuals {
		if math.Abs(r) > 1e-8 {
			t.Errorf("residual %d: expected 0, got %g", i, r)
		}
	}
}

func TestOLSCollinearity(t *testing.T) {
	n := 20
	x1 := make([]float64, n)
	x2 := make([]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		x1[i] = float64(i)
		x2[i] = 2 * float64(i) // exact multiple of x1
		y[i] = float64(i)
	}

	_, err := OLS([][]float64{x1, x2}, y)
	var colErr *types.CollinearityError
	if !errors.As(err, &colErr) {
		t.Fatalf("expected CollinearityError, got %v", err)
	}
	if colErr.Rank >= colErr.Cols {
		t.Errorf("error should report deficient rank: %+v", colErr)
	}
}

func knnGraph(t *testing.T, coords []types.XY, k int) *weights.Graph {
	t.Helper()
	g, err := weights.KNearest(coords, types.CRSUnknown, k, types.Planar)
	if err != nil {
		t.Fatalf("building graph: %v", err)
	}
	return g
}

func gridCoords(side int) []types.XY {
	coords := make([]types.XY, 0, side*side)
	for i := 0; i < side; i++ {
		for j := 0; j < side; j++ {
			coords = append(coords, types.XY{X: float64(i), Y: float64(j)})
		}
	}
	return coords
}

func TestGlobalMoranClustered(t *testing.T) {
	// Values follow a smooth gradient over a grid: strong positive
	// autocorrelation.
	side := 8
	coords := gridCoords(side)
	values := make([]float64, len(coords))
	for i, c := range coords {
		values[i] = c.X + c.Y
	}

	res, err := GlobalMoran(values, knnGraph(t, coords, 4))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.I <= 0.5 {
		t.Errorf("expected strongly positive I for gradient values, got %g", res.I)
	}
	if res.PValue > 0.001 {
		t.Errorf("expected significant clustering, got p=%g", res.PValue)
	}
	if math.Abs(res.EI-(-1.0/63.0)) > 1e-12 {
		t.Errorf("expected E[I] = -1/(n-1), got %g", res.EI)
	}
}

func TestGlobalMoranRandom(t *testing.T) {
	side := 10
	coords := gridCoords(side)
	rng := rand.New(rand.NewPCG(4, 4))
	values := make([]float64, len(coords))
	for i := range values {
		values[i] = rng.NormFloat64()
	}

	res, err := GlobalMoran(values, knnGraph(t, coords, 4))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(res.I) > 0.15 {
		t.Errorf("expected near-zero I for random values, got %g", res.I)
	}
}

func TestGlobalMoranConstantVector(t *testing.T) {
	coords := gridCoords(5)
	values := make([]float64, len(coords))
	for i := range values {
		values[i] = 7.5
	}

	res, err := GlobalMoran(values, knnGraph(t, coords, 3))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Degenerate {
		t.Errorf("expected Degenerate flag for zero-variance values")
	}
	if res.I != 0 {
		t.Errorf("expected I = 0 for degenerate input, got %g", res.I)
	}
	if !math.IsNaN(res.PValue) {
		t.Errorf("expected NaN p-value for degenerate input, got %g", res.PValue)
	}
}

func TestLocalMoranHotspot(t *testing.T) {
	// A tight block of high values in one grid corner: its members
	// should show the largest positive local I.
	side := 8
	coords := gridCoords(side)
	values := make([]float64, len(coords))
	for i, c := range coords {
		if c.X < 2 && c.Y < 2 {
			values[i] = 10
		}
	}

	g := knnGraph(t, coords, 4)
	local, err := LocalMoran(values, g)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(local) != len(coords) {
		t.Fatalf("expected %d results, got %d", len(coords), len(local))
	}

	// corner (0,0) is index 0 in gridCoords order
	if local[0].I <= 0 {
		t.Errorf("expected positive local I inside the hotspot, got %g", local[0].I)
	}

	// A far-away cell surrounded by zeros has no local contrast signal
	// anywhere near the hotspot's.
	far := len(coords) - 1
	if local[far].I >= local[0].I {
		t.Errorf("expected hotspot I (%g) to exceed background I (%g)", local[0].I, local[far].I)
	}
}

func TestLocalMoranZeroNeighborRow(t *testing.T) {
	coords := []types.XY{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1}, {X: 50, Y: 50}}
	g, err := weights.DistanceBand(coords, types.CRSUnknown, 0, 2, types.Planar)
	if err != nil {
		t.Fatalf("building graph: %v", err)
	}

	local, err := LocalMoran([]float64{1, 2, 3, 4}, g)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if local[3].I != 0 || !math.IsNaN(local[3].PValue) {
		t.Errorf("expected zero-neighbor row to yield I=0, p=NaN; got %+v", local[3])
	}
}

func TestGWRLocalR2BoundsAndConvergence(t *testing.T) {
	// Spatially constant truth: local fits at any bandwidth should land
	// near the global OLS estimate, and local R2 must stay in [0,1].
	rng := rand.New(rand.NewPCG(2, 8))
	n := 100
	coords := make([]types.XY, n)
	x := make([]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		coords[i] = types.XY{X: rng.Float64() * 10, Y: rng.Float64() * 10}
		x[i] = rng.Float64() * 4
		y[i] = 1.5 + 2*x[i] + rng.NormFloat64()*0.05
	}

	global, err := OLS([][]float64{x}, y)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	res, err := GWR(context.Background(), [][]float64{x}, y, coords, GWROptions{
		BandwidthCandidates: []float64{0.9},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := 0; i < n; i++ {
		r2 := res.LocalR2[i]
		if r2 < 0 || r2 > 1 || math.IsNaN(r2) {
			t.Errorf("observation %d: local R2 %g out of [0,1]", i, r2)
		}
		if math.Abs(res.Coefficients[i][1]-global.Coefficients[1]) > 0.2 {
			t.Errorf("observation %d: local slope %g far from global %g",
				i, res.Coefficients[i][1], global.Coefficients[1])
		}
	}
	if res.NeighborCount != 90 {
		t.Errorf("expected 90 neighbors at bandwidth 0.9 with n=100, got %d", res.NeighborCount)
	}
}

func TestGWRDetectsSpatialVariation(t *testing.T) {
	// Slope varies east to west; small-bandwidth local fits should track
	// it while the selected bandwidth stays below the full sample.
	rng := rand.New(rand.NewPCG(6, 6))
	n := 120
	coords := make([]types.XY, n)
	x := make([]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		coords[i] = types.XY{X: rng.Float64() * 10, Y: rng.Float64() * 10}
		x[i] = rng.Float64() * 4
		slope := 1 + coords[i].X/2 // from 1 in the west to 6 in the east
		y[i] = slope*x[i] + rng.NormFloat64()*0.05
	}

	res, err := GWR(context.Background(), [][]float64{x}, y, coords, GWROptions{
		BandwidthCandidates: []float64{0.1, 0.3, 0.6, 0.9},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.Bandwidth >= 0.9 {
		t.Errorf("expected a local bandwidth for spatially varying truth, got %g", res.Bandwidth)
	}

	// Mean local slope in the westmost quarter must undercut the east.
	var west, east []float64
	for i, c := range coords {
		if c.X < 2.5 {
			west = append(west, res.Coefficients[i][1])
		} else if c.X > 7.5 {
			east = append(east, res.Coefficients[i][1])
		}
	}
	if meanOf(west) >= meanOf(east) {
		t.Errorf("expected western slopes (%g) below eastern slopes (%g)", meanOf(west), meanOf(east))
	}
}

func TestGWRDeterministicAcrossWorkerCounts(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 3))
	n := 60
	coords := make([]types.XY, n)
	x := make([]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		coords[i] = types.XY{X: rng.Float64(), Y: rng.Float64()}
		x[i] = rng.Float64()
		y[i] = 2*x[i] + rng.NormFloat64()*0.1
	}

	opt := GWROptions{BandwidthCandidates: []float64{0.5}}
	opt.Workers = 1
	a, err := GWR(context.Background(), [][]float64{x}, y, coords, opt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	opt.Workers = 8
	b, err := GWR(context.Background(), [][]float64{x}, y, coords, opt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := 0; i < n; i++ {
		if math.Abs(a.Fitted[i]-b.Fitted[i]) > 1e-12 {
			t.Errorf("observation %d: fitted values differ across worker counts", i)
		}
	}
}

func meanOf(x []float64) float64 {
	s := 0.0
	for _, v := range x {
		s += v
	}
	return s / float64(len(x))
}
