// Command landfall runs the meteorite-landing spatial analysis: catalog
// loading, descriptive statistics, kernel density, point-process
// randomness tests, spatial autocorrelation, and geographically
// weighted regression, written out as one JSON report.
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"runtime"

	"github.com/chrissnell/landfall/internal/dataset"
	"github.com/chrissnell/landfall/internal/density"
	"github.com/chrissnell/landfall/internal/gis"
	"github.com/chrissnell/landfall/internal/log"
	"github.com/chrissnell/landfall/internal/pointpattern"
	"github.com/chrissnell/landfall/internal/regression"
	"github.com/chrissnell/landfall/internal/report"
	"github.com/chrissnell/landfall/internal/summary"
	"github.com/chrissnell/landfall/internal/types"
	"github.com/chrissnell/landfall/internal/weights"
	"github.com/chrissnell/landfall/pkg/config"
)

const version = "1.2-" + runtime.GOOS + "/" + runtime.GOARCH

func main() {
	cfgFile := flag.String("config", "config.yaml", "Path to YAML configuration")
	debug := flag.Bool("debug", false, "Turn on debugging output")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("landfall %s\n", version)
		os.Exit(0)
	}

	if err := log.Init(*debug); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	cfg, err := config.Load(*cfgFile)
	if err != nil {
		log.Errorf("Failed to load configuration: %v", err)
		os.Exit(1)
	}

	if err := run(context.Background(), cfg); err != nil {
		log.Errorf("Analysis failed: %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	rep := report.New()
	log.Infof("starting analysis run %s", rep.RunID)

	region := dataset.Region{
		LonMin: cfg.Region.LonMin, LonMax: cfg.Region.LonMax,
		LatMin: cfg.Region.LatMin, LatMax: cfg.Region.LatMax,
	}
	table, err := dataset.Load(cfg.Inputs.Catalog, region)
	if err != nil {
		return err
	}
	rep.Observations = table.Len()
	log.Infof("catalog loaded: %d observations in region", table.Len())

	for _, col := range []string{"mass", "year"} {
		s, err := dataset.Describe(table, col)
		if err != nil {
			rep.Note("column %s: %v", col, err)
			continue
		}
		rep.ColumnStats = append(rep.ColumnStats, s)
	}

	if cfg.Inputs.Boundaries != "" {
		if err := regionCounts(cfg, table, rep); err != nil {
			return err
		}
	}

	coords := table.Coords()
	crs := table.CRS
	if cfg.Region.Projection != "" {
		coords, err = gis.Reproject(coords, "+proj=longlat +datum=WGS84 +no_defs", cfg.Region.Projection)
		if err != nil {
			return err
		}
		crs = types.CRS(cfg.Region.Projection)
		log.Infof("coordinates reprojected to %s", cfg.Region.Projection)
	}

	pattern, err := pointpattern.New(coords, crs)
	if err != nil {
		return err
	}

	if err := pointProcessStats(ctx, cfg, pattern, rep); err != nil {
		return err
	}

	if err := regressionStats(ctx, cfg, table, rep); err != nil {
		return err
	}

	if err := rep.Write(cfg.Output.Report); err != nil {
		return err
	}
	log.Infof("report written to %s", cfg.Output.Report)
	return nil
}

func regionCounts(cfg *config.Config, table *types.ObservationTable, rep *report.Report) error {
	bounds, err := gis.LoadBoundaries(cfg.Inputs.Boundaries, cfg.Inputs.BoundaryName)
	if err != nil {
		return err
	}
	xs := make([]float64, table.Len())
	ys := make([]float64, table.Len())
	for i, o := range table.Observations {
		xs[i] = o.Lon
		ys[i] = o.Lat
	}
	rep.RegionCounts = bounds.CountByRegion(xs, ys)
	return nil
}

func pointProcessStats(ctx context.Context, cfg *config.Config, pattern *pointpattern.PointPattern, rep *report.Report) error {
	sigma := cfg.Density.Sigma
	if sigma == 0 {
		sigma = density.SilvermanBandwidth(pattern)
	}
	surf, err := density.Estimate(pattern, density.Options{Sigma: sigma, MinCells: cfg.Density.MinCells})
	if err != nil {
		return err
	}
	rep.Density = &report.SurfaceMeta{
		Sigma:    sigma,
		CellSize: surf.CellSize,
		NX:       surf.NX,
		NY:       surf.NY,
		MaxValue: surf.Max(),
	}
	log.Infof("density surface: %dx%d cells, sigma %.4g", surf.NX, surf.NY, sigma)

	rep.MeanNNDistance, err = summary.MeanNearestNeighborDistance(pattern, cfg.Summary.NeighborK)
	if err != nil {
		return err
	}

	rs := summary.DefaultThresholds(pattern, cfg.Summary.Thresholds)
	if rep.G, err = summary.GFunction(pattern, rs); err != nil {
		return err
	}
	rng := rand.New(rand.NewPCG(cfg.Summary.Seed, 0))
	if rep.F, err = summary.FFunction(pattern, rs, cfg.Summary.EmptySpace, rng); err != nil {
		return err
	}
	if rep.K, err = summary.KFunction(pattern, rs); err != nil {
		return err
	}
	if rep.L, err = summary.LFunction(pattern, rs); err != nil {
		return err
	}

	quad, err := summary.QuadratTest(pattern, cfg.Summary.QuadratNX, cfg.Summary.QuadratNY)
	if err != nil {
		return err
	}
	rep.Quadrat = quad
	if quad.Unreliable {
		rep.Note("quadrat test expected count %.2f per cell is below 5; p-value is unreliable", quad.Expected)
	}

	rep.ANN, err = summary.MonteCarloANN(ctx, pattern, summary.ANNOptions{
		Replicates: cfg.Summary.Replicates,
		K:          cfg.Summary.NeighborK,
		Workers:    cfg.Summary.Workers,
		Seed:       cfg.Summary.Seed,
	})
	if err != nil {
		return err
	}
	log.Infof("ANN test: observed %.4g, z %.3g, p %.3g", rep.ANN.Observed, rep.ANN.Z, rep.ANN.PValue)
	return nil
}

// regressionStats models log-mass against the raster covariates, then
// tests the residuals for spatial structure and refits locally.
func regressionStats(ctx context.Context, cfg *config.Config, table *types.ObservationTable, rep *report.Report) error {
	if cfg.Inputs.GravityGrid == "" || cfg.Inputs.SolarGrid == "" {
		rep.Note("raster covariates not configured; regression stage skipped")
		return nil
	}

	gravity, err := gis.LoadASCIIGrid(cfg.Inputs.GravityGrid)
	if err != nil {
		return err
	}
	solar, err := gis.LoadASCIIGrid(cfg.Inputs.SolarGrid)
	if err != nil {
		return err
	}

	// Keep rows with mass and both covariates present; missing stays
	// missing, never zero.
	complete := dataset.FilterComplete(table, "mass")
	var y []float64
	var grav, irr []float64
	var coords []types.XY
	for _, o := range complete.Observations {
		gv, gok := gravity.Sample(o.Lon, o.Lat).Value()
		sv, sok := solar.Sample(o.Lon, o.Lat).Value()
		if !gok || !sok {
			continue
		}
		m, _ := o.MassG.Value()
		if m <= 0 {
			continue
		}
		y = append(y, logMass(m))
		grav = append(grav, gv)
		irr = append(irr, sv)
		coords = append(coords, types.XY{X: o.Lon, Y: o.Lat})
	}
	if len(y) < 30 {
		rep.Note("regression stage skipped: only %d rows with mass and covariates", len(y))
		return nil
	}
	log.Infof("regression sample: %d observations", len(y))

	covariates := [][]float64{grav, irr}
	ols, err := regression.OLS(covariates, y)
	if err != nil {
		return err
	}
	rep.OLS = ols

	metric := types.Planar
	if cfg.Weights.Metric == "haversine" {
		metric = types.Haversine
	}
	graph, err := weights.KNearest(coords, complete.CRS, cfg.Weights.K, metric)
	if err != nil {
		return err
	}

	rep.ResidualMoran, err = regression.GlobalMoran(ols.Residuals, graph)
	if err != nil {
		return err
	}
	log.Infof("residual Moran's I: %.4g (p %.3g)", rep.ResidualMoran.I, rep.ResidualMoran.PValue)

	rep.LocalMoran, err = regression.LocalMoran(ols.Residuals, graph)
	if err != nil {
		return err
	}

	kernel := regression.Bisquare
	if cfg.GWR.Kernel == "gaussian" {
		kernel = regression.Gaussian
	}
	rep.GWR, err = regression.GWR(ctx, covariates, y, coords, regression.GWROptions{
		BandwidthCandidates: cfg.GWR.Bandwidths,
		Kernel:              kernel,
		Workers:             cfg.GWR.Workers,
	})
	if err != nil {
		return err
	}
	log.Infof("GWR: bandwidth %.2f (%d neighbors), CV RMSE %.4g",
		rep.GWR.Bandwidth, rep.GWR.NeighborCount, rep.GWR.CVRMSE)
	return nil
}

// logMass maps a mass in grams to log10 space: catalog masses span nine
// orders of magnitude.
func logMass(m float64) float64 {
	return math.Log10(m)
}
