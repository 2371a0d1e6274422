// Package config loads the analysis configuration from YAML.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Config is the complete analysis configuration.
type Config struct {
	Inputs  InputsConfig  `yaml:"inputs"`
	Region  RegionConfig  `yaml:"region,omitempty"`
	Density DensityConfig `yaml:"density,omitempty"`
	Summary SummaryConfig `yaml:"summary,omitempty"`
	Weights WeightsConfig `yaml:"weights,omitempty"`
	GWR     GWRConfig     `yaml:"gwr,omitempty"`
	Output  OutputConfig  `yaml:"output,omitempty"`
}

// InputsConfig names the static input files.
type InputsConfig struct {
	Catalog      string `yaml:"catalog"`
	Boundaries   string `yaml:"boundaries,omitempty"`
	BoundaryName string `yaml:"boundary_name_field,omitempty"`
	GravityGrid  string `yaml:"gravity_grid,omitempty"`
	SolarGrid    string `yaml:"solar_grid,omitempty"`
}

// RegionConfig clips the catalog to a bounding box. Zero values select
// the continental US.
type RegionConfig struct {
	LonMin float64 `yaml:"lon_min,omitempty"`
	LonMax float64 `yaml:"lon_max,omitempty"`
	LatMin float64 `yaml:"lat_min,omitempty"`
	LatMax float64 `yaml:"lat_max,omitempty"`

	// Projection is an optional PROJ4 string. When set, the point-process
	// statistics run on coordinates reprojected from longitude/latitude
	// into this system, so their distances are in projected units rather
	// than degrees.
	Projection string `yaml:"projection,omitempty"`
}

// DensityConfig controls the kernel intensity surface.
type DensityConfig struct {
	// Sigma is the kernel bandwidth in coordinate units; zero selects
	// Silverman's rule.
	Sigma float64 `yaml:"sigma,omitempty"`

	// MinCells is the minimum cell count across the shorter window side.
	MinCells int `yaml:"min_cells,omitempty"`
}

// SummaryConfig controls the point-process statistics.
type SummaryConfig struct {
	Thresholds int    `yaml:"thresholds,omitempty"`  // summary-function curve resolution
	QuadratNX  int    `yaml:"quadrat_nx,omitempty"`
	QuadratNY  int    `yaml:"quadrat_ny,omitempty"`
	Replicates int    `yaml:"replicates,omitempty"`  // Monte Carlo ANN replicates
	NeighborK  int    `yaml:"neighbor_k,omitempty"`  // ANN neighbor order
	EmptySpace int    `yaml:"empty_space,omitempty"` // F-function sample count
	Seed       uint64 `yaml:"seed,omitempty"`
	Workers    int    `yaml:"workers,omitempty"`
}

// WeightsConfig controls the spatial weights graph.
type WeightsConfig struct {
	K      int    `yaml:"k,omitempty"`
	Metric string `yaml:"metric,omitempty"` // "planar" or "haversine"
}

// GWRConfig controls the geographically weighted regression.
type GWRConfig struct {
	Bandwidths []float64 `yaml:"bandwidths,omitempty"`
	Kernel     string    `yaml:"kernel,omitempty"` // "bisquare" or "gaussian"
	Workers    int       `yaml:"workers,omitempty"`
}

// OutputConfig names the report destination.
type OutputConfig struct {
	Report string `yaml:"report,omitempty"`
}

// Load reads and validates a YAML configuration file, filling defaults.
func Load(filename string) (*Config, error) {
	raw, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.applyDefaults()

	if cfg.Inputs.Catalog == "" {
		return nil, fmt.Errorf("config: inputs.catalog is required")
	}
	switch cfg.Weights.Metric {
	case "planar", "haversine":
	default:
		return nil, fmt.Errorf("config: weights.metric must be planar or haversine, got %q", cfg.Weights.Metric)
	}
	switch cfg.GWR.Kernel {
	case "bisquare", "gaussian":
	default:
		return nil, fmt.Errorf("config: gwr.kernel must be bisquare or gaussian, got %q", cfg.GWR.Kernel)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Region.LonMin == 0 && c.Region.LonMax == 0 {
		c.Region = RegionConfig{LonMin: -125, LonMax: -66.5, LatMin: 24.5, LatMax: 49.5}
	}
	if c.Summary.Thresholds == 0 {
		c.Summary.Thresholds = 50
	}
	if c.Summary.QuadratNX == 0 {
		c.Summary.QuadratNX = 6
	}
	if c.Summary.QuadratNY == 0 {
		c.Summary.QuadratNY = 4
	}
	if c.Summary.Replicates == 0 {
		c.Summary.Replicates = 99
	}
	if c.Summary.NeighborK == 0 {
		c.Summary.NeighborK = 1
	}
	if c.Summary.EmptySpace == 0 {
		c.Summary.EmptySpace = 1000
	}
	if c.Weights.K == 0 {
		c.Weights.K = 8
	}
	if c.Weights.Metric == "" {
		// Degrees are not distance-preserving at CONUS latitudes, so the
		// weights graph defaults to great-circle distance.
		c.Weights.Metric = "haversine"
	}
	if c.GWR.Kernel == "" {
		c.GWR.Kernel = "bisquare"
	}
	if c.Inputs.BoundaryName == "" {
		c.Inputs.BoundaryName = "NAME"
	}
	if c.Output.Report == "" {
		c.Output.Report = "landfall-report.json"
	}
}
