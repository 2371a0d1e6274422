// Package report assembles the results of one analysis run into a
// single JSON document. The report carries plain data only; rendering
// and plotting are downstream consumers' concern.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/chrissnell/landfall/internal/dataset"
	"github.com/chrissnell/landfall/internal/regression"
	"github.com/chrissnell/landfall/internal/summary"
)

// SurfaceMeta describes a computed intensity surface without embedding
// the full value grid.
type SurfaceMeta struct {
	Sigma    float64 `json:"sigma"`
	CellSize float64 `json:"cell_size"`
	NX       int     `json:"nx"`
	NY       int     `json:"ny"`
	MaxValue float64 `json:"max_value"`
}

// Report is the complete output of one analysis run.
type Report struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Observations int                `json:"observations"`
	ColumnStats  []*dataset.Summary `json:"column_stats,omitempty"`
	RegionCounts map[string]int     `json:"region_counts,omitempty"`

	Density *SurfaceMeta `json:"density,omitempty"`

	MeanNNDistance float64          `json:"mean_nn_distance,omitempty"`
	G              []summary.RValue `json:"g_function,omitempty"`
	F              []summary.RValue `json:"f_function,omitempty"`
	K              []summary.RValue `json:"k_function,omitempty"`
	L              []summary.RValue `json:"l_function,omitempty"`

	Quadrat *summary.QuadratResult `json:"quadrat,omitempty"`
	ANN     *summary.ANNResult     `json:"ann_test,omitempty"`

	OLS           *regression.OLSResult         `json:"ols,omitempty"`
	ResidualMoran *regression.MoranResult       `json:"residual_moran,omitempty"`
	LocalMoran    []regression.LocalMoranResult `json:"local_moran,omitempty"`
	GWR           *regression.GWRResult         `json:"gwr,omitempty"`

	Notes []string `json:"notes,omitempty"`
}

// New starts a report with a fresh run ID.
func New() *Report {
	return &Report{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}
}

// Note appends a free-form analysis note.
func (r *Report) Note(format string, args ...interface{}) {
	r.Notes = append(r.Notes, fmt.Sprintf(format, args...))
}

// Write finalizes the report and writes it as indented JSON.
func (r *Report) Write(path string) error {
	r.FinishedAt = time.Now().UTC()
	raw, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}
