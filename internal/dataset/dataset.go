// Package dataset loads and cleans the meteorite landing catalog. The
// loader resolves columns by header name, keeps optional numeric fields
// as explicit missing markers, and drops only rows without usable
// coordinates. Downstream stages that need complete columns ask for them
// through accessors that fail when gaps remain.
package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/montanaflynn/stats"

	"github.com/chrissnell/landfall/internal/log"
	"github.com/chrissnell/landfall/internal/types"
)

// Region is a longitude/latitude bounding box used to clip the catalog.
type Region struct {
	LonMin, LonMax float64
	LatMin, LatMax float64
}

// CONUS covers the continental United States.
var CONUS = Region{LonMin: -125, LonMax: -66.5, LatMin: 24.5, LatMax: 49.5}

func (r Region) contains(lon, lat float64) bool {
	return lon >= r.LonMin && lon <= r.LonMax && lat >= r.LatMin && lat <= r.LatMax
}

// Load reads a landing catalog CSV, keeping rows with finite coordinates
// inside region. Expected columns (matched case-insensitively by
// header): name, id, recclass, mass (g), fall, year, reclat, reclong.
func Load(path string, region Region) (*types.ObservationTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}
	defer f.Close()
	return Read(f, region)
}

// Read parses catalog CSV from r; see Load.
func Read(r io.Reader, region Region) (*types.ObservationTable, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading catalog header: %w", err)
	}
	col := map[string]int{}
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}

	idx := func(names ...string) int {
		for _, n := range names {
			if i, ok := col[n]; ok {
				return i
			}
		}
		return -1
	}
	latIdx := idx("reclat", "lat", "latitude")
	lonIdx := idx("reclong", "lon", "long", "longitude")
	if latIdx < 0 || lonIdx < 0 {
		return nil, fmt.Errorf("catalog is missing coordinate columns (have %v)", header)
	}
	nameIdx := idx("name")
	idIdx := idx("id")
	classIdx := idx("recclass", "class")
	massIdx := idx("mass (g)", "mass")
	fallIdx := idx("fall")
	yearIdx := idx("year")

	table := &types.ObservationTable{CRS: types.CRSWGS84}
	dropped := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading catalog row: %w", err)
		}

		lat, latOK := parseFloat(field(rec, latIdx))
		lon, lonOK := parseFloat(field(rec, lonIdx))
		if !latOK || !lonOK || !region.contains(lon, lat) {
			dropped++
			continue
		}
		// (0, 0) is the catalog's stand-in for an unknown location.
		if lat == 0 && lon == 0 {
			dropped++
			continue
		}

		o := types.Observation{
			Name:     field(rec, nameIdx),
			Recclass: field(rec, classIdx),
			Fall:     types.FallStatus(field(rec, fallIdx)),
			Lat:      lat,
			Lon:      lon,
		}
		if id, ok := parseFloat(field(rec, idIdx)); ok {
			o.ID = int64(id)
		}
		if m, ok := parseFloat(field(rec, massIdx)); ok {
			o.MassG = types.Some(m)
		}
		if y, ok := parseYear(field(rec, yearIdx)); ok {
			o.Year = types.Some(y)
		}
		table.Observations = append(table.Observations, o)
	}

	log.Debugf("catalog loaded: %d observations kept, %d dropped", table.Len(), dropped)
	return table, nil
}

func field(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

func parseFloat(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// parseYear accepts bare years and the catalog's timestamp form
// ("01/01/1880 12:00:00 AM").
func parseYear(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v, true
	}
	parts := strings.Fields(s)
	if len(parts) > 0 {
		dmy := strings.Split(parts[0], "/")
		if len(dmy) == 3 {
			if v, err := strconv.ParseFloat(dmy[2], 64); err == nil {
				return v, true
			}
		}
	}
	return 0, false
}

// Summary holds descriptive statistics for one numeric column.
type Summary struct {
	Column  string  `json:"column"`
	Count   int     `json:"count"`
	Missing int     `json:"missing"`
	Mean    float64 `json:"mean"`
	Median  float64 `json:"median"`
	StdDev  float64 `json:"std_dev"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Q1      float64 `json:"q1"`
	Q3      float64 `json:"q3"`
}

// Describe computes descriptive statistics for the named optional
// column ("mass" or "year"), skipping missing values.
func Describe(t *types.ObservationTable, column string) (*Summary, error) {
	var pick func(o types.Observation) types.Optional
	switch column {
	case "mass":
		pick = func(o types.Observation) types.Optional { return o.MassG }
	case "year":
		pick = func(o types.Observation) types.Optional { return o.Year }
	default:
		return nil, fmt.Errorf("unknown column %q", column)
	}

	var vals []float64
	missing := 0
	for _, o := range t.Observations {
		if v, ok := pick(o).Value(); ok {
			vals = append(vals, v)
		} else {
			missing++
		}
	}
	if len(vals) == 0 {
		return nil, &types.InsufficientDataError{
			Op: "dataset.Describe", Needed: 1, Got: 0,
			Detail: fmt.Sprintf("column %q has no present values", column),
		}
	}

	s := &Summary{Column: column, Count: len(vals), Missing: missing}
	var err error
	if s.Mean, err = stats.Mean(vals); err != nil {
		return nil, err
	}
	if s.Median, err = stats.Median(vals); err != nil {
		return nil, err
	}
	if s.StdDev, err = stats.StandardDeviation(vals); err != nil {
		return nil, err
	}
	if s.Min, err = stats.Min(vals); err != nil {
		return nil, err
	}
	if s.Max, err = stats.Max(vals); err != nil {
		return nil, err
	}
	if s.Q1, err = stats.Percentile(vals, 25); err != nil {
		return nil, err
	}
	if s.Q3, err = stats.Percentile(vals, 75); err != nil {
		return nil, err
	}
	return s, nil
}

// CompleteColumn returns the named column as a dense vector, failing
// with InsufficientDataError when missing values remain: the caller must
// filter or impute explicitly first, never silently.
func CompleteColumn(t *types.ObservationTable, column string) ([]float64, error) {
	var pick func(o types.Observation) types.Optional
	switch column {
	case "mass":
		pick = func(o types.Observation) types.Optional { return o.MassG }
	case "year":
		pick = func(o types.Observation) types.Optional { return o.Year }
	default:
		return nil, fmt.Errorf("unknown column %q", column)
	}

	out := make([]float64, t.Len())
	for i, o := range t.Observations {
		v, ok := pick(o).Value()
		if !ok {
			return nil, &types.InsufficientDataError{
				Op: "dataset.CompleteColumn", Needed: t.Len(), Got: i,
				Detail: fmt.Sprintf("column %q has a missing value at row %d", column, i),
			}
		}
		out[i] = v
	}
	return out, nil
}

// FilterComplete returns a new table containing only rows where all of
// the named columns are present.
func FilterComplete(t *types.ObservationTable, columns ...string) *types.ObservationTable {
	out := &types.ObservationTable{CRS: t.CRS}
	for _, o := range t.Observations {
		ok := true
		for _, c := range columns {
			switch c {
			case "mass":
				ok = ok && o.MassG.Valid()
			case "year":
				ok = ok && o.Year.Valid()
			}
		}
		if ok {
			out.Observations = append(out.Observations, o)
		}
	}
	return out
}
