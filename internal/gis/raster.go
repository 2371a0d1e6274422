package gis

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/chrissnell/landfall/internal/types"
)

// Grid is a single-band raster in ESRI ASCII grid format, sampled by
// nearest cell. The gravity and solar-irradiance covariates are expected
// pre-exported to this format in the same CRS as the catalog; there is
// no GeoTIFF decoder here.
type Grid struct {
	NCols, NRows int
	XLLCorner    float64
	YLLCorner    float64
	CellSize     float64
	NoData       float64
	hasNoData    bool

	// values is row-major, north to south as stored in the file.
	values []float64
}

// LoadASCIIGrid reads an ESRI ASCII grid (.asc).
func LoadASCIIGrid(path string) (*Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening raster: %w", err)
	}
	defer f.Close()

	g := &Grid{}
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 1024*1024), 1024*1024)

	// Header: keyword/value pairs until the first data row.
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) == 2 && !isNumeric(fields[0]) {
			key := strings.ToLower(fields[0])
			v, err := strconv.ParseFloat(fields[1], 64)
			if err != nil {
				return nil, fmt.Errorf("raster header %s: %w", key, err)
			}
			switch key {
			case "ncols":
				g.NCols = int(v)
			case "nrows":
				g.NRows = int(v)
			case "xllcorner":
				g.XLLCorner = v
			case "yllcorner":
				g.YLLCorner = v
			case "cellsize":
				g.CellSize = v
			case "nodata_value":
				g.NoData = v
				g.hasNoData = true
			default:
				return nil, fmt.Errorf("unknown raster header keyword %q", key)
			}
			continue
		}

		// First data row.
		if g.NCols == 0 || g.NRows == 0 || g.CellSize <= 0 {
			return nil, fmt.Errorf("raster header incomplete before data (ncols=%d nrows=%d cellsize=%g)",
				g.NCols, g.NRows, g.CellSize)
		}
		g.values = make([]float64, 0, g.NCols*g.NRows)
		if err := g.appendRow(fields); err != nil {
			return nil, err
		}
		break
	}
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if err := g.appendRow(fields); err != nil {
			return nil, err
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading raster: %w", err)
	}
	if len(g.values) != g.NCols*g.NRows {
		return nil, fmt.Errorf("raster has %d values, expected %d", len(g.values), g.NCols*g.NRows)
	}
	return g, nil
}

func (g *Grid) appendRow(fields []string) error {
	for _, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return fmt.Errorf("raster value %q: %w", f, err)
		}
		g.values = append(g.values, v)
	}
	return nil
}

func isNumeric(s string) bool {
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

// Sample returns the nearest-cell value at (x, y). Locations outside the
// grid or on a NODATA cell come back missing.
func (g *Grid) Sample(x, y float64) types.Optional {
	col := int((x - g.XLLCorner) / g.CellSize)
	rowFromBottom := int((y - g.YLLCorner) / g.CellSize)
	if col < 0 || col >= g.NCols || rowFromBottom < 0 || rowFromBottom >= g.NRows {
		return types.None()
	}
	// File rows run north to south.
	row := g.NRows - 1 - rowFromBottom
	v := g.values[row*g.NCols+col]
	if g.hasNoData && v == g.NoData {
		return types.None()
	}
	return types.Some(v)
}

// SampleAll samples the grid at every coordinate.
func (g *Grid) SampleAll(coords []types.XY) []types.Optional {
	out := make([]types.Optional, len(coords))
	for i, c := range coords {
		out[i] = g.Sample(c.X, c.Y)
	}
	return out
}
