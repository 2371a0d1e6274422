package regression

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/chrissnell/landfall/internal/types"
	"github.com/chrissnell/landfall/internal/weights"
)

// MoranResult is a global Moran's I statistic with its normal
// approximation. Positive I indicates clustering of similar values,
// negative indicates dispersion, near zero indicates spatial randomness.
type MoranResult struct {
	I      float64 `json:"i"`
	EI     float64 `json:"expected_i"`
	VarI   float64 `json:"variance"`
	Z      float64 `json:"z_score"`
	PValue float64 `json:"p_value"`

	// Degenerate is set when the value vector has zero variance. I is
	// reported as 0 and the p-value as NaN; no division by zero occurs.
	Degenerate bool `json:"degenerate,omitempty"`
}

// LocalMoranResult holds one observation's local Moran statistic.
type LocalMoranResult struct {
	I      float64 `json:"i"`
	EI     float64 `json:"expected_i"`
	Z      float64 `json:"z_score"`
	PValue float64 `json:"p_value"`
}

// GlobalMoran computes Moran's I for values over the weights graph,
// with expectation and variance under the normality assumption.
func GlobalMoran(values []float64, g *weights.Graph) (*MoranResult, error) {
	n := len(values)
	if n != g.N() {
		return nil, &types.InsufficientDataError{
			Op: "regression.GlobalMoran", Needed: g.N(), Got: n,
			Detail: "value vector length must match graph size",
		}
	}
	if n < 3 {
		return nil, &types.InsufficientDataError{Op: "regression.GlobalMoran", Needed: 3, Got: n}
	}

	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(n)

	z := make([]float64, n)
	m2 := 0.0
	for i, v := range values {
		z[i] = v - mean
		m2 += z[i] * z[i]
	}
	if m2 == 0 {
		return &MoranResult{I: 0, PValue: math.NaN(), Degenerate: true}, nil
	}

	s0 := g.S0()
	if s0 == 0 {
		return nil, &types.InsufficientDataError{
			Op: "regression.GlobalMoran", Needed: 1, Got: 0,
			Detail: "weights graph has no edges",
		}
	}

	cross := 0.0
	for i, row := range g.Rows {
		for _, e := range row {
			cross += e.Weight * z[i] * z[e.To]
		}
	}
	iStat := (float64(n) / s0) * (cross / m2)

	// Moments under normality (Cliff & Ord).
	s1 := 0.0
	rowSums := make([]float64, n)
	colSums := make([]float64, n)
	for i, row := range g.Rows {
		for _, e := range row {
			wij := e.Weight
			wji := g.Weight(e.To, i)
			s1 += (wij + wji) * (wij + wji)
			rowSums[i] += wij
			colSums[e.To] += wij
		}
	}
	s1 /= 2
	s2 := 0.0
	for i := 0; i < n; i++ {
		t := rowSums[i] + colSums[i]
		s2 += t * t
	}

	nf := float64(n)
	ei := -1 / (nf - 1)
	vari := (nf*nf*s1-nf*s2+3*s0*s0)/(s0*s0*(nf*nf-1)) - ei*ei

	zScore := (iStat - ei) / math.Sqrt(vari)
	norm := distuv.Normal{Mu: 0, Sigma: 1}
	pval := 2 * norm.CDF(-math.Abs(zScore))

	return &MoranResult{I: iStat, EI: ei, VarI: vari, Z: zScore, PValue: pval}, nil
}

// LocalMoran computes the local Moran statistic per observation using
// only that observation's neighbor subset, flagging local hot and cold
// spots independent of the global trend. Observations with no neighbors
// get I = 0 and a NaN p-value, consistent with the zero policy of
// distance-band graphs.
func LocalMoran(values []float64, g *weights.Graph) ([]LocalMoranResult, error) {
	n := len(values)
	if n != g.N() {
		return nil, &types.InsufficientDataError{
			Op: "regression.LocalMoran", Needed: g.N(), Got: n,
			Detail: "value vector length must match graph size",
		}
	}
	if n < 3 {
		return nil, &types.InsufficientDataError{Op: "regression.LocalMoran", Needed: 3, Got: n}
	}

	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(n)

	z := make([]float64, n)
	m2 := 0.0
	m4 := 0.0
	for i, v := range values {
		z[i] = v - mean
		m2 += z[i] * z[i]
		m4 += z[i] * z[i] * z[i] * z[i]
	}
	m2 /= float64(n)
	m4 /= float64(n)

	out := make([]LocalMoranResult, n)
	if m2 == 0 {
		for i := range out {
			out[i] = LocalMoranResult{I: 0, PValue: math.NaN()}
		}
		return out, nil
	}

	b2 := m4 / (m2 * m2)
	nf := float64(n)
	norm := distuv.Normal{Mu: 0, Sigma: 1}

	for i, row := range g.Rows {
		if len(row) == 0 {
			out[i] = LocalMoranResult{I: 0, PValue: math.NaN()}
			continue
		}

		lag := 0.0
		wi := 0.0
		wi2 := 0.0
		for _, e := range row {
			lag += e.Weight * z[e.To]
			wi += e.Weight
			wi2 += e.Weight * e.Weight
		}

		ii := (z[i] / m2) * lag
		ei := -wi / (nf - 1)

		// Anselin (1995) moments under normality.
		wikh := wi*wi - wi2
		vari := wi2*(nf-b2)/(nf-1) + wikh*(2*b2-nf)/((nf-1)*(nf-2)) - ei*ei
		if vari <= 0 {
			out[i] = LocalMoranResult{I: ii, EI: ei, PValue: math.NaN()}
			continue
		}

		zi := (ii - ei) / math.Sqrt(vari)
		out[i] = LocalMoranResult{
			I:      ii,
			EI:     ei,
			Z:      zi,
			PValue: 2 * norm.CDF(-math.Abs(zi)),
		}
	}
	return out, nil
}
