package types

import "fmt"

// InvalidGeometryError reports a degenerate window or point pattern, or a
// coordinate-system mismatch between inputs that must share one.
type InvalidGeometryError struct {
	Reason string
	XMin   float64
	XMax   float64
	YMin   float64
	YMax   float64
	NPts   int
}

func (e *InvalidGeometryError) Error() string {
	return fmt.Sprintf("invalid geometry: %s (window [%g,%g]x[%g,%g], %d points)",
		e.Reason, e.XMin, e.XMax, e.YMin, e.YMax, e.NPts)
}

// InsufficientDataError reports too few observations for the requested
// parameter: a neighbor count k, a quadrat resolution, or a column with
// unresolved missing values.
type InsufficientDataError struct {
	Op     string
	Needed int
	Got    int
	Detail string
}

func (e *InsufficientDataError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: insufficient data: %s (need %d, have %d)", e.Op, e.Detail, e.Needed, e.Got)
	}
	return fmt.Sprintf("%s: insufficient data: need %d observations, have %d", e.Op, e.Needed, e.Got)
}

// CollinearityError reports a rank-deficient regression design matrix.
type CollinearityError struct {
	Cols int
	Rank int
}

func (e *CollinearityError) Error() string {
	return fmt.Sprintf("design matrix is rank deficient: %d columns, rank %d", e.Cols, e.Rank)
}

// NumericInstabilityError reports an ill-conditioned local solve, such as
// a near-singular weighted design at a small adaptive bandwidth. Focal is
// the observation index at which the solve failed, or -1 when global.
type NumericInstabilityError struct {
	Op        string
	Focal     int
	Bandwidth float64
	Cond      float64
}

func (e *NumericInstabilityError) Error() string {
	if e.Focal >= 0 {
		return fmt.Sprintf("%s: ill-conditioned solve at observation %d (bandwidth %g, cond %.3g)",
			e.Op, e.Focal, e.Bandwidth, e.Cond)
	}
	return fmt.Sprintf("%s: ill-conditioned solve (cond %.3g)", e.Op, e.Cond)
}
