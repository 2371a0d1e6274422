// Package regression implements the regression and autocorrelation
// stages: ordinary least squares, global and local Moran's I, and
// geographically weighted regression with adaptive bandwidth selection.
package regression

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/chrissnell/landfall/internal/types"
)

// OLSResult holds a global least-squares fit.
type OLSResult struct {
	// Coefficients is the intercept followed by one slope per covariate.
	Coefficients []float64 `json:"coefficients"`
	Fitted       []float64 `json:"-"`
	Residuals    []float64 `json:"-"`
	R2           float64   `json:"r2"`
}

// rankTolerance is the relative R-diagonal threshold below which a QR
// factorization is treated as rank deficient.
const rankTolerance = 1e-10

// OLS fits y = b0 + b1*x1 + ... via QR decomposition. Each element of
// covariates is one column of length len(y). A rank-deficient design is
// a CollinearityError.
func OLS(covariates [][]float64, y []float64) (*OLSResult, error) {
	n := len(y)
	p := len(covariates) + 1
	if n < p {
		return nil, &types.InsufficientDataError{
			Op: "regression.OLS", Needed: p, Got: n,
			Detail: "need at least as many observations as coefficients",
		}
	}
	for _, col := range covariates {
		if len(col) != n {
			return nil, &types.InsufficientDataError{
				Op: "regression.OLS", Needed: n, Got: len(col),
				Detail: "covariate column length mismatch",
			}
		}
	}

	X := designMatrix(covariates, n)
	beta, err := qrSolve(X, mat.NewVecDense(n, y))
	if err != nil {
		return nil, err
	}

	fitted := make([]float64, n)
	resid := make([]float64, n)
	var fv mat.VecDense
	fv.MulVec(X, beta)
	for i := 0; i < n; i++ {
		fitted[i] = fv.AtVec(i)
		resid[i] = y[i] - fitted[i]
	}

	return &OLSResult{
		Coefficients: vecSlice(beta),
		Fitted:       fitted,
		Residuals:    resid,
		R2:           stat.RSquaredFrom(fitted, y, nil),
	}, nil
}

// designMatrix assembles [1 | covariates] row by row.
func designMatrix(covariates [][]float64, n int) *mat.Dense {
	p := len(covariates) + 1
	X := mat.NewDense(n, p, nil)
	for i := 0; i < n; i++ {
		X.Set(i, 0, 1)
		for j, col := range covariates {
			X.Set(i, j+1, col[i])
		}
	}
	return X
}

// qrSolve factorizes X and solves for the coefficient vector, checking
// the R diagonal for rank deficiency first.
func qrSolve(X *mat.Dense, y *mat.VecDense) (*mat.VecDense, error) {
	_, cols := X.Dims()

	var qr mat.QR
	qr.Factorize(X)

	var r mat.Dense
	qr.RTo(&r)
	maxDiag := 0.0
	for j := 0; j < cols; j++ {
		if v := math.Abs(r.At(j, j)); v > maxDiag {
			maxDiag = v
		}
	}
	rank := 0
	for j := 0; j < cols; j++ {
		if math.Abs(r.At(j, j)) > rankTolerance*maxDiag {
			rank++
		}
	}
	if rank < cols || maxDiag == 0 {
		return nil, &types.CollinearityError{Cols: cols, Rank: rank}
	}

	beta := mat.NewVecDense(cols, nil)
	if err := qr.SolveVecTo(beta, false, y); err != nil {
		return nil, &types.CollinearityError{Cols: cols, Rank: rank}
	}
	return beta, nil
}

func vecSlice(v *mat.VecDense) []float64 {
	out := make([]float64, v.Len())
	for i := range out {
		out[i] = v.AtVec(i)
	}
	return out
}
