package regression

import (
	"context"
	"math"
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"
	"gonum.org/v1/gonum/mat"

	"github.com/chrissnell/landfall/internal/knn"
	"github.com/chrissnell/landfall/internal/types"
)

// Kernel selects the distance-decay function for GWR local weights.
type Kernel int

const (
	// Bisquare is (1-(d/dmax)^2)^2 truncated at the adaptive bandwidth.
	Bisquare Kernel = iota

	// Gaussian is exp(-(d/dmax)^2/2) truncated at the adaptive bandwidth.
	Gaussian
)

// GWROptions configures an adaptive-bandwidth GWR fit.
type GWROptions struct {
	// BandwidthCandidates are adaptive bandwidths to score by
	// leave-one-out cross validation, each the proportion of
	// observations included per local fit. Empty selects a default grid.
	BandwidthCandidates []float64

	// Kernel is the distance-decay function. Default Bisquare.
	Kernel Kernel

	// Workers bounds concurrent local fits. Zero means GOMAXPROCS.
	Workers int

	// CondLimit is the condition-number ceiling for local designs; a
	// local solve past it is a NumericInstabilityError. Zero means 1e10.
	CondLimit float64
}

// GWRResult holds the per-observation local fits.
type GWRResult struct {
	// Bandwidth is the selected adaptive bandwidth as a proportion of
	// observations per local fit.
	Bandwidth float64 `json:"bandwidth"`

	// NeighborCount is the observation count per local fit implied by
	// the bandwidth.
	NeighborCount int `json:"neighbor_count"`

	// CVRMSE is the leave-one-out root mean squared prediction error at
	// the selected bandwidth.
	CVRMSE float64 `json:"cv_rmse"`

	Coefficients [][]float64 `json:"-"` // per observation: intercept + slopes
	SE           [][]float64 `json:"-"` // standard errors, same shape
	Fitted       []float64   `json:"-"`
	Residuals    []float64   `json:"-"`
	LocalR2      []float64   `json:"-"`
}

// GWR fits one weighted regression per observation with an adaptive
// kernel whose reach is chosen by minimizing leave-one-out prediction
// error over the candidate bandwidths. Local fits are independent and
// run on a bounded worker pool; results are collected by observation
// index regardless of completion order.
//
// Focal distances are planar in the units of coords. Callers holding
// longitude/latitude should reproject to a planar system first; raw
// degrees stretch the kernel east-west away from the equator.
func GWR(ctx context.Context, covariates [][]float64, y []float64, coords []types.XY, opt GWROptions) (*GWRResult, error) {
	n := len(y)
	p := len(covariates) + 1
	if len(coords) != n {
		return nil, &types.InsufficientDataError{
			Op: "regression.GWR", Needed: n, Got: len(coords),
			Detail: "coordinate count must match observations",
		}
	}
	if n < 3*p {
		return nil, &types.InsufficientDataError{
			Op: "regression.GWR", Needed: 3 * p, Got: n,
			Detail: "too few observations for stable local fits",
		}
	}

	cands := opt.BandwidthCandidates
	if len(cands) == 0 {
		cands = []float64{0.1, 0.2, 0.3, 0.5, 0.7, 0.9}
	}
	workers := opt.Workers
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	condLimit := opt.CondLimit
	if condLimit == 0 {
		condLimit = 1e10
	}

	tree := knn.NewTree(coords)

	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, err
	}
	defer pool.Release()

	eng := &gwrEngine{
		covariates: covariates,
		y:          y,
		tree:       tree,
		n:          n,
		p:          p,
		kernel:     opt.Kernel,
		condLimit:  condLimit,
		pool:       pool,
	}

	// Bandwidth selection: score each candidate by LOO-CV prediction
	// error, keeping the smallest.
	bestBW := 0.0
	bestRMSE := math.Inf(1)
	for _, q := range cands {
		m := eng.neighborCount(q)
		if m < p+1 {
			continue // bandwidth too small for the design
		}
		rmse, err := eng.crossValidate(ctx, q)
		if err != nil {
			if _, unstable := err.(*types.NumericInstabilityError); unstable {
				continue // unusable at this bandwidth; try a larger one
			}
			return nil, err
		}
		if rmse < bestRMSE {
			bestRMSE = rmse
			bestBW = q
		}
	}
	if math.IsInf(bestRMSE, 1) {
		return nil, &types.NumericInstabilityError{
			Op: "regression.GWR", Focal: -1, Bandwidth: cands[0],
		}
	}

	return eng.fit(ctx, bestBW, bestRMSE)
}

type gwrEngine struct {
	covariates [][]float64
	y          []float64
	tree       *knn.Tree
	n, p       int
	kernel     Kernel
	condLimit  float64
	pool       *ants.Pool
}

func (e *gwrEngine) neighborCount(q float64) int {
	m := int(math.Round(q * float64(e.n)))
	if m > e.n-1 {
		m = e.n - 1
	}
	return m
}

// forEach runs fn(i) for every observation on the worker pool, stopping
// at the first error. Writes land in index-addressed slices inside fn.
func (e *gwrEngine) forEach(ctx context.Context, fn func(i int) error) error {
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for i := 0; i < e.n; i++ {
		mu.Lock()
		stop := firstErr != nil
		mu.Unlock()
		if stop || ctx.Err() != nil {
			break
		}

		wg.Add(1)
		submitErr := e.pool.Submit(func() {
			defer wg.Done()
			if err := fn(i); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		})
		if submitErr != nil {
			wg.Done()
			wg.Wait()
			return submitErr
		}
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}
	return firstErr
}

// crossValidate returns the leave-one-out RMSE at bandwidth q: each
// observation is predicted from a local fit over its m nearest
// neighbors, itself excluded.
func (e *gwrEngine) crossValidate(ctx context.Context, q float64) (float64, error) {
	m := e.neighborCount(q)
	sqErr := make([]float64, e.n)

	err := e.forEach(ctx, func(i int) error {
		nbrs := e.tree.KNearest(i, m)
		beta, _, err := e.localSolve(i, q, nbrs, false)
		if err != nil {
			return err
		}
		pred := beta[0]
		for j, col := range e.covariates {
			pred += beta[j+1] * col[i]
		}
		d := e.y[i] - pred
		sqErr[i] = d * d
		return nil
	})
	if err != nil {
		return 0, err
	}

	sum := 0.0
	for _, v := range sqErr {
		sum += v
	}
	return math.Sqrt(sum / float64(e.n)), nil
}

// fit runs the final per-observation fits at the selected bandwidth,
// focal point included.
func (e *gwrEngine) fit(ctx context.Context, q float64, cvRMSE float64) (*GWRResult, error) {
	m := e.neighborCount(q)

	res := &GWRResult{
		Bandwidth:     q,
		NeighborCount: m,
		CVRMSE:        cvRMSE,
		Coefficients:  make([][]float64, e.n),
		SE:            make([][]float64, e.n),
		Fitted:        make([]float64, e.n),
		Residuals:     make([]float64, e.n),
		LocalR2:       make([]float64, e.n),
	}

	err := e.forEach(ctx, func(i int) error {
		nbrs := e.tree.KNearest(i, m)
		beta, diag, err := e.localSolve(i, q, nbrs, true)
		if err != nil {
			return err
		}

		fitted := beta[0]
		for j, col := range e.covariates {
			fitted += beta[j+1] * col[i]
		}

		res.Coefficients[i] = beta
		res.SE[i] = diag.se
		res.Fitted[i] = fitted
		res.Residuals[i] = e.y[i] - fitted
		res.LocalR2[i] = diag.r2
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

type localDiag struct {
	se []float64
	r2 float64
}

// localSolve fits the weighted regression centered at focal using the
// given neighbors. includeFocal adds the focal observation at full
// weight (the final fit); the CV pass leaves it out.
func (e *gwrEngine) localSolve(focal int, q float64, nbrs []knn.Neighbor, includeFocal bool) ([]float64, localDiag, error) {
	dmax := nbrs[len(nbrs)-1].Dist
	if dmax == 0 {
		// All neighbors coincide with the focal point; fall back to a
		// tiny positive reach so weights stay defined.
		dmax = math.SmallestNonzeroFloat64
	}

	type obs struct {
		idx int
		w   float64
	}
	var local []obs
	if includeFocal {
		local = append(local, obs{idx: focal, w: 1})
	}
	for _, nb := range nbrs {
		w := e.kernelWeight(nb.Dist, dmax)
		if w <= 0 {
			continue
		}
		local = append(local, obs{idx: nb.Idx, w: w})
	}
	if len(local) < e.p {
		return nil, localDiag{}, &types.NumericInstabilityError{
			Op: "regression.GWR", Focal: focal, Bandwidth: q,
		}
	}

	// Weighted least squares via QR on sqrt(W)X.
	rows := len(local)
	Xw := mat.NewDense(rows, e.p, nil)
	yw := mat.NewVecDense(rows, nil)
	for r, o := range local {
		sw := math.Sqrt(o.w)
		Xw.Set(r, 0, sw)
		for j, col := range e.covariates {
			Xw.Set(r, j+1, sw*col[o.idx])
		}
		yw.SetVec(r, sw*e.y[o.idx])
	}

	cond := mat.Cond(Xw, 2)
	if math.IsInf(cond, 1) || cond > e.condLimit {
		return nil, localDiag{}, &types.NumericInstabilityError{
			Op: "regression.GWR", Focal: focal, Bandwidth: q, Cond: cond,
		}
	}

	beta, err := qrSolve(Xw, yw)
	if err != nil {
		if _, ok := err.(*types.CollinearityError); ok {
			return nil, localDiag{}, &types.NumericInstabilityError{
				Op: "regression.GWR", Focal: focal, Bandwidth: q, Cond: cond,
			}
		}
		return nil, localDiag{}, err
	}
	b := vecSlice(beta)

	if !includeFocal {
		return b, localDiag{}, nil
	}

	// Weighted diagnostics over the local neighborhood.
	var wSum, yBarW float64
	for _, o := range local {
		wSum += o.w
		yBarW += o.w * e.y[o.idx]
	}
	yBarW /= wSum

	var rss, tss float64
	for _, o := range local {
		pred := b[0]
		for j, col := range e.covariates {
			pred += b[j+1] * col[o.idx]
		}
		d := e.y[o.idx] - pred
		rss += o.w * d * d
		dm := e.y[o.idx] - yBarW
		tss += o.w * dm * dm
	}
	r2 := 0.0
	if tss > 0 {
		r2 = 1 - rss/tss
		if r2 < 0 {
			r2 = 0
		}
	}

	// Standard errors from sigma^2 (X'WX)^-1, sigma^2 estimated from the
	// weighted residuals.
	dof := float64(rows - e.p)
	se := make([]float64, e.p)
	if dof > 0 {
		sigma2 := rss / dof
		var xtx mat.Dense
		xtx.Mul(Xw.T(), Xw)
		var inv mat.Dense
		if invErr := inv.Inverse(&xtx); invErr == nil {
			for j := 0; j < e.p; j++ {
				se[j] = math.Sqrt(sigma2 * inv.At(j, j))
			}
		} else {
			for j := range se {
				se[j] = math.NaN()
			}
		}
	} else {
		for j := range se {
			se[j] = math.NaN()
		}
	}

	return b, localDiag{se: se, r2: r2}, nil
}

func (e *gwrEngine) kernelWeight(d, dmax float64) float64 {
	u := d / dmax
	switch e.kernel {
	case Gaussian:
		if u > 1 {
			return 0
		}
		return math.Exp(-u * u / 2)
	default: // Bisquare
		if u >= 1 {
			return 0
		}
		v := 1 - u*u
		return v * v
	}
}
