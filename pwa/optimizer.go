package pwa

import (
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

// Minimizer drives iterative numerical minimization of an Estimator over the
// free parameters of a ParameterSet. It is the sole writer of parameter
// values during a fit; the intensity graph reads them on each evaluation.
//
// Fixed parameters are excluded from the search vector. Bounded parameters
// are reparametrized internally with p = min + (max-min)(sin(x)+1)/2, so
// every proposal the backend makes is feasible and no bound violation ever
// reaches the estimator.
type Minimizer struct {
	cfg FitConfig
}

// NewMinimizer returns a minimizer. Zero-valued config fields fall back to
// defaults.
func NewMinimizer(cfg FitConfig) *Minimizer {
	return &Minimizer{cfg: cfg.withDefaults()}
}

// Optimize minimizes the estimator and returns a FitResult. The result
// always records initial and final parameters and objective values, so
// partial progress is inspectable even when the iteration budget runs out;
// non-convergence is reported through FitResult.Converged, not an error.
func (m *Minimizer) Optimize(est Estimator, params *ParameterSet) (*FitResult, error) {
	free := params.FreeIndices()
	if len(free) == 0 {
		return nil, fmt.Errorf("optimizer: no free parameters")
	}

	start := time.Now()
	initial := params.Copy()
	initialValue, err := est.Evaluate()
	if err != nil {
		return nil, fmt.Errorf("optimizer: initial evaluation: %w", err)
	}

	// External objective: overwrite the shared free-parameter values in
	// place and re-evaluate. The graph is never rebuilt.
	var evalErr error
	external := func(x []float64) float64 {
		for k, idx := range free {
			params.SetValue(idx, x[k])
		}
		v, err := est.Evaluate()
		if err != nil {
			if evalErr == nil {
				evalErr = err
			}
			return math.Inf(1)
		}
		return v
	}
	internal := func(x []float64) float64 {
		ext := make([]float64, len(x))
		for k, idx := range free {
			ext[k] = toExternal(params.At(idx), x[k])
		}
		return external(ext)
	}

	x0 := make([]float64, len(free))
	for k, idx := range free {
		x0[k] = toInternal(params.At(idx))
	}

	problem := optimize.Problem{Func: internal}
	settings := &optimize.Settings{
		Converger: &optimize.FunctionConverge{
			Absolute:   m.cfg.Tolerance,
			Iterations: 50,
		},
		MajorIterations: m.cfg.MaxIterations,
	}
	result, err := optimize.Minimize(problem, x0, settings, &optimize.NelderMead{})
	if evalErr != nil {
		return nil, fmt.Errorf("optimizer: %w", evalErr)
	}
	if err != nil && result == nil {
		return nil, fmt.Errorf("optimizer: %w", err)
	}

	converged := true
	switch result.Status {
	case optimize.IterationLimit, optimize.FunctionEvaluationLimit, optimize.RuntimeLimit, optimize.NotTerminated, optimize.Failure:
		converged = false
		logrus.Warnf("Fit did not converge within %d iterations (status %v)", m.cfg.MaxIterations, result.Status)
	}

	// Pin the shared set to the best point found, in external coordinates.
	best := make([]float64, len(free))
	for k, idx := range free {
		best[k] = toExternal(params.At(idx), result.X[k])
		params.SetValue(idx, best[k])
	}
	finalValue, err := est.Evaluate()
	if err != nil {
		return nil, fmt.Errorf("optimizer: final evaluation: %w", err)
	}

	cov, covValid := m.covariance(external, best)
	// The Hessian finite differences drove the shared values off the minimum
	// through the external objective; pin them back before snapshotting.
	for k, idx := range free {
		params.SetValue(idx, best[k])
	}
	names := make([]string, len(free))
	for k, idx := range free {
		names[k] = params.At(idx).Name
		if covValid {
			params.SetError(idx, math.Sqrt(cov.At(k, k)))
		}
	}

	return &FitResult{
		InitialParameters:     initial,
		FinalParameters:       params.Copy(),
		InitialEstimatorValue: initialValue,
		FinalEstimatorValue:   finalValue,
		FitDuration:           time.Since(start),
		Converged:             converged,
		Iterations:            result.Stats.MajorIterations,
		Covariance:            cov,
		CovarianceValid:       covValid,
		FreeParameterNames:    names,
	}, nil
}

// covariance inverts the central-difference Hessian of the objective at the
// minimum. A singular or indefinite Hessian is a numerical-domain condition
// reported through the validity flag, not an error.
func (m *Minimizer) covariance(obj func([]float64) float64, x []float64) (*mat.SymDense, bool) {
	n := len(x)
	steps := make([]float64, n)
	for i := range x {
		steps[i] = 1e-4 * (1 + math.Abs(x[i]))
	}
	at := func(shift ...int) float64 {
		pt := append([]float64(nil), x...)
		for i, s := range shift {
			pt[i] += float64(s) * steps[i]
		}
		return obj(pt)
	}

	f0 := obj(x)
	hess := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		shift := make([]int, n)
		shift[i] = 1
		fp := at(shift...)
		shift[i] = -1
		fm := at(shift...)
		hess.SetSym(i, i, (fp-2*f0+fm)/(steps[i]*steps[i]))
		for j := i + 1; j < n; j++ {
			shift[i], shift[j] = 1, 1
			fpp := at(shift...)
			shift[j] = -1
			fpm := at(shift...)
			shift[i] = -1
			fmm := at(shift...)
			shift[j] = 1
			fmp := at(shift...)
			shift[i], shift[j] = 0, 0
			hess.SetSym(i, j, (fpp-fpm-fmp+fmm)/(4*steps[i]*steps[j]))
		}
	}
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			if math.IsNaN(hess.At(i, j)) || math.IsInf(hess.At(i, j), 0) {
				return mat.NewSymDense(n, nil), false
			}
		}
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(hess); !ok {
		return mat.NewSymDense(n, nil), false
	}
	var cov mat.SymDense
	if err := chol.InverseTo(&cov); err != nil {
		return mat.NewSymDense(n, nil), false
	}
	return &cov, true
}

// toInternal maps a parameter's external value into the unconstrained search
// coordinate.
func toInternal(p FitParameter) float64 {
	if !p.HasBounds {
		return p.Value
	}
	y := 2*(p.Value-p.Min)/(p.Max-p.Min) - 1
	y = math.Max(-1, math.Min(1, y))
	return math.Asin(y)
}

// toExternal maps a search coordinate back into the parameter's bounds.
func toExternal(p FitParameter, x float64) float64 {
	if !p.HasBounds {
		return x
	}
	return p.Min + (p.Max-p.Min)*(math.Sin(x)+1)/2
}
