package pwa

import (
	"time"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
)

// FitResult records one optimization run: parameter and objective snapshots
// before and after, elapsed time, convergence outcome and the covariance of
// the free parameters. Immutable once produced; the parameter sets are deep
// copies.
type FitResult struct {
	InitialParameters *ParameterSet
	FinalParameters   *ParameterSet

	InitialEstimatorValue float64
	FinalEstimatorValue   float64

	FitDuration time.Duration
	Converged   bool
	Iterations  int

	// Covariance over the free parameters, ordered like FreeParameterNames.
	// CovarianceValid is false when the Hessian at the minimum was singular
	// or not positive definite; the fit itself is still reported.
	Covariance         *mat.SymDense
	CovarianceValid    bool
	FreeParameterNames []string
}

// Print logs the fit result.
func (r *FitResult) Print() {
	logrus.Infof("=== Fit Result ===")
	logrus.Infof("Converged            : %v (%d iterations, %s)", r.Converged, r.Iterations, r.FitDuration)
	logrus.Infof("Initial estimator    : %g", r.InitialEstimatorValue)
	logrus.Infof("Final estimator      : %g", r.FinalEstimatorValue)
	for i := 0; i < r.FinalParameters.Len(); i++ {
		initial := r.InitialParameters.At(i)
		final := r.FinalParameters.At(i)
		logrus.Infof("  %-20s %12g -> %s", final.Name, initial.Value, final)
	}
	if !r.CovarianceValid {
		logrus.Warnf("Covariance matrix is not valid (singular or indefinite Hessian)")
	}
}
