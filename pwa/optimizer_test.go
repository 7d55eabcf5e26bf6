package pwa

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// breitWignerSample draws n mSq points from |BW(mSq; mass, 1)|^2 over
// [0, 100] by accept-reject against the peak value.
func breitWignerSample(t *testing.T, n int, mass float64, seed int64) DataSet {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	f := func(s float64) float64 {
		re := mass*mass - s
		im := mass // width 1
		return 1 / (re*re + im*im)
	}
	maxI := f(mass * mass)
	ds := NewDataSet([]string{"mSq"})
	for ds.Len() < n {
		s := rng.Float64() * 100
		if rng.Float64()*maxI < f(s) {
			ds.Append([]float64{s}, 1)
		}
	}
	return ds
}

func TestOptimize_RecoversKnownParameter(t *testing.T) {
	// GIVEN 100 points generated from a BW intensity with mass 5.0 and a
	// model whose single free parameter starts at 1.0 in bounds (0, 10)
	in := breitWignerIntensity(t, 1.0)
	data := breitWignerSample(t, 100, 5.0, 101)
	phsp := uniformDataSet(4000, 100, 102)

	est, err := NewNormalizedMinLogLH(in, data, phsp, 1.0)
	require.NoError(t, err)

	// WHEN the fit runs
	minimizer := NewMinimizer(FitConfig{})
	result, err := minimizer.Optimize(est, in.Parameters())
	require.NoError(t, err)

	// THEN the final mass is close to the truth and the fit improved
	assert.True(t, result.Converged)
	final, ok := result.FinalParameters.ByName("res_mass")
	require.True(t, ok)
	assert.InDelta(t, 5.0, final.Value, 0.5)
	assert.LessOrEqual(t, result.FinalEstimatorValue, result.InitialEstimatorValue)

	// AND both snapshots are recorded
	initial, ok := result.InitialParameters.ByName("res_mass")
	require.True(t, ok)
	assert.Equal(t, 1.0, initial.Value)
	assert.Greater(t, result.FitDuration.Nanoseconds(), int64(0))
}

func TestOptimize_LeavesSharedParametersAtMinimum(t *testing.T) {
	// GIVEN a converged fit whose covariance pass stepped around the minimum
	in := breitWignerIntensity(t, 4.0)
	data := breitWignerSample(t, 100, 5.0, 107)

	est, err := NewMinLogLH(in, data)
	require.NoError(t, err)

	result, err := NewMinimizer(FitConfig{}).Optimize(est, in.Parameters())
	require.NoError(t, err)

	// THEN the shared set sits exactly at the reported minimum: re-evaluating
	// reproduces FinalEstimatorValue bit for bit
	v, err := est.Evaluate()
	require.NoError(t, err)
	assert.Equal(t, result.FinalEstimatorValue, v)

	live, ok := in.Parameters().ByName("res_mass")
	require.True(t, ok)
	reported, ok := result.FinalParameters.ByName("res_mass")
	require.True(t, ok)
	assert.Equal(t, reported.Value, live.Value)
}

func TestOptimize_RespectsFixedFlagAndBounds(t *testing.T) {
	in := breitWignerIntensity(t, 1.0)
	data := breitWignerSample(t, 100, 5.0, 103)

	est, err := NewMinLogLH(in, data)
	require.NoError(t, err)

	minimizer := NewMinimizer(FitConfig{})
	result, err := minimizer.Optimize(est, in.Parameters())
	require.NoError(t, err)

	// Fixed width never moves
	width, ok := result.FinalParameters.ByName("res_width")
	require.True(t, ok)
	assert.Equal(t, 1.0, width.Value)
	assert.Equal(t, []string{"res_mass"}, result.FreeParameterNames)

	// Bounded mass stays inside (0, 10) no matter what the backend proposed
	mass, ok := result.FinalParameters.ByName("res_mass")
	require.True(t, ok)
	assert.GreaterOrEqual(t, mass.Value, 0.0)
	assert.LessOrEqual(t, mass.Value, 10.0)
}

func TestOptimize_FlagsNonConvergence(t *testing.T) {
	// GIVEN a one-iteration budget far from the minimum
	in := breitWignerIntensity(t, 1.0)
	data := breitWignerSample(t, 100, 5.0, 104)

	est, err := NewMinLogLH(in, data)
	require.NoError(t, err)

	minimizer := NewMinimizer(NewFitConfig(1, 0))
	result, err := minimizer.Optimize(est, in.Parameters())

	// THEN the result is returned, flagged, with partial progress recorded
	require.NoError(t, err)
	assert.False(t, result.Converged)
	assert.NotNil(t, result.InitialParameters)
	assert.NotNil(t, result.FinalParameters)
}

func TestOptimize_NoFreeParametersIsError(t *testing.T) {
	params := NewParameterSet()
	_, err := params.Add(FitParameter{Name: "c", Value: 1, IsFixed: true})
	require.NoError(t, err)

	g := NewGraph(params, []string{"x"})
	c, _ := g.Param("c")
	g.SetRoot(g.AbsSq(c))
	in, err := NewGraphIntensity(g)
	require.NoError(t, err)

	ds := NewDataSet([]string{"x"})
	ds.Append([]float64{1}, 1)
	est, err := NewMinLogLH(in, ds)
	require.NoError(t, err)

	_, err = NewMinimizer(FitConfig{}).Optimize(est, params)
	assert.Error(t, err)
}

func TestOptimize_CovarianceAtMinimum(t *testing.T) {
	in := breitWignerIntensity(t, 4.0)
	data := breitWignerSample(t, 300, 5.0, 105)
	phsp := uniformDataSet(4000, 100, 106)

	est, err := NewNormalizedMinLogLH(in, data, phsp, 1.0)
	require.NoError(t, err)

	result, err := NewMinimizer(FitConfig{}).Optimize(est, in.Parameters())
	require.NoError(t, err)
	require.True(t, result.Converged)

	// A proper minimum has a positive-definite Hessian, so the covariance
	// is valid and the parameter error was propagated.
	assert.True(t, result.CovarianceValid)
	assert.Greater(t, result.Covariance.At(0, 0), 0.0)
	mass, ok := result.FinalParameters.ByName("res_mass")
	require.True(t, ok)
	assert.Greater(t, mass.Error, 0.0)
}

func TestBoundTransform_RoundTrip(t *testing.T) {
	p := NewBoundedFitParameter("m", 3.3, 0, 10)
	x := toInternal(p)
	assert.InDelta(t, 3.3, toExternal(p, x), 1e-12)

	// Unbounded parameters pass through unchanged
	q := NewFitParameter("u", -7.5)
	assert.Equal(t, -7.5, toInternal(q))
	assert.Equal(t, -7.5, toExternal(q, -7.5))
}
