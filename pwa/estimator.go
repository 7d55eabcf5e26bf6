package pwa

import (
	"fmt"
	"math"
)

// Estimator is the scalar objective a fit minimizes. Evaluate must be
// callable repeatedly and cheaply: it only re-evaluates the underlying
// intensity against the fixed dataset.
type Estimator interface {
	Evaluate() (float64, error)
}

// Intensities at or below this floor enter the log penalized instead of
// producing -Inf/NaN, keeping the objective a total function.
const minIntensity = 1e-300

// MinLogLH is the unbinned negative log-likelihood
//
//	-Σ w_i log I(x_i) + (Σ w_i) · log( <I>_phsp · V )
//
// over a fixed data sample. The normalization term uses a phase-space sample
// and the kinematics' volume; without one the estimator degrades to the bare
// sum, which is only meaningful when the intensity is already normalized.
type MinLogLH struct {
	intensity Intensity
	data      DataSet
	phsp      DataSet
	volume    float64
	sumW      float64
}

// NewMinLogLH builds an estimator without a normalization sample.
func NewMinLogLH(intensity Intensity, data DataSet) (*MinLogLH, error) {
	return newMinLogLH(intensity, data, DataSet{}, 1)
}

// NewNormalizedMinLogLH builds an estimator whose normalization integral is
// estimated over the given phase-space sample with the given volume.
func NewNormalizedMinLogLH(intensity Intensity, data, phsp DataSet, volume float64) (*MinLogLH, error) {
	if phsp.Len() == 0 {
		return nil, fmt.Errorf("estimator: empty normalization sample")
	}
	if volume <= 0 {
		return nil, fmt.Errorf("estimator: non-positive phase-space volume %g", volume)
	}
	return newMinLogLH(intensity, data, phsp, volume)
}

func newMinLogLH(intensity Intensity, data, phsp DataSet, volume float64) (*MinLogLH, error) {
	if err := data.Validate(); err != nil {
		return nil, fmt.Errorf("estimator: data: %w", err)
	}
	if data.Len() == 0 {
		return nil, fmt.Errorf("estimator: empty data sample")
	}
	if phsp.Len() > 0 {
		if err := phsp.Validate(); err != nil {
			return nil, fmt.Errorf("estimator: normalization sample: %w", err)
		}
	}
	return &MinLogLH{
		intensity: intensity,
		data:      data,
		phsp:      phsp,
		volume:    volume,
		sumW:      data.SumOfWeights(),
	}, nil
}

// Parameters returns the parameter set shared with the intensity.
func (e *MinLogLH) Parameters() *ParameterSet { return e.intensity.Parameters() }

// Evaluate computes the current negative log-likelihood.
func (e *MinLogLH) Evaluate() (float64, error) {
	values, err := e.intensity.Evaluate(e.data)
	if err != nil {
		return 0, fmt.Errorf("estimator: %w", err)
	}
	nll := 0.0
	for i, v := range values {
		if v < minIntensity {
			v = minIntensity
		}
		nll -= e.data.Weights[i] * math.Log(v)
	}

	if e.phsp.Len() > 0 {
		norm, err := e.intensity.Evaluate(e.phsp)
		if err != nil {
			return 0, fmt.Errorf("estimator: normalization: %w", err)
		}
		num, den := 0.0, 0.0
		for i, v := range norm {
			num += e.phsp.Weights[i] * v
			den += e.phsp.Weights[i]
		}
		mean := num / den
		if mean < minIntensity {
			mean = minIntensity
		}
		nll += e.sumW * math.Log(mean*e.volume)
	}
	return nll, nil
}
