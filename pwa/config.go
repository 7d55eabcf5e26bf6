package pwa

// GeneratorConfig groups event-generation parameters for NewEventGenerator.
type GeneratorConfig struct {
	MaxAttemptsFactor int     // attempts allowed per requested event (default 10000)
	BunchSize         int     // candidates evaluated per intensity call (default 5000)
	SafetyMargin      float64 // headroom factor on the running maximum weight (default 1.2)
}

// NewGeneratorConfig builds a GeneratorConfig. Zero-value arguments stay
// zero; defaults are applied inside the generator, not here.
func NewGeneratorConfig(maxAttemptsFactor, bunchSize int, safetyMargin float64) GeneratorConfig {
	return GeneratorConfig{
		MaxAttemptsFactor: maxAttemptsFactor,
		BunchSize:         bunchSize,
		SafetyMargin:      safetyMargin,
	}
}

// withDefaults fills unset fields with the documented defaults.
func (c GeneratorConfig) withDefaults() GeneratorConfig {
	if c.MaxAttemptsFactor <= 0 {
		c.MaxAttemptsFactor = 10000
	}
	if c.BunchSize <= 0 {
		c.BunchSize = 5000
	}
	if c.SafetyMargin <= 0 {
		c.SafetyMargin = 1.2
	}
	return c
}

// FitConfig groups minimization parameters for NewMinimizer.
type FitConfig struct {
	MaxIterations int     // iteration budget before flagging non-convergence (default 2000)
	Tolerance     float64 // absolute objective-change tolerance (default 1e-9)
}

// NewFitConfig builds a FitConfig. Zero-value arguments stay zero; defaults
// are applied inside the minimizer, not here.
func NewFitConfig(maxIterations int, tolerance float64) FitConfig {
	return FitConfig{MaxIterations: maxIterations, Tolerance: tolerance}
}

// withDefaults fills unset fields with the documented defaults.
func (c FitConfig) withDefaults() FitConfig {
	if c.MaxIterations <= 0 {
		c.MaxIterations = 2000
	}
	if c.Tolerance <= 0 {
		c.Tolerance = 1e-9
	}
	return c
}
