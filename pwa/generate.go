package pwa

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
)

// EventGenerator produces phase-space and model-weighted event samples.
//
// Accept-reject generation (Generate, GenerateWithSample) and importance
// sampling (GenerateImportanceSampledPhsp) are distinct, non-interchangeable
// contracts: the former returns unweighted events drawn proportional to the
// intensity, the latter returns the full weighted sample with the intensity
// folded into the weights. They do not share statistical properties.
type EventGenerator struct {
	kin Kinematics
	gen PhaseSpaceGenerator
	rng UniformGenerator
	cfg GeneratorConfig
}

// GenStats reports the raw draw accounting of a generation run.
type GenStats struct {
	Attempted int
	Accepted  int
	MaxWeight float64
}

// NewEventGenerator wires a kinematics, a phase-space sampling strategy and a
// uniform random source together. Zero-valued config fields fall back to
// defaults.
func NewEventGenerator(kin Kinematics, gen PhaseSpaceGenerator, rng UniformGenerator, cfg GeneratorConfig) *EventGenerator {
	return &EventGenerator{kin: kin, gen: gen, rng: rng, cfg: cfg.withDefaults()}
}

// GeneratePhsp produces exactly n flat phase-space events (unit weight) by
// hit-and-miss on the phase-space weight against the analytic maximum.
func (eg *EventGenerator) GeneratePhsp(n int) (EventList, error) {
	events, _, err := eg.GeneratePhspWithStats(n)
	return events, err
}

// GeneratePhspWithStats is GeneratePhsp plus draw accounting. The ratio
// Accepted/Attempted estimates the kinematics' PhspVolume.
func (eg *EventGenerator) GeneratePhspWithStats(n int) (EventList, GenStats, error) {
	stats := GenStats{MaxWeight: eg.gen.MaxWeight()}
	maxAttempts := eg.cfg.MaxAttemptsFactor * n
	events := make(EventList, 0, n)
	for len(events) < n {
		if stats.Attempted >= maxAttempts {
			return nil, stats, fmt.Errorf("phase-space generation: %d/%d events after %d attempts, efficiency too low", len(events), n, stats.Attempted)
		}
		stats.Attempted++
		ev := eg.gen.Generate(eg.rng)
		if eg.rng.Float64()*stats.MaxWeight >= ev.Weight {
			continue
		}
		ev.Weight = 1
		events = append(events, ev)
		stats.Accepted++
	}
	return events, stats, nil
}

// Generate produces exactly n events distributed according to the intensity,
// generating phase-space candidates on demand and accept-rejecting them.
// The supremum weight is estimated from the candidates seen so far; when a
// candidate exceeds it, the maximum is raised and the accumulated sample is
// discarded so the final sample carries no acceptance bias.
func (eg *EventGenerator) Generate(n int, intensity Intensity) (EventList, error) {
	maxAttempts := eg.cfg.MaxAttemptsFactor * n
	maxWeight := 0.0
	attempted := 0
	events := make(EventList, 0, n)

	bunch := make(EventList, eg.cfg.BunchSize)
	randoms := make([]float64, eg.cfg.BunchSize)
	for len(events) < n {
		if attempted >= maxAttempts {
			return nil, fmt.Errorf("intensity generation: %d/%d events after %d attempts, efficiency too low", len(events), n, attempted)
		}
		for i := range bunch {
			bunch[i] = eg.gen.Generate(eg.rng)
			randoms[i] = eg.rng.Float64()
		}
		ds, err := ConvertEventsToDataSet(bunch, eg.kin)
		if err != nil {
			return nil, fmt.Errorf("intensity generation: %w", err)
		}
		values, err := intensity.Evaluate(ds)
		if err != nil {
			return nil, fmt.Errorf("intensity generation: %w", err)
		}

		for i := range bunch {
			attempted++
			weight := values[i] * bunch[i].Weight / eg.gen.MaxWeight()
			if weight > maxWeight {
				maxWeight = eg.cfg.SafetyMargin * weight
				if len(events) > 0 {
					logrus.Infof("Generate: maximum weight raised to %g after %d accepted events, restarting sample", maxWeight, len(events))
					events = events[:0]
				}
			}
			if maxWeight == 0 {
				continue
			}
			if randoms[i]*maxWeight < weight {
				ev := bunch[i]
				ev.Weight = 1
				events = append(events, ev)
				if len(events) == n {
					break
				}
			}
		}
	}
	return events, nil
}

// GenerateWithSample accept-rejects from a pre-generated phase-space sample.
// The primary sample provides the candidates (a detector-accepted phase
// space); the optional toy sample represents the true phase space and is
// used only to seed the supremum weight; a primary candidate exceeding it
// raises the supremum and discards the accumulated sample. The two roles are
// never conflated. The sample is consumed in order; running out of candidates
// before n events are accepted is a sampling-efficiency error.
func (eg *EventGenerator) GenerateWithSample(n int, intensity Intensity, phspSample, toyPhspSample EventList) (EventList, error) {
	if len(phspSample) == 0 {
		return nil, fmt.Errorf("sample generation: empty phase-space sample")
	}
	ds, err := ConvertEventsToDataSet(phspSample, eg.kin)
	if err != nil {
		return nil, fmt.Errorf("sample generation: %w", err)
	}
	values, err := intensity.Evaluate(ds)
	if err != nil {
		return nil, fmt.Errorf("sample generation: %w", err)
	}

	// The supremum comes from the toy (true phase-space) sample when one is
	// supplied, so detector acceptance cannot bias the normalization.
	maxSource := values
	maxEvents := phspSample
	if toyPhspSample != nil {
		toyDS, err := ConvertEventsToDataSet(toyPhspSample, eg.kin)
		if err != nil {
			return nil, fmt.Errorf("sample generation: toy sample: %w", err)
		}
		maxSource, err = intensity.Evaluate(toyDS)
		if err != nil {
			return nil, fmt.Errorf("sample generation: toy sample: %w", err)
		}
		maxEvents = toyPhspSample
	}
	maxWeight := 0.0
	for i, v := range maxSource {
		if w := v * maxEvents[i].Weight; w > maxWeight {
			maxWeight = w
		}
	}
	if maxWeight <= 0 {
		return nil, fmt.Errorf("sample generation: intensity vanishes on the normalization sample")
	}
	maxWeight *= eg.cfg.SafetyMargin

	events := make(EventList, 0, n)
	for i := range phspSample {
		weight := values[i] * phspSample[i].Weight
		// A toy-derived supremum can undershoot the primary sample; a
		// candidate above it would otherwise be accepted with certainty, so
		// raise the maximum and discard the biased partial sample.
		if weight > maxWeight {
			maxWeight = eg.cfg.SafetyMargin * weight
			if len(events) > 0 {
				logrus.Infof("GenerateWithSample: maximum weight raised to %g after %d accepted events, restarting sample", maxWeight, len(events))
				events = events[:0]
			}
		}
		if eg.rng.Float64()*maxWeight < weight {
			ev := phspSample[i]
			ev.Weight = 1
			events = append(events, ev)
			if len(events) == n {
				return events, nil
			}
		}
	}
	return nil, fmt.Errorf("sample generation: phase-space sample exhausted after %d/%d events", len(events), n)
}

// GenerateImportanceSampledPhsp produces a weighted DataSet of exactly n
// points: every phase-space draw is kept and its weight is the phase-space
// weight times the intensity, rescaled to unit mean. No rejection happens;
// the result feeds estimators directly.
func (eg *EventGenerator) GenerateImportanceSampledPhsp(n int, intensity Intensity) (DataSet, error) {
	events := make(EventList, n)
	for i := range events {
		events[i] = eg.gen.Generate(eg.rng)
	}
	ds, err := AddIntensityWeights(intensity, events, eg.kin)
	if err != nil {
		return DataSet{}, fmt.Errorf("importance sampling: %w", err)
	}
	total := floats.Sum(ds.Weights)
	if total <= 0 {
		return DataSet{}, fmt.Errorf("importance sampling: intensity vanishes on all %d draws", n)
	}
	floats.Scale(float64(n)/total, ds.Weights)
	return ds, nil
}
