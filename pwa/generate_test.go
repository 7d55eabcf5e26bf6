package pwa

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEventGenerator(t *testing.T, seed int64, cfg GeneratorConfig) (*EventGenerator, *HelicityKinematics) {
	t.Helper()
	kin := testKinematics(t)
	_, err := kin.CreateAllSubSystems()
	require.NoError(t, err)
	gen, err := NewRauboldLynchGenerator(testTransition(t))
	require.NoError(t, err)
	rng := NewPartitionedRNG(seed).ForSubsystem(SubsystemPhaseSpace)
	return NewEventGenerator(kin, gen, rng, cfg), kin
}

// constIntensity evaluates to the given constant on every in-layout point.
func constIntensity(t *testing.T, kin Kinematics, value float64) *GraphIntensity {
	t.Helper()
	g := NewGraph(NewParameterSet(), kin.VariableNames())
	g.SetRoot(g.AbsSq(g.Const(complex(math.Sqrt(value), 0))))
	in, err := NewGraphIntensity(g)
	require.NoError(t, err)
	return in
}

func TestGeneratePhsp_ExactCountAndUnitWeights(t *testing.T) {
	eg, _ := testEventGenerator(t, 7, GeneratorConfig{})

	events, err := eg.GeneratePhsp(50)
	require.NoError(t, err)

	require.Len(t, events, 50)
	for i, ev := range events {
		assert.Equal(t, 1.0, ev.Weight, "event %d", i)
		assert.Len(t, ev.Particles, 3)
	}
}

func TestGeneratePhspWithStats_AcceptanceEstimatesVolume(t *testing.T) {
	// GIVEN a flat-phase-space run with draw accounting
	eg, kin := testEventGenerator(t, 11, GeneratorConfig{})

	_, stats, err := eg.GeneratePhspWithStats(1000)
	require.NoError(t, err)

	// THEN the acceptance ratio agrees with the cached volume estimate
	ratio := float64(stats.Accepted) / float64(stats.Attempted)
	assert.InDelta(t, kin.PhspVolume(), ratio, 0.05)
	assert.Greater(t, stats.MaxWeight, 0.0)
}

func TestGenerate_ExactCountWithConstantIntensity(t *testing.T) {
	eg, kin := testEventGenerator(t, 13, GeneratorConfig{})
	in := constIntensity(t, kin, 2.5)

	events, err := eg.Generate(100, in)
	require.NoError(t, err)

	require.Len(t, events, 100)
	for i, ev := range events {
		assert.Equal(t, 1.0, ev.Weight, "event %d", i)
	}
}

func TestGenerate_AttemptCeilingOnVanishingIntensity(t *testing.T) {
	// GIVEN an intensity that is zero everywhere and a tight attempt budget
	eg, kin := testEventGenerator(t, 17, NewGeneratorConfig(1, 10, 0))
	in := constIntensity(t, kin, 0)

	_, err := eg.Generate(5, in)

	// THEN generation gives up instead of looping forever
	require.Error(t, err)
	assert.Contains(t, err.Error(), "efficiency too low")
}

func TestGenerateWithSample_DrawsFromPrimarySample(t *testing.T) {
	eg, kin := testEventGenerator(t, 19, GeneratorConfig{})
	phsp, err := eg.GeneratePhsp(500)
	require.NoError(t, err)
	in := constIntensity(t, kin, 1.0)

	events, err := eg.GenerateWithSample(100, in, phsp, nil)
	require.NoError(t, err)

	require.Len(t, events, 100)
	for i, ev := range events {
		assert.Equal(t, 1.0, ev.Weight, "event %d", i)
	}
}

func TestGenerateWithSample_ToySampleSetsSupremum(t *testing.T) {
	// GIVEN a separate toy sample carrying the supremum role
	eg, kin := testEventGenerator(t, 23, GeneratorConfig{})
	phsp, err := eg.GeneratePhsp(500)
	require.NoError(t, err)
	toy, err := eg.GeneratePhsp(200)
	require.NoError(t, err)
	in := constIntensity(t, kin, 1.0)

	events, err := eg.GenerateWithSample(50, in, phsp, toy)
	require.NoError(t, err)
	assert.Len(t, events, 50)
}

func TestGenerateWithSample_RaisesUndershootingToySupremum(t *testing.T) {
	// GIVEN a toy sample whose weights make the seeded supremum far too low
	// for the primary candidates
	eg, kin := testEventGenerator(t, 41, GeneratorConfig{})
	phsp, err := eg.GeneratePhsp(500)
	require.NoError(t, err)
	toy := make(EventList, 100)
	for i := range toy {
		toy[i] = phsp[i]
		toy[i].Weight = 0.01
	}
	in := constIntensity(t, kin, 1.0)

	// WHEN the supremum gets re-raised the generation still completes
	events, err := eg.GenerateWithSample(50, in, phsp, toy)
	require.NoError(t, err)
	require.Len(t, events, 50)
	for i, ev := range events {
		assert.Equal(t, 1.0, ev.Weight, "event %d", i)
	}

	// AND acceptance stays probabilistic: with the safety margin in force
	// not every candidate can be accepted, so demanding one event per
	// candidate exhausts the sample instead of passing them all through
	_, err = eg.GenerateWithSample(len(phsp), in, phsp, toy)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exhausted")
}

func TestGenerateWithSample_Errors(t *testing.T) {
	eg, kin := testEventGenerator(t, 29, GeneratorConfig{})
	phsp, err := eg.GeneratePhsp(100)
	require.NoError(t, err)

	// Empty candidate sample
	_, err = eg.GenerateWithSample(10, constIntensity(t, kin, 1.0), nil, nil)
	assert.Error(t, err)

	// Intensity vanishing on the normalization sample
	_, err = eg.GenerateWithSample(10, constIntensity(t, kin, 0), phsp, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vanishes")

	// More events requested than the sample can ever yield
	_, err = eg.GenerateWithSample(1000, constIntensity(t, kin, 1.0), phsp, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exhausted")
}

func TestGenerateImportanceSampledPhsp_KeepsEveryDraw(t *testing.T) {
	eg, kin := testEventGenerator(t, 31, GeneratorConfig{})
	in := constIntensity(t, kin, 3.0)

	ds, err := eg.GenerateImportanceSampledPhsp(400, in)
	require.NoError(t, err)

	// Every draw is kept and the weights are rescaled to unit mean
	require.Equal(t, 400, ds.Len())
	assert.InDelta(t, 400.0, ds.SumOfWeights(), 1e-9)

	_, err = eg.GenerateImportanceSampledPhsp(10, constIntensity(t, kin, 0))
	assert.Error(t, err)
}
