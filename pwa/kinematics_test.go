package pwa

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testTable is the particle table shared by the package tests:
// a J/psi decaying to gamma pi0 pi0.
func testTable(t *testing.T) PropertyTable {
	t.Helper()
	table, err := NewPropertyTable([]ParticleProperties{
		{Name: "jpsi", PID: 443, Mass: 3.0969},
		{Name: "gamma", PID: 22, Mass: 0},
		{Name: "pi0", PID: 111, Mass: 0.1349768},
	})
	require.NoError(t, err)
	return table
}

func testTransition(t *testing.T) TransitionInfo {
	t.Helper()
	return TransitionInfo{
		InitialPIDs: []int{443},
		FinalPIDs:   []int{22, 111, 111},
		Table:       testTable(t),
	}
}

func testKinematics(t *testing.T) *HelicityKinematics {
	t.Helper()
	kin, err := NewHelicityKinematics(testTransition(t))
	require.NoError(t, err)
	return kin
}

func TestNewHelicityKinematics_RejectsBadConfigs(t *testing.T) {
	table := testTable(t)

	// Unknown final-state species
	_, err := NewHelicityKinematics(TransitionInfo{
		InitialPIDs: []int{443}, FinalPIDs: []int{22, 999}, Table: table,
	})
	assert.Error(t, err)

	// Final-state masses above the CMS energy
	_, err = NewHelicityKinematics(TransitionInfo{
		InitialPIDs: []int{111}, FinalPIDs: []int{111, 111}, Table: table,
	})
	assert.Error(t, err)
}

func TestRegisterSubSystem_Deduplicates(t *testing.T) {
	// GIVEN a kinematics with one registered grouping
	kin := testKinematics(t)
	ss, err := NewSubSystem([][]int{{1}, {0, 2}}, nil)
	require.NoError(t, err)
	first, err := kin.RegisterSubSystem(ss)
	require.NoError(t, err)

	// WHEN the same grouping is registered again, indices permuted
	same, err := NewSubSystem([][]int{{1}, {2, 0}}, nil)
	require.NoError(t, err)
	second, err := kin.RegisterSubSystem(same)
	require.NoError(t, err)

	// THEN the existing index is returned and the table did not grow
	assert.Equal(t, first, second)
	assert.Len(t, kin.SubSystems(), 1)
	assert.Len(t, kin.VariableNames(), 2, "one variable pair per distinct subsystem")
}

func TestCreateAllSubSystems_IdempotentPartitions(t *testing.T) {
	kin := testKinematics(t)

	first, err := kin.CreateAllSubSystems()
	require.NoError(t, err)
	assert.Len(t, first, 3, "three pair subsystems of a 3-body final state")
	assert.Len(t, kin.SubSystems(), 3)

	// Registering everything again must resolve to the same indices.
	second, err := kin.CreateAllSubSystems()
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Len(t, kin.SubSystems(), 3)
}

func TestConvert_NamesMatchVariableNames(t *testing.T) {
	// GIVEN a kinematics with all subsystems and a flat event
	kin := testKinematics(t)
	_, err := kin.CreateAllSubSystems()
	require.NoError(t, err)

	gen, err := NewRauboldLynchGenerator(kin.Transition())
	require.NoError(t, err)
	rng := NewStdUniformGenerator(11)

	for i := 0; i < 10; i++ {
		ev := gen.Generate(rng)

		// WHEN the event is converted
		point, err := kin.Convert(ev)
		require.NoError(t, err)

		// THEN the point's names equal VariableNames exactly, in order
		assert.Equal(t, kin.VariableNames(), point.Names)
		assert.Len(t, point.Values, len(point.Names))
	}
}

func TestConvert_PairMassesVaryAcrossEvents(t *testing.T) {
	// GIVEN all pair subsystems of the 3-body final state
	kin := testKinematics(t)
	_, err := kin.CreateAllSubSystems()
	require.NoError(t, err)

	gen, err := NewRauboldLynchGenerator(kin.Transition())
	require.NoError(t, err)
	rng := NewStdUniformGenerator(23)

	names := kin.VariableNames()
	lo := make([]float64, len(names))
	hi := make([]float64, len(names))
	for v := range names {
		lo[v] = math.Inf(1)
		hi[v] = math.Inf(-1)
	}
	totalSq := kin.CMSEnergy() * kin.CMSEnergy()
	for i := 0; i < 200; i++ {
		point, err := kin.Convert(gen.Generate(rng))
		require.NoError(t, err)
		for v, val := range point.Values {
			lo[v] = math.Min(lo[v], val)
			hi[v] = math.Max(hi[v], val)
		}
	}

	// THEN every pair mass spans a real range below the total invariant
	// mass: the subsystems describe the Dalitz variables, not the constant
	// total mass of the full final state
	for v, name := range names {
		assert.Greater(t, hi[v]-lo[v], 0.1, "variable %s is constant", name)
		if strings.HasPrefix(name, "mSq_") {
			assert.Less(t, hi[v], totalSq, "pair mass %s reaches the total mass", name)
		}
	}
}

func TestConvert_ValuesInsideBounds(t *testing.T) {
	kin := testKinematics(t)
	_, err := kin.CreateAllSubSystems()
	require.NoError(t, err)

	gen, err := NewRauboldLynchGenerator(kin.Transition())
	require.NoError(t, err)
	rng := NewStdUniformGenerator(3)
	lo, hi := kin.VariableBounds()

	for i := 0; i < 50; i++ {
		ev := gen.Generate(rng)
		point, err := kin.Convert(ev)
		require.NoError(t, err)
		for v := range point.Values {
			assert.GreaterOrEqual(t, point.Values[v]+1e-9, lo[v], "variable %s below bound", point.Names[v])
			assert.LessOrEqual(t, point.Values[v]-1e-9, hi[v], "variable %s above bound", point.Names[v])
		}
	}
}

func TestConvert_ContentMismatchIsError(t *testing.T) {
	kin := testKinematics(t)
	_, err := kin.CreateAllSubSystems()
	require.NoError(t, err)

	// Wrong particle count
	_, err = kin.Convert(NewEvent(NewParticle(0, 0, 0, 1, 22)))
	assert.Error(t, err)

	// Wrong species order
	ev := NewEvent(
		NewParticle(0, 0, 0.5, 0.52, 111),
		NewParticle(0, 0, -0.5, 0.5, 22),
		NewParticle(0, 0, 0, 0.14, 111),
	)
	_, err = kin.Convert(ev)
	assert.Error(t, err)
}

func TestPhspVolume_CachedAndPositive(t *testing.T) {
	kin := testKinematics(t)

	v1 := kin.PhspVolume()
	v2 := kin.PhspVolume()

	assert.Equal(t, v1, v2, "volume is computed once and cached")
	assert.Greater(t, v1, 0.0)
	assert.LessOrEqual(t, v1, 1.0)
}

func TestHelicityCosTheta_RangeAndSymmetry(t *testing.T) {
	kin := testKinematics(t)
	ss, err := NewSubSystem([][]int{{1}, {2}}, []int{0})
	require.NoError(t, err)
	_, err = kin.RegisterSubSystem(ss)
	require.NoError(t, err)

	gen, err := NewRauboldLynchGenerator(kin.Transition())
	require.NoError(t, err)
	rng := NewStdUniformGenerator(5)
	for i := 0; i < 100; i++ {
		point, err := kin.Convert(gen.Generate(rng))
		require.NoError(t, err)
		cos := point.Values[1]
		assert.False(t, math.IsNaN(cos))
		assert.GreaterOrEqual(t, cos, -1.0)
		assert.LessOrEqual(t, cos, 1.0)
	}
}
