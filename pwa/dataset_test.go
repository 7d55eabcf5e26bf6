package pwa

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataSet_AppendAndValidate(t *testing.T) {
	ds := NewDataSet([]string{"a", "b"})
	require.NoError(t, ds.Append([]float64{1, 2}, 0.5))
	require.NoError(t, ds.Append([]float64{3, 4}, 1.5))

	assert.Equal(t, 2, ds.Len())
	assert.NoError(t, ds.Validate())
	assert.Equal(t, 2.0, ds.SumOfWeights())

	row := make([]float64, 2)
	ds.Row(1, row)
	assert.Equal(t, []float64{3, 4}, row)

	// Wrong value count is rejected
	assert.Error(t, ds.Append([]float64{1}, 1))
}

func TestDataSet_Validate_CatchesRaggedColumns(t *testing.T) {
	ds := NewDataSet([]string{"a"})
	require.NoError(t, ds.Append([]float64{1}, 1))
	ds.Data[0] = append(ds.Data[0], 2) // break the invariant by hand
	assert.Error(t, ds.Validate())
}

func TestConvertEventsToDataSet_ColumnarLayout(t *testing.T) {
	// GIVEN a kinematics and a flat sample
	kin := testKinematics(t)
	_, err := kin.CreateAllSubSystems()
	require.NoError(t, err)

	gen, err := NewRauboldLynchGenerator(kin.Transition())
	require.NoError(t, err)
	rng := NewStdUniformGenerator(13)
	events := make(EventList, 25)
	for i := range events {
		events[i] = gen.Generate(rng)
	}

	// WHEN the sample is converted
	ds, err := ConvertEventsToDataSet(events, kin)
	require.NoError(t, err)

	// THEN the layout matches the kinematics and weights carry over
	require.NoError(t, ds.Validate())
	assert.Equal(t, kin.VariableNames(), ds.VariableNames)
	assert.Equal(t, len(events), ds.Len())
	for i, ev := range events {
		assert.Equal(t, ev.Weight, ds.Weights[i])
	}
}

func TestConvertEventsToDataSet_SurfacesMismatch(t *testing.T) {
	kin := testKinematics(t)
	_, err := kin.CreateAllSubSystems()
	require.NoError(t, err)

	bad := EventList{NewEvent(NewParticle(0, 0, 0, 1, 22))}
	_, err = ConvertEventsToDataSet(bad, kin)
	assert.Error(t, err)
}

func TestAddIntensityWeights_FoldsIntensityIn(t *testing.T) {
	// GIVEN a kinematics with a single subsystem and a matching
	// constant intensity over its variables
	kin := testKinematics(t)
	ss, err := NewSubSystem([][]int{{0}, {1, 2}}, nil)
	require.NoError(t, err)
	_, err = kin.RegisterSubSystem(ss)
	require.NoError(t, err)

	params := NewParameterSet()
	_, err = params.Add(FitParameter{Name: "c", Value: 2.0, IsFixed: true})
	require.NoError(t, err)
	g := NewGraph(params, kin.VariableNames())
	c, err := g.Param("c")
	require.NoError(t, err)
	g.SetRoot(g.AbsSq(c))
	in, err := NewGraphIntensity(g)
	require.NoError(t, err)

	gen, err := NewRauboldLynchGenerator(kin.Transition())
	require.NoError(t, err)
	rng := NewStdUniformGenerator(13)
	events := make(EventList, 10)
	for i := range events {
		events[i] = gen.Generate(rng)
	}

	// WHEN the intensity weights are folded in
	ds, err := AddIntensityWeights(in, events, kin)
	require.NoError(t, err)

	// THEN every weight got multiplied by |c|^2 = 4
	for i, ev := range events {
		assert.InDelta(t, ev.Weight*4, ds.Weights[i], 1e-12)
	}
}
