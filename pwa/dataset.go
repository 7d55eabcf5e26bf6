package pwa

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// DataPoint is one converted event: ordered kinematic variable values plus
// the names they belong to. Names are shared with the producing Kinematics,
// identical across all points from the same instance.
type DataPoint struct {
	Names  []string
	Values []float64
}

// DataSet is a columnar collection of data points: one value column per
// variable name plus a parallel weight column.
type DataSet struct {
	VariableNames []string
	Data          [][]float64 // Data[v][i]: variable v of point i
	Weights       []float64
}

// NewDataSet returns an empty DataSet over the given variables.
func NewDataSet(names []string) DataSet {
	return DataSet{
		VariableNames: append([]string(nil), names...),
		Data:          make([][]float64, len(names)),
	}
}

// Len reports the number of data points.
func (ds DataSet) Len() int { return len(ds.Weights) }

// Append adds one data point with the given weight. The value count must
// match the variable count.
func (ds *DataSet) Append(values []float64, weight float64) error {
	if len(values) != len(ds.VariableNames) {
		return fmt.Errorf("dataset: got %d values, want %d", len(values), len(ds.VariableNames))
	}
	for v := range values {
		ds.Data[v] = append(ds.Data[v], values[v])
	}
	ds.Weights = append(ds.Weights, weight)
	return nil
}

// Row copies point i into buf, which must have one slot per variable.
func (ds DataSet) Row(i int, buf []float64) {
	for v := range ds.Data {
		buf[v] = ds.Data[v][i]
	}
}

// SumOfWeights returns the total weight of the sample.
func (ds DataSet) SumOfWeights() float64 {
	return floats.Sum(ds.Weights)
}

// Validate checks the columnar invariant: every variable column has the same
// length as the weight column.
func (ds DataSet) Validate() error {
	if len(ds.Data) != len(ds.VariableNames) {
		return fmt.Errorf("dataset: %d columns for %d variable names", len(ds.Data), len(ds.VariableNames))
	}
	for v, col := range ds.Data {
		if len(col) != len(ds.Weights) {
			return fmt.Errorf("dataset: column %q has %d entries, weights have %d", ds.VariableNames[v], len(col), len(ds.Weights))
		}
	}
	return nil
}

// ConvertEventsToDataSet runs every event through the kinematics and collects
// the results into a columnar DataSet, carrying the event weights over.
func ConvertEventsToDataSet(events EventList, kin Kinematics) (DataSet, error) {
	ds := NewDataSet(kin.VariableNames())
	for i, ev := range events {
		point, err := kin.Convert(ev)
		if err != nil {
			return DataSet{}, fmt.Errorf("converting event %d: %w", i, err)
		}
		if err := ds.Append(point.Values, ev.Weight); err != nil {
			return DataSet{}, fmt.Errorf("converting event %d: %w", i, err)
		}
	}
	return ds, nil
}

// AddIntensityWeights converts the events and multiplies each point's weight
// by the model intensity at that point. Used to turn a phase-space sample
// into a model-weighted one without rejection.
func AddIntensityWeights(intensity Intensity, events EventList, kin Kinematics) (DataSet, error) {
	ds, err := ConvertEventsToDataSet(events, kin)
	if err != nil {
		return DataSet{}, err
	}
	values, err := intensity.Evaluate(ds)
	if err != nil {
		return DataSet{}, fmt.Errorf("weighting sample: %w", err)
	}
	floats.Mul(ds.Weights, values)
	return ds, nil
}
