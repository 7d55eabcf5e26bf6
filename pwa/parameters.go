package pwa

import (
	"fmt"
)

// FitParameter is a named, bounded, optionally-fixed scalar model input.
// Value and Error are mutated by the Minimizer during a fit; everything
// else is set at construction time.
type FitParameter struct {
	Name      string
	Value     float64
	Error     float64
	IsFixed   bool
	HasBounds bool
	Min       float64
	Max       float64
}

// NewFitParameter returns an unbounded, free parameter.
func NewFitParameter(name string, value float64) FitParameter {
	return FitParameter{Name: name, Value: value}
}

// NewBoundedFitParameter returns a free parameter constrained to [min, max].
func NewBoundedFitParameter(name string, value, min, max float64) FitParameter {
	return FitParameter{Name: name, Value: value, HasBounds: true, Min: min, Max: max}
}

func (p FitParameter) String() string {
	s := fmt.Sprintf("%s = %g", p.Name, p.Value)
	if p.Error > 0 {
		s += fmt.Sprintf(" +- %g", p.Error)
	}
	if p.HasBounds {
		s += fmt.Sprintf(" in [%g, %g]", p.Min, p.Max)
	}
	if p.IsFixed {
		s += " (fixed)"
	}
	return s
}

// ParameterSet is an ordered collection of FitParameters. Insertion order is
// significant for reproducible reporting. A set is shared by reference
// between an Intensity (reader) and the Minimizer (sole writer during a fit)
// so value updates propagate without rebuilding any graph.
type ParameterSet struct {
	params []FitParameter
	index  map[string]int
}

// NewParameterSet returns an empty set.
func NewParameterSet() *ParameterSet {
	return &ParameterSet{index: make(map[string]int)}
}

// Add appends a parameter. Duplicate names are configuration errors.
// Bounds are validated here: Min < Max and Value inside [Min, Max].
func (ps *ParameterSet) Add(p FitParameter) (int, error) {
	if p.Name == "" {
		return -1, fmt.Errorf("parameter set: empty parameter name")
	}
	if _, dup := ps.index[p.Name]; dup {
		return -1, fmt.Errorf("parameter set: duplicate parameter %q", p.Name)
	}
	if p.HasBounds {
		if p.Min >= p.Max {
			return -1, fmt.Errorf("parameter %q: invalid bounds [%g, %g]", p.Name, p.Min, p.Max)
		}
		if p.Value < p.Min || p.Value > p.Max {
			return -1, fmt.Errorf("parameter %q: value %g outside bounds [%g, %g]", p.Name, p.Value, p.Min, p.Max)
		}
	}
	ps.index[p.Name] = len(ps.params)
	ps.params = append(ps.params, p)
	return len(ps.params) - 1, nil
}

// Len reports the number of parameters.
func (ps *ParameterSet) Len() int { return len(ps.params) }

// At returns a copy of the parameter at index i.
func (ps *ParameterSet) At(i int) FitParameter { return ps.params[i] }

// IndexOf returns the index of the named parameter, or -1.
func (ps *ParameterSet) IndexOf(name string) int {
	if i, ok := ps.index[name]; ok {
		return i
	}
	return -1
}

// ByName returns a copy of the named parameter.
func (ps *ParameterSet) ByName(name string) (FitParameter, bool) {
	i, ok := ps.index[name]
	if !ok {
		return FitParameter{}, false
	}
	return ps.params[i], true
}

// ValueAt reads the current value of parameter i. This is the read path the
// computation graph takes on every evaluation.
func (ps *ParameterSet) ValueAt(i int) float64 { return ps.params[i].Value }

// SetValue overwrites the value of parameter i in place.
func (ps *ParameterSet) SetValue(i int, v float64) { ps.params[i].Value = v }

// SetError overwrites the uncertainty of parameter i in place.
func (ps *ParameterSet) SetError(i int, e float64) { ps.params[i].Error = e }

// Values returns the current values in insertion order.
func (ps *ParameterSet) Values() []float64 {
	vals := make([]float64, len(ps.params))
	for i := range ps.params {
		vals[i] = ps.params[i].Value
	}
	return vals
}

// SetValues overwrites all values in place. The length must match the set.
func (ps *ParameterSet) SetValues(vals []float64) error {
	if len(vals) != len(ps.params) {
		return fmt.Errorf("parameter set: got %d values, want %d", len(vals), len(ps.params))
	}
	for i, v := range vals {
		ps.params[i].Value = v
	}
	return nil
}

// FreeIndices returns the indices of the non-fixed parameters, in order.
func (ps *ParameterSet) FreeIndices() []int {
	var idx []int
	for i := range ps.params {
		if !ps.params[i].IsFixed {
			idx = append(idx, i)
		}
	}
	return idx
}

// Copy returns a deep copy of the set. FitResult snapshots use this so a
// later fit cannot mutate an already-reported result.
func (ps *ParameterSet) Copy() *ParameterSet {
	cp := &ParameterSet{
		params: append([]FitParameter(nil), ps.params...),
		index:  make(map[string]int, len(ps.index)),
	}
	for k, v := range ps.index {
		cp.index[k] = v
	}
	return cp
}
