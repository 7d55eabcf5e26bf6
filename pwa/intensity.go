package pwa

import (
	"fmt"
	"runtime"
	"sync"
)

// Intensity is an opaque evaluator over a DataSet: the model's predicted
// probability density (up to normalization) per data point. Built once,
// re-evaluated many times; parameter updates mutate leaves in place and
// never rebuild the underlying structure.
type Intensity interface {
	// Evaluate returns one non-negative value per data point, in input order.
	Evaluate(ds DataSet) ([]float64, error)
	// UpdateParametersFrom overwrites all parameter values in place. The
	// slice must cover the full parameter set, in insertion order.
	UpdateParametersFrom(values []float64) error
	// Parameters returns the shared parameter set.
	Parameters() *ParameterSet
	// Print logs a structural dump for debugging.
	Print()
}

// GraphIntensity is the computation-graph realization of Intensity.
type GraphIntensity struct {
	graph *Graph
}

// NewGraphIntensity wraps a finished graph. The graph must have a root.
func NewGraphIntensity(g *Graph) (*GraphIntensity, error) {
	if g.root < 0 {
		return nil, fmt.Errorf("intensity: graph has no root node")
	}
	return &GraphIntensity{graph: g}, nil
}

// VariableNames returns the variable layout the intensity expects.
func (in *GraphIntensity) VariableNames() []string {
	return in.graph.VariableNames()
}

// Parameters returns the shared parameter set.
func (in *GraphIntensity) Parameters() *ParameterSet { return in.graph.params }

// UpdateParametersFrom overwrites the parameter leaves in place.
func (in *GraphIntensity) UpdateParametersFrom(values []float64) error {
	return in.graph.params.SetValues(values)
}

// Print logs the graph structure.
func (in *GraphIntensity) Print() { in.graph.Print() }

// Evaluate computes the intensity for every data point. Rows are independent,
// so the work is chunked across goroutines; each output lands at its input
// index, so ordering (and bit-level determinism) is unaffected by the degree
// of parallelism.
func (in *GraphIntensity) Evaluate(ds DataSet) ([]float64, error) {
	if err := ds.Validate(); err != nil {
		return nil, fmt.Errorf("intensity: %w", err)
	}
	if err := in.checkLayout(ds); err != nil {
		return nil, err
	}

	n := ds.Len()
	out := make([]float64, n)
	if n == 0 {
		return out, nil
	}

	workers := runtime.GOMAXPROCS(0)
	if workers > n {
		workers = n
	}
	chunk := (n + workers - 1) / workers

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		lo := w * chunk
		hi := lo + chunk
		if hi > n {
			hi = n
		}
		if lo >= hi {
			break
		}
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			row := make([]float64, len(in.graph.varNames))
			scratch := make([]complex128, len(in.graph.nodes))
			for i := lo; i < hi; i++ {
				ds.Row(i, row)
				v := in.graph.evalRow(row, scratch)
				if v < 0 {
					v = 0
				}
				out[i] = v
			}
		}(lo, hi)
	}
	wg.Wait()
	return out, nil
}

func (in *GraphIntensity) checkLayout(ds DataSet) error {
	want := in.graph.varNames
	if len(ds.VariableNames) != len(want) {
		return fmt.Errorf("intensity: dataset has %d variables, graph wants %d", len(ds.VariableNames), len(want))
	}
	for i := range want {
		if ds.VariableNames[i] != want[i] {
			return fmt.Errorf("intensity: dataset variable %d is %q, graph wants %q", i, ds.VariableNames[i], want[i])
		}
	}
	return nil
}
