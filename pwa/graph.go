package pwa

import (
	"fmt"
	"math"
	"math/cmplx"
	"strings"

	"github.com/sirupsen/logrus"
)

// The model is compiled once into a flat node arena. Nodes reference their
// children, parameters and variables by integer index only, so parameter
// leaves can be shared read-only across graphs and no ownership cycles can
// form. Children always precede parents in the arena, which makes a single
// ascending pass a valid evaluation order.

type opKind uint8

const (
	opConst opKind = iota
	opParam
	opVar
	opAdd
	opMul
	opPolar       // kids: [magnitude, phase] -> mag * exp(i*phase)
	opBreitWigner // kids: [mass, width, mSq] -> 1 / (m0^2 - s - i*m0*Gamma)
	opGauss       // kids: [mean, sigma, x]   -> exp(-(x-mean)^2 / (2 sigma^2))
	opAbsSq       // kids: [amplitude]        -> |A|^2
	opDomain      // 1 inside the variable bounds, 0 outside
)

var opNames = map[opKind]string{
	opConst:       "const",
	opParam:       "param",
	opVar:         "var",
	opAdd:         "add",
	opMul:         "mul",
	opPolar:       "polar",
	opBreitWigner: "breit-wigner",
	opGauss:       "gauss",
	opAbsSq:       "abs2",
	opDomain:      "domain",
}

type node struct {
	kind   opKind
	kids   []int
	cval   complex128 // opConst
	slot   int        // opParam: parameter index; opVar: variable column
	lo, hi []float64  // opDomain: bounds aligned to the variable columns
	label  string
}

// Graph is a node-arena computation graph. Leaf nodes are data-point
// variables and parameter values; the root is the total intensity per data
// point. Parameter leaves read the shared ParameterSet at evaluation time,
// so value updates never trigger a rebuild.
type Graph struct {
	nodes    []node
	root     int
	params   *ParameterSet
	varNames []string
	varIndex map[string]int
}

// NewGraph returns an empty graph over the given parameter set and variable
// layout. The parameter set is shared by reference: the graph reads current
// values on every evaluation.
func NewGraph(params *ParameterSet, varNames []string) *Graph {
	g := &Graph{
		params:   params,
		varNames: append([]string(nil), varNames...),
		varIndex: make(map[string]int, len(varNames)),
		root:     -1,
	}
	for i, n := range g.varNames {
		g.varIndex[n] = i
	}
	return g
}

func (g *Graph) push(n node) int {
	g.nodes = append(g.nodes, n)
	return len(g.nodes) - 1
}

func (g *Graph) checkKid(i int) {
	if i < 0 || i >= len(g.nodes) {
		panic(fmt.Sprintf("graph: child index %d out of range (%d nodes)", i, len(g.nodes)))
	}
}

// Const adds a constant leaf.
func (g *Graph) Const(v complex128) int {
	return g.push(node{kind: opConst, cval: v, label: fmt.Sprintf("%v", v)})
}

// Param adds a mutable parameter leaf bound to the named fit parameter.
func (g *Graph) Param(name string) (int, error) {
	idx := g.params.IndexOf(name)
	if idx < 0 {
		return -1, fmt.Errorf("graph: unknown parameter %q", name)
	}
	return g.push(node{kind: opParam, slot: idx, label: name}), nil
}

// Var adds a data-variable leaf bound to the named kinematic variable.
func (g *Graph) Var(name string) (int, error) {
	idx, ok := g.varIndex[name]
	if !ok {
		return -1, fmt.Errorf("graph: unknown variable %q", name)
	}
	return g.push(node{kind: opVar, slot: idx, label: name}), nil
}

// Add sums its children.
func (g *Graph) Add(kids ...int) int {
	for _, k := range kids {
		g.checkKid(k)
	}
	return g.push(node{kind: opAdd, kids: append([]int(nil), kids...)})
}

// Mul multiplies its children.
func (g *Graph) Mul(kids ...int) int {
	for _, k := range kids {
		g.checkKid(k)
	}
	return g.push(node{kind: opMul, kids: append([]int(nil), kids...)})
}

// Polar combines a magnitude and a phase node into the complex coefficient
// mag * exp(i*phase).
func (g *Graph) Polar(mag, phase int) int {
	g.checkKid(mag)
	g.checkKid(phase)
	return g.push(node{kind: opPolar, kids: []int{mag, phase}})
}

// BreitWigner adds a relativistic Breit-Wigner amplitude over the mSq
// variable node, with mass and width nodes as the dynamic leaves.
func (g *Graph) BreitWigner(mass, width, mSq int) int {
	g.checkKid(mass)
	g.checkKid(width)
	g.checkKid(mSq)
	return g.push(node{kind: opBreitWigner, kids: []int{mass, width, mSq}})
}

// Gauss adds a Gaussian lineshape over the variable node x.
func (g *Graph) Gauss(mean, sigma, x int) int {
	g.checkKid(mean)
	g.checkKid(sigma)
	g.checkKid(x)
	return g.push(node{kind: opGauss, kids: []int{mean, sigma, x}})
}

// AbsSq adds the magnitude-squared of its child.
func (g *Graph) AbsSq(kid int) int {
	g.checkKid(kid)
	return g.push(node{kind: opAbsSq, kids: []int{kid}})
}

// Domain adds an indicator node: 1 when every variable of the data point
// lies inside [lo, hi], 0 otherwise. Bounds align with the variable layout.
// This is what keeps intensity a total function: points outside the
// physically allowed region evaluate to exactly zero.
func (g *Graph) Domain(lo, hi []float64) (int, error) {
	if len(lo) != len(g.varNames) || len(hi) != len(g.varNames) {
		return -1, fmt.Errorf("graph: domain bounds over %d/%d variables, want %d", len(lo), len(hi), len(g.varNames))
	}
	return g.push(node{
		kind: opDomain,
		lo:   append([]float64(nil), lo...),
		hi:   append([]float64(nil), hi...),
	}), nil
}

// SetRoot marks node i as the total-intensity root.
func (g *Graph) SetRoot(i int) {
	g.checkKid(i)
	g.root = i
}

// Len reports the node count.
func (g *Graph) Len() int { return len(g.nodes) }

// VariableNames returns the variable layout the graph was built over.
func (g *Graph) VariableNames() []string {
	return append([]string(nil), g.varNames...)
}

// evalRow computes the root value for one data point. scratch must have one
// slot per node; row one slot per variable. Every node is a total function
// over the full input domain: no error or NaN paths.
func (g *Graph) evalRow(row []float64, scratch []complex128) float64 {
	for i := range g.nodes {
		n := &g.nodes[i]
		switch n.kind {
		case opConst:
			scratch[i] = n.cval
		case opParam:
			scratch[i] = complex(g.params.ValueAt(n.slot), 0)
		case opVar:
			scratch[i] = complex(row[n.slot], 0)
		case opAdd:
			var sum complex128
			for _, k := range n.kids {
				sum += scratch[k]
			}
			scratch[i] = sum
		case opMul:
			prod := complex(1, 0)
			for _, k := range n.kids {
				prod *= scratch[k]
			}
			scratch[i] = prod
		case opPolar:
			mag := real(scratch[n.kids[0]])
			phase := real(scratch[n.kids[1]])
			scratch[i] = cmplx.Rect(mag, phase)
		case opBreitWigner:
			m0 := real(scratch[n.kids[0]])
			gamma := real(scratch[n.kids[1]])
			s := real(scratch[n.kids[2]])
			denom := complex(m0*m0-s, -m0*gamma)
			if denom == 0 {
				scratch[i] = 0
				break
			}
			scratch[i] = 1 / denom
		case opGauss:
			mean := real(scratch[n.kids[0]])
			sigma := real(scratch[n.kids[1]])
			x := real(scratch[n.kids[2]])
			if sigma == 0 {
				scratch[i] = 0
				break
			}
			d := (x - mean) / sigma
			scratch[i] = complex(math.Exp(-0.5*d*d), 0)
		case opAbsSq:
			v := scratch[n.kids[0]]
			scratch[i] = complex(real(v)*real(v)+imag(v)*imag(v), 0)
		case opDomain:
			inside := 1.0
			for v := range row {
				if row[v] < n.lo[v] || row[v] > n.hi[v] {
					inside = 0
					break
				}
			}
			scratch[i] = complex(inside, 0)
		}
	}
	return real(scratch[g.root])
}

// Print logs a human-readable structural dump of the graph. No side effects
// on evaluation state.
func (g *Graph) Print() {
	logrus.Infof("Graph: %d nodes, root=%d, %d variables, %d parameters",
		len(g.nodes), g.root, len(g.varNames), g.params.Len())
	if g.root < 0 {
		return
	}
	g.printNode(g.root, 0)
}

func (g *Graph) printNode(i, depth int) {
	n := &g.nodes[i]
	desc := opNames[n.kind]
	switch n.kind {
	case opConst, opVar:
		desc += " " + n.label
	case opParam:
		desc += fmt.Sprintf(" %s = %g", n.label, g.params.ValueAt(n.slot))
	}
	logrus.Infof("%s[%d] %s", strings.Repeat("  ", depth), i, desc)
	for _, k := range n.kids {
		g.printNode(k, depth+1)
	}
}
