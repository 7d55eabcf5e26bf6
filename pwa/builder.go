package pwa

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ModelDescription is the external configuration tree an intensity is
// compiled from. It must expose a kinematics section and an intensity
// section; anything missing or malformed is a configuration error raised
// before any graph is built.
type ModelDescription struct {
	Kinematics KinematicsSpec `yaml:"kinematics"`
	Intensity  IntensitySpec  `yaml:"intensity"`
}

// KinematicsSpec names the initial and final state of the transition.
type KinematicsSpec struct {
	InitialState []string `yaml:"initial_state"`
	FinalState   []string `yaml:"final_state"`
}

// IntensitySpec is the coherent sum of amplitude components.
type IntensitySpec struct {
	Components []ComponentSpec `yaml:"components"`
}

// ComponentSpec describes one resonance amplitude: a dynamical lineshape on
// a subsystem plus a complex coefficient. The subsystem lists the two decay
// groups; the recoil is the complement of their union within the final state.
// For gaussian components the mass and width specs act as mean and sigma.
type ComponentSpec struct {
	Name      string        `yaml:"name"`
	Type      string        `yaml:"type"`
	SubSystem [][]int       `yaml:"subsystem"`
	Mass      ParameterSpec `yaml:"mass"`
	Width     ParameterSpec `yaml:"width"`
	Magnitude ParameterSpec `yaml:"magnitude"`
	Phase     ParameterSpec `yaml:"phase"`
}

// ParameterSpec is the YAML form of one fit parameter. Nil bounds mean
// unbounded.
type ParameterSpec struct {
	Value float64  `yaml:"value"`
	Min   *float64 `yaml:"min"`
	Max   *float64 `yaml:"max"`
	Fix   bool     `yaml:"fix"`
}

// validComponentTypes is the set of recognized lineshape names.
var validComponentTypes = map[string]bool{"breit_wigner": true, "gaussian": true}

// LoadModelDescription reads and validates a YAML model file.
func LoadModelDescription(path string) (*ModelDescription, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading model description: %w", err)
	}
	var md ModelDescription
	if err := yaml.Unmarshal(data, &md); err != nil {
		return nil, fmt.Errorf("parsing model description: %w", err)
	}
	if err := md.Validate(); err != nil {
		return nil, fmt.Errorf("model description %q: %w", path, err)
	}
	return &md, nil
}

// Validate checks that both required sections are present and well formed.
func (md *ModelDescription) Validate() error {
	if len(md.Kinematics.FinalState) == 0 {
		return fmt.Errorf("missing or empty kinematics section")
	}
	if len(md.Kinematics.InitialState) == 0 {
		return fmt.Errorf("kinematics section has no initial state")
	}
	if len(md.Intensity.Components) == 0 {
		return fmt.Errorf("missing or empty intensity section")
	}
	seen := make(map[string]bool)
	for i, c := range md.Intensity.Components {
		if c.Name == "" {
			return fmt.Errorf("component %d has no name", i)
		}
		if seen[c.Name] {
			return fmt.Errorf("duplicate component %q", c.Name)
		}
		seen[c.Name] = true
		if !validComponentTypes[c.Type] {
			return fmt.Errorf("component %q: unknown type %q", c.Name, c.Type)
		}
		if len(c.SubSystem) != 2 {
			return fmt.Errorf("component %q: subsystem must have 2 groups, got %d", c.Name, len(c.SubSystem))
		}
	}
	return nil
}

// NewKinematicsFromModel resolves the model's particle names against the
// property table and builds the helicity kinematics.
func NewKinematicsFromModel(md *ModelDescription, table PropertyTable) (*HelicityKinematics, error) {
	resolve := func(names []string) ([]int, error) {
		pids := make([]int, len(names))
		for i, name := range names {
			props, ok := table.ByName(name)
			if !ok {
				return nil, fmt.Errorf("model kinematics: unknown particle %q", name)
			}
			pids[i] = props.PID
		}
		return pids, nil
	}
	initial, err := resolve(md.Kinematics.InitialState)
	if err != nil {
		return nil, err
	}
	final, err := resolve(md.Kinematics.FinalState)
	if err != nil {
		return nil, err
	}
	return NewHelicityKinematics(TransitionInfo{
		InitialPIDs: initial,
		FinalPIDs:   final,
		Table:       table,
	})
}

// BuildIntensity compiles the model's intensity section into a computation
// graph over the kinematics' variables. Component subsystems register
// through the deduplicating path, so two components on the same grouping
// share one variable pair. The returned intensity owns a fresh ParameterSet;
// share it with the Minimizer by reference.
func BuildIntensity(md *ModelDescription, kin *HelicityKinematics) (*GraphIntensity, error) {
	if err := md.Validate(); err != nil {
		return nil, err
	}

	// Subsystems first: the variable layout must be complete before the
	// graph is laid out over it.
	suffixes := make([]string, len(md.Intensity.Components))
	for i, c := range md.Intensity.Components {
		ss, err := NewSubSystem(c.SubSystem, recoilFor(c.SubSystem, len(kin.Transition().FinalPIDs)))
		if err != nil {
			return nil, fmt.Errorf("component %q: %w", c.Name, err)
		}
		if _, err := kin.RegisterSubSystem(ss); err != nil {
			return nil, fmt.Errorf("component %q: %w", c.Name, err)
		}
		suffixes[i] = ss.Suffix()
	}

	params := NewParameterSet()
	for _, c := range md.Intensity.Components {
		for _, pp := range []struct {
			role string
			spec ParameterSpec
		}{
			{"mass", c.Mass},
			{"width", c.Width},
			{"magnitude", c.Magnitude},
			{"phase", c.Phase},
		} {
			if _, err := params.Add(newParameterFromSpec(c.Name+"_"+pp.role, pp.spec)); err != nil {
				return nil, fmt.Errorf("component %q: %w", c.Name, err)
			}
		}
	}

	g := NewGraph(params, kin.VariableNames())
	amps := make([]int, 0, len(md.Intensity.Components))
	for i, c := range md.Intensity.Components {
		mass, err := g.Param(c.Name + "_mass")
		if err != nil {
			return nil, err
		}
		width, err := g.Param(c.Name + "_width")
		if err != nil {
			return nil, err
		}
		mag, err := g.Param(c.Name + "_magnitude")
		if err != nil {
			return nil, err
		}
		phase, err := g.Param(c.Name + "_phase")
		if err != nil {
			return nil, err
		}
		mSq, err := g.Var("mSq_" + suffixes[i])
		if err != nil {
			return nil, err
		}

		var dyn int
		switch c.Type {
		case "breit_wigner":
			dyn = g.BreitWigner(mass, width, mSq)
		case "gaussian":
			dyn = g.Gauss(mass, width, mSq)
		default:
			return nil, fmt.Errorf("component %q: unknown type %q", c.Name, c.Type)
		}
		amps = append(amps, g.Mul(g.Polar(mag, phase), dyn))
	}

	lo, hi := kin.VariableBounds()
	dom, err := g.Domain(lo, hi)
	if err != nil {
		return nil, err
	}
	g.SetRoot(g.Mul(g.AbsSq(g.Add(amps...)), dom))
	return NewGraphIntensity(g)
}

// recoilFor returns the final-state indices outside the grouped ones.
func recoilFor(groups [][]int, n int) []int {
	member := make(map[int]bool)
	for _, g := range groups {
		for _, idx := range g {
			member[idx] = true
		}
	}
	var recoil []int
	for i := 0; i < n; i++ {
		if !member[i] {
			recoil = append(recoil, i)
		}
	}
	return recoil
}

func newParameterFromSpec(name string, spec ParameterSpec) FitParameter {
	p := FitParameter{Name: name, Value: spec.Value, IsFixed: spec.Fix}
	if spec.Min != nil && spec.Max != nil {
		p.HasBounds = true
		p.Min = *spec.Min
		p.Max = *spec.Max
	}
	return p
}
