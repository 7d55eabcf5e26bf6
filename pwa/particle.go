package pwa

import (
	"fmt"
	"os"

	"go-hep.org/x/hep/fmom"
	"gopkg.in/yaml.v3"
)

// Particle is a four-momentum plus an integer species identifier (PDG code).
// Immutable value type.
type Particle struct {
	P4  fmom.PxPyPzE
	PID int
}

// NewParticle builds a Particle from momentum components, energy and PID.
func NewParticle(px, py, pz, e float64, pid int) Particle {
	return Particle{P4: fmom.NewPxPyPzE(px, py, pz, e), PID: pid}
}

func (p Particle) String() string {
	return fmt.Sprintf("Particle(pid=%d, p4=(%g, %g, %g, %g))",
		p.PID, p.P4.Px(), p.P4.Py(), p.P4.Pz(), p.P4.E())
}

// Event is an ordered sequence of final-state particles plus a scalar weight.
// Events are treated as immutable once constructed.
type Event struct {
	Particles []Particle
	Weight    float64
}

// NewEvent builds an Event with the given particles and weight 1.
func NewEvent(particles ...Particle) Event {
	return Event{Particles: particles, Weight: 1.0}
}

// TotalP4 returns the summed four-momentum of all particles in the event.
func (ev Event) TotalP4() fmom.PxPyPzE {
	return sumP4(ev.Particles, nil)
}

// EventList is a collection of events.
type EventList []Event

// sumP4 sums the four-momenta of the particles selected by idx
// (all particles when idx is nil). The indices are zero-based positions
// within the particle list.
func sumP4(particles []Particle, idx []int) fmom.PxPyPzE {
	var tot fmom.PxPyPzE
	if idx == nil {
		for i := range particles {
			tot.Set(fmom.Add(&tot, &particles[i].P4))
		}
		return tot
	}
	for _, i := range idx {
		tot.Set(fmom.Add(&tot, &particles[i].P4))
	}
	return tot
}

// ParticleProperties describes one species in the particle table.
type ParticleProperties struct {
	Name string  `yaml:"name"`
	PID  int     `yaml:"pid"`
	Mass float64 `yaml:"mass"`
}

// PropertyTable is an opaque particle-properties lookup keyed by PID or name.
type PropertyTable struct {
	byPID  map[int]ParticleProperties
	byName map[string]ParticleProperties
}

// NewPropertyTable builds a table from a list of species definitions.
// Duplicate PIDs or names are configuration errors.
func NewPropertyTable(entries []ParticleProperties) (PropertyTable, error) {
	t := PropertyTable{
		byPID:  make(map[int]ParticleProperties, len(entries)),
		byName: make(map[string]ParticleProperties, len(entries)),
	}
	for _, e := range entries {
		if e.Name == "" {
			return PropertyTable{}, fmt.Errorf("particle table: entry with pid %d has empty name", e.PID)
		}
		if _, dup := t.byPID[e.PID]; dup {
			return PropertyTable{}, fmt.Errorf("particle table: duplicate pid %d", e.PID)
		}
		if _, dup := t.byName[e.Name]; dup {
			return PropertyTable{}, fmt.Errorf("particle table: duplicate name %q", e.Name)
		}
		t.byPID[e.PID] = e
		t.byName[e.Name] = e
	}
	return t, nil
}

// ByPID looks up a species by PDG code.
func (t PropertyTable) ByPID(pid int) (ParticleProperties, bool) {
	p, ok := t.byPID[pid]
	return p, ok
}

// ByName looks up a species by name.
func (t PropertyTable) ByName(name string) (ParticleProperties, bool) {
	p, ok := t.byName[name]
	return p, ok
}

// Len reports the number of species in the table.
func (t PropertyTable) Len() int { return len(t.byPID) }

// particleTableFile is the YAML layout of a particle-properties file.
type particleTableFile struct {
	Particles []ParticleProperties `yaml:"particles"`
}

// LoadParticleTable reads a particle-properties table from a YAML file.
func LoadParticleTable(path string) (PropertyTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return PropertyTable{}, fmt.Errorf("reading particle table: %w", err)
	}
	var file particleTableFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return PropertyTable{}, fmt.Errorf("parsing particle table: %w", err)
	}
	if len(file.Particles) == 0 {
		return PropertyTable{}, fmt.Errorf("particle table %q: no particles section", path)
	}
	return NewPropertyTable(file.Particles)
}
