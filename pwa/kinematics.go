package pwa

import (
	"fmt"
	"math"
	"sync"

	"github.com/sirupsen/logrus"
	"go-hep.org/x/hep/fmom"
	"gonum.org/v1/gonum/spatial/r3"
)

// TransitionInfo describes the particle state transition a Kinematics is
// built for: which initial state decays into which final state, with masses
// resolved through the property table. When CMSEnergy is zero the initial
// state is taken at rest with the summed initial masses as total energy.
type TransitionInfo struct {
	InitialPIDs []int
	FinalPIDs   []int
	Table       PropertyTable
	CMSEnergy   float64
}

// Kinematics converts raw four-vector events into named kinematic variables.
// Implementations are pure functions of the event and their fixed subsystem
// table. Transition exposes the richer configuration info without runtime
// type inspection.
type Kinematics interface {
	Convert(ev Event) (DataPoint, error)
	VariableNames() []string
	PhspVolume() float64
	Transition() TransitionInfo
}

// HelicityKinematics computes, per registered SubSystem, the combined
// invariant mass squared and the helicity decay angle of the first group.
// The subsystem table is deduplicated: registering a structurally equal
// grouping returns the existing index.
type HelicityKinematics struct {
	info        TransitionInfo
	cmsEnergy   float64
	finalMasses []float64

	subsystems []SubSystem
	names      []string
	lo, hi     []float64

	volumeOnce sync.Once
	volume     float64
}

// internal draw count for the cached phase-space volume estimate.
const phspVolumeDraws = 20000

// NewHelicityKinematics validates the transition against the property table
// and returns a kinematics with an empty subsystem table.
func NewHelicityKinematics(info TransitionInfo) (*HelicityKinematics, error) {
	if len(info.FinalPIDs) < 2 {
		return nil, fmt.Errorf("kinematics: need at least 2 final-state particles, got %d", len(info.FinalPIDs))
	}
	cms := info.CMSEnergy
	if cms == 0 {
		if len(info.InitialPIDs) == 0 {
			return nil, fmt.Errorf("kinematics: no initial state and no CMS energy")
		}
		for _, pid := range info.InitialPIDs {
			props, ok := info.Table.ByPID(pid)
			if !ok {
				return nil, fmt.Errorf("kinematics: unknown initial-state pid %d", pid)
			}
			cms += props.Mass
		}
	}
	masses := make([]float64, len(info.FinalPIDs))
	sum := 0.0
	for i, pid := range info.FinalPIDs {
		props, ok := info.Table.ByPID(pid)
		if !ok {
			return nil, fmt.Errorf("kinematics: unknown final-state pid %d", pid)
		}
		masses[i] = props.Mass
		sum += props.Mass
	}
	if sum >= cms {
		return nil, fmt.Errorf("kinematics: final-state masses (%g) exceed CMS energy (%g)", sum, cms)
	}
	return &HelicityKinematics{
		info:        info,
		cmsEnergy:   cms,
		finalMasses: masses,
	}, nil
}

// Transition returns the transition this kinematics was built for.
func (k *HelicityKinematics) Transition() TransitionInfo { return k.info }

// CMSEnergy returns the total center-of-mass energy.
func (k *HelicityKinematics) CMSEnergy() float64 { return k.cmsEnergy }

// FinalMasses returns the resolved final-state masses, in final-state order.
func (k *HelicityKinematics) FinalMasses() []float64 {
	return append([]float64(nil), k.finalMasses...)
}

// RegisterSubSystem adds a subsystem to the table, or returns the index of a
// structurally equal one already present. Evaluation cost scales with the
// number of distinct subsystems, so repeated requests must not grow the table.
func (k *HelicityKinematics) RegisterSubSystem(ss SubSystem) (int, error) {
	for _, idx := range append(ss.Indices(), ss.Recoil...) {
		if idx >= len(k.finalMasses) {
			return -1, fmt.Errorf("kinematics: subsystem index %d out of range (final state has %d particles)", idx, len(k.finalMasses))
		}
	}
	for i := range k.subsystems {
		if k.subsystems[i].Equal(ss) {
			return i, nil
		}
	}
	k.subsystems = append(k.subsystems, ss)
	suffix := ss.Suffix()
	k.names = append(k.names, "mSq_"+suffix, "cosTheta_"+suffix)

	mLo, mHi := k.massRange(ss)
	k.lo = append(k.lo, mLo*mLo, -1)
	k.hi = append(k.hi, mHi*mHi, 1)
	return len(k.subsystems) - 1, nil
}

// massRange returns the kinematically allowed invariant-mass range of the
// combined subsystem: from the summed member masses up to the CMS energy
// minus the recoil masses.
func (k *HelicityKinematics) massRange(ss SubSystem) (lo, hi float64) {
	member := make(map[int]bool)
	for _, idx := range ss.Indices() {
		member[idx] = true
		lo += k.finalMasses[idx]
	}
	hi = k.cmsEnergy
	for i, m := range k.finalMasses {
		if !member[i] {
			hi -= m
		}
	}
	return lo, hi
}

// CreateAllSubSystems registers every two-particle decay grouping of the
// final state with the remaining particles as recoil, and returns the
// resolved subsystem indices. For a 3-body final state these are the three
// pair subsystems whose invariant masses span the Dalitz plane.
// Already-registered groupings resolve to their existing index.
func (k *HelicityKinematics) CreateAllSubSystems() ([]int, error) {
	n := len(k.finalMasses)
	var indices []int
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			var recoil []int
			for r := 0; r < n; r++ {
				if r != i && r != j {
					recoil = append(recoil, r)
				}
			}
			ss, err := NewSubSystem([][]int{{i}, {j}}, recoil)
			if err != nil {
				return nil, err
			}
			idx, err := k.RegisterSubSystem(ss)
			if err != nil {
				return nil, err
			}
			indices = append(indices, idx)
		}
	}
	return indices, nil
}

// SubSystems returns a copy of the subsystem table.
func (k *HelicityKinematics) SubSystems() []SubSystem {
	return append([]SubSystem(nil), k.subsystems...)
}

// VariableNames returns the ordered kinematic variable names. Stable for the
// life of the instance once the subsystem table is complete.
func (k *HelicityKinematics) VariableNames() []string {
	return append([]string(nil), k.names...)
}

// VariableBounds returns the allowed range per variable, aligned with
// VariableNames. The computation graph's domain node uses these to map
// out-of-region points to zero intensity.
func (k *HelicityKinematics) VariableBounds() (lo, hi []float64) {
	return append([]float64(nil), k.lo...), append([]float64(nil), k.hi...)
}

// Convert maps one event to a DataPoint, deterministically. An event whose
// particle content does not match the configured final state is a
// configuration mismatch, surfaced as an error.
func (k *HelicityKinematics) Convert(ev Event) (DataPoint, error) {
	if len(ev.Particles) != len(k.info.FinalPIDs) {
		return DataPoint{}, fmt.Errorf("kinematics: event has %d particles, final state has %d", len(ev.Particles), len(k.info.FinalPIDs))
	}
	for i, p := range ev.Particles {
		if p.PID != k.info.FinalPIDs[i] {
			return DataPoint{}, fmt.Errorf("kinematics: particle %d has pid %d, want %d", i, p.PID, k.info.FinalPIDs[i])
		}
	}

	// Work in the overall rest frame.
	total := ev.TotalP4()
	cms := make([]Particle, len(ev.Particles))
	beta := fmom.BoostOf(&total)
	for i := range ev.Particles {
		var p4 fmom.PxPyPzE
		p4.Set(fmom.Boost(&ev.Particles[i].P4, r3.Scale(-1, beta)))
		cms[i] = Particle{P4: p4, PID: ev.Particles[i].PID}
	}

	values := make([]float64, 0, len(k.names))
	for _, ss := range k.subsystems {
		pA := sumP4(cms, ss.Groups[0])
		pAB := sumP4(cms, ss.Indices())
		values = append(values, pAB.M2(), helicityCosTheta(pA, pAB))
	}
	return DataPoint{Names: k.names, Values: values}, nil
}

// helicityCosTheta is the cosine of the angle between the analyzer group's
// momentum in the subsystem rest frame and the subsystem's flight direction.
// When the subsystem is at rest (it spans the full final state) the z-axis
// serves as reference.
func helicityCosTheta(pA, pAB fmom.PxPyPzE) float64 {
	const eps = 1e-12
	beta := fmom.BoostOf(&pAB)
	var pAr fmom.PxPyPzE
	pAr.Set(fmom.Boost(&pA, r3.Scale(-1, beta)))

	ref := r3.Vec{X: pAB.Px(), Y: pAB.Py(), Z: pAB.Pz()}
	if r3.Norm(ref) < eps {
		ref = r3.Vec{Z: 1}
	}
	dir := r3.Vec{X: pAr.Px(), Y: pAr.Py(), Z: pAr.Pz()}
	if r3.Norm(dir) < eps {
		return 0
	}
	cos := r3.Dot(dir, ref) / (r3.Norm(dir) * r3.Norm(ref))
	// Clamp rounding noise so downstream domain checks stay exact.
	return math.Max(-1, math.Min(1, cos))
}

// PhspVolume returns the acceptance fraction of the allowed kinematic region
// relative to the analytic maximum-weight envelope of the phase-space
// generator. Computed once from a fixed-seed Monte Carlo average and cached.
func (k *HelicityKinematics) PhspVolume() float64 {
	k.volumeOnce.Do(func() {
		gen, err := NewRauboldLynchGenerator(k.info)
		if err != nil {
			// Construction already validated masses; this is unreachable in
			// practice but must not poison the cache.
			logrus.Warnf("phsp volume: %v", err)
			k.volume = 1
			return
		}
		rng := NewStdUniformGenerator(1)
		sum := 0.0
		for i := 0; i < phspVolumeDraws; i++ {
			ev := gen.Generate(rng)
			sum += ev.Weight / gen.MaxWeight()
		}
		k.volume = sum / phspVolumeDraws
	})
	return k.volume
}

// PrintSubSystems logs the subsystem table.
func (k *HelicityKinematics) PrintSubSystems() {
	logrus.Infof("Subsystems used by HelicityKinematics:")
	for i, ss := range k.subsystems {
		logrus.Infof("  [%d] %s", i, ss)
	}
}
