package pwa

import (
	"fmt"
	"math"
	"sort"
)

// PhaseSpaceGenerator produces single weighted events honoring four-momentum
// conservation for a fixed transition. The weight is the phase-space density
// of the drawn configuration; MaxWeight is an analytic upper bound on it, so
// weight/MaxWeight is a valid acceptance probability.
type PhaseSpaceGenerator interface {
	Generate(rng UniformGenerator) Event
	MaxWeight() float64
}

// RauboldLynchGenerator draws n-body phase-space configurations with the
// Raubold-Lynch recursion: n-2 sorted uniforms fix the intermediate invariant
// masses, each step performs an isotropic two-body decay, and the event
// weight is the product of the step momenta.
type RauboldLynchGenerator struct {
	pids   []int
	masses []float64
	ecm    float64
	maxWt  float64
}

// NewRauboldLynchGenerator builds a generator for the given transition.
// Construction fails when the summed final-state masses exceed the available
// center-of-mass energy.
func NewRauboldLynchGenerator(info TransitionInfo) (*RauboldLynchGenerator, error) {
	kin, err := NewHelicityKinematics(info)
	if err != nil {
		return nil, fmt.Errorf("phase-space generator: %w", err)
	}
	masses := kin.FinalMasses()
	ecm := kin.CMSEnergy()

	// Analytic maximum of the weight (product of two-body momenta at the
	// kinematic limit of every intermediate mass).
	sum := 0.0
	for _, m := range masses {
		sum += m
	}
	teCmTm := ecm - sum
	emmax := teCmTm + masses[0]
	emmin := 0.0
	maxWt := 1.0
	for i := 1; i < len(masses); i++ {
		emmin += masses[i-1]
		emmax += masses[i]
		maxWt *= pdk(emmax, emmin, masses[i])
	}

	return &RauboldLynchGenerator{
		pids:   append([]int(nil), info.FinalPIDs...),
		masses: masses,
		ecm:    ecm,
		maxWt:  maxWt,
	}, nil
}

// MaxWeight returns the analytic supremum of the event weights.
func (g *RauboldLynchGenerator) MaxWeight() float64 { return g.maxWt }

// ECM returns the total center-of-mass energy of the generated events.
func (g *RauboldLynchGenerator) ECM() float64 { return g.ecm }

// Generate draws one weighted event in the center-of-mass frame.
func (g *RauboldLynchGenerator) Generate(rng UniformGenerator) Event {
	n := len(g.masses)
	sum := 0.0
	for _, m := range g.masses {
		sum += m
	}
	teCmTm := g.ecm - sum

	// Sorted uniforms fix the intermediate invariant masses.
	rno := make([]float64, n)
	rno[0] = 0
	if n > 2 {
		for i := 1; i < n-1; i++ {
			rno[i] = rng.Float64()
		}
		sort.Float64s(rno[1 : n-1])
	}
	rno[n-1] = 1

	invMas := make([]float64, n)
	cum := 0.0
	for i := 0; i < n; i++ {
		cum += g.masses[i]
		invMas[i] = rno[i]*teCmTm + cum
	}

	pd := make([]float64, n-1)
	wt := 1.0
	for i := 0; i < n-1; i++ {
		pd[i] = pdk(invMas[i+1], invMas[i], g.masses[i+1])
		wt *= pd[i]
	}

	// Cartesian components; fmom conversion happens once at the end.
	px := make([]float64, n)
	py := make([]float64, n)
	pz := make([]float64, n)
	en := make([]float64, n)

	py[0] = pd[0]
	en[0] = math.Sqrt(pd[0]*pd[0] + g.masses[0]*g.masses[0])

	for i := 1; ; i++ {
		py[i] = -pd[i-1]
		en[i] = math.Sqrt(pd[i-1]*pd[i-1] + g.masses[i]*g.masses[i])

		// Isotropic orientation of the current two-body decay.
		cZ := 2*rng.Float64() - 1
		sZ := math.Sqrt(1 - cZ*cZ)
		angY := 2 * math.Pi * rng.Float64()
		cY, sY := math.Cos(angY), math.Sin(angY)
		for j := 0; j <= i; j++ {
			x, y := px[j], py[j]
			px[j] = cZ*x - sZ*y
			py[j] = sZ*x + cZ*y
			x, z := px[j], pz[j]
			px[j] = cY*x - sY*z
			pz[j] = sY*x + cY*z
		}

		if i == n-1 {
			break
		}

		// Boost the accumulated system into the next intermediate frame.
		beta := pd[i] / math.Sqrt(pd[i]*pd[i]+invMas[i]*invMas[i])
		gamma := 1 / math.Sqrt(1-beta*beta)
		for j := 0; j <= i; j++ {
			e, y := en[j], py[j]
			py[j] = gamma * (y + beta*e)
			en[j] = gamma * (e + beta*y)
		}
	}

	particles := make([]Particle, n)
	for i := 0; i < n; i++ {
		particles[i] = NewParticle(px[i], py[i], pz[i], en[i], g.pids[i])
	}
	return Event{Particles: particles, Weight: wt}
}

// pdk is the two-body breakup momentum of a -> b + c.
func pdk(a, b, c float64) float64 {
	x := (a*a - (b+c)*(b+c)) * (a*a - (b-c)*(b-c))
	if x <= 0 {
		return 0
	}
	return math.Sqrt(x) / (2 * a)
}
