package pwa

import (
	"hash/fnv"
	"math/rand"
)

// UniformGenerator is a source of uniform random numbers over [0,1).
// Any implementation seeded by an integer satisfies the contract; the
// engine never reaches for a concrete source directly.
type UniformGenerator interface {
	Float64() float64
}

// StdUniformGenerator wraps math/rand behind the UniformGenerator contract.
type StdUniformGenerator struct {
	rng *rand.Rand
}

// NewStdUniformGenerator returns a generator seeded with the given value.
func NewStdUniformGenerator(seed int64) *StdUniformGenerator {
	return &StdUniformGenerator{rng: rand.New(rand.NewSource(seed))}
}

// Float64 returns the next uniform value in [0,1).
func (g *StdUniformGenerator) Float64() float64 { return g.rng.Float64() }

// Subsystem names for partitioned RNG derivation.
const (
	// SubsystemPhaseSpace draws the raw phase-space configurations.
	SubsystemPhaseSpace = "phasespace"

	// SubsystemRejection draws the accept-reject decisions, isolated from
	// the phase-space stream so changing the intensity never perturbs the
	// candidate sequence.
	SubsystemRejection = "rejection"
)

// PartitionedRNG provides deterministic, isolated generators per subsystem.
//
// Derivation formula: masterSeed XOR fnv1a64(subsystemName). Two runs with
// the same master seed draw identical sequences in every subsystem,
// regardless of how much the other subsystems consumed.
//
// Thread-safety: NOT thread-safe. Must be called from a single goroutine.
type PartitionedRNG struct {
	seed       int64
	subsystems map[string]*StdUniformGenerator
}

// NewPartitionedRNG creates a PartitionedRNG from a master seed.
func NewPartitionedRNG(seed int64) *PartitionedRNG {
	return &PartitionedRNG{
		seed:       seed,
		subsystems: make(map[string]*StdUniformGenerator),
	}
}

// ForSubsystem returns a deterministically-seeded generator for the named
// subsystem. The same name always returns the same instance (cached).
// Never returns nil.
func (p *PartitionedRNG) ForSubsystem(name string) *StdUniformGenerator {
	if rng, ok := p.subsystems[name]; ok {
		return rng
	}
	rng := NewStdUniformGenerator(p.seed ^ fnv1a64(name))
	p.subsystems[name] = rng
	return rng
}

// Seed returns the master seed used to create this PartitionedRNG.
func (p *PartitionedRNG) Seed() int64 { return p.seed }

// fnv1a64 computes a 64-bit FNV-1a hash of the input string.
func fnv1a64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}
