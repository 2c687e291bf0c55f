package sim

import (
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
)

// === SimulationKey ===

// SimulationKey uniquely identifies a reproducible simulation run.
// Two simulations with the same SimulationKey and identical configuration
// MUST produce identical request streams and routing outcomes.
type SimulationKey int64

// NewSimulationKey creates a SimulationKey from a seed value.
func NewSimulationKey(seed int64) SimulationKey {
	return SimulationKey(seed)
}

// === Subsystem Constants ===

const (
	// SubsystemRequestIDs is the RNG subsystem feeding request UUIDs.
	SubsystemRequestIDs = "request_ids"
)

// SubsystemProducer returns the subsystem name for the producer with the given node id.
// Each producer draws its type selection from its own stream.
func SubsystemProducer(id NodeID) string {
	return fmt.Sprintf("producer_%d", id)
}

// === PartitionedRNG ===

// PartitionedRNG provides deterministic, isolated RNG instances per subsystem.
//
// Derivation formula: masterSeed XOR fnv1a64(subsystemName).
//
// Thread-safety: NOT thread-safe. Must be called from single goroutine.
type PartitionedRNG struct {
	key        SimulationKey
	subsystems map[string]*rand.Rand
}

// NewPartitionedRNG creates a PartitionedRNG from a SimulationKey.
func NewPartitionedRNG(key SimulationKey) *PartitionedRNG {
	return &PartitionedRNG{
		key:        key,
		subsystems: make(map[string]*rand.Rand),
	}
}

// ForSubsystem returns a deterministically-seeded RNG for the named subsystem.
// The same subsystem name always returns the same *rand.Rand instance (cached).
// Never returns nil.
func (p *PartitionedRNG) ForSubsystem(name string) *rand.Rand {
	if rng, ok := p.subsystems[name]; ok {
		return rng
	}
	rng := rand.New(rand.NewSource(int64(p.key) ^ fnv1a64(name)))
	p.subsystems[name] = rng
	return rng
}

// Key returns the SimulationKey used to create this PartitionedRNG.
func (p *PartitionedRNG) Key() SimulationKey {
	return p.key
}

// fnv1a64 computes a 64-bit FNV-1a hash of the input string.
func fnv1a64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}

// === Weighted selection ===

// SelectWeighted picks one of values using cumulative-weight sampling: a
// running sum of weights is built, a draw is taken uniformly in
// [0, totalWeight), and the first value whose cumulative sum exceeds the
// draw is returned. values and weights must have equal, non-zero length and
// a positive total; use ValidateWeights first.
func SelectWeighted[T any](rng *rand.Rand, values []T, weights []float64) T {
	total := 0.0
	for _, w := range weights {
		total += w
	}
	draw := rng.Float64() * total
	cumulative := 0.0
	for i, w := range weights {
		cumulative += w
		if draw < cumulative {
			return values[i]
		}
	}
	return values[len(values)-1]
}

// ValidateWeights checks that weights can drive SelectWeighted over n values.
// A nil weights slice is valid and means uniform weights.
func ValidateWeights(weights []float64, n int) error {
	if n == 0 {
		return fmt.Errorf("%w: no values to select from", ErrInvalidConfiguration)
	}
	if weights == nil {
		return nil
	}
	if len(weights) != n {
		return fmt.Errorf("%w: weights length %d does not match %d produced types", ErrInvalidConfiguration, len(weights), n)
	}
	total := 0.0
	for i, w := range weights {
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
			return fmt.Errorf("%w: weight[%d] must be a finite non-negative number, got %f", ErrInvalidConfiguration, i, w)
		}
		total += w
	}
	if total <= 0 {
		return fmt.Errorf("%w: weights must sum to a positive value", ErrInvalidConfiguration)
	}
	return nil
}
