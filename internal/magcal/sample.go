// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package magcal

import (
	"fmt"
	"sync"
)

// MinSamples is the smallest sample count the ellipsoid fit accepts:
// 10 unknowns with one degree of freedom fixed by the quadratic-form scale.
const MinSamples = 9

// SampleSet accumulates raw samples during a collection phase.
// It is safe for concurrent use. Once frozen it rejects further samples.
type SampleSet struct {
	mu      sync.Mutex
	samples []Vec3
	frozen  bool
}

// NewSampleSet returns an empty set in the collecting state.
func NewSampleSet() *SampleSet {
	return &SampleSet{samples: make([]Vec3, 0, 512)}
}

// Add appends a raw sample.
func (s *SampleSet) Add(v Vec3) error {
	if !v.finite() {
		return fmt.Errorf("%w: %v", ErrInvalidSample, v)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frozen {
		return ErrFrozen
	}
	s.samples = append(s.samples, v)
	return nil
}

// Len returns the number of samples collected so far.
func (s *SampleSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.samples)
}

// Frozen reports whether Freeze has been called.
func (s *SampleSet) Frozen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frozen
}

// Freeze ends the collection phase and returns a read-only view of the samples.
// Calling Freeze again returns the same view.
func (s *SampleSet) Freeze() FrozenSamples {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frozen = true
	return FrozenSamples{samples: s.samples[:len(s.samples):len(s.samples)]}
}

// Snapshot copies the samples collected so far without freezing the set.
func (s *SampleSet) Snapshot() []Vec3 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Vec3, len(s.samples))
	copy(out, s.samples)
	return out
}

// FrozenSamples is the immutable sample view handed to the fitter.
type FrozenSamples struct {
	samples []Vec3
}

// Freeze wraps an existing slice as frozen samples. The slice is copied.
func Freeze(samples []Vec3) FrozenSamples {
	cp := make([]Vec3, len(samples))
	copy(cp, samples)
	return FrozenSamples{samples: cp}
}

// Len returns the number of samples.
func (f FrozenSamples) Len() int { return len(f.samples) }

// At returns sample i.
func (f FrozenSamples) At(i int) Vec3 { return f.samples[i] }

// Each calls fn for every sample in insertion order.
func (f FrozenSamples) Each(fn func(Vec3)) {
	for _, v := range f.samples {
		fn(v)
	}
}

// Distinct returns the number of distinct samples.
func (f FrozenSamples) Distinct() int {
	seen := make(map[Vec3]struct{}, len(f.samples))
	for _, v := range f.samples {
		seen[v] = struct{}{}
	}
	return len(seen)
}
