// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package magcal

import (
	"sync"
	"sync/atomic"
)

// Store publishes the current calibration to any number of readers.
//
// Published values are never modified; Publish swaps in a new value
// atomically. Readers never block. Writers are serialised.
type Store struct {
	mu  sync.Mutex
	cur atomic.Pointer[Calibration]
}

// NewStore returns a store holding the identity calibration.
func NewStore() *Store {
	return &Store{}
}

// Load returns the current calibration, or the identity calibration if none
// has been published yet.
func (s *Store) Load() Calibration {
	if c := s.cur.Load(); c != nil {
		return *c
	}
	return Calibration{Transform: Identity()}
}

// Transform returns the current transform.
func (s *Store) Transform() Transform {
	return s.Load().Transform
}

// Calibrated reports whether a calibration has been published.
func (s *Store) Calibrated() bool {
	return s.cur.Load() != nil
}

// Apply corrects raw with the current transform.
func (s *Store) Apply(raw Vec3) Vec3 {
	return s.Transform().Apply(raw)
}

// Publish replaces the current calibration with c.
func (s *Store) Publish(c Calibration) {
	// Deep-copy the pointer fields so the caller cannot mutate what readers see.
	if c.Coefficients != nil {
		coef := *c.Coefficients
		c.Coefficients = &coef
	}
	if c.Quality != nil {
		q := *c.Quality
		c.Quality = &q
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cur.Store(&c)
}
