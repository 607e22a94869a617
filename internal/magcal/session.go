// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package magcal

import (
	"errors"
	"fmt"
	"sync"
)

// State is the phase of a calibration session.
type State int

const (
	StateCollecting State = iota
	StateCalibrated
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateCollecting:
		return "collecting"
	case StateCalibrated:
		return "calibrated"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Session drives one collection phase followed by one fit.
//
// Samples are added while collecting; Finish freezes them, runs the pipeline
// and, on success, publishes the result to the store. Restart begins a new
// collection phase with a fresh sample set.
type Session struct {
	mu      sync.Mutex
	store   *Store
	field   float64
	set     *SampleSet
	state   State
	lastErr error
}

// NewSession starts collecting. Results are published to store and scaled
// to the target field magnitude.
func NewSession(store *Store, field float64) *Session {
	return &Session{
		store: store,
		field: field,
		set:   NewSampleSet(),
		state: StateCollecting,
	}
}

// Add records one raw sample.
func (s *Session) Add(v Vec3) error {
	s.mu.Lock()
	set, state := s.set, s.state
	s.mu.Unlock()
	if state != StateCollecting {
		return ErrNotCollecting
	}
	if err := set.Add(v); err != nil {
		if errors.Is(err, ErrFrozen) {
			return ErrNotCollecting
		}
		return err
	}
	return nil
}

// Finish ends collection and calibrates from the collected samples.
func (s *Session) Finish() (Calibration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateCollecting {
		return Calibration{}, ErrNotCollecting
	}

	frozen := s.set.Freeze()
	cal, err := Calibrate(frozen, s.field)
	if err != nil {
		s.state = StateFailed
		s.lastErr = err
		return Calibration{}, err
	}
	s.store.Publish(cal)
	s.state = StateCalibrated
	s.lastErr = nil
	return cal, nil
}

// Restart discards the current samples and starts a new collection phase.
// The published calibration is left in place.
func (s *Session) Restart() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.set = NewSampleSet()
	s.state = StateCollecting
	s.lastErr = nil
}

// State returns the current phase.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the error from the last failed Finish, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Count returns the number of samples in the current set.
func (s *Session) Count() int {
	s.mu.Lock()
	set := s.set
	s.mu.Unlock()
	return set.Len()
}

// Samples returns a copy of the current set, kept after a fit for diagnostics.
func (s *Session) Samples() []Vec3 {
	s.mu.Lock()
	set := s.set
	s.mu.Unlock()
	return set.Snapshot()
}

// TargetField returns the field magnitude results are scaled to.
func (s *Session) TargetField() float64 {
	return s.field
}

// Store returns the store results are published to.
func (s *Session) Store() *Store {
	return s.store
}
