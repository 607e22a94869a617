// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package magcal

import "errors"

// Errors returned by the calibration pipeline. Callers should test with errors.Is;
// the returned errors wrap these with context about the failing step.
var (
	// ErrInsufficientSamples: fewer than MinSamples samples, or too few distinct ones.
	ErrInsufficientSamples = errors.New("insufficient samples")

	// ErrSingularMatrix: C, S22 or M could not be inverted.
	ErrSingularMatrix = errors.New("singular matrix")

	// ErrNotPositiveDefinite: k <= 0 or M has a negative eigenvalue.
	ErrNotPositiveDefinite = errors.New("not positive definite")

	ErrInvalidSample      = errors.New("invalid sample")
	ErrInvalidTargetField = errors.New("invalid target field magnitude")
	ErrFrozen             = errors.New("sample set is frozen")
	ErrNotCollecting      = errors.New("session is not collecting")
	ErrInvalidCalibration = errors.New("invalid calibration")
)
