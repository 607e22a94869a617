// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package magcal

import (
	"fmt"
	"time"

	"github.com/rs/xid"
)

// Calibration is one complete, immutable calibration result.
type Calibration struct {
	ID           string        `json:"id,omitempty"`
	Transform    Transform     `json:"transform"`
	Coefficients *Coefficients `json:"coefficients,omitempty"`
	TargetField  float64       `json:"target_field,omitempty"`
	Samples      int           `json:"samples"`
	Quality      *Quality      `json:"quality,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
}

// Calibrate runs the full pipeline: fit, derive and evaluate.
// Nothing is returned on failure.
func Calibrate(samples FrozenSamples, field float64) (Calibration, error) {
	coef, err := FitEllipsoid(samples)
	if err != nil {
		return Calibration{}, err
	}
	tr, err := Derive(coef, field)
	if err != nil {
		return Calibration{}, err
	}
	q := Evaluate(samples, tr, field)
	return Calibration{
		ID:           xid.New().String(),
		Transform:    tr,
		Coefficients: &coef,
		TargetField:  field,
		Samples:      samples.Len(),
		Quality:      &q,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// Restore rebuilds a calibration received from outside, such as a retained
// MQTT message. The transform is derived again from the stored coefficients
// and target field, so only a calibration that Derive accepts is returned.
func Restore(c Calibration) (Calibration, error) {
	if c.Coefficients == nil {
		return Calibration{}, fmt.Errorf("restore %q: no coefficients: %w", c.ID, ErrInvalidCalibration)
	}
	tr, err := Derive(*c.Coefficients, c.TargetField)
	if err != nil {
		return Calibration{}, fmt.Errorf("restore %q: %w", c.ID, err)
	}
	c.Transform = tr
	return c, nil
}
