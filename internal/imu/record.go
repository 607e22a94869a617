// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import "time"

// Record is a single magnetometer reading as it travels over serial and MQTT.
// Mag is the raw reading. Calibrated is set once a correction has been applied.
// Accel and Gyro are carried through untouched when the producer sends them.
type Record struct {
	Source     string      `json:"source,omitempty"` // e.g. "hmc5983", "serial"
	Mag        [3]float64  `json:"mag"`
	Calibrated *[3]float64 `json:"calibrated,omitempty"`
	Accel      *[3]float64 `json:"accel,omitempty"`
	Gyro       *[3]float64 `json:"gyro,omitempty"`
	Dt         float64     `json:"dt,omitempty"` // seconds since previous record
	Time       time.Time   `json:"time"`
}

// WithCalibrated returns a copy of r carrying the corrected reading c.
func (r Record) WithCalibrated(c [3]float64) Record {
	r.Calibrated = &c
	return r
}
