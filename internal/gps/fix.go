// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gps

import nmea "github.com/adrianmo/go-nmea"

// Fix represents a single combined GPS fix suitable for JSON and MQTT.
// It is attached to calibration reports so the local field magnitude can be
// checked against a geomagnetic model afterwards.
type Fix struct {
	Time       string  `json:"time"`        // e.g. "12:34:56"
	Date       string  `json:"date"`        // e.g. "06/12/25"
	Latitude   float64 `json:"lat"`         // decimal degrees
	Longitude  float64 `json:"lon"`         // decimal degrees
	AltitudeM  float64 `json:"alt_m"`       // from GGA
	Satellites int64   `json:"satellites"`  // from GGA
	SpeedKnots float64 `json:"speed_knots"` // speed over ground
	CourseDeg  float64 `json:"course_deg"`  // course over ground
	Validity   string  `json:"validity"`    // "A" (valid) / "V" (void)
}

// Valid reports whether the last RMC sentence marked the fix as valid.
func (f Fix) Valid() bool {
	return f.Validity == nmea.ValidRMC
}

// ApplyRMC fills position, motion and validity from an RMC sentence.
func (f *Fix) ApplyRMC(m nmea.RMC) {
	f.Time = m.Time.String()
	f.Date = m.Date.String()
	f.Latitude = m.Latitude
	f.Longitude = m.Longitude
	f.SpeedKnots = m.Speed
	f.CourseDeg = m.Course
	f.Validity = m.Validity
}

// ApplyGGA fills position, altitude and satellite count from a GGA sentence.
func (f *Fix) ApplyGGA(m nmea.GGA) {
	f.Time = m.Time.String()
	f.Latitude = m.Latitude
	f.Longitude = m.Longitude
	f.AltitudeM = m.Altitude
	f.Satellites = m.NumSatellites
}
