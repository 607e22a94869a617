// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// ./cmd/magcal/main.go
//
// Guided magnetometer calibration.
// Collects raw readings while the sensor is rotated, fits an ellipsoid to
// them and derives the correction calibrated = A^-1 · (raw - b), which maps
// readings onto a sphere of radius TARGET_FIELD.
//
// Samples come from SAMPLE_SOURCE: a serial line stream (JSON records, NMEA
// or legacy bracketed lists), the MQTT raw topic, an HMC5983 on I2C, or a
// simulated sensor.
//
// Output:
//
//	Writes magcal_<id>.json under REPORT_DIR and, when a broker is reachable,
//	publishes the calibration retained on TOPIC_MAG_CALIBRATION.
//
// Run:
//
//	go run ./cmd/magcal -config magcal_config.txt
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/relabs-tech/magcal/internal/app"
	"github.com/relabs-tech/magcal/internal/config"
)

func main() {
	configPath := flag.String("config", "magcal_config.txt", "Path to configuration file")
	flag.Parse()

	fmt.Println("=== Magnetometer Calibration (ellipsoid fit) ===")

	if err := config.InitGlobal(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: Failed to load config from %s: %v\n", *configPath, err)
		os.Exit(1)
	}

	if err := app.RunCalibrationConsole(os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
}
