// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"sync"
)

// Sample sources understood by SAMPLE_SOURCE.
const (
	SourceSerial  = "serial"
	SourceMQTT    = "mqtt"
	SourceHMC5983 = "hmc5983"
	SourceMock    = "mock"
)

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker             string
	MQTTClientIDCalibrator string
	MQTTClientIDProducer   string
	MQTTClientIDConsole    string
	MQTTClientIDWeb        string
	MQTTClientIDDisplay    string
	MQTTClientIDGPS        string

	// Topics
	TopicMagRaw         string
	TopicMagCalibrated  string
	TopicMagCalibration string
	TopicGPS            string

	// Calibration
	TargetField       float64 // local field magnitude F, in the units the sensor reports
	MinSamples        int
	MaxSamples        int // 0 = unlimited
	CollectTimeoutSec int // 0 = wait for operator
	ReportDir         string

	// Sample source
	SampleSource   string // serial, mqtt, hmc5983 or mock
	SerialPort     string
	SerialBaudRate int

	// GPS
	GPSSerialPort string
	GPSBaudRate   int

	// HMC5983 magnetometer
	HMCI2CBus         string
	HMCI2CAddr        uint16
	HMCODRHz          int
	HMCAvgSamples     int
	HMCGainCode       int
	HMCMode           string // "continuous" or "single"
	HMCSampleInterval int    // milliseconds

	// Web Server
	WebServerPort int

	// Display
	DisplayUpdateInterval int // milliseconds
}

// Package-level singleton: InitGlobal sets it once, Get reads it under a read lock.
var (
	globalConfig *Config
	globalErr    error
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Default returns a configuration with every optional value filled in.
// TARGET_FIELD has no default and must come from the file.
func Default() *Config {
	return &Config{
		MQTTBroker:             "tcp://localhost:1883",
		MQTTClientIDCalibrator: "magcal-calibrator",
		MQTTClientIDProducer:   "magcal-hmc-producer",
		MQTTClientIDConsole:    "magcal-console",
		MQTTClientIDWeb:        "magcal-web",
		MQTTClientIDDisplay:    "magcal-display",
		MQTTClientIDGPS:        "magcal-gps-producer",

		TopicMagRaw:         "magcal/mag/raw",
		TopicMagCalibrated:  "magcal/mag/calibrated",
		TopicMagCalibration: "magcal/calibration",
		TopicGPS:            "magcal/gps",

		MinSamples: 300,
		ReportDir:  ".",

		SampleSource:   SourceSerial,
		SerialPort:     "/dev/ttyUSB0",
		SerialBaudRate: 460800,

		GPSSerialPort: "/dev/serial0",
		GPSBaudRate:   9600,

		HMCI2CBus:         "1",
		HMCI2CAddr:        0x1E,
		HMCODRHz:          15,
		HMCAvgSamples:     1,
		HMCGainCode:       1,
		HMCMode:           "continuous",
		HMCSampleInterval: 100,

		WebServerPort: 8080,

		DisplayUpdateInterval: 500,
	}
}

// Load reads the configuration file and returns a Config struct.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	cfg := Default()
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_CALIBRATOR":
		c.MQTTClientIDCalibrator = value
	case "MQTT_CLIENT_ID_PRODUCER":
		c.MQTTClientIDProducer = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value
	case "MQTT_CLIENT_ID_DISPLAY":
		c.MQTTClientIDDisplay = value
	case "MQTT_CLIENT_ID_GPS":
		c.MQTTClientIDGPS = value

	// Topics
	case "TOPIC_MAG_RAW":
		c.TopicMagRaw = value
	case "TOPIC_MAG_CALIBRATED":
		c.TopicMagCalibrated = value
	case "TOPIC_MAG_CALIBRATION":
		c.TopicMagCalibration = value
	case "TOPIC_GPS":
		c.TopicGPS = value

	// Calibration
	case "TARGET_FIELD":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid TARGET_FIELD %q: %w", value, err)
		}
		if !(f > 0) || math.IsInf(f, 1) {
			return fmt.Errorf("TARGET_FIELD must be a positive number, got %q", value)
		}
		c.TargetField = f
	case "MIN_SAMPLES":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid MIN_SAMPLES %q: %w", value, err)
		}
		if n < 9 {
			return fmt.Errorf("MIN_SAMPLES must be at least 9, got %d", n)
		}
		c.MinSamples = n
	case "MAX_SAMPLES":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid MAX_SAMPLES %q: %w", value, err)
		}
		if n < 0 {
			return fmt.Errorf("MAX_SAMPLES must be >= 0, got %d", n)
		}
		c.MaxSamples = n
	case "COLLECT_TIMEOUT_SEC":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid COLLECT_TIMEOUT_SEC %q: %w", value, err)
		}
		if n < 0 {
			return fmt.Errorf("COLLECT_TIMEOUT_SEC must be >= 0, got %d", n)
		}
		c.CollectTimeoutSec = n
	case "REPORT_DIR":
		c.ReportDir = value

	// Sample source
	case "SAMPLE_SOURCE":
		switch value {
		case SourceSerial, SourceMQTT, SourceHMC5983, SourceMock:
			c.SampleSource = value
		default:
			return fmt.Errorf("SAMPLE_SOURCE must be one of serial, mqtt, hmc5983, mock; got %q", value)
		}
	case "SERIAL_PORT":
		c.SerialPort = value
	case "SERIAL_BAUD_RATE":
		rate, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid SERIAL_BAUD_RATE %q: %w", value, err)
		}
		c.SerialBaudRate = rate

	// GPS
	case "GPS_SERIAL_PORT":
		c.GPSSerialPort = value
	case "GPS_BAUD_RATE":
		rate, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid GPS_BAUD_RATE %q: %w", value, err)
		}
		c.GPSBaudRate = rate

	// HMC5983
	case "HMC_I2C_BUS":
		c.HMCI2CBus = value
	case "HMC_I2C_ADDR":
		addr, err := strconv.ParseUint(value, 0, 16)
		if err != nil {
			return fmt.Errorf("invalid HMC_I2C_ADDR %q: %w", value, err)
		}
		c.HMCI2CAddr = uint16(addr)
	case "HMC_ODR_HZ":
		val, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid HMC_ODR_HZ %q: %w", value, err)
		}
		c.HMCODRHz = val
	case "HMC_AVG_SAMPLES":
		val, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid HMC_AVG_SAMPLES %q: %w", value, err)
		}
		switch val {
		case 1, 2, 4, 8:
		default:
			return fmt.Errorf("HMC_AVG_SAMPLES must be 1, 2, 4 or 8, got %d", val)
		}
		c.HMCAvgSamples = val
	case "HMC_GAIN_CODE":
		val, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid HMC_GAIN_CODE %q: %w", value, err)
		}
		if val < 0 || val > 7 {
			return fmt.Errorf("HMC_GAIN_CODE must be 0-7, got %d", val)
		}
		c.HMCGainCode = val
	case "HMC_MODE":
		if value != "continuous" && value != "single" {
			return fmt.Errorf("HMC_MODE must be \"continuous\" or \"single\", got %q", value)
		}
		c.HMCMode = value
	case "HMC_SAMPLE_INTERVAL":
		val, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid HMC_SAMPLE_INTERVAL %q: %w", value, err)
		}
		c.HMCSampleInterval = val

	// Web Server
	case "WEB_SERVER_PORT":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid WEB_SERVER_PORT %q: %w", value, err)
		}
		c.WebServerPort = port

	// Display
	case "DISPLAY_UPDATE_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid DISPLAY_UPDATE_INTERVAL %q: %w", value, err)
		}
		c.DisplayUpdateInterval = interval

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

// validate checks that all required fields are set.
func (c *Config) validate() error {
	if c.TargetField == 0 {
		return fmt.Errorf("TARGET_FIELD is required")
	}
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	if c.SampleSource == SourceSerial && c.SerialPort == "" {
		return fmt.Errorf("SERIAL_PORT is required when SAMPLE_SOURCE=%s", SourceSerial)
	}
	if c.SerialBaudRate <= 0 {
		return fmt.Errorf("SERIAL_BAUD_RATE must be positive")
	}
	if c.MaxSamples != 0 && c.MaxSamples < c.MinSamples {
		return fmt.Errorf("MAX_SAMPLES (%d) must not be below MIN_SAMPLES (%d)", c.MaxSamples, c.MinSamples)
	}
	return nil
}

// InitGlobal initializes the global configuration from file.
// Only the first call loads; later calls return the first call's error.
func InitGlobal(configPath string) error {
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, globalErr = Load(configPath)
	})
	configMu.RLock()
	defer configMu.RUnlock()
	return globalErr
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
