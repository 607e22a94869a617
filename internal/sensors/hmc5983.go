// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"errors"
	"fmt"
	"time"

	"periph.io/x/conn/v3/i2c"
)

// HMC5983 register map (shared with the HMC5883L).
const (
	hmcRegCRA    = 0x00
	hmcRegCRB    = 0x01
	hmcRegMode   = 0x02
	hmcRegData   = 0x03 // X MSB, X LSB, Z MSB, Z LSB, Y MSB, Y LSB
	hmcRegStatus = 0x09
	hmcRegIDA    = 0x0A
)

// HMC5983DefaultAddr is the fixed 7-bit I2C address of the part.
const HMC5983DefaultAddr = 0x1E

// hmcOverflow is the value the part reports on an axis that saturated.
const hmcOverflow = -4096

// LSB per gauss for each CRB gain code, XY and Z axes differ.
var (
	hmcGainXY = [8]float64{1370, 1090, 820, 660, 440, 390, 330, 230}
	hmcGainZ  = [8]float64{1330, 980, 660, 600, 400, 355, 295, 205}
)

// ErrHMC5983Overflow is returned by Sense when any axis saturated.
var ErrHMC5983Overflow = errors.New("hmc5983: measurement overflow")

// HMC5983Opts configures the device.
//
// ODRHz is one of 3, 7, 15, 30 or 75; anything else selects 15.
// AvgSamples is 1, 2, 4 or 8. GainCode is 0..7 (1 = ±1.3 Ga).
// Mode is "continuous" or "single".
type HMC5983Opts struct {
	Addr       uint16
	ODRHz      int
	AvgSamples int
	GainCode   int
	Mode       string
}

// HMC5983 is a Honeywell HMC5983 3-axis magnetometer on an I2C bus.
type HMC5983 struct {
	dev    i2c.Dev
	gainXY float64
	gainZ  float64
	single bool
}

// NewHMC5983 writes CRA, CRB and MODE and returns the configured device.
func NewHMC5983(bus i2c.Bus, opts HMC5983Opts) (*HMC5983, error) {
	addr := opts.Addr
	if addr == 0 {
		addr = HMC5983DefaultAddr
	}
	gc := opts.GainCode
	if gc < 0 || gc > 7 {
		return nil, fmt.Errorf("hmc5983: gain code %d out of range 0-7", gc)
	}

	d := &HMC5983{
		dev:    i2c.Dev{Addr: addr, Bus: bus},
		gainXY: hmcGainXY[gc],
		gainZ:  hmcGainZ[gc],
		single: opts.Mode == "single",
	}

	if err := d.writeReg(hmcRegCRA, hmcCRA(opts.AvgSamples, opts.ODRHz)); err != nil {
		return nil, fmt.Errorf("hmc5983: write CRA: %w", err)
	}
	if err := d.writeReg(hmcRegCRB, byte(gc)<<5); err != nil {
		return nil, fmt.Errorf("hmc5983: write CRB: %w", err)
	}
	if err := d.writeReg(hmcRegMode, d.modeByte()); err != nil {
		return nil, fmt.Errorf("hmc5983: write MODE: %w", err)
	}
	return d, nil
}

// hmcCRA packs averaging (bits 6:5) and output rate (bits 4:2); bias bits stay normal.
func hmcCRA(avg, odr int) byte {
	var cra byte
	switch avg {
	case 8:
		cra |= 0b11 << 5
	case 4:
		cra |= 0b10 << 5
	case 2:
		cra |= 0b01 << 5
	}
	switch odr {
	case 75:
		cra |= 0b110 << 2
	case 30:
		cra |= 0b101 << 2
	case 7:
		cra |= 0b011 << 2
	case 3:
		cra |= 0b010 << 2
	default:
		cra |= 0b100 << 2
	}
	return cra
}

func (d *HMC5983) modeByte() byte {
	if d.single {
		return 0x01
	}
	return 0x00
}

// ID returns the three identification bytes, "H43" on a genuine part.
func (d *HMC5983) ID() (string, error) {
	buf := make([]byte, 3)
	if err := d.dev.Tx([]byte{hmcRegIDA}, buf); err != nil {
		return "", fmt.Errorf("hmc5983: read ID: %w", err)
	}
	return string(buf), nil
}

// Status reads the status register (bit 0 RDY, bit 1 LOCK).
func (d *HMC5983) Status() (byte, error) {
	b := make([]byte, 1)
	if err := d.dev.Tx([]byte{hmcRegStatus}, b); err != nil {
		return 0, fmt.Errorf("hmc5983: read status: %w", err)
	}
	return b[0], nil
}

// SenseRaw reads one measurement as counts in X, Y, Z order.
// In single mode a new conversion is triggered first.
func (d *HMC5983) SenseRaw() ([3]int16, error) {
	if d.single {
		if err := d.writeReg(hmcRegMode, 0x01); err != nil {
			return [3]int16{}, fmt.Errorf("hmc5983: trigger: %w", err)
		}
		time.Sleep(7 * time.Millisecond)
	}
	data := make([]byte, 6)
	if err := d.dev.Tx([]byte{hmcRegData}, data); err != nil {
		return [3]int16{}, fmt.Errorf("hmc5983: read data: %w", err)
	}
	x := int16(data[0])<<8 | int16(data[1])
	z := int16(data[2])<<8 | int16(data[3])
	y := int16(data[4])<<8 | int16(data[5])
	return [3]int16{x, y, z}, nil
}

// Sense reads one measurement in microtesla.
func (d *HMC5983) Sense() ([3]float64, error) {
	raw, err := d.SenseRaw()
	if err != nil {
		return [3]float64{}, err
	}
	for _, v := range raw {
		if v == hmcOverflow {
			return [3]float64{}, ErrHMC5983Overflow
		}
	}
	// 1 Ga = 100 µT
	return [3]float64{
		float64(raw[0]) / d.gainXY * 100,
		float64(raw[1]) / d.gainXY * 100,
		float64(raw[2]) / d.gainZ * 100,
	}, nil
}

func (d *HMC5983) writeReg(reg, val byte) error {
	return d.dev.Tx([]byte{reg, val}, nil)
}
