package sensors

import (
	"errors"
	"math"
	"testing"

	"periph.io/x/conn/v3/i2c/i2ctest"
)

func hmcInitOps(cra, crb, mode byte) []i2ctest.IO {
	return []i2ctest.IO{
		{Addr: HMC5983DefaultAddr, W: []byte{hmcRegCRA, cra}},
		{Addr: HMC5983DefaultAddr, W: []byte{hmcRegCRB, crb}},
		{Addr: HMC5983DefaultAddr, W: []byte{hmcRegMode, mode}},
	}
}

func TestHMC5983Sense(t *testing.T) {
	ops := hmcInitOps(0x70, 0x20, 0x00) // 8 samples, 15 Hz, gain 1, continuous
	ops = append(ops,
		i2ctest.IO{Addr: HMC5983DefaultAddr, W: []byte{hmcRegIDA}, R: []byte("H43")},
		// X=1090, Z=-980, Y=545
		i2ctest.IO{Addr: HMC5983DefaultAddr, W: []byte{hmcRegData}, R: []byte{0x04, 0x42, 0xFC, 0x2C, 0x02, 0x21}},
	)
	bus := &i2ctest.Playback{Ops: ops}
	defer bus.Close()

	d, err := NewHMC5983(bus, HMC5983Opts{ODRHz: 15, AvgSamples: 8, GainCode: 1, Mode: "continuous"})
	if err != nil {
		t.Fatalf("NewHMC5983: %v", err)
	}
	id, err := d.ID()
	if err != nil || id != "H43" {
		t.Fatalf("ID = %q, %v", id, err)
	}
	got, err := d.Sense()
	if err != nil {
		t.Fatalf("Sense: %v", err)
	}
	want := [3]float64{100, 50, -100}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Fatalf("Sense = %v, want %v", got, want)
		}
	}
}

func TestHMC5983Overflow(t *testing.T) {
	ops := hmcInitOps(0x10, 0x20, 0x00)
	ops = append(ops, i2ctest.IO{Addr: HMC5983DefaultAddr, W: []byte{hmcRegData}, R: []byte{0xF0, 0x00, 0, 1, 0, 1}})
	bus := &i2ctest.Playback{Ops: ops}
	defer bus.Close()

	d, err := NewHMC5983(bus, HMC5983Opts{GainCode: 1})
	if err != nil {
		t.Fatalf("NewHMC5983: %v", err)
	}
	if _, err := d.Sense(); !errors.Is(err, ErrHMC5983Overflow) {
		t.Fatalf("err = %v, want overflow", err)
	}
}

func TestHMC5983CRA(t *testing.T) {
	tests := []struct {
		avg, odr int
		want     byte
	}{
		{1, 15, 0x10},
		{8, 15, 0x70},
		{2, 75, 0x38},
		{4, 3, 0x48},
		{1, 42, 0x10},
	}
	for _, tt := range tests {
		if got := hmcCRA(tt.avg, tt.odr); got != tt.want {
			t.Errorf("hmcCRA(%d, %d) = %#02x, want %#02x", tt.avg, tt.odr, got, tt.want)
		}
	}
}

func TestHMC5983BadGain(t *testing.T) {
	bus := &i2ctest.Playback{}
	if _, err := NewHMC5983(bus, HMC5983Opts{GainCode: 8}); err == nil {
		t.Fatal("expected error for gain code 8")
	}
}
