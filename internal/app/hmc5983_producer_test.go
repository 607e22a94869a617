package app

import (
	"context"
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/magcal/internal/ingest"
	"github.com/relabs-tech/magcal/internal/sensors"
)

type scriptedSensor struct {
	readings []error
	calls    int
}

func (s *scriptedSensor) Sense() ([3]float64, error) {
	i := s.calls
	s.calls++
	if i < len(s.readings) && s.readings[i] != nil {
		return [3]float64{}, s.readings[i]
	}
	return [3]float64{float64(i), 1, 2}, nil
}

func TestHMCSourceSkipsBadReadings(t *testing.T) {
	dev := &scriptedSensor{readings: []error{sensors.ErrHMC5983Overflow, errors.New("i2c nack"), nil}}
	closed := false
	src := &hmcSource{dev: dev, interval: time.Millisecond, close: func() error { closed = true; return nil }}

	ctx, cancel := context.WithCancel(context.Background())
	var got []ingest.Event
	err := src.Run(ctx, func(ev ingest.Event) {
		got = append(got, ev)
		if len(got) == 2 {
			cancel()
		}
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if !closed {
		t.Fatal("bus not closed")
	}
	if len(got) < 2 {
		t.Fatalf("events = %d, want at least 2", len(got))
	}
	if got[0].Record.Mag[0] != 2 || got[0].Record.Source != "hmc5983" {
		t.Fatalf("first event = %+v", got[0].Record)
	}
	if got[1].Record.Dt <= 0 {
		t.Fatalf("dt = %v", got[1].Record.Dt)
	}
}

func TestHMCProducerClosesBusWhenBrokerUnreachable(t *testing.T) {
	closed := false
	src := &hmcSource{dev: &scriptedSensor{}, interval: time.Millisecond, close: func() error { closed = true; return nil }}
	dialErr := errors.New("connection refused")

	err := runHMCProducer(context.Background(), src, func() (mqtt.Client, error) {
		return nil, dialErr
	}, "magcal/mag/raw")
	if !errors.Is(err, dialErr) {
		t.Fatalf("err = %v, want %v", err, dialErr)
	}
	if !closed {
		t.Fatal("bus left open after connect failure")
	}
}
