// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/magcal/internal/config"
	"github.com/relabs-tech/magcal/internal/ingest"
	"github.com/relabs-tech/magcal/internal/magcal"
)

// CollectOptions bounds one collection run.
type CollectOptions struct {
	MinSamples int           // operator stop is ignored below this
	Timeout    time.Duration // 0 = no limit
}

// RunCalibration streams src into cal and finishes the calibration when one of
// these happens: a request arrives on stop while MinSamples are held, the calibrator
// reports Full, the timeout expires, or the source ends.
// The source is stopped before fitting so the frozen set is final.
func RunCalibration(ctx context.Context, src ingest.Source, cal *Calibrator, opts CollectOptions, stop <-chan struct{}) (magcal.Calibration, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	srcErr := make(chan error, 1)
	go func() {
		srcErr <- src.Run(runCtx, cal.Handle)
	}()

	var timeout <-chan time.Time
	if opts.Timeout > 0 {
		t := time.NewTimer(opts.Timeout)
		defer t.Stop()
		timeout = t.C
	}

	srcDone := false
	full := cal.Full()
wait:
	for {
		select {
		case _, ok := <-stop:
			n := cal.Status().Samples
			if n >= opts.MinSamples {
				break wait
			}
			log.Printf("calibration: only %d of %d samples, keep rotating", n, opts.MinSamples)
			if !ok {
				stop = nil
			}
		case <-full:
			log.Println("calibration: sample limit reached")
			break wait
		case <-timeout:
			log.Println("calibration: collection timeout")
			break wait
		case err := <-srcErr:
			srcDone = true
			if err != nil && !errors.Is(err, context.Canceled) {
				return magcal.Calibration{}, fmt.Errorf("sample source: %w", err)
			}
			break wait
		case <-ctx.Done():
			return magcal.Calibration{}, ctx.Err()
		}
	}

	cancel()
	if !srcDone {
		if err := <-srcErr; err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("calibration: sample source: %v", err)
		}
	}
	return cal.Finish()
}

// NewSource builds the sample source selected by SAMPLE_SOURCE.
// client is only used for the mqtt source and may be nil otherwise.
func NewSource(cfg *config.Config, client mqtt.Client) (ingest.Source, error) {
	switch cfg.SampleSource {
	case config.SourceSerial:
		return ingest.SerialSource{PortName: cfg.SerialPort, BaudRate: cfg.SerialBaudRate}, nil
	case config.SourceMQTT:
		if client == nil {
			return nil, errors.New("mqtt sample source needs a broker connection")
		}
		return ingest.MQTTSource{Client: client, Topic: cfg.TopicMagRaw}, nil
	case config.SourceHMC5983:
		src, err := newHMCSource(cfg)
		if err != nil {
			return nil, err
		}
		return src, nil
	case config.SourceMock:
		return newMockSource(cfg.TargetField), nil
	}
	return nil, fmt.Errorf("unknown sample source %q", cfg.SampleSource)
}
