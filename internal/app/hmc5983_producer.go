// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/magcal/internal/config"
	"github.com/relabs-tech/magcal/internal/imu"
	"github.com/relabs-tech/magcal/internal/ingest"
	"github.com/relabs-tech/magcal/internal/sensors"
)

// magSensor is the part of the HMC5983 driver the poller needs.
type magSensor interface {
	Sense() ([3]float64, error)
}

// hmcSource polls a magnetometer at a fixed interval.
type hmcSource struct {
	dev      magSensor
	interval time.Duration
	close    func() error
}

// newHMCSource opens the I2C bus and configures the HMC5983 from cfg.
func newHMCSource(cfg *config.Config) (*hmcSource, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("hmc: periph host init: %w", err)
	}

	bus, err := i2creg.Open(cfg.HMCI2CBus)
	if err != nil {
		return nil, fmt.Errorf("hmc: i2c open failed on bus %s: %w", cfg.HMCI2CBus, err)
	}

	dev, err := sensors.NewHMC5983(bus, sensors.HMC5983Opts{
		Addr:       cfg.HMCI2CAddr,
		ODRHz:      cfg.HMCODRHz,
		AvgSamples: cfg.HMCAvgSamples,
		GainCode:   cfg.HMCGainCode,
		Mode:       cfg.HMCMode,
	})
	if err != nil {
		bus.Close()
		return nil, err
	}
	id, err := dev.ID()
	if err != nil {
		log.Printf("hmc: WARNING: failed to read ID: %v", err)
	} else {
		log.Printf("hmc: ID=%q (addr=0x%X)", id, cfg.HMCI2CAddr)
	}

	ms := cfg.HMCSampleInterval
	if ms <= 0 {
		ms = 100
	}
	return &hmcSource{
		dev:      dev,
		interval: time.Duration(ms) * time.Millisecond,
		close:    bus.Close,
	}, nil
}

// Close releases the I2C bus.
func (s *hmcSource) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// Run polls until ctx is cancelled and closes the bus on return.
// Read errors and overflows are logged and the sample is skipped.
func (s *hmcSource) Run(ctx context.Context, h ingest.Handler) error {
	defer s.Close()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			mag, err := s.dev.Sense()
			if errors.Is(err, sensors.ErrHMC5983Overflow) {
				log.Printf("hmc: overflow, consider a lower gain code")
				continue
			}
			if err != nil {
				log.Printf("hmc: read error: %v", err)
				continue
			}
			h(ingest.Event{Kind: ingest.KindSample, Record: imu.Record{
				Source: "hmc5983",
				Mag:    mag,
				Dt:     now.Sub(last).Seconds(),
				Time:   now.UTC(),
			}})
			last = now
		}
	}
}

// RunHMC5983Producer publishes HMC5983 readings as imu.Record JSON on TOPIC_MAG_RAW
// until interrupted.
func RunHMC5983Producer() error {
	cfg := config.Get()

	src, err := newHMCSource(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runHMCProducer(ctx, src, func() (mqtt.Client, error) {
		return connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDProducer)
	}, cfg.TopicMagRaw)
}

// runHMCProducer owns src: the bus is closed on every return path.
func runHMCProducer(ctx context.Context, src *hmcSource, connect func() (mqtt.Client, error), topic string) error {
	client, err := connect()
	if err != nil {
		src.Close()
		return err
	}
	defer client.Disconnect(250)
	log.Printf("hmc: connected to MQTT broker, publishing on %s", topic)

	pub := mqttPublisher{client: client}
	err = src.Run(ctx, func(ev ingest.Event) {
		payload, err := json.Marshal(ev.Record)
		if err != nil {
			log.Printf("hmc: marshal error: %v", err)
			return
		}
		if err := pub.Publish(topic, false, payload); err != nil {
			log.Printf("hmc: publish error: %v", err)
		}
	})
	if errors.Is(err, context.Canceled) {
		log.Println("hmc: shutting down")
		return nil
	}
	return err
}
