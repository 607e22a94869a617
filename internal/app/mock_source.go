// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/relabs-tech/magcal/internal/config"
	"github.com/relabs-tech/magcal/internal/imu"
	"github.com/relabs-tech/magcal/internal/ingest"
	"github.com/relabs-tech/magcal/internal/magcal"
)

// mockInclination is the dip angle of the simulated field.
const mockInclination = 60 * math.Pi / 180

// Fixed distortion applied by the mock: raw = softIron·body + hardIron.
var (
	mockSoftIron = magcal.Mat3{
		{1.10, 0.05, 0.00},
		{0.05, 0.90, 0.02},
		{0.00, 0.02, 1.05},
	}
	mockHardIron = magcal.Vec3{15, -8, 4}
)

// mockSource simulates a distorted magnetometer tumbling through all orientations.
type mockSource struct {
	start    time.Time
	field    float64
	interval time.Duration
}

func newMockSource(field float64) *mockSource {
	return &mockSource{start: time.Now(), field: field, interval: 20 * time.Millisecond}
}

// at returns the raw reading after elapsed seconds.
func (m *mockSource) at(elapsed float64) magcal.Vec3 {
	roll := math.Pi * math.Sin(elapsed*0.31)
	pitch := 0.45 * math.Pi * math.Cos(elapsed*0.17)
	yaw := math.Mod(elapsed*0.7, 2*math.Pi)

	world := magcal.Vec3{
		m.field * math.Cos(mockInclination),
		0,
		m.field * math.Sin(mockInclination),
	}
	body := rotationZYX(yaw, pitch, roll).transpose().MulVec(world)
	raw := mockSoftIron.MulVec(body)
	for i := range raw {
		raw[i] += mockHardIron[i]
	}
	return raw
}

// Run emits one reading per interval until ctx is cancelled.
func (m *mockSource) Run(ctx context.Context, h ingest.Handler) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	last := m.start
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			h(ingest.Event{Kind: ingest.KindSample, Record: imu.Record{
				Source: "mock",
				Mag:    m.at(now.Sub(m.start).Seconds()),
				Dt:     now.Sub(last).Seconds(),
				Time:   now.UTC(),
			}})
			last = now
		}
	}
}

type rot3 magcal.Mat3

func rotationZYX(yaw, pitch, roll float64) rot3 {
	cy, sy := math.Cos(yaw), math.Sin(yaw)
	cp, sp := math.Cos(pitch), math.Sin(pitch)
	cr, sr := math.Cos(roll), math.Sin(roll)
	return rot3{
		{cy * cp, cy*sp*sr - sy*cr, cy*sp*cr + sy*sr},
		{sy * cp, sy*sp*sr + cy*cr, sy*sp*cr - cy*sr},
		{-sp, cp * sr, cp * cr},
	}
}

func (r rot3) transpose() magcal.Mat3 {
	var t magcal.Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			t[i][j] = r[j][i]
		}
	}
	return t
}

// RunMockProducer publishes simulated readings on TOPIC_MAG_RAW until interrupted.
// Handy for exercising the web calibrator without hardware.
func RunMockProducer() error {
	cfg := config.Get()

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDProducer)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)
	log.Printf("mock: publishing simulated readings on %s (F=%.2f)", cfg.TopicMagRaw, cfg.TargetField)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pub := mqttPublisher{client: client}
	err = newMockSource(cfg.TargetField).Run(ctx, func(ev ingest.Event) {
		payload, err := json.Marshal(ev.Record)
		if err != nil {
			log.Printf("mock: json marshal error: %v", err)
			return
		}
		if err := pub.Publish(cfg.TopicMagRaw, false, payload); err != nil {
			log.Printf("mock: publish error: %v", err)
		}
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
