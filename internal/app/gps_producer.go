// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/relabs-tech/magcal/internal/config"
	"github.com/relabs-tech/magcal/internal/ingest"
)

// fixPublisher returns a handler publishing every GPS fix as retained JSON on topic.
// Sample events are ignored.
func fixPublisher(pub Publisher, topic string) ingest.Handler {
	return func(ev ingest.Event) {
		if ev.Kind != ingest.KindFix {
			return
		}
		payload, err := json.Marshal(ev.Fix)
		if err != nil {
			log.Printf("GPS JSON marshal error: %v", err)
			return
		}
		if err := pub.Publish(topic, true, payload); err != nil {
			log.Printf("GPS publish error: %v", err)
		}
	}
}

// RunGPSProducer reads NMEA sentences from the GPS serial port and publishes
// the accumulated fix on TOPIC_GPS. Calibration reports pick it up from there.
func RunGPSProducer() error {
	cfg := config.Get()

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDGPS)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)
	log.Printf("GPS producer connected to MQTT broker at %s", cfg.MQTTBroker)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	src := ingest.SerialSource{PortName: cfg.GPSSerialPort, BaudRate: cfg.GPSBaudRate}
	err = src.Run(ctx, fixPublisher(mqttPublisher{client: client}, cfg.TopicGPS))
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
