// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/magcal/internal/config"
	"github.com/relabs-tech/magcal/internal/gps"
	"github.com/relabs-tech/magcal/internal/imu"
	"github.com/relabs-tech/magcal/internal/magcal"
)

// RunConsoleMQTT prints calibrated readings, calibrations and GPS fixes until interrupted.
func RunConsoleMQTT() error {
	cfg := config.Get()

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDConsole)
	if err != nil {
		return err
	}
	log.Printf("console: connected to MQTT broker at %s", cfg.MQTTBroker)

	subs := []struct {
		topic string
		print func(io.Writer, []byte) error
	}{
		{cfg.TopicMagCalibrated, printCalibratedRecord},
		{cfg.TopicMagCalibration, printCalibration},
		{cfg.TopicGPS, printFix},
	}
	for _, s := range subs {
		s := s
		token := client.Subscribe(s.topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
			if err := s.print(os.Stdout, msg.Payload()); err != nil {
				log.Printf("console: %s: %v", msg.Topic(), err)
			}
		})
		token.Wait()
		if token.Error() != nil {
			return token.Error()
		}
		log.Printf("console: subscribed to %s", s.topic)
	}

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("console: shutting down")
	client.Disconnect(250)
	return nil
}

func printCalibratedRecord(w io.Writer, payload []byte) error {
	var r imu.Record
	if err := json.Unmarshal(payload, &r); err != nil {
		return fmt.Errorf("record unmarshal error: %w", err)
	}
	raw := magcal.Vec3(r.Mag)
	if r.Calibrated == nil {
		_, err := fmt.Fprintf(w, "[RAW ]  mx=%9.3f my=%9.3f mz=%9.3f |B|=%9.3f\n",
			raw[0], raw[1], raw[2], raw.Norm())
		return err
	}
	c := magcal.Vec3(*r.Calibrated)
	_, err := fmt.Fprintf(w, "[CAL ]  mx=%9.3f my=%9.3f mz=%9.3f |B|=%9.3f  (raw |B|=%9.3f)\n",
		c[0], c[1], c[2], c.Norm(), raw.Norm())
	return err
}

func printCalibration(w io.Writer, payload []byte) error {
	if len(payload) == 0 {
		return nil // retained message cleared
	}
	var c magcal.Calibration
	if err := json.Unmarshal(payload, &c); err != nil {
		return fmt.Errorf("calibration unmarshal error: %w", err)
	}
	m, b := c.Transform.Matrix, c.Transform.Offset
	fmt.Fprintf(w, "[CALIBRATION] id=%s samples=%d F=%.3f at %s\n",
		c.ID, c.Samples, c.TargetField, c.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "  offset b = [%.4f %.4f %.4f]\n", b[0], b[1], b[2])
	for i, row := range m {
		label := "        "
		if i == 0 {
			label = "  A^-1 ="
		}
		fmt.Fprintf(w, "%s [%.6f %.6f %.6f]\n", label, row[0], row[1], row[2])
	}
	if q := c.Quality; q != nil {
		_, err := fmt.Fprintf(w, "  |B| mean=%.3f sd=%.3f max err=%.2f%% coverage=%.0f%% confidence=%.2f\n",
			q.NormMean, q.NormStdDev, q.MaxRelError*100, q.Coverage*100, q.Confidence)
		return err
	}
	return nil
}

func printFix(w io.Writer, payload []byte) error {
	var f gps.Fix
	if err := json.Unmarshal(payload, &f); err != nil {
		return fmt.Errorf("gps unmarshal error: %w", err)
	}
	_, err := fmt.Fprintf(w,
		"[GPS ]  time=%s date=%s lat=%.6f lon=%.6f alt=%.1fm sats=%d validity=%s\n",
		f.Time, f.Date, f.Latitude, f.Longitude, f.AltitudeM, f.Satellites, f.Validity,
	)
	return err
}
