// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/relabs-tech/magcal/internal/config"
	"github.com/relabs-tech/magcal/internal/magcal"
)

// RunCalibrationConsole is the guided terminal flow behind cmd/magcal.
// It prompts on out, reads ENTER presses from in and writes a JSON report
// under REPORT_DIR when the fit succeeds.
func RunCalibrationConsole(in io.Reader, out io.Writer) error {
	cfg := config.Get()
	rd := bufio.NewReader(in)

	var pub Publisher
	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDCalibrator)
	if err != nil {
		if cfg.SampleSource == config.SourceMQTT {
			return err
		}
		log.Printf("calibration: continuing without MQTT: %v", err)
	} else {
		defer client.Disconnect(250)
		pub = mqttPublisher{client: client}
	}

	src, err := NewSource(cfg, client)
	if err != nil {
		return err
	}

	cal := NewCalibrator(magcal.NewStore(), cfg.TargetField, pub, Topics{
		Calibrated:  cfg.TopicMagCalibrated,
		Calibration: cfg.TopicMagCalibration,
	}, cfg.MaxSamples)

	fmt.Fprintf(out, "Sample source: %s, target field F=%.3f\n", cfg.SampleSource, cfg.TargetField)
	fmt.Fprintln(out, "Rotate the sensor slowly through all orientations (3D).")
	fmt.Fprintln(out, "Move away from large metal objects and power cables if possible.")
	fmt.Fprintf(out, "At least %d samples are needed before ENTER stops collection.\n", cfg.MinSamples)
	if cfg.MaxSamples > 0 {
		fmt.Fprintf(out, "Collection stops by itself at %d samples.\n", cfg.MaxSamples)
	}
	if cfg.CollectTimeoutSec > 0 {
		fmt.Fprintf(out, "Collection stops by itself after %ds.\n", cfg.CollectTimeoutSec)
	}
	fmt.Fprintln(out)
	waitEnter(rd, out, "Press ENTER to start collecting...")

	stop := make(chan struct{}, 1)
	go func() {
		for {
			if _, err := rd.ReadString('\n'); err != nil {
				return
			}
			select {
			case stop <- struct{}{}:
			default:
			}
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	progressDone := make(chan struct{})
	go func() {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-progressDone:
				return
			case <-ticker.C:
				fmt.Fprintf(out, "  collected %d samples (ENTER to finish)\n", cal.Status().Samples)
			}
		}
	}()

	res, err := RunCalibration(ctx, src, cal, CollectOptions{
		MinSamples: cfg.MinSamples,
		Timeout:    time.Duration(cfg.CollectTimeoutSec) * time.Second,
	}, stop)
	close(progressDone)
	if err != nil {
		return fmt.Errorf("calibration failed: %w", err)
	}

	printResult(out, res)

	path, err := WriteReport(cfg.ReportDir, cal.Report(res))
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "\nReport written to %s\n", path)
	return nil
}

func printResult(out io.Writer, res magcal.Calibration) {
	fmt.Fprintf(out, "\nCalibration %s from %d samples\n", res.ID, res.Samples)
	b := res.Transform.Offset
	fmt.Fprintf(out, "Hard-iron offset b: X=%.4f Y=%.4f Z=%.4f\n", b[0], b[1], b[2])
	fmt.Fprintln(out, "Soft-iron correction A^-1:")
	for _, row := range res.Transform.Matrix {
		fmt.Fprintf(out, "  [% .6f % .6f % .6f]\n", row[0], row[1], row[2])
	}
	if q := res.Quality; q != nil {
		fmt.Fprintf(out, "|B| after correction: mean=%.3f sd=%.4f worst=%.2f%%\n", q.NormMean, q.NormStdDev, q.MaxRelError*100)
		fmt.Fprintf(out, "Coverage=%.0f%% confidence=%.2f\n", q.Coverage*100, q.Confidence)
	}
}

func waitEnter(in *bufio.Reader, out io.Writer, prompt string) {
	fmt.Fprint(out, prompt)
	_, _ = in.ReadString('\n')
}
