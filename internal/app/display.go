// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"image"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/magcal/internal/config"
	"github.com/relabs-tech/magcal/internal/imu"
	"github.com/relabs-tech/magcal/internal/magcal"
)

// DisplayData holds the latest data for display
type DisplayData struct {
	mu sync.RWMutex

	readings   int
	last       imu.Record
	haveRecord bool

	calibration     magcal.Calibration
	haveCalibration bool
}

// displaySnapshot is a lock-free copy taken once per frame.
type displaySnapshot struct {
	readings        int
	last            imu.Record
	haveRecord      bool
	calibration     magcal.Calibration
	haveCalibration bool
}

func (d *DisplayData) snapshot() displaySnapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return displaySnapshot{
		readings:        d.readings,
		last:            d.last,
		haveRecord:      d.haveRecord,
		calibration:     d.calibration,
		haveCalibration: d.haveCalibration,
	}
}

func (d *DisplayData) handleRecord(payload []byte) error {
	var r imu.Record
	if err := json.Unmarshal(payload, &r); err != nil {
		return err
	}
	d.mu.Lock()
	d.readings++
	d.last = r
	d.haveRecord = true
	d.mu.Unlock()
	return nil
}

func (d *DisplayData) handleCalibration(payload []byte) error {
	if len(payload) == 0 {
		return nil
	}
	var c magcal.Calibration
	if err := json.Unmarshal(payload, &c); err != nil {
		return err
	}
	d.mu.Lock()
	d.calibration = c
	d.haveCalibration = true
	d.mu.Unlock()
	return nil
}

// RunDisplay shows calibration status on an SSD1306 OLED.
func RunDisplay() error {
	cfg := config.Get()

	// Initialize periph
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize periph: %w", err)
	}

	// Open I2C bus
	bus, err := i2creg.Open("")
	if err != nil {
		return fmt.Errorf("failed to open I2C bus: %w", err)
	}
	defer bus.Close()

	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize display: %w", err)
	}
	log.Println("display: initialized")

	if err := dev.Draw(dev.Bounds(), renderSplash(), image.Point{}); err != nil {
		log.Printf("display: error showing splash: %v", err)
	}

	data := &DisplayData{}

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDDisplay)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)
	log.Printf("display: connected to MQTT broker at %s", cfg.MQTTBroker)

	handlers := map[string]func([]byte) error{
		cfg.TopicMagCalibrated:  data.handleRecord,
		cfg.TopicMagCalibration: data.handleCalibration,
	}
	for topic, handle := range handlers {
		topic, handle := topic, handle
		token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
			if err := handle(msg.Payload()); err != nil {
				log.Printf("display: %s unmarshal error: %v", topic, err)
			}
		})
		token.Wait()
		if token.Error() != nil {
			return token.Error()
		}
		log.Printf("display: subscribed to %s", topic)
	}

	// Display update loop
	ticker := time.NewTicker(time.Duration(cfg.DisplayUpdateInterval) * time.Millisecond)
	defer ticker.Stop()

	log.Println("display: starting update loop")

	for range ticker.C {
		if err := dev.Draw(dev.Bounds(), renderStatus(data.snapshot()), image.Point{}); err != nil {
			log.Printf("display: error updating display: %v", err)
		}
	}

	return nil
}

func newFrame() (*image1bit.VerticalLSB, *font.Drawer) {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, 128, 64))
	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
	return img, drawer
}

// drawLines writes up to four lines at the 13px baseline grid.
func drawLines(d *font.Drawer, lines ...string) {
	for i, line := range lines {
		d.Dot = fixed.P(0, 13*(i+1))
		d.DrawString(line)
	}
}

func renderStatus(s displaySnapshot) *image1bit.VerticalLSB {
	img, drawer := newFrame()

	calLine := "Cal: none"
	confLine := ""
	if s.haveCalibration {
		id := s.calibration.ID
		if len(id) > 8 {
			id = id[len(id)-8:]
		}
		calLine = "Cal: " + id
		if q := s.calibration.Quality; q != nil {
			confLine = fmt.Sprintf("Conf: %.2f", q.Confidence)
		}
	}

	if !s.haveRecord {
		drawLines(drawer, calLine, confLine, "Magnetometer", "Waiting...")
		return img
	}

	b := magcal.Vec3(s.last.Mag).Norm()
	label := "|B|raw"
	if s.last.Calibrated != nil {
		b = magcal.Vec3(*s.last.Calibrated).Norm()
		label = "|B|"
	}
	drawLines(drawer,
		calLine,
		confLine,
		fmt.Sprintf("%s %7.2f", label, b),
		fmt.Sprintf("N: %d", s.readings),
	)
	return img
}

func renderSplash() *image1bit.VerticalLSB {
	img, drawer := newFrame()
	drawer.Dot = fixed.P(10, 26)
	drawer.DrawString("Mag Calibrator")
	drawer.Dot = fixed.P(5, 43)
	drawer.DrawString("Rotate sensor")
	return img
}
