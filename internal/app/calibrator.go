// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/magcal/internal/gps"
	"github.com/relabs-tech/magcal/internal/imu"
	"github.com/relabs-tech/magcal/internal/ingest"
	"github.com/relabs-tech/magcal/internal/magcal"
)

// Publisher sends a payload to a topic.
type Publisher interface {
	Publish(topic string, retained bool, payload []byte) error
}

// mqttPublisher adapts a connected paho client to Publisher.
type mqttPublisher struct {
	client mqtt.Client
}

func (p mqttPublisher) Publish(topic string, retained bool, payload []byte) error {
	token := p.client.Publish(topic, 0, retained, payload)
	token.Wait()
	return token.Error()
}

// connectMQTT connects a new client and returns it.
func connectMQTT(broker, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", broker, token.Error())
	}
	return client, nil
}

// Topics names where the calibrator publishes. Empty topics are not published.
type Topics struct {
	Calibrated  string // corrected readings, one imu.Record per sample
	Calibration string // retained magcal.Calibration JSON
}

// Status is a point-in-time view of the calibrator.
type Status struct {
	State       string              `json:"state"`
	Samples     int                 `json:"samples"`
	Rejected    int                 `json:"rejected"`
	TargetField float64             `json:"target_field"`
	Error       string              `json:"error,omitempty"`
	Calibrated  bool                `json:"calibrated"`
	Calibration *magcal.Calibration `json:"calibration,omitempty"`
	Fix         *gps.Fix            `json:"gps,omitempty"`
}

// Report is the document written to disk after a successful calibration.
type Report struct {
	SchemaVersion int                `json:"schema_version"`
	CalibrationAt string             `json:"calibration_at"` // RFC3339
	Calibration   magcal.Calibration `json:"calibration"`
	Rejected      int                `json:"rejected_samples"`
	Fix           *gps.Fix           `json:"gps,omitempty"`
	Notes         []string           `json:"notes,omitempty"`
}

// Calibrator routes ingested events into a calibration session and
// republishes every reading corrected by the current calibration.
type Calibrator struct {
	session *magcal.Session
	store   *magcal.Store
	pub     Publisher
	topics  Topics
	max     int

	mu       sync.Mutex
	rejected int
	fix      *gps.Fix
	full     chan struct{}
	fullSent bool
}

// NewCalibrator returns a Calibrator collecting for target field magnitude field.
// maxSamples > 0 makes Full fire once that many samples are held.
// pub may be nil.
func NewCalibrator(store *magcal.Store, field float64, pub Publisher, topics Topics, maxSamples int) *Calibrator {
	return &Calibrator{
		session: magcal.NewSession(store, field),
		store:   store,
		pub:     pub,
		topics:  topics,
		max:     maxSamples,
		full:    make(chan struct{}),
	}
}

// Handle is an ingest.Handler.
func (c *Calibrator) Handle(ev ingest.Event) {
	switch ev.Kind {
	case ingest.KindFix:
		fix := ev.Fix
		c.mu.Lock()
		c.fix = &fix
		c.mu.Unlock()
	case ingest.KindSample:
		c.handleSample(ev.Record)
	}
}

func (c *Calibrator) handleSample(rec imu.Record) {
	raw := magcal.Vec3(rec.Mag)
	err := c.session.Add(raw)
	switch {
	case err == nil:
		c.checkFull()
	case errors.Is(err, magcal.ErrInvalidSample):
		c.mu.Lock()
		c.rejected++
		c.mu.Unlock()
		return
	case errors.Is(err, magcal.ErrNotCollecting):
		// Still corrected and republished below.
	default:
		log.Printf("calibrator: add sample: %v", err)
		return
	}

	if c.pub == nil || c.topics.Calibrated == "" {
		return
	}
	out := rec.WithCalibrated(c.store.Apply(raw))
	payload, err := json.Marshal(out)
	if err != nil {
		log.Printf("calibrator: marshal record: %v", err)
		return
	}
	if err := c.pub.Publish(c.topics.Calibrated, false, payload); err != nil {
		log.Printf("calibrator: publish %s: %v", c.topics.Calibrated, err)
	}
}

func (c *Calibrator) checkFull() {
	if c.max <= 0 || c.session.Count() < c.max {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.fullSent {
		c.fullSent = true
		close(c.full)
	}
}

// Full is closed once MaxSamples samples have been collected in the current session.
func (c *Calibrator) Full() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.full
}

// Finish fits the collected samples and, on success, publishes the
// calibration (retained) so late subscribers pick it up.
func (c *Calibrator) Finish() (magcal.Calibration, error) {
	cal, err := c.session.Finish()
	if err != nil {
		log.Printf("calibrator: calibration failed after %d samples: %v", c.session.Count(), err)
		return magcal.Calibration{}, err
	}
	log.Printf("calibrator: calibration %s from %d samples, confidence %.2f",
		cal.ID, cal.Samples, cal.Quality.Confidence)

	if c.pub != nil && c.topics.Calibration != "" {
		payload, err := json.Marshal(cal)
		if err != nil {
			return cal, fmt.Errorf("calibrator: marshal calibration: %w", err)
		}
		if err := c.pub.Publish(c.topics.Calibration, true, payload); err != nil {
			log.Printf("calibrator: publish %s: %v", c.topics.Calibration, err)
		}
	}
	return cal, nil
}

// Restart drops the collected samples and starts collecting again.
// The published calibration stays in effect.
func (c *Calibrator) Restart() {
	c.session.Restart()
	c.mu.Lock()
	c.rejected = 0
	c.full = make(chan struct{})
	c.fullSent = false
	c.mu.Unlock()
	log.Println("calibrator: restarted collection")
}

// Status reports the session state and the published calibration.
func (c *Calibrator) Status() Status {
	st := Status{
		State:       c.session.State().String(),
		Samples:     c.session.Count(),
		TargetField: c.session.TargetField(),
		Calibrated:  c.store.Calibrated(),
	}
	if err := c.session.Err(); err != nil {
		st.Error = err.Error()
	}
	if st.Calibrated {
		cal := c.store.Load()
		st.Calibration = &cal
	}
	c.mu.Lock()
	st.Rejected = c.rejected
	if c.fix != nil {
		fix := *c.fix
		st.Fix = &fix
	}
	c.mu.Unlock()
	return st
}

// Samples returns a copy of the samples collected so far.
func (c *Calibrator) Samples() []magcal.Vec3 {
	return c.session.Samples()
}

// Store exposes the published calibration.
func (c *Calibrator) Store() *magcal.Store {
	return c.store
}

// Report builds the on-disk report for cal.
func (c *Calibrator) Report(cal magcal.Calibration) Report {
	st := c.Status()
	r := Report{
		SchemaVersion: 1,
		CalibrationAt: cal.CreatedAt.Format(time.RFC3339),
		Calibration:   cal,
		Rejected:      st.Rejected,
		Fix:           st.Fix,
	}
	if q := cal.Quality; q != nil {
		if q.Coverage < 0.75 {
			r.Notes = append(r.Notes, fmt.Sprintf("direction coverage %.0f%%: rotate through more orientations", q.Coverage*100))
		}
		if q.MaxRelError > 0.05 {
			r.Notes = append(r.Notes, fmt.Sprintf("worst calibrated norm off by %.1f%%: check for nearby metal", q.MaxRelError*100))
		}
	}
	if st.Fix == nil {
		r.Notes = append(r.Notes, "no GPS fix seen during collection")
	}
	return r
}

// WriteReport writes r as indented JSON into dir and returns the file path.
func WriteReport(dir string, r Report) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create report dir: %w", err)
	}
	name := fmt.Sprintf("magcal_%s.json", r.Calibration.ID)
	path := filepath.Join(dir, name)

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return path, nil
}
