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
	"net/http"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/mux"

	"github.com/relabs-tech/magcal/internal/config"
	"github.com/relabs-tech/magcal/internal/gps"
	"github.com/relabs-tech/magcal/internal/ingest"
	"github.com/relabs-tech/magcal/internal/magcal"
)

// applyRequest carries one reading or a batch to correct.
type applyRequest struct {
	Mag     *magcal.Vec3  `json:"mag,omitempty"`
	Samples []magcal.Vec3 `json:"samples,omitempty"`
}

type applyResponse struct {
	CalibrationID string        `json:"calibration_id,omitempty"`
	Calibrated    []magcal.Vec3 `json:"calibrated"`
}

// NewRouter wires the REST API and websocket for cal. staticDir may be empty.
func NewRouter(cal *Calibrator, staticDir string) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/calibration", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, cal.Status())
	}).Methods(http.MethodGet)

	api := r.PathPrefix("/api/calibration").Subrouter()

	api.HandleFunc("/samples", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, cal.Samples())
	}).Methods(http.MethodGet)

	api.HandleFunc("/apply", func(w http.ResponseWriter, r *http.Request) {
		var req applyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
			return
		}
		raw := req.Samples
		if req.Mag != nil {
			raw = append([]magcal.Vec3{*req.Mag}, raw...)
		}
		if len(raw) == 0 {
			http.Error(w, "no samples", http.StatusBadRequest)
			return
		}
		current := cal.Store().Load()
		writeJSON(w, http.StatusOK, applyResponse{
			CalibrationID: current.ID,
			Calibrated:    current.Transform.ApplyAll(raw),
		})
	}).Methods(http.MethodPost)

	api.HandleFunc("/finish", func(w http.ResponseWriter, r *http.Request) {
		res, err := cal.Finish()
		if err != nil {
			http.Error(w, err.Error(), finishStatusCode(err))
			return
		}
		writeJSON(w, http.StatusOK, res)
	}).Methods(http.MethodPost)

	api.HandleFunc("/restart", func(w http.ResponseWriter, r *http.Request) {
		cal.Restart()
		writeJSON(w, http.StatusOK, cal.Status())
	}).Methods(http.MethodPost)

	r.HandleFunc("/ws/calibration", handleCalibrationWS(cal))

	if staticDir != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(staticDir)))
	}
	return r
}

// finishStatusCode maps calibration failures to HTTP status codes.
func finishStatusCode(err error) int {
	switch {
	case errors.Is(err, magcal.ErrNotCollecting):
		return http.StatusConflict
	case errors.Is(err, magcal.ErrInsufficientSamples),
		errors.Is(err, magcal.ErrSingularMatrix),
		errors.Is(err, magcal.ErrNotPositiveDefinite):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("json encode error: %v", err)
	}
}

// RunWeb collects samples from TOPIC_MAG_RAW and serves the calibration API.
func RunWeb() error {
	cfg := config.Get()

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDWeb)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)
	log.Printf("web: connected to MQTT broker at %s", cfg.MQTTBroker)

	store := magcal.NewStore()
	cal := NewCalibrator(store, cfg.TargetField, mqttPublisher{client: client}, Topics{
		Calibrated:  cfg.TopicMagCalibrated,
		Calibration: cfg.TopicMagCalibration,
	}, cfg.MaxSamples)

	if err := restoreCalibration(client, cfg.TopicMagCalibration, store); err != nil {
		return err
	}

	token := client.Subscribe(cfg.TopicGPS, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var f gps.Fix
		if err := json.Unmarshal(msg.Payload(), &f); err != nil {
			log.Printf("web: gps unmarshal error: %v", err)
			return
		}
		cal.Handle(ingest.Event{Kind: ingest.KindFix, Fix: f})
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("web: subscribed to MQTT topic %s", cfg.TopicGPS)

	if cfg.MaxSamples > 0 {
		go finishOnFull(context.Background(), cal, time.Second)
	}

	go func() {
		src := ingest.MQTTSource{Client: client, Topic: cfg.TopicMagRaw}
		if err := src.Run(context.Background(), cal.Handle); err != nil {
			log.Printf("web: sample source stopped: %v", err)
		}
	}()

	addr := fmt.Sprintf(":%d", cfg.WebServerPort)
	log.Printf("web server listening on %s", addr)
	return http.ListenAndServe(addr, NewRouter(cal, "web"))
}

// restoreCalibration loads the retained calibration into store so corrections
// resume after a restart. Our own later publishes arrive here too and are ignored.
func restoreCalibration(client mqtt.Client, topic string, store *magcal.Store) error {
	token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		if store.Calibrated() || len(msg.Payload()) == 0 {
			return
		}
		var c magcal.Calibration
		if err := json.Unmarshal(msg.Payload(), &c); err != nil {
			log.Printf("web: calibration unmarshal error: %v", err)
			return
		}
		c, err := magcal.Restore(c)
		if err != nil {
			log.Printf("web: retained calibration rejected: %v", err)
			return
		}
		store.Publish(c)
		log.Printf("web: restored calibration %s", c.ID)
	})
	token.Wait()
	return token.Error()
}

// finishOnFull finishes the session each time MAX_SAMPLES is reached. After a
// finish it waits, checking every poll, for Restart to arm a new session.
func finishOnFull(ctx context.Context, cal *Calibrator, poll time.Duration) {
	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for {
		full := cal.Full()
		select {
		case <-ctx.Done():
			return
		case <-full:
		}
		if _, err := cal.Finish(); err == nil {
			log.Printf("web: finished at MAX_SAMPLES")
		}
		for cal.Full() == full {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}
}
