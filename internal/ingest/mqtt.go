// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package ingest

import (
	"context"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTSource subscribes to a topic carrying JSON imu.Record payloads.
// The client must already be connected.
type MQTTSource struct {
	Client mqtt.Client
	Topic  string
}

// Run subscribes and delivers samples until ctx is cancelled.
func (s MQTTSource) Run(ctx context.Context, h Handler) error {
	token := s.Client.Subscribe(s.Topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		ev, err := parseJSON(string(msg.Payload()))
		if err != nil {
			log.Printf("mqtt source: %s: %v", msg.Topic(), err)
			return
		}
		if ev.Record.Time.IsZero() {
			ev.Record.Time = time.Now().UTC()
		}
		h(ev)
	})
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("mqtt source: subscribe %s: %w", s.Topic, token.Error())
	}
	log.Printf("mqtt source: subscribed to %s", s.Topic)

	<-ctx.Done()

	if t := s.Client.Unsubscribe(s.Topic); t.WaitTimeout(time.Second) && t.Error() != nil {
		log.Printf("mqtt source: unsubscribe %s: %v", s.Topic, t.Error())
	}
	return ctx.Err()
}
