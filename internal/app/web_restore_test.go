package app

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/magcal/internal/magcal"
)

// retainedClient delivers a stored payload to every subscriber, the way the
// broker replays a retained message.
type retainedClient struct {
	mqtt.Client
	payloads map[string][]byte
}

func (c *retainedClient) Subscribe(topic string, _ byte, cb mqtt.MessageHandler) mqtt.Token {
	if p, ok := c.payloads[topic]; ok {
		cb(c, retainedMessage{topic: topic, payload: p})
	}
	return doneToken{}
}

type retainedMessage struct {
	mqtt.Message
	topic   string
	payload []byte
}

func (m retainedMessage) Topic() string   { return m.topic }
func (m retainedMessage) Payload() []byte { return m.payload }
func (m retainedMessage) Retained() bool  { return true }

type doneToken struct{ mqtt.Token }

func (doneToken) Wait() bool                     { return true }
func (doneToken) WaitTimeout(time.Duration) bool { return true }
func (doneToken) Error() error                   { return nil }

func TestRestoreCalibration(t *testing.T) {
	const topic = "magcal/calibration"

	good, err := magcal.Calibrate(magcal.Freeze(ellipsoidSamples(300)), testField)
	if err != nil {
		t.Fatalf("Calibrate: %v", err)
	}
	tampered := good
	tampered.Transform.Matrix[2] = [3]float64{}
	singular := good
	singular.Coefficients = &magcal.Coefficients{M: magcal.Mat3{{1, 0, 0}, {0, 1, 0}, {0, 0, 0}}, D: -1}
	noCoef := good
	noCoef.Coefficients = nil

	marshal := func(c magcal.Calibration) []byte {
		b, err := json.Marshal(c)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		return b
	}

	tests := []struct {
		name       string
		payload    []byte
		calibrated bool
	}{
		{"valid", marshal(good), true},
		{"transform rebuilt from coefficients", marshal(tampered), true},
		{"id only", []byte(`{"id":"x"}`), false},
		{"transform without coefficients", marshal(noCoef), false},
		{"singular coefficients", marshal(singular), false},
		{"not json", []byte("garbage"), false},
		{"empty", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := magcal.NewStore()
			client := &retainedClient{payloads: map[string][]byte{topic: tt.payload}}
			if err := restoreCalibration(client, topic, store); err != nil {
				t.Fatalf("restoreCalibration: %v", err)
			}
			if store.Calibrated() != tt.calibrated {
				t.Fatalf("calibrated = %v, want %v", store.Calibrated(), tt.calibrated)
			}
			if !tt.calibrated {
				raw := magcal.Vec3{100, 200, 300}
				if got := store.Apply(raw); got != raw {
					t.Fatalf("Apply(%v) = %v, want identity", raw, got)
				}
				return
			}
			for _, s := range ellipsoidSamples(50) {
				assertNear(t, store.Apply(s).Norm(), testField, 1e-6, "corrected norm")
			}
		})
	}
}

func TestFinishOnFull(t *testing.T) {
	pub := &fakePublisher{}
	cal := NewCalibrator(magcal.NewStore(), testField, pub, testTopics, 300)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		finishOnFull(ctx, cal, 5*time.Millisecond)
		close(done)
	}()

	waitCalibrations := func(n int) {
		t.Helper()
		deadline := time.After(5 * time.Second)
		for len(pub.on(testTopics.Calibration)) < n {
			select {
			case <-deadline:
				t.Fatalf("calibrations published = %d, want %d", len(pub.on(testTopics.Calibration)), n)
			case <-time.After(5 * time.Millisecond):
			}
		}
	}

	for _, s := range ellipsoidSamples(300) {
		cal.Handle(sampleEvent(s))
	}
	waitCalibrations(1)
	if st := cal.Status(); st.State != magcal.StateCalibrated.String() {
		t.Fatalf("state = %s, want calibrated", st.State)
	}

	cal.Restart()
	for _, s := range ellipsoidSamples(300) {
		cal.Handle(sampleEvent(s))
	}
	waitCalibrations(2)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("finishOnFull did not return after cancel")
	}
}
