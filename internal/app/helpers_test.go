package app

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/relabs-tech/magcal/internal/imu"
	"github.com/relabs-tech/magcal/internal/ingest"
	"github.com/relabs-tech/magcal/internal/magcal"
)

const testField = 50.0

// ellipsoidSamples places n points on an axis-aligned ellipsoid with
// semi-axes (60, 45, 40) centred on (12, -7, 3).
func ellipsoidSamples(n int) []magcal.Vec3 {
	golden := math.Pi * (3 - math.Sqrt(5))
	out := make([]magcal.Vec3, n)
	for i := range out {
		y := 1 - 2*(float64(i)+0.5)/float64(n)
		r := math.Sqrt(1 - y*y)
		phi := golden * float64(i)
		u := magcal.Vec3{r * math.Cos(phi), y, r * math.Sin(phi)}
		out[i] = magcal.Vec3{12 + 60*u[0], -7 + 45*u[1], 3 + 40*u[2]}
	}
	return out
}

func sampleEvent(v magcal.Vec3) ingest.Event {
	return ingest.Event{Kind: ingest.KindSample, Record: imu.Record{Source: "test", Mag: v}}
}

func jsonLines(t *testing.T, samples []magcal.Vec3) string {
	t.Helper()
	var b strings.Builder
	for _, s := range samples {
		line, err := json.Marshal(imu.Record{Mag: s})
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		b.Write(line)
		b.WriteByte('\n')
	}
	return b.String()
}

type published struct {
	topic    string
	retained bool
	payload  []byte
}

// fakePublisher records everything published.
type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (p *fakePublisher) Publish(topic string, retained bool, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, published{topic, retained, append([]byte(nil), payload...)})
	return p.err
}

func (p *fakePublisher) on(topic string) []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []published
	for _, m := range p.msgs {
		if m.topic == topic {
			out = append(out, m)
		}
	}
	return out
}

func assertNear(t *testing.T, got, want, tol float64, what string) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Fatalf("%s = %v, want %v (±%v)", what, got, want, tol)
	}
}

func vecString(v magcal.Vec3) string {
	return fmt.Sprintf("(%.4f, %.4f, %.4f)", v[0], v[1], v[2])
}
