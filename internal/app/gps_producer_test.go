package app

import (
	"encoding/json"
	"testing"

	"github.com/relabs-tech/magcal/internal/gps"
	"github.com/relabs-tech/magcal/internal/ingest"
)

func TestFixPublisher(t *testing.T) {
	pub := &fakePublisher{}
	h := fixPublisher(pub, "gps")

	h(sampleEvent(ellipsoidSamples(1)[0]))
	h(ingest.Event{Kind: ingest.KindFix, Fix: gps.Fix{Latitude: 1.5, Validity: "A"}})

	msgs := pub.on("gps")
	if len(msgs) != 1 || !msgs[0].retained {
		t.Fatalf("published = %+v", pub.msgs)
	}
	var f gps.Fix
	if err := json.Unmarshal(msgs[0].payload, &f); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if f.Latitude != 1.5 || !f.Valid() {
		t.Fatalf("fix = %+v", f)
	}
}
