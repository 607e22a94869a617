package app

import (
	"encoding/json"
	"testing"

	"periph.io/x/devices/v3/ssd1306/image1bit"

	"github.com/relabs-tech/magcal/internal/imu"
	"github.com/relabs-tech/magcal/internal/magcal"
)

func litPixels(img *image1bit.VerticalLSB) int {
	n := 0
	for _, b := range img.Pix {
		for ; b != 0; b &= b - 1 {
			n++
		}
	}
	return n
}

func TestDisplayDataHandlers(t *testing.T) {
	d := &DisplayData{}

	rec, _ := json.Marshal(imu.Record{Mag: [3]float64{30, 40, 0}}.WithCalibrated([3]float64{0, 0, 50}))
	for i := 0; i < 3; i++ {
		if err := d.handleRecord(rec); err != nil {
			t.Fatalf("handleRecord: %v", err)
		}
	}
	if err := d.handleRecord([]byte("not json")); err == nil {
		t.Fatal("expected unmarshal error")
	}

	cal, _ := json.Marshal(magcal.Calibration{ID: "cu5n2k8m1q7b2", Quality: &magcal.Quality{Confidence: 0.9}})
	if err := d.handleCalibration(cal); err != nil {
		t.Fatalf("handleCalibration: %v", err)
	}
	if err := d.handleCalibration(nil); err != nil {
		t.Fatalf("cleared retained message: %v", err)
	}

	s := d.snapshot()
	if s.readings != 3 || !s.haveRecord || !s.haveCalibration {
		t.Fatalf("snapshot = %+v", s)
	}
	if s.calibration.ID != "cu5n2k8m1q7b2" {
		t.Fatalf("calibration id = %q", s.calibration.ID)
	}
}

func TestRenderStatus(t *testing.T) {
	empty := renderStatus(displaySnapshot{})
	if litPixels(empty) == 0 {
		t.Fatal("waiting screen is blank")
	}

	full := renderStatus(displaySnapshot{
		readings:        1234,
		last:            imu.Record{Mag: [3]float64{1, 2, 3}},
		haveRecord:      true,
		calibration:     magcal.Calibration{ID: "abc", Quality: &magcal.Quality{Confidence: 0.5}},
		haveCalibration: true,
	})
	if full.Bounds().Dx() != 128 || full.Bounds().Dy() != 64 {
		t.Fatalf("bounds = %v", full.Bounds())
	}
	if litPixels(full) == 0 {
		t.Fatal("status screen is blank")
	}
	if litPixels(renderSplash()) == 0 {
		t.Fatal("splash is blank")
	}
}
