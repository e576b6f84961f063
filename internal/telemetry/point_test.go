package telemetry

import (
	"testing"
	"time"

	"github.com/jrbox/powergo/internal/box"
	"github.com/jrbox/powergo/internal/device"
)

func TestPointFromLiveData(t *testing.T) {
	reg := device.Default()
	ld := &box.LiveData{
		Timestamp: "12:00:00",
		Devices: []box.DeviceReading{
			{Name: "GSE-1", On: true, Voltage: 28.1, Current: 1.25, Power: 35.1},
			{Name: "Bus", On: false, Voltage: 28.2, Current: 3.4, Power: 95.9},
			{Name: "MYSTERY", On: true, Voltage: 1, Current: 1, Power: 1},
		},
	}

	p := PointFromLiveData(ld, 1500*time.Millisecond, reg)

	if p.Time != 1500 {
		t.Fatalf("expected elapsed 1500 ms, got %d", p.Time)
	}
	if got := p.Values["GSE-1_volt"]; got != 28.1 {
		t.Fatalf("expected GSE-1_volt 28.1, got %v", got)
	}
	if got := p.Values["GSE-1_stat"]; got != 1 {
		t.Fatalf("expected GSE-1_stat 1, got %v", got)
	}
	if got := p.Values["Bus_stat"]; got != 0 {
		t.Fatalf("expected Bus_stat 0, got %v", got)
	}
	if got := p.Values["Bus_pow"]; got != 95.9 {
		t.Fatalf("expected Bus_pow 95.9, got %v", got)
	}
	for key := range p.Values {
		if key == "MYSTERY_volt" || key == "MYSTERY_curr" || key == "MYSTERY_pow" || key == "MYSTERY_stat" {
			t.Fatalf("unregistered device must be dropped, found %q", key)
		}
	}
	if len(p.Values) != 8 {
		t.Fatalf("expected 8 values for two registered devices, got %d", len(p.Values))
	}
}
