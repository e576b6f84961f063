// Package telemetry turns classified live data frames and recorded file
// points into aligned time series ready for display windows.
package telemetry

import (
	"time"

	"github.com/jrbox/powergo/internal/box"
	"github.com/jrbox/powergo/internal/device"
)

// DataPoint is one ingested sample: elapsed milliseconds since the series
// origin plus a flat field-key to value map. Fields absent from a sample
// store as zero in their channels.
type DataPoint struct {
	Time   int64
	Values map[string]float64
}

// PointFromLiveData flattens a live frame into a data point stamped with
// the elapsed session time. Readings for devices the registry does not
// know are dropped, series schemas stay fixed per session.
func PointFromLiveData(ld *box.LiveData, elapsed time.Duration, reg *device.Registry) DataPoint {
	values := make(map[string]float64, len(ld.Devices)*4)
	for _, r := range ld.Devices {
		if !reg.Contains(r.Name) {
			continue
		}
		values[device.FieldKey(r.Name, device.MeasurementVoltage)] = r.Voltage
		values[device.FieldKey(r.Name, device.MeasurementCurrent)] = r.Current
		values[device.FieldKey(r.Name, device.MeasurementPower)] = r.Power
		state := 0.0
		if r.On {
			state = 1
		}
		values[device.FieldKey(r.Name, device.MeasurementState)] = state
	}

	return DataPoint{Time: elapsed.Milliseconds(), Values: values}
}
