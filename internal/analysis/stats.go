// Package analysis computes electrical statistics over ingested telemetry.
package analysis

import (
	"github.com/jrbox/powergo/internal/device"
)

// DeviceStats summarizes one device over the analyzed span. Power is
// recomputed as voltage times current per sample rather than read from a
// recorded power channel, and energy integrals use the trapezoid rule
// over elapsed hours.
type DeviceStats struct {
	Name        string
	Samples     int
	DurationSec float64
	PollRateHz  float64
	MinVolts    float64
	MaxVolts    float64
	AvgVolts    float64
	MinAmps     float64
	MaxAmps     float64
	AvgAmps     float64
	MinWatts    float64
	MaxWatts    float64
	AvgWatts    float64
	AmpHours    float64
	WattHours   float64
}

// SummaryStats aggregates the per-device results. ChannelCount counts the
// data channels plus the shared time axis. TotalAvgWatts is the sum of the
// per-device average power draws.
type SummaryStats struct {
	Devices            []DeviceStats
	ChannelCount       int
	Samples            int
	DurationSec        float64
	MaxVolts           float64
	MaxVoltsDevice     string
	MaxAmps            float64
	MaxAmpsDevice      string
	MaxWatts           float64
	MaxWattsDevice     string
	MaxWattHours       float64
	MaxWattHoursDevice string
	TotalAvgWatts      float64
	TotalAmpHours      float64
	TotalWattHours     float64
	TotalKWh           float64
}

// Analyze walks the registry in order and computes stats for every device
// that has both a voltage and a current channel of the full series length.
// Aggregate pseudo-devices are skipped, their draw already sums the others.
func Analyze(timestampsMS []int64, channels map[string][]float64, reg *device.Registry) SummaryStats {
	summary := SummaryStats{ChannelCount: len(channels) + 1, Samples: len(timestampsMS)}
	n := len(timestampsMS)
	if n == 0 {
		return summary
	}

	summary.DurationSec = float64(timestampsMS[n-1]-timestampsMS[0]) / 1000.0

	hours := make([]float64, n)
	for i, ts := range timestampsMS {
		hours[i] = float64(ts) / 1000.0 / 3600.0
	}

	for _, dev := range reg.Devices() {
		if dev.Totals {
			continue
		}
		volts := channels[device.FieldKey(dev.Name, device.MeasurementVoltage)]
		amps := channels[device.FieldKey(dev.Name, device.MeasurementCurrent)]
		if len(volts) != n || len(amps) != n {
			continue
		}

		watts := make([]float64, n)
		for i := range watts {
			watts[i] = volts[i] * amps[i]
		}

		stats := DeviceStats{
			Name:        dev.Name,
			Samples:     n,
			DurationSec: summary.DurationSec,
			AmpHours:    trapezoid(amps, hours),
			WattHours:   trapezoid(watts, hours),
		}
		if stats.DurationSec > 0 {
			stats.PollRateHz = float64(n) / stats.DurationSec
		}
		stats.MinVolts, stats.MaxVolts, stats.AvgVolts = seriesStats(volts)
		stats.MinAmps, stats.MaxAmps, stats.AvgAmps = seriesStats(amps)
		stats.MinWatts, stats.MaxWatts, stats.AvgWatts = seriesStats(watts)

		summary.Devices = append(summary.Devices, stats)
	}

	for _, stats := range summary.Devices {
		if summary.MaxVoltsDevice == "" || stats.MaxVolts > summary.MaxVolts {
			summary.MaxVolts = stats.MaxVolts
			summary.MaxVoltsDevice = stats.Name
		}
		if summary.MaxAmpsDevice == "" || stats.MaxAmps > summary.MaxAmps {
			summary.MaxAmps = stats.MaxAmps
			summary.MaxAmpsDevice = stats.Name
		}
		if summary.MaxWattsDevice == "" || stats.MaxWatts > summary.MaxWatts {
			summary.MaxWatts = stats.MaxWatts
			summary.MaxWattsDevice = stats.Name
		}
		if summary.MaxWattHoursDevice == "" || stats.WattHours > summary.MaxWattHours {
			summary.MaxWattHours = stats.WattHours
			summary.MaxWattHoursDevice = stats.Name
		}
		summary.TotalAvgWatts += stats.AvgWatts
		summary.TotalAmpHours += stats.AmpHours
		summary.TotalWattHours += stats.WattHours
	}
	summary.TotalKWh = summary.TotalWattHours / 1000.0

	return summary
}

// trapezoid integrates values over times, both the same length.
func trapezoid(values, times []float64) float64 {
	var total float64
	for i := 1; i < len(values); i++ {
		total += (values[i] + values[i-1]) / 2 * (times[i] - times[i-1])
	}

	return total
}

func seriesStats(values []float64) (lo, hi, avg float64) {
	if len(values) == 0 {
		return 0, 0, 0
	}

	lo = values[0]
	hi = values[0]
	var sum float64
	for _, v := range values {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
		sum += v
	}

	return lo, hi, sum / float64(len(values))
}
