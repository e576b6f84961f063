package telemetry

import "sort"

// TimeUnit declares the unit of a timestamp axis handed to SelectWindow.
// Series stores keep milliseconds; an axis already rescaled to seconds
// passes UnitSeconds so sliding durations cut at the right stamps.
type TimeUnit string

const (
	UnitMilliseconds TimeUnit = "ms"
	UnitSeconds      TimeUnit = "s"
)

// WindowKind selects the display window shape.
type WindowKind string

const (
	WindowGrowing WindowKind = "growing"
	WindowSliding WindowKind = "sliding"
)

// WindowMode describes one display window. Growing shows everything up to
// an optional point cap, Sliding shows the trailing duration.
type WindowMode struct {
	Kind            WindowKind
	Cap             int
	DurationSeconds float64
}

func GrowingWindow(cap int) WindowMode {
	return WindowMode{Kind: WindowGrowing, Cap: cap}
}

func SlidingWindow(seconds float64) WindowMode {
	return WindowMode{Kind: WindowSliding, DurationSeconds: seconds}
}

// SelectWindow cuts the display window out of an aligned series. The
// returned slices are views into the input, every channel stays aligned
// with the returned timestamps. Timestamps must be sorted ascending.
func SelectWindow(timestamps []int64, channels map[string][]float64, mode WindowMode, unit TimeUnit) ([]int64, map[string][]float64) {
	from := 0
	n := len(timestamps)

	switch mode.Kind {
	case WindowGrowing:
		if mode.Cap > 0 && n > mode.Cap {
			from = n - mode.Cap
		}
	case WindowSliding:
		if n > 0 && mode.DurationSeconds > 0 {
			span := durationInUnit(mode.DurationSeconds, unit)
			cutoff := timestamps[n-1] - span
			if timestamps[0] < cutoff {
				from = sort.Search(n, func(i int) bool {
					return timestamps[i] >= cutoff
				})
			}
		}
	}

	outChannels := make(map[string][]float64, len(channels))
	for key, ch := range channels {
		outChannels[key] = ch[from:]
	}

	return timestamps[from:], outChannels
}

func durationInUnit(seconds float64, unit TimeUnit) int64 {
	if unit == UnitSeconds {
		return int64(seconds)
	}

	return int64(seconds * 1000)
}
