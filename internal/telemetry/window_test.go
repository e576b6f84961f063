package telemetry

import "testing"

func TestSelectWindowSlidingKeepsTrailingDuration(t *testing.T) {
	timestamps := []int64{0, 5, 9, 12, 15, 21}
	channels := map[string][]float64{"v": {0, 50, 90, 120, 150, 210}}

	ts, chs := SelectWindow(timestamps, channels, SlidingWindow(10), UnitSeconds)

	want := []int64{12, 15, 21}
	if len(ts) != len(want) {
		t.Fatalf("expected %v, got %v", want, ts)
	}
	for i, w := range want {
		if ts[i] != w {
			t.Fatalf("expected %v, got %v", want, ts)
		}
	}
	v := chs["v"]
	if len(v) != 3 || v[0] != 120 || v[2] != 210 {
		t.Fatalf("expected channel to track the window, got %v", v)
	}
}

func TestSelectWindowSlidingShortSeriesReturnsEverything(t *testing.T) {
	timestamps := []int64{0, 3, 6}
	channels := map[string][]float64{"v": {1, 2, 3}}

	ts, chs := SelectWindow(timestamps, channels, SlidingWindow(10), UnitSeconds)
	if len(ts) != 3 || len(chs["v"]) != 3 {
		t.Fatalf("series shorter than the window must pass through, got %v", ts)
	}
}

func TestSelectWindowSlidingMillisecondAxis(t *testing.T) {
	timestamps := []int64{0, 4000, 8000, 12000}
	channels := map[string][]float64{"v": {0, 4, 8, 12}}

	ts, _ := SelectWindow(timestamps, channels, SlidingWindow(5), UnitMilliseconds)
	if len(ts) != 2 || ts[0] != 8000 {
		t.Fatalf("expected trailing 5s of a millisecond axis, got %v", ts)
	}
}

func TestSelectWindowGrowing(t *testing.T) {
	timestamps := []int64{1, 2, 3, 4, 5}
	channels := map[string][]float64{"v": {1, 2, 3, 4, 5}}

	ts, chs := SelectWindow(timestamps, channels, GrowingWindow(0), UnitMilliseconds)
	if len(ts) != 5 {
		t.Fatalf("uncapped growing window must return everything, got %v", ts)
	}

	ts, chs = SelectWindow(timestamps, channels, GrowingWindow(2), UnitMilliseconds)
	if len(ts) != 2 || ts[0] != 4 {
		t.Fatalf("expected trailing cap of 2, got %v", ts)
	}
	if v := chs["v"]; len(v) != 2 || v[0] != 4 {
		t.Fatalf("expected channel to track the cap, got %v", v)
	}
}

func TestSelectWindowEmptySeries(t *testing.T) {
	ts, chs := SelectWindow(nil, map[string][]float64{}, SlidingWindow(10), UnitSeconds)
	if len(ts) != 0 || len(chs) != 0 {
		t.Fatalf("expected empty window for empty series")
	}
}

func TestSelectWindowFractionalSeconds(t *testing.T) {
	timestamps := []int64{0, 600, 1200, 1800}
	channels := map[string][]float64{"v": {0, 1, 2, 3}}

	ts, _ := SelectWindow(timestamps, channels, SlidingWindow(1.5), UnitMilliseconds)
	if len(ts) != 3 || ts[0] != 600 {
		t.Fatalf("1500ms window over 1800ms span keeps points from 300 on, got %v", ts)
	}

	ts, _ = SelectWindow(timestamps, channels, SlidingWindow(0.5), UnitMilliseconds)
	if len(ts) != 1 || ts[0] != 1800 {
		t.Fatalf("expected trailing 500ms, got %v", ts)
	}
}
