package telemetry

import "testing"

func seriesPoint(t int64, v float64) DataPoint {
	return DataPoint{Time: t, Values: map[string]float64{"TE-1_volt": v}}
}

func assertAligned(t *testing.T, s *SeriesStore) {
	t.Helper()
	n := len(s.Timestamps())
	for _, key := range s.FieldKeys() {
		if got := len(s.Channel(key)); got != n {
			t.Fatalf("channel %q length %d does not match %d timestamps", key, got, n)
		}
	}
}

func TestSeriesStoreScrollRetentionKeepsNewest(t *testing.T) {
	s := NewSeriesStore([]string{"TE-1_volt"}, ScrollRetention(3))
	for i := int64(1); i <= 5; i++ {
		s.Append(seriesPoint(i, float64(i)*10))
	}

	ts := s.Timestamps()
	if len(ts) != 3 {
		t.Fatalf("expected 3 retained points, got %d", len(ts))
	}
	if ts[0] != 3 || ts[1] != 4 || ts[2] != 5 {
		t.Fatalf("expected timestamps [3 4 5], got %v", ts)
	}
	ch := s.Channel("TE-1_volt")
	if ch[0] != 30 || ch[2] != 50 {
		t.Fatalf("expected values [30 40 50], got %v", ch)
	}
	assertAligned(t, s)
}

func TestSeriesStoreKeepAllRetention(t *testing.T) {
	s := NewSeriesStore([]string{"TE-1_volt"}, KeepAllRetention())
	for i := int64(0); i < 10000; i++ {
		s.Append(seriesPoint(i, 1))
	}

	if s.Len() != 10000 {
		t.Fatalf("expected all points retained, got %d", s.Len())
	}
	assertAligned(t, s)
}

func TestSeriesStoreEvictionSurvivesCompaction(t *testing.T) {
	s := NewSeriesStore([]string{"TE-1_volt"}, ScrollRetention(4))
	for i := int64(0); i < 100; i++ {
		s.Append(seriesPoint(i, float64(i)))
	}

	ts := s.Timestamps()
	if len(ts) != 4 {
		t.Fatalf("expected 4 retained points, got %d", len(ts))
	}
	if ts[0] != 96 || ts[3] != 99 {
		t.Fatalf("expected trailing window [96..99], got %v", ts)
	}
	ch := s.Channel("TE-1_volt")
	for i, v := range ch {
		if v != float64(ts[i]) {
			t.Fatalf("value %v misaligned with timestamp %v after compaction", v, ts[i])
		}
	}
	assertAligned(t, s)
}

func TestSeriesStoreOutOfOrderInsertKeepsAxisSorted(t *testing.T) {
	s := NewSeriesStore([]string{"TE-1_volt"}, KeepAllRetention())
	s.Append(seriesPoint(10, 1))
	s.Append(seriesPoint(30, 3))
	s.Append(seriesPoint(20, 2))
	s.Append(seriesPoint(5, 0.5))

	ts := s.Timestamps()
	want := []int64{5, 10, 20, 30}
	for i, w := range want {
		if ts[i] != w {
			t.Fatalf("expected sorted axis %v, got %v", want, ts)
		}
	}
	ch := s.Channel("TE-1_volt")
	if ch[0] != 0.5 || ch[1] != 1 || ch[2] != 2 || ch[3] != 3 {
		t.Fatalf("values must move with their timestamps, got %v", ch)
	}
	assertAligned(t, s)
}

func TestSeriesStoreEqualStampsKeepArrivalOrder(t *testing.T) {
	s := NewSeriesStore([]string{"TE-1_volt"}, KeepAllRetention())
	s.Append(seriesPoint(10, 1))
	s.Append(seriesPoint(20, 2))
	s.Append(seriesPoint(10, 3))

	ts := s.Timestamps()
	if ts[0] != 10 || ts[1] != 10 || ts[2] != 20 {
		t.Fatalf("expected [10 10 20], got %v", ts)
	}
	ch := s.Channel("TE-1_volt")
	if ch[0] != 1 || ch[1] != 3 {
		t.Fatalf("expected later equal stamp to sort after earlier one, got %v", ch)
	}
}

func TestSeriesStoreMissingFieldsStoreZero(t *testing.T) {
	s := NewSeriesStore([]string{"TE-1_volt", "TE-1_curr"}, KeepAllRetention())
	s.Append(DataPoint{Time: 1, Values: map[string]float64{"TE-1_volt": 12}})

	if got := s.Channel("TE-1_curr")[0]; got != 0 {
		t.Fatalf("expected missing field to store zero, got %v", got)
	}
	assertAligned(t, s)
}

func TestSeriesStoreIgnoresKeysOutsideSchema(t *testing.T) {
	s := NewSeriesStore([]string{"TE-1_volt"}, KeepAllRetention())
	s.Append(DataPoint{Time: 1, Values: map[string]float64{"TE-1_volt": 12, "GHOST_volt": 9}})

	if got := s.Channel("GHOST_volt"); got != nil {
		t.Fatalf("expected unknown channel to stay absent, got %v", got)
	}
	if len(s.FieldKeys()) != 1 {
		t.Fatalf("schema must stay fixed, got %v", s.FieldKeys())
	}
}

func TestSeriesStoreDiscoversSchemaFromFirstPoint(t *testing.T) {
	s := NewSeriesStore(nil, KeepAllRetention())
	s.Append(DataPoint{Time: 1, Values: map[string]float64{"b": 2, "a": 1}})
	s.Append(DataPoint{Time: 2, Values: map[string]float64{"a": 3, "c": 9}})

	keys := s.FieldKeys()
	if len(keys) != 2 || keys[0] != "a" || keys[1] != "b" {
		t.Fatalf("expected sorted discovered schema [a b], got %v", keys)
	}
	if got := s.Channel("b")[1]; got != 0 {
		t.Fatalf("expected later missing field to store zero, got %v", got)
	}
	if s.Channel("c") != nil {
		t.Fatalf("keys first seen after discovery must be ignored")
	}
	assertAligned(t, s)
}

func TestSeriesStoreLatest(t *testing.T) {
	s := NewSeriesStore([]string{"TE-1_volt"}, ScrollRetention(2))
	if _, ok := s.Latest("TE-1_volt"); ok {
		t.Fatalf("expected no latest value on empty store")
	}

	s.Append(seriesPoint(1, 10))
	s.Append(seriesPoint(2, 20))
	s.Append(seriesPoint(3, 30))

	got, ok := s.Latest("TE-1_volt")
	if !ok || got != 30 {
		t.Fatalf("expected latest 30, got %v ok=%v", got, ok)
	}
}
