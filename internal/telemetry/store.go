package telemetry

import (
	"sort"
)

// RetentionMode bounds how much history a SeriesStore keeps.
type RetentionMode string

const (
	RetentionScroll  RetentionMode = "scroll"
	RetentionKeepAll RetentionMode = "keep_all"
)

const defaultScrollMaxPoints = 3000

// RetentionPolicy is the memory bound applied after every append.
type RetentionPolicy struct {
	Mode      RetentionMode
	MaxPoints int
}

func ScrollRetention(maxPoints int) RetentionPolicy {
	if maxPoints <= 0 {
		maxPoints = defaultScrollMaxPoints
	}

	return RetentionPolicy{Mode: RetentionScroll, MaxPoints: maxPoints}
}

func KeepAllRetention() RetentionPolicy {
	return RetentionPolicy{Mode: RetentionKeepAll}
}

// SeriesStore holds one shared timestamp axis and one value channel per
// field key. Every channel always has exactly as many values as there are
// timestamps, fields missing from an appended point store as zero.
//
// The store is confined to the consumer goroutine that drains the ingest
// buffer; it does no locking of its own.
type SeriesStore struct {
	retention RetentionPolicy
	fieldKeys []string
	discover  bool

	// head is the logical start offset into the backing slices. Scroll
	// eviction advances it, compaction folds it back to zero once it
	// crosses half the backing length.
	head       int
	timestamps []int64
	channels   map[string][]float64
}

// NewSeriesStore builds a store with a fixed schema. A nil fieldKeys
// switches to discovery: the schema is taken from the first appended
// point and fixed from then on.
func NewSeriesStore(fieldKeys []string, retention RetentionPolicy) *SeriesStore {
	s := &SeriesStore{
		retention: retention,
		channels:  make(map[string][]float64),
	}
	if len(fieldKeys) == 0 {
		s.discover = true

		return s
	}

	s.fieldKeys = make([]string, len(fieldKeys))
	copy(s.fieldKeys, fieldKeys)
	for _, key := range s.fieldKeys {
		s.channels[key] = nil
	}

	return s
}

// Append inserts one point, keeping the timestamp axis sorted. Points
// arriving in order take the fast append path; a stale timestamp is
// inserted before the first strictly newer point, so equal stamps keep
// their arrival order.
func (s *SeriesStore) Append(p DataPoint) {
	if s.discover && s.fieldKeys == nil {
		s.adoptSchema(p)
	}

	n := s.Len()
	if n == 0 || p.Time >= s.timestamps[len(s.timestamps)-1] {
		s.timestamps = append(s.timestamps, p.Time)
		for _, key := range s.fieldKeys {
			s.channels[key] = append(s.channels[key], p.Values[key])
		}
	} else {
		rel := sort.Search(n, func(i int) bool {
			return s.timestamps[s.head+i] > p.Time
		})
		at := s.head + rel
		s.timestamps = insertInt64(s.timestamps, at, p.Time)
		for _, key := range s.fieldKeys {
			s.channels[key] = insertFloat64(s.channels[key], at, p.Values[key])
		}
	}

	s.applyRetention()
}

func (s *SeriesStore) adoptSchema(p DataPoint) {
	keys := make([]string, 0, len(p.Values))
	for key := range p.Values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	s.fieldKeys = keys
	for _, key := range keys {
		s.channels[key] = nil
	}
}

func (s *SeriesStore) applyRetention() {
	if s.retention.Mode != RetentionScroll {
		return
	}
	max := s.retention.MaxPoints
	if max <= 0 {
		max = defaultScrollMaxPoints
	}
	for s.Len() > max {
		s.head++
	}
	if s.head > len(s.timestamps)/2 {
		s.compact()
	}
}

func (s *SeriesStore) compact() {
	n := copy(s.timestamps, s.timestamps[s.head:])
	s.timestamps = s.timestamps[:n]
	for key, ch := range s.channels {
		m := copy(ch, ch[s.head:])
		s.channels[key] = ch[:m]
	}
	s.head = 0
}

func (s *SeriesStore) Len() int {
	return len(s.timestamps) - s.head
}

// FieldKeys returns the schema in channel order. Empty until the first
// point arrives in discovery mode.
func (s *SeriesStore) FieldKeys() []string {
	out := make([]string, len(s.fieldKeys))
	copy(out, s.fieldKeys)

	return out
}

// Timestamps returns the live timestamp axis. The slice is a view into
// store memory, valid until the next Append.
func (s *SeriesStore) Timestamps() []int64 {
	return s.timestamps[s.head:]
}

// Channel returns the live value series for one field key, aligned
// index-for-index with Timestamps. Nil for unknown keys.
func (s *SeriesStore) Channel(key string) []float64 {
	ch, ok := s.channels[key]
	if !ok {
		return nil
	}

	return ch[s.head:]
}

// Channels returns all value series keyed by field, each aligned with
// Timestamps.
func (s *SeriesStore) Channels() map[string][]float64 {
	out := make(map[string][]float64, len(s.fieldKeys))
	for _, key := range s.fieldKeys {
		out[key] = s.channels[key][s.head:]
	}

	return out
}

// Latest returns the most recent value of one field, with ok reporting
// whether the store holds any points.
func (s *SeriesStore) Latest(key string) (float64, bool) {
	ch, ok := s.channels[key]
	if !ok || len(ch)-s.head == 0 {
		return 0, false
	}

	return ch[len(ch)-1], true
}

func insertInt64(s []int64, at int, v int64) []int64 {
	s = append(s, 0)
	copy(s[at+1:], s[at:])
	s[at] = v

	return s
}

func insertFloat64(s []float64, at int, v float64) []float64 {
	s = append(s, 0)
	copy(s[at+1:], s[at:])
	s[at] = v

	return s
}
