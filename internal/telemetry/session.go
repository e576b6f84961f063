package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jrbox/powergo/internal/box"
	"github.com/jrbox/powergo/internal/bus"
	"github.com/jrbox/powergo/internal/connectors"
	"github.com/jrbox/powergo/internal/device"
)

// SourceMode says where the session's series came from.
type SourceMode string

const (
	SourceLive SourceMode = "live"
	SourceFile SourceMode = "file"
)

// Settings hold the per-session telemetry tuning from configuration.
type Settings struct {
	Retention      RetentionPolicy
	Window         WindowMode
	DrainInterval  time.Duration
	BufferCapacity int
}

func (s Settings) withDefaults() Settings {
	if s.Retention.Mode == "" {
		s.Retention = ScrollRetention(0)
	}
	if s.Window.Kind == "" {
		s.Window = SlidingWindow(60)
	}
	if s.DrainInterval <= 0 {
		s.DrainInterval = 50 * time.Millisecond
	}
	if s.BufferCapacity <= 0 {
		s.BufferCapacity = defaultBufferCapacity
	}

	return s
}

// Session owns the current telemetry series, either an accumulating live
// stream or a loaded recording. Live frames arrive via the bus subscriber
// goroutine, which only converts and queues them; the store itself belongs
// to the consumer goroutine, which must call Tick to drain queued points
// into it.
type Session struct {
	logger   *slog.Logger
	registry *device.Registry
	settings Settings
	buffer   *IngestBuffer

	// epochMu guards the fields the producer goroutine reads while the
	// consumer switches sources.
	epochMu   sync.Mutex
	mode      SourceMode
	liveEpoch time.Time

	store *SeriesStore
}

func NewSession(logger *slog.Logger, reg *device.Registry, settings Settings) *Session {
	settings = settings.withDefaults()

	return &Session{
		logger:   logger,
		registry: reg,
		settings: settings,
		buffer:   NewIngestBuffer(settings.BufferCapacity),
		mode:     SourceLive,
		store:    NewSeriesStore(reg.LiveFieldKeys(), settings.Retention),
	}
}

// Start subscribes the producer edge to live data events. The goroutine
// stamps each frame with elapsed session time and queues it; it exits
// when ctx ends or the bus closes.
func (s *Session) Start(ctx context.Context, b bus.MessageBus) {
	sub := b.Subscribe(connectors.TopicLiveData)
	go func() {
		defer b.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case raw, ok := <-sub:
				if !ok {
					return
				}
				ld, ok := raw.(box.LiveData)
				if !ok {
					continue
				}
				s.ingestLive(&ld)
			}
		}
	}()
}

func (s *Session) ingestLive(ld *box.LiveData) {
	s.epochMu.Lock()
	mode := s.mode
	epoch := s.liveEpoch
	s.epochMu.Unlock()

	if mode != SourceLive || epoch.IsZero() {
		return
	}

	s.buffer.Push(PointFromLiveData(ld, time.Since(epoch), s.registry))
}

// BeginLive discards the current series and opens a fresh live one whose
// clock starts now. Consumer context only.
func (s *Session) BeginLive() {
	s.store = NewSeriesStore(s.registry.LiveFieldKeys(), s.settings.Retention)

	s.epochMu.Lock()
	s.mode = SourceLive
	s.liveEpoch = time.Now()
	s.epochMu.Unlock()

	s.buffer.Reset()
	s.logger.Info("live session started")
}

// LoadPoints replaces the series with recorded data. Recorded series keep
// every point regardless of the live retention policy. Consumer context
// only.
func (s *Session) LoadPoints(points []DataPoint, fieldKeys []string) {
	s.epochMu.Lock()
	s.mode = SourceFile
	s.liveEpoch = time.Time{}
	s.epochMu.Unlock()

	s.buffer.Reset()
	s.store = NewSeriesStore(fieldKeys, KeepAllRetention())
	for _, p := range points {
		s.store.Append(p)
	}
	s.logger.Info("recording loaded", "points", s.store.Len())
}

// Tick drains queued live points into the store in arrival order and
// reports how many were applied. Consumer context only.
func (s *Session) Tick() int {
	points := s.buffer.Drain()
	for _, p := range points {
		s.store.Append(p)
	}

	return len(points)
}

func (s *Session) Mode() SourceMode {
	s.epochMu.Lock()
	defer s.epochMu.Unlock()

	return s.mode
}

// Store exposes the current series. Consumer context only.
func (s *Session) Store() *SeriesStore {
	return s.store
}

// Window applies the configured display window to the current series.
// Consumer context only.
func (s *Session) Window() ([]int64, map[string][]float64) {
	return SelectWindow(s.store.Timestamps(), s.store.Channels(), s.settings.Window, UnitMilliseconds)
}

// DrainInterval is the cadence the host loop should call Tick at.
func (s *Session) DrainInterval() time.Duration {
	return s.settings.DrainInterval
}

// Dropped reports how many live points the bounded buffer discarded since
// the session began.
func (s *Session) Dropped() uint64 {
	return s.buffer.Dropped()
}
