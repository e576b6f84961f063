package telemetry

import "sync"

const defaultBufferCapacity = 64

// IngestBuffer is the bounded hand-off between the network reader that
// produces points and the consumer that drains them into the store. When
// the consumer falls behind the oldest queued points are dropped and
// counted, the producer never blocks.
type IngestBuffer struct {
	mu       sync.Mutex
	points   []DataPoint
	capacity int
	dropped  uint64
}

func NewIngestBuffer(capacity int) *IngestBuffer {
	if capacity <= 0 {
		capacity = defaultBufferCapacity
	}

	return &IngestBuffer{capacity: capacity}
}

func (b *IngestBuffer) Push(p DataPoint) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.points) >= b.capacity {
		over := len(b.points) - b.capacity + 1
		b.points = b.points[over:]
		b.dropped += uint64(over)
	}
	b.points = append(b.points, p)
}

// Drain removes and returns everything queued, in arrival order. It never
// blocks waiting for new points.
func (b *IngestBuffer) Drain() []DataPoint {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := b.points
	b.points = nil

	return out
}

func (b *IngestBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.points)
}

// Dropped reports how many points were discarded since the last Reset.
func (b *IngestBuffer) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.dropped
}

// Reset discards queued points and clears the drop counter.
func (b *IngestBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.points = nil
	b.dropped = 0
}
