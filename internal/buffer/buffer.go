// Package buffer implements the per-sensor bounded packet buffer: a
// metadata ring separated from packet storage so eviction and reordering
// never move payload bytes, only a timestamp and a slab key.
package buffer

import "github.com/clearpath-sim/syncframe/internal/sensor"

// DropPolicy controls what Push does when the buffer is already full.
type DropPolicy int

const (
	// DropOldest evicts the oldest-inserted entry to make room (default).
	DropOldest DropPolicy = iota
	// DropNewest refuses the incoming packet, leaving the buffer untouched.
	DropNewest
)

type meta struct {
	timestamp float64
	slabKey   int
}

// SensorBuffer is a single sensor's bounded, timestamp-ordered packet
// buffer. It is not safe for concurrent use; the sync engine owns it from
// a single goroutine.
type SensorBuffer struct {
	dropPolicy DropPolicy
	maxSize    int

	index []meta // insertion order, not timestamp order

	storage *slab

	droppedCount    uint64
	outOfOrderCount uint64

	lastTimestamp    float64
	hasLastTimestamp bool
}

// New creates a buffer with the given capacity and drop policy. Push never
// expires packets by age; only an explicit EvictExpired call does, and the
// sync engine does not call it.
func New(maxSize int, dropPolicy DropPolicy) *SensorBuffer {
	return &SensorBuffer{
		dropPolicy: dropPolicy,
		maxSize:    maxSize,
		index:      make([]meta, 0, maxSize),
		storage:    newSlab(maxSize),
	}
}

// Push inserts a packet, evicting the oldest entry if the buffer is full
// (DropOldest) or refusing the new packet (DropNewest). Returns true if the
// packet was accepted.
func (b *SensorBuffer) Push(p sensor.Packet) bool {
	ts := p.Timestamp

	if b.hasLastTimestamp && ts < b.lastTimestamp {
		b.outOfOrderCount++
	}
	b.lastTimestamp = ts
	b.hasLastTimestamp = true

	if len(b.index) >= b.maxSize {
		switch b.dropPolicy {
		case DropNewest:
			b.droppedCount++
			return false
		default: // DropOldest
			oldest := b.index[0]
			b.storage.remove(oldest.slabKey)
			b.index = b.index[1:]
			b.droppedCount++
		}
	}

	key := b.storage.insert(p)
	b.index = append(b.index, meta{timestamp: ts, slabKey: key})
	return true
}

// Peek returns the earliest packet by timestamp without removing it.
func (b *SensorBuffer) Peek() (sensor.Packet, bool) {
	idx, ok := b.minIndex()
	if !ok {
		return sensor.Packet{}, false
	}
	return b.storage.get(b.index[idx].slabKey)
}

// Pop removes and returns the earliest packet by timestamp.
func (b *SensorBuffer) Pop() (sensor.Packet, bool) {
	idx, ok := b.minIndex()
	if !ok {
		return sensor.Packet{}, false
	}
	m := b.index[idx]
	p, found := b.storage.get(m.slabKey)
	b.storage.remove(m.slabKey)
	b.index = append(b.index[:idx], b.index[idx+1:]...)
	return p, found
}

// Len returns the number of packets currently buffered.
func (b *SensorBuffer) Len() int {
	return len(b.index)
}

// Capacity returns the buffer's configured maximum size.
func (b *SensorBuffer) Capacity() int {
	return b.maxSize
}

// IsEmpty reports whether the buffer holds no packets.
func (b *SensorBuffer) IsEmpty() bool {
	return len(b.index) == 0
}

// EvictExpired removes all packets older than now-timeoutS, returning the
// number evicted. Eviction counts toward DroppedCount.
func (b *SensorBuffer) EvictExpired(now, timeoutS float64) int {
	cutoff := now - timeoutS
	kept := b.index[:0]
	evicted := 0
	for _, m := range b.index {
		if m.timestamp >= cutoff {
			kept = append(kept, m)
			continue
		}
		b.storage.remove(m.slabKey)
		evicted++
	}
	b.index = kept
	b.droppedCount += uint64(evicted)
	return evicted
}

// FindClosestInWindow returns the packet whose timestamp is nearest target,
// restricted to [target-window/2, target+window/2].
func (b *SensorBuffer) FindClosestInWindow(target, window float64) (sensor.Packet, bool) {
	half := window / 2.0
	minT, maxT := target-half, target+half

	bestIdx := -1
	bestDist := 0.0
	for i, m := range b.index {
		if m.timestamp < minT || m.timestamp > maxT {
			continue
		}
		dist := absF64(m.timestamp - target)
		switch {
		case bestIdx == -1, dist < bestDist:
			bestIdx, bestDist = i, dist
		case dist == bestDist && m.timestamp < b.index[bestIdx].timestamp:
			// b.index is insertion order, not timestamp order, so an exact
			// tie must be broken by comparing timestamps directly rather
			// than keeping whichever candidate happened to be inserted
			// first (out-of-order arrival means that isn't always the
			// earlier one).
			bestIdx = i
		}
	}
	if bestIdx == -1 {
		return sensor.Packet{}, false
	}
	return b.storage.get(b.index[bestIdx].slabKey)
}

// RemoveConsumed discards every packet with timestamp <= upToTimestamp.
// Unlike eviction, this does not count toward DroppedCount: it reflects a
// frame that was actually synchronized, not data loss.
func (b *SensorBuffer) RemoveConsumed(upToTimestamp float64) {
	kept := b.index[:0]
	for _, m := range b.index {
		if m.timestamp > upToTimestamp {
			kept = append(kept, m)
			continue
		}
		b.storage.remove(m.slabKey)
	}
	b.index = kept
}

// DroppedCount returns the cumulative number of packets lost to capacity
// (evicted under DropOldest, refused under DropNewest) or to expiry.
func (b *SensorBuffer) DroppedCount() uint64 {
	return b.droppedCount
}

// OutOfOrderCount returns the cumulative number of packets that arrived
// with a timestamp earlier than the previously pushed one.
func (b *SensorBuffer) OutOfOrderCount() uint64 {
	return b.outOfOrderCount
}

func (b *SensorBuffer) minIndex() (int, bool) {
	if len(b.index) == 0 {
		return 0, false
	}
	best := 0
	for i := 1; i < len(b.index); i++ {
		if b.index[i].timestamp < b.index[best].timestamp {
			best = i
		}
	}
	return best, true
}

func absF64(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
