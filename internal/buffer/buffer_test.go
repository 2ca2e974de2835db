package buffer

import (
	"testing"

	"github.com/clearpath-sim/syncframe/internal/sensor"
)

func makePacket(id sensor.ID, timestamp float64) sensor.Packet {
	return sensor.Packet{
		ID:        id,
		Kind:      sensor.Camera,
		Timestamp: timestamp,
		Payload:   sensor.RawPayload{},
	}
}

func TestBufferPushOrder(t *testing.T) {
	b := New(10, DropOldest)

	b.Push(makePacket("cam", 3.0))
	b.Push(makePacket("cam", 1.0))
	b.Push(makePacket("cam", 2.0))

	for _, want := range []float64{1.0, 2.0, 3.0} {
		p, ok := b.Pop()
		if !ok {
			t.Fatalf("expected a packet, got none")
		}
		if p.Timestamp != want {
			t.Fatalf("pop order: got %v, want %v", p.Timestamp, want)
		}
	}
}

func TestBufferCapacityEvictsOldest(t *testing.T) {
	b := New(3, DropOldest)

	b.Push(makePacket("cam", 1.0))
	b.Push(makePacket("cam", 2.0))
	b.Push(makePacket("cam", 3.0))
	b.Push(makePacket("cam", 4.0)) // should evict 1.0

	if got := b.Len(); got != 3 {
		t.Fatalf("Len() = %d, want 3", got)
	}
	if got := b.DroppedCount(); got != 1 {
		t.Fatalf("DroppedCount() = %d, want 1", got)
	}
}

func TestBufferCapacityDropNewest(t *testing.T) {
	b := New(3, DropNewest)

	b.Push(makePacket("cam", 1.0))
	b.Push(makePacket("cam", 2.0))
	b.Push(makePacket("cam", 3.0))
	accepted := b.Push(makePacket("cam", 4.0))

	if accepted {
		t.Fatalf("expected DropNewest to refuse the incoming packet")
	}
	if got := b.Len(); got != 3 {
		t.Fatalf("Len() = %d, want 3", got)
	}
	if p, _ := b.Peek(); p.Timestamp != 1.0 {
		t.Fatalf("expected oldest packet retained, got timestamp %v", p.Timestamp)
	}
}

func TestBufferEvictExpired(t *testing.T) {
	b := New(10, DropOldest)

	b.Push(makePacket("cam", 0.0))
	b.Push(makePacket("cam", 0.5))
	b.Push(makePacket("cam", 1.5))

	evicted := b.EvictExpired(2.0, 1.0)
	if evicted != 2 {
		t.Fatalf("EvictExpired() = %d, want 2", evicted)
	}
	if got := b.Len(); got != 1 {
		t.Fatalf("Len() after eviction = %d, want 1", got)
	}
}

func TestFindClosestInWindow(t *testing.T) {
	b := New(10, DropOldest)

	b.Push(makePacket("cam", 1.0))
	b.Push(makePacket("cam", 1.05))
	b.Push(makePacket("cam", 1.1))

	closest, ok := b.FindClosestInWindow(1.04, 0.1)
	if !ok {
		t.Fatalf("expected a match within window")
	}
	if closest.Timestamp != 1.05 {
		t.Fatalf("closest timestamp = %v, want 1.05", closest.Timestamp)
	}
}

func TestFindClosestInWindowNoMatch(t *testing.T) {
	b := New(10, DropOldest)
	b.Push(makePacket("cam", 1.0))

	if _, ok := b.FindClosestInWindow(5.0, 0.1); ok {
		t.Fatalf("expected no match outside window")
	}
}

// TestFindClosestInWindowTieBreaksByEarlierTimestamp covers an
// out-of-order arrival: the later timestamp is pushed first, so insertion
// order and timestamp order disagree on which candidate is "earlier". A
// tie must still resolve to the smaller timestamp, not to whichever
// candidate happened to be inserted first.
func TestFindClosestInWindowTieBreaksByEarlierTimestamp(t *testing.T) {
	b := New(10, DropOldest)

	b.Push(makePacket("cam", 1.05)) // inserted first, but the later timestamp
	b.Push(makePacket("cam", 0.95)) // inserted second, but the earlier timestamp

	closest, ok := b.FindClosestInWindow(1.0, 1.0)
	if !ok {
		t.Fatalf("expected a match within window")
	}
	if closest.Timestamp != 0.95 {
		t.Fatalf("closest timestamp = %v, want 0.95 (the earlier of an equidistant tie)", closest.Timestamp)
	}
}

func TestOutOfOrderDetection(t *testing.T) {
	b := New(10, DropOldest)

	b.Push(makePacket("cam", 1.0))
	b.Push(makePacket("cam", 3.0))
	b.Push(makePacket("cam", 2.0)) // out of order

	if got := b.OutOfOrderCount(); got != 1 {
		t.Fatalf("OutOfOrderCount() = %d, want 1", got)
	}
}

// TestBufferNeverExceedsCapacity covers the bounded-memory invariant: no
// sequence of pushes may grow the buffer beyond its configured capacity.
func TestBufferNeverExceedsCapacity(t *testing.T) {
	b := New(4, DropOldest)
	for i := 0; i < 1000; i++ {
		b.Push(makePacket("cam", float64(i)))
		if b.Len() > 4 {
			t.Fatalf("buffer grew to %d entries, capacity is 4", b.Len())
		}
	}
}

// TestRemoveConsumedDoesNotCountAsDropped covers the drop-accounting
// invariant: consuming a synchronized frame is not data loss.
func TestRemoveConsumedDoesNotCountAsDropped(t *testing.T) {
	b := New(10, DropOldest)
	b.Push(makePacket("cam", 1.0))
	b.Push(makePacket("cam", 2.0))
	b.Push(makePacket("cam", 3.0))

	b.RemoveConsumed(2.0)

	if got := b.Len(); got != 1 {
		t.Fatalf("Len() after RemoveConsumed = %d, want 1", got)
	}
	if got := b.DroppedCount(); got != 0 {
		t.Fatalf("DroppedCount() = %d, want 0 (consumption is not a drop)", got)
	}
}
