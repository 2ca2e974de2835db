package syncengine

import "github.com/clearpath-sim/syncframe/internal/sensor"

// State is the engine's coarse readiness state.
type State int

const (
	// Idle means every buffer is empty.
	Idle State = iota
	// Buffering means some data has arrived but not every required
	// sensor has a buffered packet yet.
	Buffering
	// Ready means the reference sensor and every required sensor have at
	// least one buffered packet; the engine may attempt to emit.
	Ready
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Buffering:
		return "buffering"
	case Ready:
		return "ready"
	default:
		return "unknown"
	}
}

// SyncMeta carries the alignment metadata for one emitted frame.
type SyncMeta struct {
	ReferenceSensorID sensor.ID
	WindowSize        float64
	MotionIntensity   float64
	TimeOffsets       map[sensor.ID]float64
	KFResiduals       map[sensor.ID]float64
	MissingSensors    []sensor.ID
	DroppedCount      uint64
	OutOfOrderCount   uint64
}

// SyncedFrame is one aligned set of packets, one per included sensor, plus
// the metadata describing how well they align.
type SyncedFrame struct {
	TSync    float64
	FrameID  uint64
	Frames   map[sensor.ID]sensor.Packet
	SyncMeta SyncMeta
}

// BufferStats summarizes the engine's current buffered state, by sensor
// kind, across every tracked sensor.
type BufferStats struct {
	BufferDepths    map[sensor.Kind]int
	TotalPackets    int
	OldestTimestamp *float64
	NewestTimestamp *float64
}
