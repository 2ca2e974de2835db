// Package syncengine implements the event-driven synchronization
// orchestrator: it owns one buffer and one time-offset estimator per
// sensor, decides when enough data has arrived to attempt an aligned
// frame, and applies the quality gate and missing-data policy that decide
// what gets emitted.
package syncengine

import (
	"github.com/sirupsen/logrus"

	"github.com/clearpath-sim/syncframe/internal/buffer"
	"github.com/clearpath-sim/syncframe/internal/kalman"
	"github.com/clearpath-sim/syncframe/internal/sensor"
)

// sensorRecord bundles everything the engine tracks for one sensor, so a
// sync attempt needs a single map lookup instead of several maps that can
// drift out of sync with each other.
type sensorRecord struct {
	kind sensor.Kind

	buffer    *buffer.SensorBuffer
	estimator *kalman.AdaKF

	expectedInterval float64

	lastEstimatorUpdate    float64
	hasLastEstimatorUpdate bool

	lastEmitTime   float64
	hasLastEmitTime bool

	jitterExceeded uint64
}

// Engine is the single-writer synchronization core. It is driven by
// exactly one goroutine calling Push; it owns no internal mutex, matching
// the single-writer ownership model the rest of the pipeline assumes.
type Engine struct {
	cfg Config

	sensors map[sensor.ID]*sensorRecord

	state        State
	frameCounter uint64

	latestIMU       *sensor.IMUPayload
	motionIntensity float64

	quality *qualityControl

	lastSyncTime    float64
	hasLastSyncTime bool

	logger  *logrus.Logger
	metrics Recorder
}

// New validates cfg and constructs an Engine with a buffer and estimator
// for every declared sensor (reference sensor included). logger and
// metrics may be nil; a nil logger disables logging, a nil metrics uses a
// no-op recorder.
func New(cfg Config, logger *logrus.Logger, metrics Recorder) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if metrics == nil {
		metrics = noopRecorder{}
	}

	e := &Engine{
		cfg:     cfg,
		sensors: make(map[sensor.ID]*sensorRecord),
		state:   Idle,
		quality: newQualityControl(),
		logger:  logger,
		metrics: metrics,
	}

	declared := append([]sensor.ID{}, cfg.RequiredSensors...)
	if cfg.ReferenceSensorID != "" {
		declared = appendIfMissing(declared, cfg.ReferenceSensorID)
	}
	for _, id := range declared {
		e.ensureSensor(id, sensor.Camera) // kind refined once real packets arrive
	}
	return e, nil
}

func appendIfMissing(ids []sensor.ID, id sensor.ID) []sensor.ID {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}

// ensureSensor lazily creates a sensor record, auto-provisioning on an
// unexpected sensor id rather than rejecting it.
func (e *Engine) ensureSensor(id sensor.ID, kind sensor.Kind) *sensorRecord {
	if rec, ok := e.sensors[id]; ok {
		return rec
	}
	interval := e.cfg.expectedInterval(id)
	rec := &sensorRecord{
		kind:             kind,
		buffer:           buffer.New(e.cfg.Buffer.MaxSize, buffer.DropOldest),
		estimator:        kalman.New(withExpectedInterval(e.cfg.AdaKF, interval)),
		expectedInterval: interval,
	}
	e.sensors[id] = rec
	return rec
}

func withExpectedInterval(cfg kalman.Config, interval float64) kalman.Config {
	cfg.ExpectedInterval = interval
	return cfg
}

// Push feeds one packet into the engine: it updates motion intensity (if
// this is the configured IMU sensor), buffers the packet, recomputes
// readiness, and attempts a sync if Ready. It never blocks and never
// fails.
func (e *Engine) Push(p sensor.Packet) (*SyncedFrame, bool) {
	rec := e.ensureSensor(p.ID, p.Kind)
	rec.kind = p.Kind

	if e.cfg.IMUSensorID != "" && p.ID == e.cfg.IMUSensorID {
		if imu, ok := p.Payload.(sensor.IMUPayload); ok {
			e.latestIMU = &imu
		}
	}

	rec.buffer.Push(p)
	e.updateState()

	if e.state != Ready {
		return nil, false
	}
	return e.trySync()
}

func (e *Engine) updateState() {
	anyData := false
	for _, rec := range e.sensors {
		if !rec.buffer.IsEmpty() {
			anyData = true
			break
		}
	}
	if !anyData {
		e.state = Idle
		return
	}

	for _, id := range e.requiredSensors() {
		rec, ok := e.sensors[id]
		if !ok || rec.buffer.IsEmpty() {
			e.state = Buffering
			return
		}
	}
	e.state = Ready
}

// requiredSensors returns the declared required sensors in declared order
// (the order collectFrames iterates in), followed by the reference sensor
// when it is not already in that list.
func (e *Engine) requiredSensors() []sensor.ID {
	return appendIfMissing(append([]sensor.ID{}, e.cfg.RequiredSensors...), e.cfg.ReferenceSensorID)
}

// MotionIntensity recomputes and returns the fused motion/pressure signal.
// It is intentionally recomputed rather than cached, since buffer pressure
// changes on every push.
func (e *Engine) MotionIntensity() float64 {
	imuIntensity := 0.0
	if e.latestIMU != nil {
		imuIntensity = motionIntensityOf(*e.latestIMU)
	}
	return fuseMotionPressure(imuIntensity, e.averageBufferPressure())
}

// FrameCount returns the number of frames emitted so far.
func (e *Engine) FrameCount() uint64 {
	return e.frameCounter
}

// State returns the engine's current readiness state.
func (e *Engine) State() State {
	return e.state
}

// BufferStats aggregates per-kind buffer depths across every tracked
// sensor. OldestTimestamp and NewestTimestamp are the smallest and largest
// of each sensor's earliest buffered timestamp; packets behind a sensor's
// earliest one are not considered, so NewestTimestamp is not the newest
// buffered timestamp when a sensor holds more than one packet.
func (e *Engine) BufferStats() BufferStats {
	stats := BufferStats{BufferDepths: make(map[sensor.Kind]int)}
	for _, rec := range e.sensors {
		n := rec.buffer.Len()
		stats.BufferDepths[rec.kind] += n
		stats.TotalPackets += n

		if p, ok := rec.buffer.Peek(); ok {
			if stats.OldestTimestamp == nil || p.Timestamp < *stats.OldestTimestamp {
				ts := p.Timestamp
				stats.OldestTimestamp = &ts
			}
			if stats.NewestTimestamp == nil || p.Timestamp > *stats.NewestTimestamp {
				ts := p.Timestamp
				stats.NewestTimestamp = &ts
			}
		}
	}
	return stats
}

// EstimatedLatency returns how old the oldest buffered packet is relative
// to currentTime, or 0 if every buffer is empty.
func (e *Engine) EstimatedLatency(currentTime float64) float64 {
	stats := e.BufferStats()
	if stats.OldestTimestamp == nil {
		return 0
	}
	return currentTime - *stats.OldestTimestamp
}

func (e *Engine) aggregateBufferCounts() (dropped, outOfOrder uint64) {
	for _, rec := range e.sensors {
		dropped += rec.buffer.DroppedCount()
		outOfOrder += rec.buffer.OutOfOrderCount()
	}
	return
}
