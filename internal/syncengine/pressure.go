package syncengine

import (
	"github.com/clearpath-sim/syncframe/internal/sensor"
	"github.com/clearpath-sim/syncframe/internal/window"
)

func motionIntensityOf(imu sensor.IMUPayload) float64 {
	return window.ComputeMotionIntensity(imu)
}

func fuseMotionPressure(imuIntensity, bufferPressure float64) float64 {
	return window.FuseMotionPressure(imuIntensity, bufferPressure)
}

// bufferPressureFor scores one sensor's contribution to aggregate load: how
// full its buffer is, plus a penalty for how lossy it has been.
func bufferPressureFor(rec *sensorRecord) float64 {
	capacity := rec.buffer.Capacity()
	if capacity < 1 {
		capacity = 1
	}
	depth := float64(rec.buffer.Len()) / float64(capacity)
	drop := float64(rec.buffer.DroppedCount()) / float64(capacity)
	ooo := float64(rec.buffer.OutOfOrderCount()) / float64(capacity)
	penalty := 0.25 * (drop + ooo)
	return clamp(depth+penalty, 0, 1)
}

// averageBufferPressure is the arithmetic mean of bufferPressureFor over
// every tracked sensor.
func (e *Engine) averageBufferPressure() float64 {
	if len(e.sensors) == 0 {
		return 0
	}
	total := 0.0
	for _, rec := range e.sensors {
		total += bufferPressureFor(rec)
	}
	return total / float64(len(e.sensors))
}

// derivedMinWindowSeconds is the sensor-derived floor used only as a
// quality-scoring reference, not as the window size itself.
func (e *Engine) derivedMinWindowSeconds() float64 {
	maxPeriod := 0.0
	for _, id := range e.requiredSensors() {
		if v := e.cfg.expectedInterval(id); v > maxPeriod {
			maxPeriod = v
		}
	}
	if maxPeriod == 0 {
		maxPeriod = DefaultSensorInterval
	}
	base := maxPeriod / 2
	capped := base
	if maxMs := e.cfg.Window.MaxMs / 1000.0; capped > maxMs {
		capped = maxMs
	}
	if capped < minWindowFloorS {
		return minWindowFloorS
	}
	return capped
}

// estimatorDt returns the elapsed reference time since the last estimator
// update for this sensor, defaulting to the sensor's expected interval the
// first time (or whenever the computed delta is non-positive).
func (e *Engine) estimatorDt(rec *sensorRecord, tRef float64) float64 {
	if !rec.hasLastEstimatorUpdate {
		rec.lastEstimatorUpdate = tRef
		rec.hasLastEstimatorUpdate = true
		return rec.expectedInterval
	}
	dt := absF64(tRef - rec.lastEstimatorUpdate)
	rec.lastEstimatorUpdate = tRef
	if dt > 0 {
		return dt
	}
	return rec.expectedInterval
}
