package syncengine

import (
	"github.com/clearpath-sim/syncframe/internal/sensor"
	"github.com/clearpath-sim/syncframe/internal/window"
)

// trySync attempts to assemble and emit one SyncedFrame. It returns
// (nil, false) when the missing-data policy refuses to emit.
func (e *Engine) trySync() (*SyncedFrame, bool) {
	if e.state != Ready {
		return nil, false
	}

	refRec := e.sensors[e.cfg.ReferenceSensorID]
	tRefPacket, ok := refRec.buffer.Peek()
	if !ok {
		return nil, false
	}
	tRef := tRefPacket.Timestamp

	fusedIntensity := e.MotionIntensity()
	winSeconds := window.ComputeWindowSize(fusedIntensity, e.cfg.Window)
	minWindowS := e.derivedMinWindowSeconds()

	selection := e.collectFrames(tRef, winSeconds, minWindowS)

	if e.shouldDropForMissing(selection.missingSensors) {
		e.evictConsumed(tRef)
		return nil, false
	}

	e.frameCounter++
	dropped, outOfOrder := e.aggregateBufferCounts()

	frame := &SyncedFrame{
		TSync:   tRef,
		FrameID: e.frameCounter,
		Frames:  selection.frames,
		SyncMeta: SyncMeta{
			ReferenceSensorID: e.cfg.ReferenceSensorID,
			WindowSize:        winSeconds,
			MotionIntensity:   fusedIntensity,
			TimeOffsets:       selection.timeOffsets,
			KFResiduals:       selection.kfResiduals,
			MissingSensors:    selection.missingSensors,
			DroppedCount:      dropped,
			OutOfOrderCount:   outOfOrder,
		},
	}

	e.recordFrameMetrics(frame, selection)
	e.checkSensorJitter(frame)

	e.evictConsumed(tRef)
	return frame, true
}

type frameSelection struct {
	frames         map[sensor.ID]sensor.Packet
	timeOffsets    map[sensor.ID]float64
	kfResiduals    map[sensor.ID]float64
	qualityScores  map[sensor.ID]float64
	missingSensors []sensor.ID
}

// collectFrames walks the required sensors in declared order, picking the
// closest-in-window packet for each, running its estimator, and applying
// the quality gate. Sensors with no eligible packet or a sub-threshold
// score are recorded as missing.
func (e *Engine) collectFrames(tRef, winSeconds, minWindowS float64) frameSelection {
	sel := frameSelection{
		frames:        make(map[sensor.ID]sensor.Packet),
		timeOffsets:   make(map[sensor.ID]float64),
		kfResiduals:   make(map[sensor.ID]float64),
		qualityScores: make(map[sensor.ID]float64),
	}

	accepted := 0
	required := e.requiredSensors()

	for _, id := range required {
		rec, ok := e.sensors[id]
		if !ok {
			sel.missingSensors = append(sel.missingSensors, id)
			continue
		}

		// A sensor whose estimator is still carrying a non-finite state
		// from a prior round (e.g. its last Update diverged after this
		// sensor had already stopped matching) is reset here too, so a
		// bad estimate can never permanently lock a sensor out of future
		// windows: an Inf/NaN offset would otherwise make every future
		// FindClosestInWindow call fail before Update ever runs again.
		if rec.estimator.Diverged() {
			e.resetDivergedEstimator(id, rec)
			sel.missingSensors = append(sel.missingSensors, id)
			continue
		}

		offset := rec.estimator.Offset()
		target := tRef + offset

		packet, found := rec.buffer.FindClosestInWindow(target, winSeconds)
		if !found {
			sel.missingSensors = append(sel.missingSensors, id)
			continue
		}

		timeDelta := packet.Timestamp - target
		loadIndex := bufferPressureFor(rec)
		dt := e.estimatorDt(rec, tRef)
		newOffset, residual := rec.estimator.Update(packet.Timestamp-tRef, dt, loadIndex)

		if rec.estimator.Diverged() {
			e.resetDivergedEstimator(id, rec)
			sel.missingSensors = append(sel.missingSensors, id)
			continue
		}

		q := qualityScore(timeDelta, winSeconds, residual, minWindowS, loadIndex, rec.kind)
		threshold := e.quality.threshold(rec.kind)
		if q < threshold {
			sel.missingSensors = append(sel.missingSensors, id)
			continue
		}

		sel.frames[id] = packet
		sel.timeOffsets[id] = newOffset
		sel.kfResiduals[id] = residual
		sel.qualityScores[id] = q
		accepted++
	}

	e.quality.adapt(accepted, len(required))
	return sel
}

// resetDivergedEstimator restores id's filter to its initial conditions
// after Diverged reported a non-finite offset or covariance, per the
// estimator numerical-hazard handling: a diverging filter is discarded
// rather than left to poison every subsequent frame.
func (e *Engine) resetDivergedEstimator(id sensor.ID, rec *sensorRecord) {
	if e.logger != nil {
		e.logger.WithField("sensor_id", id).
			Warn("estimator diverged (non-finite state), resetting to initial conditions")
	}
	rec.estimator.Reset(withExpectedInterval(e.cfg.AdaKF, rec.expectedInterval))
}

// shouldDropForMissing applies the configured MissingDataStrategy.
func (e *Engine) shouldDropForMissing(missing []sensor.ID) bool {
	switch e.cfg.MissingStrategy {
	case Drop:
		return len(missing) > 0
	default: // Empty, Interpolate (treated as Empty)
		return false
	}
}

// evictConsumed removes every packet with timestamp <= tRef from every
// tracked buffer, then recomputes readiness state.
func (e *Engine) evictConsumed(tRef float64) {
	for _, rec := range e.sensors {
		rec.buffer.RemoveConsumed(tRef)
	}
	e.updateState()
}

func (e *Engine) recordFrameMetrics(frame *SyncedFrame, sel frameSelection) {
	e.metrics.RecordFrame("ok")

	required := len(e.requiredSensors())
	if required > 0 {
		completeness := float64(len(sel.frames)) / float64(required)
		e.metrics.RecordCompletenessRatio(completeness)
	}

	if e.hasLastSyncTime {
		e.metrics.RecordJitter(absF64(frame.TSync - e.lastSyncTime))
	}
	e.lastSyncTime = frame.TSync
	e.hasLastSyncTime = true

	for id, offset := range sel.timeOffsets {
		e.metrics.RecordAlignmentError(string(id), absF64(offset))
	}
	for id, q := range sel.qualityScores {
		e.metrics.RecordQualityScore(string(id), q)
	}
}

// checkSensorJitter runs the per-emitted-sensor jitter watchdog.
func (e *Engine) checkSensorJitter(frame *SyncedFrame) {
	for id, packet := range frame.Frames {
		rec := e.sensors[id]
		e.checkJitter(id, rec, packet.Timestamp)
	}
}
