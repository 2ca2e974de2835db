package syncengine

import (
	"github.com/sirupsen/logrus"

	"github.com/clearpath-sim/syncframe/internal/sensor"
)

// checkJitter compares the gap since a sensor's previous emission against
// its kind's jitter budget, bumping the sensor's exceeded counter and
// logging when the budget is blown. Sensors emitted for the first time
// have nothing to compare against and are skipped.
func (e *Engine) checkJitter(emittedID sensor.ID, rec *sensorRecord, timestamp float64) {
	if !rec.hasLastEmitTime {
		rec.lastEmitTime = timestamp
		rec.hasLastEmitTime = true
		return
	}

	interval := absF64(timestamp - rec.lastEmitTime)
	rec.lastEmitTime = timestamp

	budget := rec.kind.JitterBudget()
	if interval > budget {
		rec.jitterExceeded++
		if e.logger != nil {
			e.logger.WithFields(logrus.Fields{
				"sensor_id": string(emittedID),
				"interval":  interval,
				"budget":    budget,
			}).Warn("sensor emission jitter exceeded budget")
		}
		e.metrics.RecordJitterExceeded(string(emittedID))
	}
}
