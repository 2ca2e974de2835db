package syncengine

// Recorder receives the metric events the sync engine produces, named to
// match the metric surface the telemetry package exposes to Prometheus.
// A nil Recorder is never passed to callbacks directly; New substitutes a
// no-op implementation when the caller doesn't supply one.
type Recorder interface {
	RecordFrame(status string)
	RecordCompletenessRatio(ratio float64)
	RecordJitter(jitterSeconds float64)
	RecordAlignmentError(sensorID string, errSeconds float64)
	RecordQualityScore(sensorID string, score float64)
	RecordJitterExceeded(sensorID string)
}

type noopRecorder struct{}

func (noopRecorder) RecordFrame(string)                   {}
func (noopRecorder) RecordCompletenessRatio(float64)      {}
func (noopRecorder) RecordJitter(float64)                 {}
func (noopRecorder) RecordAlignmentError(string, float64) {}
func (noopRecorder) RecordQualityScore(string, float64)   {}
func (noopRecorder) RecordJitterExceeded(string)          {}
