package livefeed

import (
	"time"

	"github.com/clearpath-sim/syncframe/internal/syncengine"
)

// ClearanceLevel gates how much of a FrameSummary a subscriber receives.
type ClearanceLevel int

const (
	ClearancePublic  ClearanceLevel = 0
	ClearanceBasic   ClearanceLevel = 1
	ClearanceOperator ClearanceLevel = 2
	ClearanceAdmin   ClearanceLevel = 3
)

// FrameSummary is the JSON payload pushed to dashboard clients: a
// human-facing digest of a SyncedFrame, not a wire-accurate re-encoding
// of it (that remains a sink concern left undone elsewhere).
type FrameSummary struct {
	Timestamp time.Time `json:"timestamp"`
	FrameID   uint64    `json:"frame_id"`
	TSync     float64   `json:"t_sync"`

	SensorCount     int      `json:"sensor_count"`
	MissingSensors  []string `json:"missing_sensors,omitempty"`
	WindowSize      float64  `json:"window_size"`
	MotionIntensity float64  `json:"motion_intensity"`

	// Per-sensor diagnostics are operator-and-above only; filterSummary
	// strips them for lower clearances.
	TimeOffsets map[string]float64 `json:"time_offsets,omitempty"`
	KFResiduals map[string]float64 `json:"kf_residuals,omitempty"`

	DroppedCount    uint64 `json:"dropped_count,omitempty"`
	OutOfOrderCount uint64 `json:"out_of_order_count,omitempty"`
}

func summarize(frame syncengine.SyncedFrame, now time.Time) *FrameSummary {
	missing := make([]string, 0, len(frame.SyncMeta.MissingSensors))
	for _, id := range frame.SyncMeta.MissingSensors {
		missing = append(missing, string(id))
	}

	offsets := make(map[string]float64, len(frame.SyncMeta.TimeOffsets))
	for id, v := range frame.SyncMeta.TimeOffsets {
		offsets[string(id)] = v
	}
	residuals := make(map[string]float64, len(frame.SyncMeta.KFResiduals))
	for id, v := range frame.SyncMeta.KFResiduals {
		residuals[string(id)] = v
	}

	return &FrameSummary{
		Timestamp:       now,
		FrameID:         frame.FrameID,
		TSync:           frame.TSync,
		SensorCount:     len(frame.Frames),
		MissingSensors:  missing,
		WindowSize:      frame.SyncMeta.WindowSize,
		MotionIntensity: frame.SyncMeta.MotionIntensity,
		TimeOffsets:     offsets,
		KFResiduals:     residuals,
		DroppedCount:    frame.SyncMeta.DroppedCount,
		OutOfOrderCount: frame.SyncMeta.OutOfOrderCount,
	}
}

// filterSummary trims fields a subscriber's clearance does not entitle it
// to see.
func filterSummary(summary *FrameSummary, clearance ClearanceLevel) *FrameSummary {
	if clearance >= ClearanceAdmin {
		return summary
	}

	filtered := *summary
	if clearance < ClearanceOperator {
		filtered.TimeOffsets = nil
		filtered.KFResiduals = nil
	}
	if clearance < ClearanceBasic {
		filtered.MissingSensors = nil
		filtered.DroppedCount = 0
		filtered.OutOfOrderCount = 0
	}
	return &filtered
}
