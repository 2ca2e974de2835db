package livefeed

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/clearpath-sim/syncframe/internal/sensor"
	"github.com/clearpath-sim/syncframe/internal/syncengine"
)

func testFrame() syncengine.SyncedFrame {
	return syncengine.SyncedFrame{
		TSync:   1.5,
		FrameID: 7,
		Frames: map[sensor.ID]sensor.Packet{
			"cam0": {ID: "cam0", Kind: sensor.Camera, Timestamp: 1.5},
		},
		SyncMeta: syncengine.SyncMeta{
			ReferenceSensorID: "cam0",
			WindowSize:        0.05,
			MotionIntensity:   0.3,
			TimeOffsets:       map[sensor.ID]float64{"cam0": 0.001},
			KFResiduals:       map[sensor.ID]float64{"cam0": 0.0005},
			MissingSensors:    []sensor.ID{"imu0"},
			DroppedCount:      2,
			OutOfOrderCount:   1,
		},
	}
}

func TestSummarizeCopiesFields(t *testing.T) {
	summary := summarize(testFrame(), time.Unix(0, 0))

	if summary.FrameID != 7 || summary.TSync != 1.5 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if summary.SensorCount != 1 {
		t.Fatalf("SensorCount = %d, want 1", summary.SensorCount)
	}
	if len(summary.MissingSensors) != 1 || summary.MissingSensors[0] != "imu0" {
		t.Fatalf("MissingSensors = %v", summary.MissingSensors)
	}
}

func TestFilterSummaryStripsDiagnosticsBelowOperator(t *testing.T) {
	summary := summarize(testFrame(), time.Unix(0, 0))

	filtered := filterSummary(summary, ClearanceBasic)
	if filtered.TimeOffsets != nil || filtered.KFResiduals != nil {
		t.Fatalf("expected diagnostics stripped for basic clearance, got %+v", filtered)
	}

	unfiltered := filterSummary(summary, ClearanceAdmin)
	if unfiltered.TimeOffsets == nil {
		t.Fatalf("expected admin clearance to retain diagnostics")
	}
}

func TestFilterSummaryStripsMissingBelowBasic(t *testing.T) {
	summary := summarize(testFrame(), time.Unix(0, 0))

	filtered := filterSummary(summary, ClearancePublic)
	if filtered.MissingSensors != nil || filtered.DroppedCount != 0 {
		t.Fatalf("expected public clearance to strip missing/drop fields, got %+v", filtered)
	}
}

func TestTokenValidatorParsesClearance(t *testing.T) {
	key := []byte("test-signing-key")
	validator := NewTokenValidator(key)

	claims := clearanceClaims{
		Clearance: "operator",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	level, err := validator.Validate(signed)
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if level != ClearanceOperator {
		t.Fatalf("level = %v, want ClearanceOperator", level)
	}
}

func TestTokenValidatorRejectsBadSignature(t *testing.T) {
	validator := NewTokenValidator([]byte("key-a"))

	claims := clearanceClaims{Clearance: "admin"}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, _ := token.SignedString([]byte("key-b"))

	level, err := validator.Validate(signed)
	if err == nil {
		t.Fatalf("expected error for mismatched signing key")
	}
	if level != ClearancePublic {
		t.Fatalf("level = %v, want ClearancePublic on failure", level)
	}
}

func TestTokenValidatorNoKeyConfigured(t *testing.T) {
	validator := NewTokenValidator(nil)
	level, err := validator.Validate("anything")
	if err == nil {
		t.Fatalf("expected error with no signing key configured")
	}
	if level != ClearancePublic {
		t.Fatalf("level = %v, want ClearancePublic", level)
	}
}
