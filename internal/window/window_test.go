package window

import (
	"testing"

	"github.com/clearpath-sim/syncframe/internal/sensor"
)

func TestMotionIntensityStationary(t *testing.T) {
	imu := sensor.IMUPayload{
		Accelerometer: sensor.Vector3{X: 0, Y: 0, Z: 9.8},
	}
	if got := ComputeMotionIntensity(imu); got >= 0.1 {
		t.Fatalf("stationary IMU intensity = %v, want < 0.1", got)
	}
}

func TestMotionIntensityHighMotion(t *testing.T) {
	imu := sensor.IMUPayload{
		Accelerometer: sensor.Vector3{X: 5.0, Y: 0, Z: 9.8},
		Gyroscope:     sensor.Vector3{X: 1.0, Y: 0, Z: 0},
	}
	if got := ComputeMotionIntensity(imu); got <= 0.5 {
		t.Fatalf("high motion IMU intensity = %v, want > 0.5", got)
	}
}

func TestWindowSizeStationary(t *testing.T) {
	cfg := Defaults()
	got := ComputeWindowSize(0.0, cfg)
	if absF64(got-0.1) >= 0.001 {
		t.Fatalf("stationary window = %v, want ~0.1", got)
	}
}

func TestWindowSizeHighMotion(t *testing.T) {
	cfg := Defaults()
	got := ComputeWindowSize(1.0, cfg)
	if absF64(got-0.02) >= 0.001 {
		t.Fatalf("high motion window = %v, want ~0.02", got)
	}
}

func TestWindowSizeInterpolation(t *testing.T) {
	cfg := Defaults()
	got := ComputeWindowSize(0.5, cfg)
	if absF64(got-0.06) >= 0.001 {
		t.Fatalf("0.5 intensity window = %v, want ~0.06", got)
	}
}

func TestFuseMotionPressureBounds(t *testing.T) {
	if got := FuseMotionPressure(0.0, 0.0); got > 0.01 {
		t.Fatalf("FuseMotionPressure(0,0) = %v, want <= 0.01", got)
	}
	if got := FuseMotionPressure(1.0, 1.0); absF64(got-1.0) >= 1e-9 {
		t.Fatalf("FuseMotionPressure(1,1) = %v, want ~1.0", got)
	}
}

func TestFuseMotionPressureWeighting(t *testing.T) {
	got := FuseMotionPressure(0.2, 0.8)
	want := 0.38 // 0.2*0.7 + 0.8*0.3
	if absF64(got-want) >= 1e-6 {
		t.Fatalf("FuseMotionPressure(0.2,0.8) = %v, want %v", got, want)
	}
}
